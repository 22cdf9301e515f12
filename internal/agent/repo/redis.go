package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/atendimento-virtual/server/internal/agent/model"
	errx "github.com/atendimento-virtual/server/internal/core/error"
	logx "github.com/atendimento-virtual/server/pkg/logger"
)

const notFoundReply = "NOTFOUND"

// seedScript pushes the seed turns only when the list is empty, so concurrent
// first requests (even from different processes) seed exactly once.
// KEYS[1] = list key, ARGV[1] = ttl in ms (0 = none), ARGV[2..] = seed turns.
var seedScript = redis.NewScript(`
if redis.call('LLEN', KEYS[1]) == 0 then
	for i = 2, #ARGV do
		redis.call('RPUSH', KEYS[1], ARGV[i])
	end
end
if tonumber(ARGV[1]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return redis.call('LRANGE', KEYS[1], 0, -1)
`)

// appendScript refuses to create a history that was never seeded.
// KEYS[1] = list key, ARGV[1] = ttl in ms (0 = none), ARGV[2..] = turns.
var appendScript = redis.NewScript(`
if redis.call('LLEN', KEYS[1]) == 0 then
	return redis.error_reply('` + notFoundReply + ` conversation')
end
for i = 2, #ARGV do
	redis.call('RPUSH', KEYS[1], ARGV[i])
end
if tonumber(ARGV[1]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return redis.call('LLEN', KEYS[1])
`)

type RedisConversationRepository struct {
	rdb   redis.Cmdable
	seeds []string
	ttl   time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, seeds []*schema.Message, ttl time.Duration) (*RedisConversationRepository, error) {
	encoded, err := encodeTurns(seeds)
	if err != nil {
		return nil, err
	}
	return &RedisConversationRepository{rdb: rdb, seeds: encoded, ttl: ttl}, nil
}

func (r *RedisConversationRepository) conversationKey(customerID string) string {
	return fmt.Sprintf("conversation:%s:messages", customerID)
}

func encodeTurns(turns []*schema.Message) ([]string, error) {
	out := make([]string, 0, len(turns))
	for i, m := range validTurns(turns) {
		b, err := json.Marshal(&schema.Message{Role: m.Role, Content: m.Content})
		if err != nil {
			return nil, fmt.Errorf("marshal turn %d: %w", i, err)
		}
		out = append(out, string(b))
	}
	return out, nil
}

func decodeTurns(customerID string, rows []string) (*model.ConversationHistory, error) {
	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("customer_id", customerID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.ConversationHistory{CustomerID: customerID, Messages: msgs}, nil
}

func (r *RedisConversationRepository) scriptArgs(turns []string) []any {
	args := make([]any, 0, len(turns)+1)
	args = append(args, r.ttl.Milliseconds())
	for _, t := range turns {
		args = append(args, t)
	}
	return args
}

func (r *RedisConversationRepository) GetOrInit(ctx context.Context, customerID string) (*model.ConversationHistory, error) {
	key := r.conversationKey(customerID)

	rows, err := seedScript.Run(ctx, r.rdb, []string{key}, r.scriptArgs(r.seeds)...).StringSlice()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to seed conversation in redis")
		return nil, errx.WrapRedis(err)
	}
	return decodeTurns(customerID, rows)
}

func (r *RedisConversationRepository) Append(ctx context.Context, customerID string, turns ...*schema.Message) error {
	encoded, err := encodeTurns(turns)
	if err != nil {
		logx.Error().Err(err).Str("customer_id", customerID).Msg("failed to marshal message")
		return err
	}
	if len(encoded) == 0 {
		return nil
	}
	key := r.conversationKey(customerID)

	if err := appendScript.Run(ctx, r.rdb, []string{key}, r.scriptArgs(encoded)...).Err(); err != nil {
		if strings.HasPrefix(err.Error(), notFoundReply) {
			return fmt.Errorf("append to %q: %w", customerID, ErrConversationNotFound)
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to push messages to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, customerID string) (*model.ConversationHistory, error) {
	key := r.conversationKey(customerID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.ConversationHistory{CustomerID: customerID, Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}
	return decodeTurns(customerID, rows)
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, customerID string) error {
	key := r.conversationKey(customerID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) GetMessageCount(ctx context.Context, customerID string) (int, error) {
	key := r.conversationKey(customerID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get message count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

// SweepExpired is a no-op: Redis expires idle keys itself.
func (r *RedisConversationRepository) SweepExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
