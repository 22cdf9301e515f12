package scheduler

import (
	"context"
	"time"

	logx "github.com/atendimento-virtual/server/pkg/logger"
)

// Sweeper is the subset of model.ConversationRepository the eviction job needs.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// ConversationSweepJob evicts conversation histories idle past their TTL.
type ConversationSweepJob struct {
	Store        Sweeper
	ScheduleExpr string // empty = "@every 5m"
	// OnEvicted, when set, receives the number of histories removed per run.
	OnEvicted func(n int)
	Now       func() time.Time
}

var _ Job = (*ConversationSweepJob)(nil)

func (j *ConversationSweepJob) Name() string { return "conversation_sweep" }

func (j *ConversationSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@every 5m"
}

func (j *ConversationSweepJob) Run(ctx context.Context) error {
	now := time.Now()
	if j.Now != nil {
		now = j.Now()
	}

	n, err := j.Store.SweepExpired(ctx, now)
	if err != nil {
		return err
	}
	if j.OnEvicted != nil {
		j.OnEvicted(n)
	}
	if n > 0 {
		logx.Info().Int("count", n).Msg("evicted idle conversations")
	}
	return nil
}
