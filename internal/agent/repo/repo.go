// Package repo holds the conversation history backends.
package repo

import (
	"errors"

	"github.com/cloudwego/eino/schema"
)

// ErrConversationNotFound is returned by Append when the customer has no
// seeded history; callers must go through GetOrInit first.
var ErrConversationNotFound = errors.New("conversation not found")

func validTurns(turns []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}
