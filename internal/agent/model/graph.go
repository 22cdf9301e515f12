package model

import (
	"github.com/cloudwego/eino/schema"
)

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - The customer's history is guarded by the runner's per-customer lock for
//     the whole invocation, so the seed/append sequence cannot interleave.
type AppState struct {
	CustomerID string
	Decision   PolicyDecision
	// PendingUser is committed together with the assistant reply, never alone.
	PendingUser *schema.Message
	Reply       *schema.Message

	// Accumulated total LLM cost (USD) for this request
	TotalCostUSD float64
}

// QueryInput is the graph input: the validated request plus the policy
// decision already computed for it.
type QueryInput struct {
	Request  AssistRequest
	Decision PolicyDecision
}

// UsageHook receives the cost of every model call, e.g. for metrics.
type UsageHook func(UsageCost)
