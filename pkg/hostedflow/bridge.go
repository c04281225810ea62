package hostedflow

import (
	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// Callbacks receives the single terminal event of a hosted-flow session.
//
// Exactly one of the three fires, exactly once, per subscription. Nil
// callbacks are allowed and simply drop the event.
type Callbacks struct {
	// Approved fires when the buyer approved the payment in the hosted UI.
	Approved func(payload *types.ApprovalPayload)
	// Cancelled fires when the buyer closed the hosted UI without approving.
	Cancelled func()
	// Failed fires on a transport or hosted-flow error distinct from
	// buyer cancellation.
	Failed func(err error)
}

// Subscription represents an active registration for a session's terminal
// event.
type Subscription interface {
	// Unsubscribe synchronously stops delivery. An event arriving after
	// Unsubscribe returns is dropped, never delivered.
	Unsubscribe()
}

// Bridge is the contract against the popup/iframe channel the buyer interacts
// with. The orchestrator never assumes how events travel (postMessage, HTTP
// callback, polling); it only relies on the one-terminal-event guarantee.
type Bridge interface {
	// Subscribe registers for the single terminal event of sessionID.
	// Only one subscription may exist per session id at a time.
	Subscribe(sessionID string, cb Callbacks) (Subscription, error)
}
