package gateway

import (
	"context"

	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// Bridge is the contract the session state machine holds against the payment
// gateway.
//
// Implementations translate the orchestrator's intents into requests against
// the gateway's session and tokenization endpoints. The state machine never
// assumes transport details beyond this contract, and it never retries: a
// failed call is surfaced to the caller as the failed result of the in-flight
// operation.
type Bridge interface {
	// OpenSession exchanges a validated session request for an opaque
	// session id (a payment token for checkout, a billing agreement token
	// for vault).
	OpenSession(ctx context.Context, req *types.SessionRequest) (string, error)

	// Exchange converts an approved session into a single-use payment
	// credential. The gateway invalidates the session id in the process;
	// Exchange must not be called twice for the same session.
	Exchange(ctx context.Context, sessionID string, approval *types.ApprovalPayload) (*types.Credential, error)

	// Configuration returns the merchant configuration the hosted SDK
	// needs, including the client id.
	Configuration(ctx context.Context) (*types.GatewayConfiguration, error)
}
