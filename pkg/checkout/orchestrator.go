package checkout

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hostedpay-rs/hostedpay-go/pkg/gateway"
	"github.com/hostedpay-rs/hostedpay-go/pkg/hostedflow"
	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// Client is the payment session state machine. It owns one logical session at
// a time and drives it through
//
//	uninitialized → session_created → awaiting_approval →
//	approved|cancelled|failed → tokenized
//
// with torn_down reachable from any state. All transitions are triggered
// either by the caller or by the single terminal event of the hosted-flow
// bridge; events after the first are logged and ignored.
type Client struct {
	gateway gateway.Bridge
	flows   hostedflow.Bridge
	logger  *slog.Logger

	mu       sync.Mutex
	state    types.SessionState
	flow     types.Flow
	inFlight bool

	sessionID  string
	shipping   *ShippingRegistry
	sub        hostedflow.Subscription
	approval   *types.ApprovalPayload
	credential *types.Credential
	lastErr    error

	// done is closed exactly once, when the session reaches a state an
	// AwaitApproval caller can act on.
	done chan struct{}

	configMu sync.Mutex
	config   *types.GatewayConfiguration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger used by the state machine.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an orchestrator bound to a gateway bridge and a hosted-flow
// bridge. One Client handles one payment session; create a new Client per
// session.
func New(gw gateway.Bridge, flows hostedflow.Bridge, opts ...Option) *Client {
	c := &Client{
		gateway: gw,
		flows:   flows,
		logger:  slog.Default(),
		state:   types.StateUninitialized,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the session's current lifecycle state.
func (c *Client) State() types.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the gateway-assigned session id, or "" before creation.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// CreatePayment validates spec, opens a session with the gateway, and
// subscribes for the hosted flow's terminal event. It returns the opaque
// session id the hosted SDK needs to launch the approval UI.
//
// A gateway failure moves the session to failed and is not retried here; the
// session id of a failed open must not be reused, so retrying means creating
// a new Client.
func (c *Client) CreatePayment(ctx context.Context, spec types.PaymentIntentSpec) (string, error) {
	req, err := Validate(spec)
	if err != nil {
		return "", err
	}

	if err := c.begin(req); err != nil {
		return "", err
	}

	sessionID, err := c.gateway.OpenSession(ctx, req)
	if err != nil {
		gerr := types.NewGatewayError("open session", err)
		c.fail(gerr)
		return "", gerr
	}

	if err := c.arm(sessionID); err != nil {
		return "", err
	}

	c.logger.Info("payment session created",
		"sessionId", sessionID,
		"flow", string(req.Flow))
	return sessionID, nil
}

// StartVaultInitiatedCheckout resumes a previously vaulted payment method
// directly into the hosted flow: no gateway session is opened, the vaulted
// token itself keys the approval subscription and the machine goes straight
// to awaiting_approval.
func (c *Client) StartVaultInitiatedCheckout(ctx context.Context, opts types.VaultInitiatedCheckoutOptions) error {
	req, err := ValidateVaultInitiated(opts)
	if err != nil {
		return err
	}

	if err := c.begin(req); err != nil {
		return err
	}

	if err := c.arm(req.VaultInitiatedPaymentMethodToken); err != nil {
		return err
	}

	c.logger.Info("vault-initiated checkout started",
		"sessionId", req.VaultInitiatedPaymentMethodToken)
	return nil
}

// begin reserves the machine for a new session. The reservation guards the
// gateway call made without the lock held; overlapping create calls on the
// same instance are rejected rather than left undefined.
func (c *Client) begin(req *types.SessionRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == types.StateTornDown {
		return types.NewSessionTornDownError()
	}
	if c.inFlight || c.state != types.StateUninitialized {
		return types.NewSessionAlreadyInFlightError()
	}

	var shipping *ShippingRegistry
	if len(req.ShippingOptions) > 0 {
		var err error
		shipping, err = NewShippingRegistry(req.ShippingOptions)
		if err != nil {
			return err
		}
	}

	c.inFlight = true
	c.flow = req.Flow
	c.shipping = shipping
	c.done = make(chan struct{})
	return nil
}

// arm transitions the reserved session into awaiting_approval and registers
// the single hosted-flow subscription keyed by sessionID.
func (c *Client) arm(sessionID string) error {
	c.mu.Lock()
	if c.state == types.StateTornDown {
		c.inFlight = false
		c.mu.Unlock()
		return types.NewSessionTornDownError()
	}
	c.sessionID = sessionID
	c.state = types.StateSessionCreated
	c.mu.Unlock()

	sub, err := c.flows.Subscribe(sessionID, hostedflow.Callbacks{
		Approved:  c.onApproved,
		Cancelled: c.onCancelled,
		Failed:    c.onFailed,
	})
	if err != nil {
		gerr := types.NewGatewayError("hosted flow subscribe", err)
		c.fail(gerr)
		return gerr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == types.StateTornDown {
		// Teardown raced the subscription; release it synchronously.
		sub.Unsubscribe()
		c.inFlight = false
		return types.NewSessionTornDownError()
	}
	c.sub = sub
	c.state = types.StateAwaitingApproval
	c.inFlight = false
	return nil
}

// onApproved handles the bridge's approval event.
func (c *Client) onApproved(payload *types.ApprovalPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.StateAwaitingApproval {
		c.logIgnoredEvent("approved")
		return
	}

	if payload.ShippingOptionID != "" {
		if err := c.shipping.Select(payload.ShippingOptionID); err != nil {
			c.logger.Error("approval carried unknown shipping option",
				"sessionId", c.sessionID,
				"shippingOptionId", payload.ShippingOptionID)
			c.transitionLocked(types.StateFailed, err)
			return
		}
	}

	c.approval = payload
	c.transitionLocked(types.StateApproved, nil)
	c.logger.Info("buyer approved payment",
		"sessionId", c.sessionID,
		"payerId", payload.PayerID)
}

// onCancelled handles the buyer closing the hosted UI without approving.
func (c *Client) onCancelled() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.StateAwaitingApproval {
		c.logIgnoredEvent("cancelled")
		return
	}

	c.transitionLocked(types.StateCancelled, types.NewPopupClosedError())
	c.logger.Info("buyer cancelled payment", "sessionId", c.sessionID)
}

// onFailed handles a transport or hosted-flow error distinct from
// cancellation.
func (c *Client) onFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.StateAwaitingApproval {
		c.logIgnoredEvent("failed")
		return
	}

	c.transitionLocked(types.StateFailed, types.NewGatewayError("hosted flow", err))
	c.logger.Error("hosted flow failed", "sessionId", c.sessionID, "error", err)
}

// AwaitApproval blocks until the hosted flow delivers its terminal event or
// ctx is done, and returns the approval payload the buyer produced.
// Cancellation surfaces as PopupClosed; flow failure as GatewayError.
func (c *Client) AwaitApproval(ctx context.Context) (*types.ApprovalPayload, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil, types.NewApprovalNotYetReceivedError()
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr != nil {
		return nil, c.lastErr
	}
	if c.approval == nil {
		return nil, types.NewSessionTornDownError()
	}
	return c.approval, nil
}

// TokenizePayment exchanges the buyer's approval for a single-use payment
// credential. The transition is not idempotent: a second call fails with
// AlreadyTokenized and leaves the original credential untouched.
func (c *Client) TokenizePayment(ctx context.Context, payload *types.ApprovalPayload) (*types.Credential, error) {
	c.mu.Lock()

	switch c.state {
	case types.StateTornDown:
		c.mu.Unlock()
		return nil, types.NewSessionTornDownError()
	case types.StateTokenized:
		c.mu.Unlock()
		return nil, types.NewAlreadyTokenizedError()
	case types.StateCancelled:
		err := c.lastErr
		c.mu.Unlock()
		return nil, err
	case types.StateFailed:
		err := c.lastErr
		c.mu.Unlock()
		return nil, err
	case types.StateUninitialized, types.StateSessionCreated, types.StateAwaitingApproval:
		c.mu.Unlock()
		return nil, types.NewApprovalNotYetReceivedError()
	}

	if c.inFlight {
		c.mu.Unlock()
		return nil, types.NewAlreadyTokenizedError()
	}

	if payload == nil {
		payload = c.approval
	}
	if payload.ShippingOptionID != "" && !c.shipping.Contains(payload.ShippingOptionID) {
		c.mu.Unlock()
		return nil, types.NewUnknownShippingOptionError(payload.ShippingOptionID)
	}

	sessionID := c.sessionID
	c.inFlight = true
	c.mu.Unlock()

	credential, err := c.gateway.Exchange(ctx, sessionID, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if c.state == types.StateTornDown {
		return nil, types.NewSessionTornDownError()
	}
	if err != nil {
		gerr := types.NewGatewayError("tokenize", err)
		c.state = types.StateFailed
		c.lastErr = gerr
		return nil, gerr
	}

	credential.SessionID = sessionID
	if c.shipping != nil {
		credential.Shipping = c.shipping.Selected()
	}
	c.credential = credential
	c.state = types.StateTokenized

	c.logger.Info("payment tokenized", "sessionId", sessionID)
	return credential, nil
}

// GetClientID returns the merchant's client id, fetched from the gateway
// configuration on first use and cached afterwards.
func (c *Client) GetClientID(ctx context.Context) (string, error) {
	c.configMu.Lock()
	defer c.configMu.Unlock()

	if c.config == nil {
		cfg, err := c.gateway.Configuration(ctx)
		if err != nil {
			return "", types.NewGatewayError("configuration", err)
		}
		c.config = cfg
	}
	return c.config.ClientID, nil
}

// Teardown releases the hosted-flow subscription and invalidates the session
// for further use. It is safe to call from any state, and from concurrent
// goroutines; after it returns, a late bridge event is dropped and every
// other operation fails with SessionTornDown.
func (c *Client) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == types.StateTornDown {
		return
	}

	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}

	prev := c.state
	c.state = types.StateTornDown
	c.lastErr = types.NewSessionTornDownError()
	c.approval = nil
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}

	c.logger.Info("session torn down", "sessionId", c.sessionID, "previousState", string(prev))
}

// fail moves an in-flight session to failed with err.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.state == types.StateTornDown {
		return
	}
	c.transitionLocked(types.StateFailed, err)
}

// transitionLocked applies a terminal bridge-driven transition. Callers must
// hold c.mu.
func (c *Client) transitionLocked(to types.SessionState, err error) {
	c.state = to
	c.lastErr = err
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	if c.done != nil {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}

func (c *Client) logIgnoredEvent(kind string) {
	dup := types.NewDuplicateApprovalEventError(c.sessionID)
	c.logger.Warn("ignoring hosted-flow event outside awaiting_approval",
		"sessionId", c.sessionID,
		"event", kind,
		"state", string(c.state),
		"error", dup.Error())
}
