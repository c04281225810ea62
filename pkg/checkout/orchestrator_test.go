package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostedpay-rs/hostedpay-go/pkg/hostedflow"
	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// fakeGateway is an in-memory gateway.Bridge recording every call.
type fakeGateway struct {
	mu            sync.Mutex
	openCalls     int
	exchangeCalls int
	configCalls   int

	openErr     error
	exchangeErr error

	sessionID  string
	credential types.Credential

	lastRequest *types.SessionRequest
	lastPayload *types.ApprovalPayload
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessionID:  "PAY-123",
		credential: types.Credential{Nonce: "nonce-1", Type: "PayPalAccount"},
	}
}

func (g *fakeGateway) OpenSession(_ context.Context, req *types.SessionRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openCalls++
	g.lastRequest = req
	if g.openErr != nil {
		return "", g.openErr
	}
	return g.sessionID, nil
}

func (g *fakeGateway) Exchange(_ context.Context, _ string, payload *types.ApprovalPayload) (*types.Credential, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exchangeCalls++
	g.lastPayload = payload
	if g.exchangeErr != nil {
		return nil, g.exchangeErr
	}
	cred := g.credential
	return &cred, nil
}

func (g *fakeGateway) Configuration(_ context.Context) (*types.GatewayConfiguration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.configCalls++
	return &types.GatewayConfiguration{ClientID: "client-abc", Environment: "sandbox"}, nil
}

func checkoutSpec() types.PaymentIntentSpec {
	return types.PaymentIntentSpec{
		Flow:     types.FlowCheckout,
		Amount:   "10.00",
		Currency: "USD",
		ShippingOptions: []types.ShippingOption{
			{ID: "std", Label: "Standard", Type: types.ShippingTypeShipping, Selected: true, Amount: "0.00"},
			{ID: "exp", Label: "Express", Type: types.ShippingTypeShipping, Amount: "9.99"},
		},
	}
}

// TestClient_CheckoutHappyPath drives a session through create, buyer
// approval and tokenization, checking every intermediate state.
func TestClient_CheckoutHappyPath(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	require.Equal(t, types.StateUninitialized, client.State())

	sessionID, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)
	assert.Equal(t, "PAY-123", sessionID)
	assert.Equal(t, "PAY-123", client.SessionID())
	assert.Equal(t, types.StateAwaitingApproval, client.State())
	assert.Equal(t, "USD", gw.lastRequest.Currency)

	delivered := bridge.Approve(&types.ApprovalPayload{
		PayerID:          "PAYER-1",
		PaymentToken:     "PAY-123",
		ShippingOptionID: "exp",
	})
	require.True(t, delivered)
	assert.Equal(t, types.StateApproved, client.State())

	approval, err := client.AwaitApproval(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PAYER-1", approval.PayerID)

	cred, err := client.TokenizePayment(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "nonce-1", cred.Nonce)
	assert.Equal(t, "PAY-123", cred.SessionID)
	require.NotNil(t, cred.Shipping)
	assert.Equal(t, "exp", cred.Shipping.ID)
	assert.Equal(t, types.StateTokenized, client.State())
	assert.Equal(t, "PAY-123", gw.lastPayload.PaymentToken)
}

// TestClient_ValidationFailureSkipsGateway verifies a rejected spec produces
// no session and no gateway traffic.
func TestClient_ValidationFailureSkipsGateway(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), types.PaymentIntentSpec{
		Flow:   types.FlowVault,
		Amount: "10.00",
	})
	require.Error(t, err)
	assert.Equal(t, types.CodeConflictingFlowFields, types.CodeOf(err))
	assert.Equal(t, 0, gw.openCalls)
	assert.Equal(t, types.StateUninitialized, client.State())
}

// TestClient_GatewayOpenFailure verifies a failed session open lands in the
// failed state with a gateway error and is reported by later calls.
func TestClient_GatewayOpenFailure(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.openErr = errors.New("503 service unavailable")
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.Error(t, err)
	assert.Equal(t, types.CodeGatewayError, types.CodeOf(err))
	assert.Equal(t, types.StateFailed, client.State())

	_, err = client.TokenizePayment(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.CodeGatewayError, types.CodeOf(err))
}

// TestClient_Cancellation verifies buyer cancellation surfaces the popup
// closed code from both AwaitApproval and TokenizePayment.
func TestClient_Cancellation(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)

	require.True(t, bridge.Cancel("PAY-123"))
	assert.Equal(t, types.StateCancelled, client.State())

	_, err = client.AwaitApproval(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.CodePopupClosed, types.CodeOf(err))

	_, err = client.TokenizePayment(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.CodePopupClosed, types.CodeOf(err))
	assert.Equal(t, 0, gw.exchangeCalls)
}

// TestClient_FlowFailure verifies a hosted-flow error lands in failed with a
// gateway error wrapping the cause.
func TestClient_FlowFailure(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)

	cause := errors.New("window lost")
	require.True(t, bridge.Fail("PAY-123", cause))
	assert.Equal(t, types.StateFailed, client.State())

	_, err = client.AwaitApproval(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.CodeGatewayError, types.CodeOf(err))
	assert.ErrorIs(t, err, cause)
}

// TestClient_TokenizeBeforeApproval verifies tokenization refuses to run
// until the hosted flow has reported a buyer decision.
func TestClient_TokenizeBeforeApproval(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.TokenizePayment(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.CodeApprovalNotYetReceived, types.CodeOf(err))

	_, err = client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)

	_, err = client.TokenizePayment(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.CodeApprovalNotYetReceived, types.CodeOf(err))
	assert.Equal(t, 0, gw.exchangeCalls)
}

// TestClient_DoubleTokenize verifies the second tokenize fails with
// AlreadyTokenized and does not reach the gateway again.
func TestClient_DoubleTokenize(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)
	require.True(t, bridge.Approve(&types.ApprovalPayload{PayerID: "PAYER-1", PaymentToken: "PAY-123"}))

	cred, err := client.TokenizePayment(context.Background(), nil)
	require.NoError(t, err)

	_, err = client.TokenizePayment(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.CodeAlreadyTokenized, types.CodeOf(err))
	assert.Equal(t, 1, gw.exchangeCalls)
	assert.Equal(t, "nonce-1", cred.Nonce)
}

// TestClient_TokenizeUnknownShippingOption verifies an explicit payload with
// an unregistered shipping option id is rejected before the exchange.
func TestClient_TokenizeUnknownShippingOption(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)
	require.True(t, bridge.Approve(&types.ApprovalPayload{PayerID: "PAYER-1", PaymentToken: "PAY-123"}))

	_, err = client.TokenizePayment(context.Background(), &types.ApprovalPayload{
		PayerID:          "PAYER-1",
		PaymentToken:     "PAY-123",
		ShippingOptionID: "overnight",
	})
	require.Error(t, err)
	assert.Equal(t, types.CodeUnknownShippingOption, types.CodeOf(err))
	assert.Equal(t, 0, gw.exchangeCalls)
}

// TestClient_ApprovalWithUnknownShippingOption verifies an approval event
// naming an unregistered option fails the session instead of tokenizing a
// price the buyer never saw.
func TestClient_ApprovalWithUnknownShippingOption(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)

	require.True(t, bridge.Approve(&types.ApprovalPayload{
		PayerID:          "PAYER-1",
		PaymentToken:     "PAY-123",
		ShippingOptionID: "overnight",
	}))
	assert.Equal(t, types.StateFailed, client.State())

	_, err = client.AwaitApproval(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.CodeUnknownShippingOption, types.CodeOf(err))
}

// TestClient_DuplicateEventIgnored verifies only the first terminal event
// counts; a later contradictory event does not move the machine.
func TestClient_DuplicateEventIgnored(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)

	require.True(t, bridge.Approve(&types.ApprovalPayload{PayerID: "PAYER-1", PaymentToken: "PAY-123"}))
	assert.False(t, bridge.Cancel("PAY-123"))
	assert.Equal(t, types.StateApproved, client.State())

	cred, err := client.TokenizePayment(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "nonce-1", cred.Nonce)
}

// TestClient_OverlappingCreate verifies a second create on a live instance is
// rejected without touching the gateway.
func TestClient_OverlappingCreate(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)

	_, err = client.CreatePayment(context.Background(), checkoutSpec())
	require.Error(t, err)
	assert.Equal(t, types.CodeSessionAlreadyInFlight, types.CodeOf(err))
	assert.Equal(t, 1, gw.openCalls)
}

// TestClient_Teardown verifies teardown drops late events and fails every
// later operation with the torn down code, idempotently.
func TestClient_Teardown(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)

	client.Teardown()
	client.Teardown()
	assert.Equal(t, types.StateTornDown, client.State())

	assert.False(t, bridge.Approve(&types.ApprovalPayload{PayerID: "PAYER-1", PaymentToken: "PAY-123"}))

	_, err = client.AwaitApproval(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.CodeSessionTornDown, types.CodeOf(err))

	_, err = client.TokenizePayment(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.CodeSessionTornDown, types.CodeOf(err))

	_, err = client.CreatePayment(context.Background(), checkoutSpec())
	require.Error(t, err)
	assert.Equal(t, types.CodeSessionTornDown, types.CodeOf(err))
	assert.Equal(t, 1, gw.openCalls)
}

// TestClient_VaultInitiatedCheckout verifies the variant arms the approval
// subscription on the vaulted token without opening a gateway session.
func TestClient_VaultInitiatedCheckout(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	err := client.StartVaultInitiatedCheckout(context.Background(), types.VaultInitiatedCheckoutOptions{
		PaymentMethodToken: "tok_vault_1",
		Amount:             "25.00",
		Currency:           "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, gw.openCalls)
	assert.Equal(t, types.StateAwaitingApproval, client.State())
	assert.Equal(t, "tok_vault_1", client.SessionID())

	require.True(t, bridge.Approve(&types.ApprovalPayload{PayerID: "PAYER-1", PaymentToken: "tok_vault_1"}))

	cred, err := client.TokenizePayment(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "tok_vault_1", cred.SessionID)
	assert.Equal(t, 1, gw.exchangeCalls)
}

// TestClient_AwaitApprovalContext verifies AwaitApproval honors context
// cancellation while the hosted flow stays silent.
func TestClient_AwaitApprovalContext(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.AwaitApproval(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestClient_TokenizeExchangeFailure verifies a failed exchange moves the
// session to failed with a gateway error.
func TestClient_TokenizeExchangeFailure(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.exchangeErr = errors.New("422 unprocessable")
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	_, err := client.CreatePayment(context.Background(), checkoutSpec())
	require.NoError(t, err)
	require.True(t, bridge.Approve(&types.ApprovalPayload{PayerID: "PAYER-1", PaymentToken: "PAY-123"}))

	_, err = client.TokenizePayment(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, types.CodeGatewayError, types.CodeOf(err))
	assert.Equal(t, types.StateFailed, client.State())
}

// TestClient_GetClientIDCached verifies the gateway configuration is fetched
// once and served from the cache afterwards.
func TestClient_GetClientIDCached(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	bridge := hostedflow.NewMemoryBridge(nil)
	defer bridge.Close()
	client := New(gw, bridge)

	for i := 0; i < 3; i++ {
		id, err := client.GetClientID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "client-abc", id)
	}
	assert.Equal(t, 1, gw.configCalls)
}
