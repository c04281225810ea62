package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

const defaultTimeout = 30 * time.Second

// Client is the HTTP implementation of Bridge, speaking the gateway's
// session and tokenization endpoints.
type Client struct {
	baseURL       string
	authorization string
	httpClient    *http.Client
	logger        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClientLogger sets the structured logger used for request logging.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a gateway client. authorization is the merchant
// credential (tokenization key or client token) sent with every request.
func NewClient(baseURL, authorization string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	if authorization == "" {
		return nil, fmt.Errorf("gateway authorization is required")
	}

	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		authorization: authorization,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OpenSession implements Bridge. The endpoint depends on the flow: checkout
// creates a payment resource, vault sets up a billing agreement.
func (c *Client) OpenSession(ctx context.Context, req *types.SessionRequest) (string, error) {
	path := "/v1/paypal_hermes/create_payment_resource"
	if req.Flow == types.FlowVault {
		path = "/v1/paypal_hermes/setup_billing_agreement"
	}

	var envelope sessionResponse
	if err := c.post(ctx, path, newSessionBody(req), &envelope); err != nil {
		return "", err
	}

	sessionID := envelope.sessionID(req.Flow)
	if sessionID == "" {
		return "", fmt.Errorf("gateway response carried no session token")
	}
	return sessionID, nil
}

// Exchange implements Bridge, converting an approved session into a
// single-use credential.
func (c *Client) Exchange(ctx context.Context, sessionID string, approval *types.ApprovalPayload) (*types.Credential, error) {
	body := tokenizeBody{
		PayPalAccount: paypalAccount{
			PayerID:          approval.PayerID,
			PaymentToken:     approval.PaymentToken,
			BillingToken:     approval.BillingToken,
			ShippingOptionID: approval.ShippingOptionID,
			Vault:            approval.Vault,
		},
	}
	if body.PayPalAccount.PaymentToken == "" && body.PayPalAccount.BillingToken == "" {
		body.PayPalAccount.PaymentToken = sessionID
	}

	var envelope tokenizeResponse
	if err := c.post(ctx, "/v1/payment_methods/paypal_accounts", body, &envelope); err != nil {
		return nil, err
	}

	credential := envelope.credential()
	if credential == nil {
		return nil, fmt.Errorf("gateway response carried no payment method nonce")
	}
	return credential, nil
}

// Configuration implements Bridge.
func (c *Client) Configuration(ctx context.Context) (*types.GatewayConfiguration, error) {
	var cfg types.GatewayConfiguration
	if err := c.get(ctx, "/v1/configuration", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.authorization)
	// One key per attempt: the orchestrator never retries, so a fresh key
	// cannot collapse two distinct sessions on the gateway side.
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("gateway call",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: gatewayErrorMessage(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}

// StatusError is a non-2xx gateway response, surfaced with the underlying
// status so callers can inspect it through errors.As.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("gateway returned %d", e.Status)
}

func gatewayErrorMessage(raw []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
