package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/hostedpay-rs/hostedpay-go/pkg/checkout"
	"github.com/hostedpay-rs/hostedpay-go/pkg/gateway"
	"github.com/hostedpay-rs/hostedpay-go/pkg/hostedflow"
	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// Handler exposes the orchestrator's inbound operations over HTTP for
// merchant servers that embed checkoutd instead of the library.
//
// Sessions are independent: each create spawns its own state machine, stored
// under the gateway-assigned session id until teardown.
type Handler struct {
	gateway gateway.Bridge
	bridge  *hostedflow.MemoryBridge
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*checkout.Client
}

// NewHandler creates the HTTP facade. The memory bridge doubles as the
// flow-event ingress: hosted-UI outcomes reported over HTTP are injected
// into it and reach the owning state machine.
func NewHandler(gw gateway.Bridge, bridge *hostedflow.MemoryBridge, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		gateway:  gw,
		bridge:   bridge,
		logger:   logger,
		sessions: make(map[string]*checkout.Client),
	}
}

// Routes mounts all checkout routes on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.CreateSession)
	r.Post("/sessions/vault-initiated", h.CreateVaultInitiated)
	r.Post("/sessions/{sessionID}/events", h.FlowEvent)
	r.Post("/sessions/{sessionID}/tokenize", h.Tokenize)
	r.Delete("/sessions/{sessionID}", h.Teardown)
	r.Get("/client-id", h.ClientID)
	r.Get("/health", h.Health)
	return r
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var spec types.PaymentIntentSpec
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	client := checkout.New(h.gateway, h.bridge, checkout.WithLogger(h.logger))
	sessionID, err := client.CreatePayment(r.Context(), spec)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}

	h.mu.Lock()
	h.sessions[sessionID] = client
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, map[string]string{
		"sessionId": sessionID,
		"state":     string(client.State()),
	})
}

// CreateVaultInitiated handles POST /sessions/vault-initiated.
func (h *Handler) CreateVaultInitiated(w http.ResponseWriter, r *http.Request) {
	var opts types.VaultInitiatedCheckoutOptions
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	client := checkout.New(h.gateway, h.bridge, checkout.WithLogger(h.logger))
	if err := client.StartVaultInitiatedCheckout(r.Context(), opts); err != nil {
		respondCheckoutError(w, err)
		return
	}

	sessionID := client.SessionID()
	h.mu.Lock()
	h.sessions[sessionID] = client
	h.mu.Unlock()

	respondJSON(w, http.StatusCreated, map[string]string{
		"sessionId": sessionID,
		"state":     string(client.State()),
	})
}

// flowEventBody is the shape the hosted UI reports back with.
type flowEventBody struct {
	Status  string                 `json:"status"` // approved|cancelled|failed
	Payload *types.ApprovalPayload `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// FlowEvent handles POST /sessions/{sessionID}/events, the HTTP stand-in for
// the popup/postMessage channel.
func (h *Handler) FlowEvent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body flowEventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var delivered bool
	switch body.Status {
	case "approved":
		payload := body.Payload
		if payload == nil {
			payload = &types.ApprovalPayload{}
		}
		if payload.SessionID() == "" {
			payload.PaymentToken = sessionID
		} else if payload.SessionID() != sessionID {
			respondError(w, http.StatusBadRequest, "payload session token does not match path")
			return
		}
		delivered = h.bridge.Approve(payload)
	case "cancelled":
		delivered = h.bridge.Cancel(sessionID)
	case "failed":
		delivered = h.bridge.Fail(sessionID, errors.New(body.Error))
	default:
		respondError(w, http.StatusBadRequest, "status must be approved, cancelled or failed")
		return
	}

	if !delivered {
		// Duplicate or late event. Protocol says drop, not fail.
		h.logger.Warn("flow event dropped", "sessionId", sessionID, "status", body.Status)
	}
	respondJSON(w, http.StatusAccepted, map[string]bool{"delivered": delivered})
}

// Tokenize handles POST /sessions/{sessionID}/tokenize.
func (h *Handler) Tokenize(w http.ResponseWriter, r *http.Request) {
	client, ok := h.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown session")
		return
	}

	// Body is optional: absent means tokenize with the approval the
	// hosted flow delivered.
	var payload *types.ApprovalPayload
	if r.ContentLength != 0 {
		payload = &types.ApprovalPayload{}
		if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
			return
		}
	}

	credential, err := client.TokenizePayment(r.Context(), payload)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, credential)
}

// Teardown handles DELETE /sessions/{sessionID}.
func (h *Handler) Teardown(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	h.mu.Lock()
	client, ok := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, "unknown session")
		return
	}
	client.Teardown()
	respondJSON(w, http.StatusOK, map[string]string{"state": string(types.StateTornDown)})
}

// ClientID handles GET /client-id.
func (h *Handler) ClientID(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.gateway.Configuration(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("configuration fetch failed: %v", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"clientId":    cfg.ClientID,
		"environment": cfg.Environment,
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) lookup(sessionID string) (*checkout.Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.sessions[sessionID]
	return client, ok
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// respondCheckoutError serializes a tagged checkout error as {code, message},
// deriving the HTTP status from the code class.
func respondCheckoutError(w http.ResponseWriter, err error) {
	code := types.CodeOf(err)
	status := http.StatusInternalServerError
	switch {
	case types.IsValidationError(err), code == types.CodeUnknownShippingOption:
		status = http.StatusUnprocessableEntity
	case code == types.CodeGatewayError:
		status = http.StatusBadGateway
	case code == types.CodeSessionTornDown:
		status = http.StatusGone
	case code == types.CodePopupClosed,
		code == types.CodeAlreadyTokenized,
		code == types.CodeSessionAlreadyInFlight,
		code == types.CodeApprovalNotYetReceived:
		status = http.StatusConflict
	}

	var ce *types.CheckoutError
	if errors.As(err, &ce) {
		respondJSON(w, status, map[string]string{
			"code":    string(ce.Code),
			"message": ce.Message,
		})
		return
	}
	respondError(w, status, err.Error())
}
