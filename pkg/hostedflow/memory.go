package hostedflow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// MemoryBridge is an in-process Bridge implementation. The daemon's flow-event
// ingress feeds it with events reported back from the hosted UI; tests and
// examples drive it directly.
//
// It enforces the channel contract: at most one subscription per session id,
// at most one terminal event per session, and synchronous unsubscribe after
// which delivery attempts are dropped.
type MemoryBridge struct {
	mu     sync.Mutex
	subs   map[string]*memorySubscription
	ledger *EventLedger
	logger *slog.Logger
}

// NewMemoryBridge creates an in-process hosted-flow bridge.
func NewMemoryBridge(logger *slog.Logger) *MemoryBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryBridge{
		subs:   make(map[string]*memorySubscription),
		ledger: NewEventLedger(24 * time.Hour),
		logger: logger,
	}
}

type memorySubscription struct {
	bridge    *MemoryBridge
	sessionID string
	cb        Callbacks
}

func (s *memorySubscription) Unsubscribe() {
	s.bridge.mu.Lock()
	defer s.bridge.mu.Unlock()
	if s.bridge.subs[s.sessionID] == s {
		delete(s.bridge.subs, s.sessionID)
	}
}

// Subscribe implements Bridge.
func (b *MemoryBridge) Subscribe(sessionID string, cb Callbacks) (Subscription, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("empty session id")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[sessionID]; exists {
		return nil, fmt.Errorf("session %s already has a subscription", sessionID)
	}

	sub := &memorySubscription{bridge: b, sessionID: sessionID, cb: cb}
	b.subs[sessionID] = sub
	return sub, nil
}

// Approve delivers a buyer-approval event for the payload's session.
// Returns false if the event was dropped (no subscription, or a terminal
// event was already delivered).
func (b *MemoryBridge) Approve(payload *types.ApprovalPayload) bool {
	sub, ok := b.takeSubscription(payload.SessionID())
	if !ok {
		return false
	}
	if sub.cb.Approved != nil {
		sub.cb.Approved(payload)
	}
	return true
}

// Cancel delivers a buyer-cancellation event for sessionID.
func (b *MemoryBridge) Cancel(sessionID string) bool {
	sub, ok := b.takeSubscription(sessionID)
	if !ok {
		return false
	}
	if sub.cb.Cancelled != nil {
		sub.cb.Cancelled()
	}
	return true
}

// Fail delivers a flow-failure event for sessionID.
func (b *MemoryBridge) Fail(sessionID string, err error) bool {
	sub, ok := b.takeSubscription(sessionID)
	if !ok {
		return false
	}
	if sub.cb.Failed != nil {
		sub.cb.Failed(err)
	}
	return true
}

// takeSubscription removes and returns the subscription for sessionID,
// recording the delivery in the ledger. A second event for the same session,
// or an event after unsubscribe, yields ok=false.
func (b *MemoryBridge) takeSubscription(sessionID string) (*memorySubscription, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sessionID == "" {
		return nil, false
	}
	if !b.ledger.MarkDelivered(sessionID) {
		b.logger.Warn("dropping duplicate hosted-flow event", "sessionId", sessionID)
		return nil, false
	}
	sub, exists := b.subs[sessionID]
	if !exists {
		b.logger.Debug("dropping hosted-flow event with no subscriber", "sessionId", sessionID)
		return nil, false
	}
	delete(b.subs, sessionID)
	return sub, true
}

// Close releases the ledger's background resources.
func (b *MemoryBridge) Close() {
	b.ledger.Stop()
}
