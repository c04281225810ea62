package hostedflow

import (
	"sync"
	"time"
)

// ledgerEntry tracks when a session's terminal event was delivered and when
// the record can be forgotten.
type ledgerEntry struct {
	DeliveredAt time.Time
	ExpiresAt   time.Time
}

// EventLedger records which sessions have already received their terminal
// event, so a duplicate or replayed event can be recognized and dropped even
// if the subscription map has been rebuilt in the meantime.
type EventLedger struct {
	mu      sync.RWMutex
	entries map[string]ledgerEntry
	ttl     time.Duration

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// NewEventLedger creates a ledger whose records expire after ttl.
func NewEventLedger(ttl time.Duration) *EventLedger {
	l := &EventLedger{
		entries:     make(map[string]ledgerEntry),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}

	l.cleanupTicker = time.NewTicker(5 * time.Minute)
	go l.cleanupExpired()

	return l
}

// MarkDelivered records sessionID's terminal event and reports whether this
// was the first delivery. A false return means the event is a duplicate.
func (l *EventLedger) MarkDelivered(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, exists := l.entries[sessionID]; exists && now.Before(entry.ExpiresAt) {
		return false
	}

	l.entries[sessionID] = ledgerEntry{
		DeliveredAt: now,
		ExpiresAt:   now.Add(l.ttl),
	}
	return true
}

// Delivered reports whether sessionID has an unexpired delivery record.
func (l *EventLedger) Delivered(sessionID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, exists := l.entries[sessionID]
	return exists && time.Now().Before(entry.ExpiresAt)
}

// cleanupExpired removes expired records periodically.
func (l *EventLedger) cleanupExpired() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.mu.Lock()
			now := time.Now()
			for id, entry := range l.entries {
				if now.After(entry.ExpiresAt) {
					delete(l.entries, id)
				}
			}
			l.mu.Unlock()
		case <-l.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *EventLedger) Stop() {
	l.cleanupTicker.Stop()
	close(l.stopCleanup)
}

// Stats returns counters about the ledger, for monitoring and debugging.
func (l *EventLedger) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.entries)
	expired := 0
	now := time.Now()
	for _, entry := range l.entries {
		if now.After(entry.ExpiresAt) {
			expired++
		}
	}

	return map[string]interface{}{
		"total_sessions":  total,
		"active_records":  total - expired,
		"expired_records": expired,
	}
}
