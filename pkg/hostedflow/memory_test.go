package hostedflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostedpay-rs/hostedpay-go/pkg/types"
)

// TestMemoryBridge_SingleSubscription verifies at most one subscription may
// exist per session id at a time.
func TestMemoryBridge_SingleSubscription(t *testing.T) {
	t.Parallel()

	b := NewMemoryBridge(nil)
	defer b.Close()

	sub, err := b.Subscribe("PAY-1", Callbacks{})
	require.NoError(t, err)

	_, err = b.Subscribe("PAY-1", Callbacks{})
	require.Error(t, err)

	_, err = b.Subscribe("", Callbacks{})
	require.Error(t, err)

	// A released id can be taken again.
	sub.Unsubscribe()
	_, err = b.Subscribe("PAY-1", Callbacks{})
	require.NoError(t, err)
}

// TestMemoryBridge_OneTerminalEvent verifies exactly one terminal event is
// delivered per session and later events are dropped.
func TestMemoryBridge_OneTerminalEvent(t *testing.T) {
	t.Parallel()

	b := NewMemoryBridge(nil)
	defer b.Close()

	var approvals, cancels int
	_, err := b.Subscribe("PAY-1", Callbacks{
		Approved:  func(*types.ApprovalPayload) { approvals++ },
		Cancelled: func() { cancels++ },
	})
	require.NoError(t, err)

	payload := &types.ApprovalPayload{PayerID: "PAYER-1", PaymentToken: "PAY-1"}
	assert.True(t, b.Approve(payload))
	assert.False(t, b.Approve(payload))
	assert.False(t, b.Cancel("PAY-1"))
	assert.Equal(t, 1, approvals)
	assert.Equal(t, 0, cancels)
}

// TestMemoryBridge_EventAfterUnsubscribe verifies unsubscribe is synchronous:
// once it returns, no callback can fire.
func TestMemoryBridge_EventAfterUnsubscribe(t *testing.T) {
	t.Parallel()

	b := NewMemoryBridge(nil)
	defer b.Close()

	fired := false
	sub, err := b.Subscribe("PAY-1", Callbacks{
		Approved: func(*types.ApprovalPayload) { fired = true },
	})
	require.NoError(t, err)

	sub.Unsubscribe()
	assert.False(t, b.Approve(&types.ApprovalPayload{PaymentToken: "PAY-1"}))
	assert.False(t, fired)
}

// TestMemoryBridge_EventWithoutSubscriber verifies events for unknown
// sessions are dropped without firing anything.
func TestMemoryBridge_EventWithoutSubscriber(t *testing.T) {
	t.Parallel()

	b := NewMemoryBridge(nil)
	defer b.Close()

	assert.False(t, b.Approve(&types.ApprovalPayload{PaymentToken: "PAY-unknown"}))
	assert.False(t, b.Cancel("PAY-unknown"))
	assert.False(t, b.Fail("PAY-unknown", errors.New("boom")))
	assert.False(t, b.Approve(&types.ApprovalPayload{}))
}

// TestMemoryBridge_FailCarriesCause verifies the failure callback receives
// the reported error.
func TestMemoryBridge_FailCarriesCause(t *testing.T) {
	t.Parallel()

	b := NewMemoryBridge(nil)
	defer b.Close()

	var got error
	_, err := b.Subscribe("PAY-1", Callbacks{
		Failed: func(err error) { got = err },
	})
	require.NoError(t, err)

	cause := errors.New("window lost")
	require.True(t, b.Fail("PAY-1", cause))
	assert.Equal(t, cause, got)
}

// TestEventLedger_MarkDelivered verifies first delivery wins and the record
// survives until its ttl expires.
func TestEventLedger_MarkDelivered(t *testing.T) {
	t.Parallel()

	l := NewEventLedger(time.Hour)
	defer l.Stop()

	assert.False(t, l.Delivered("PAY-1"))
	assert.True(t, l.MarkDelivered("PAY-1"))
	assert.False(t, l.MarkDelivered("PAY-1"))
	assert.True(t, l.Delivered("PAY-1"))
	assert.True(t, l.MarkDelivered("PAY-2"))
}

// TestEventLedger_Expiry verifies an expired record no longer blocks a new
// delivery.
func TestEventLedger_Expiry(t *testing.T) {
	t.Parallel()

	l := NewEventLedger(10 * time.Millisecond)
	defer l.Stop()

	require.True(t, l.MarkDelivered("PAY-1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, l.Delivered("PAY-1"))
	assert.True(t, l.MarkDelivered("PAY-1"))
}

// TestEventLedger_Stats verifies the monitoring counters.
func TestEventLedger_Stats(t *testing.T) {
	t.Parallel()

	l := NewEventLedger(time.Hour)
	defer l.Stop()

	l.MarkDelivered("PAY-1")
	l.MarkDelivered("PAY-2")

	stats := l.Stats()
	assert.Equal(t, 2, stats["total_sessions"])
	assert.Equal(t, 2, stats["active_records"])
	assert.Equal(t, 0, stats["expired_records"])
}
