// ABOUTME: Tests for the background daemon timer loop
// ABOUTME: Verifies the immediate first drain, offline skipping, and clean shutdown
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/amc/crm"
	"github.com/harperreed/amc/kv"
	"github.com/harperreed/amc/queue"
	"github.com/harperreed/amc/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDaemonEngine(t *testing.T, fa *fakeAdapter) (*Engine, *queue.OfflineQueue) {
	t.Helper()

	st, err := store.Open(kv.NewMemory())
	require.NoError(t, err)
	q, err := queue.Open(kv.NewMemory())
	require.NoError(t, err)

	e := New(st, q, []crm.Adapter{fa}, &Options{
		// Long intervals: only the immediate first pass should run.
		PushInterval: time.Hour,
		PullInterval: time.Hour,
	})
	return e, q
}

func TestRunDrainsImmediatelyAndStops(t *testing.T) {
	fa := &fakeAdapter{fetch: map[string]*crm.RemoteContact{}}
	e, q := newDaemonEngine(t, fa)
	ctx, cancel := context.WithCancel(context.Background())

	e.SetOnline(false)
	require.NoError(t, e.AddContact(ctx, newContact("Queued", "queued@example.com")))
	e.SetOnline(true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()

	// The first drain runs without waiting for a tick.
	require.Eventually(t, func() bool {
		return q.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, fa.pushCount())
	assert.False(t, e.LastDrainAt().IsZero())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop after context cancellation")
	}
}

func TestRunSkipsDrainWhileOffline(t *testing.T) {
	fa := &fakeAdapter{fetch: map[string]*crm.RemoteContact{}}
	e, q := newDaemonEngine(t, fa)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.SetOnline(false)
	require.NoError(t, e.AddContact(ctx, newContact("Waiting", "waiting@example.com")))

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()

	// Offline: the immediate pass must leave the queue untouched.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 0, fa.pushCount())
	assert.True(t, e.LastDrainAt().IsZero())

	cancel()
	<-done

	// Coming back online, a manual drain clears the backlog.
	e.SetOnline(true)
	result, err := e.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, q.Len())
}
