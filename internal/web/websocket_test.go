package web

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepanel/internal/realtime"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHub()
	go h.Run(ctx)
	return h
}

func TestBroadcastDropsStalledClientWithoutLosingOthers(t *testing.T) {
	h := newTestHub(t)

	healthy := &Client{hub: h, send: make(chan realtime.Event, 4)}
	stalled := &Client{hub: h, send: make(chan realtime.Event)} // never drained

	h.register <- healthy
	h.register <- stalled
	require.Eventually(t, func() bool { return h.ClientCount() == 2 },
		time.Second, 5*time.Millisecond)

	// Hammer the client count from another goroutine while the broadcast
	// path unregisters the stalled client.
	counting := make(chan struct{})
	go func() {
		defer close(counting)
		for i := 0; i < 500; i++ {
			h.ClientCount()
		}
	}()

	h.Broadcast(realtime.Event{Type: realtime.EventMonitorData})

	select {
	case ev := <-healthy.send:
		assert.Equal(t, realtime.EventMonitorData, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("healthy client never received the event")
	}

	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)
	<-counting

	select {
	case _, ok := <-stalled.send:
		assert.False(t, ok, "stalled client's send channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("stalled client's send channel was not closed")
	}
}

func TestBroadcastReachesEveryRegisteredClient(t *testing.T) {
	h := newTestHub(t)

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = &Client{hub: h, send: make(chan realtime.Event, 4)}
		h.register <- clients[i]
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 3 },
		time.Second, 5*time.Millisecond)

	h.Broadcast(realtime.Event{Type: realtime.EventSceneUpdate})

	for _, c := range clients {
		select {
		case ev := <-c.send:
			assert.Equal(t, realtime.EventSceneUpdate, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("client missed the broadcast")
		}
	}
	assert.Equal(t, 3, h.ClientCount())
}
