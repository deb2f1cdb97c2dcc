// ABOUTME: Tests for the view broadcaster behind the event stream
// ABOUTME: Covers subscribe, publish, slow subscribers, cancellation and close

package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tictac/internal/game"
)

func TestBroadcaster_SubscribersReceiveView(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, id1 := b.Subscribe(testContext(t))
	ch2, id2 := b.Subscribe(testContext(t))
	assert.NotEqual(t, id1, id2)

	b.Publish(game.View{Step: 3})

	for i, ch := range []<-chan game.View{ch1, ch2} {
		select {
		case v := <-ch:
			assert.Equal(t, 3, v.Step, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(testContext(t))

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize+10; i++ {
			b.Publish(game.View{Step: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBufferSize)
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	require.Equal(t, 1, b.Len())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Equal(t, 0, b.Len())
}

func TestBroadcaster_UnsubscribeTwice(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	_, id := b.Subscribe(testContext(t))
	b.Unsubscribe(id)
	b.Unsubscribe(id)
	assert.Equal(t, 0, b.Len())
}

func TestBroadcaster_Close(t *testing.T) {
	b := NewBroadcaster(nil)

	ch, _ := b.Subscribe(testContext(t))
	b.Close()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := b.Subscribe(testContext(t))
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")

	// Publishing after close is a no-op
	b.Publish(game.View{})
}

// testContext mirrors testing.T.Context (Go 1.24+): a context canceled when
// the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
