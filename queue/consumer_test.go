package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport's Subscribe loops take Messages from a shared channel until
// ctx is cancelled, mimicking a list-backed transport where concurrent
// Subscribe loops compete for the same backlog.
type fakeTransport struct {
	messages chan Message
	closed   atomic.Bool
}

func newFakeTransport(msgs ...Message) *fakeTransport {
	ch := make(chan Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeTransport{messages: ch}
}

func (t *fakeTransport) Publish(ctx context.Context, msg Message) error {
	t.messages <- msg
	return nil
}

func (t *fakeTransport) Subscribe(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-t.messages:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (t *fakeTransport) Close() error {
	t.closed.Store(true)
	return nil
}

func TestConsumerPool_DistributesMessagesAcrossWorkers(t *testing.T) {
	want := 20
	transport := newFakeTransport(make([]Message, want)...)

	var mu sync.Mutex
	var seen int
	handler := func(ctx context.Context, msg Message) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	}

	pool := NewConsumerPool(transport, handler, 4, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	pool.Start(ctx)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen == want
	}, 500*time.Millisecond, 5*time.Millisecond)

	pool.Stop()
	assert.Equal(t, want, seen)
}

func TestConsumerPool_StopEndsAllWorkers(t *testing.T) {
	transport := newFakeTransport()
	handler := func(ctx context.Context, msg Message) error { return nil }

	pool := NewConsumerPool(transport, handler, 3, nil)
	pool.Start(context.Background())
	pool.Stop()

	assert.Equal(t, 0, len(pool.transport.(*fakeTransport).messages))
}
