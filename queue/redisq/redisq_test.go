package redisq

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/evalgo/rangedb/queue"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewWithClient(client, "test:forward")
}

func TestTransport_PublishIncreasesDepth(t *testing.T) {
	tr := newTestTransport(t)
	ctx := t.Context()

	require.NoError(t, tr.Publish(ctx, queue.Message{ProposerID: "p1", Seq: 1}))
	require.NoError(t, tr.Publish(ctx, queue.Message{ProposerID: "p1", Seq: 2}))

	depth, err := tr.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestTransport_SubscribeReceivesPublished(t *testing.T) {
	tr := newTestTransport(t)
	ctx, cancel := context.WithTimeout(t.Context(), 3*time.Second)
	defer cancel()

	require.NoError(t, tr.Publish(t.Context(), queue.Message{ProposerID: "p1", GraphName: "primary", Seq: 5}))

	received := make(chan queue.Message, 1)
	go func() {
		_ = tr.Subscribe(ctx, func(ctx context.Context, msg queue.Message) error {
			received <- msg
			cancel()
			return nil
		})
	}()

	select {
	case got := <-received:
		assert.Equal(t, "p1", got.ProposerID)
		assert.Equal(t, uint64(5), got.Seq)
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestTransport_Close(t *testing.T) {
	tr := newTestTransport(t)
	assert.NoError(t, tr.Close())
}
