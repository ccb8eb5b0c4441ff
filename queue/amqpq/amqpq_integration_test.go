//go:build integration

package amqpq

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/evalgo/rangedb/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRabbitMQContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-management-alpine",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
	return url, func() { _ = container.Terminate(ctx) }
}

func TestTransport_Integration_PublishAndConsume(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	tr, err := New(Config{URL: url, QueueName: "forward-test"})
	require.NoError(t, err)
	defer tr.Close()

	msg := queue.Message{ProposerID: "p1", GraphName: "primary", Seq: 1, Op: "create_node"}
	require.NoError(t, tr.Publish(t.Context(), msg))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	received := make(chan queue.Message, 1)
	go tr.Subscribe(ctx, func(ctx context.Context, m queue.Message) error {
		received <- m
		cancel()
		return nil
	})

	select {
	case got := <-received:
		assert.Equal(t, msg.ProposerID, got.ProposerID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forwarded message")
	}
}
