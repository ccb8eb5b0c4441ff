//go:build integration

package archive

import (
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/evalgo/rangedb/store"
	"github.com/stretchr/testify/require"
)

func setupCouchDBContainer(t *testing.T) (string, func()) {
	ctx := t.Context()

	req := testcontainers.ContainerRequest{
		Image:        "couchdb:3.3",
		ExposedPorts: []string{"5984/tcp"},
		Env: map[string]string{
			"COUCHDB_USER":     "admin",
			"COUCHDB_PASSWORD": "password",
		},
		WaitingFor: wait.ForListeningPort("5984/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5984")
	require.NoError(t, err)

	url := fmt.Sprintf("http://%s:%s", host, port.Port())
	return url, func() { _ = container.Terminate(ctx) }
}

func TestSink_Integration_ArchiveAndSince(t *testing.T) {
	url, cleanup := setupCouchDBContainer(t)
	defer cleanup()

	sink, err := NewSink(t.Context(), Config{
		URL:             url,
		Database:        "rangedb_audit_test",
		Username:        "admin",
		Password:        "password",
		CreateIfMissing: true,
	})
	require.NoError(t, err)
	defer sink.Close()

	rec := store.ChangeRecord{Seq: 0, Op: store.OpCreateNode, NodeType: "host", NodeName: "web1", Timestamp: time.Now().UTC()}
	require.NoError(t, sink.Archive(t.Context(), "primary", rec))

	got, err := sink.Since(t.Context(), "primary", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, rec.NodeName, got[0].NodeName)
}
