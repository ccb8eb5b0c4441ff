// Package api exposes the high-level read and write operations (spec §4.9)
// over a store.Coordinator: environments, clusters, and hosts organized as
// a primary membership graph and a dependency graph, queried through range
// expressions (rangedb/lang) and returned as an order-preserving result
// tree (rangedb/result).
package api

import (
	"context"

	"github.com/evalgo/rangedb/queue"
	"github.com/evalgo/rangedb/rlog"
	"github.com/evalgo/rangedb/store"
	"github.com/google/uuid"
)

// Node type names, per spec §3.2.
const (
	TypeEnvironment = "ENVIRONMENT"
	TypeCluster     = "CLUSTER"
	TypeHost        = "HOST"
)

// memberLabel is the primary graph's edge group label for parent/child
// containment (environment-to-cluster, cluster-to-cluster, cluster-to-host).
const memberLabel = "member"

// dependencyLabel is the dependency graph's edge group label for
// environment and external dependency edges.
const dependencyLabel = "dependency"

// adminTagKey names the tag that marks a node as an admin-lookup root for
// the '^' operator's ADMIN_NODE search.
const adminTagKey = "ADMIN_NODE"

// API bundles the primary and dependency graphs behind one set of
// operations, sharing the coordinator's global range version.
type API struct {
	coord  *store.Coordinator
	logger *rlog.ContextLogger

	forward    queue.Transport
	proposerID string
}

// New returns an API over coord. logger may be nil. The instance gets a
// random proposerID (per auth.go's uuid.New() convention) so
// SetForwardTransport can be called with an empty proposerID to accept
// this default, or with an explicit one to override it.
func New(coord *store.Coordinator, logger *rlog.ContextLogger) *API {
	if logger == nil {
		logger = rlog.Default()
	}
	return &API{coord: coord, logger: logger, proposerID: uuid.New().String()}
}

func (a *API) primary() *store.Graph    { return a.coord.Graph(store.PrimaryGraph) }
func (a *API) dependency() *store.Graph { return a.coord.Graph(store.DependencyGraph) }

// qualify resolves a bare name to its environment-qualified form
// "<env>#<name>" if such a node exists, per spec §4.7's environment
// prefixing rule; otherwise it returns name unchanged.
func qualify(ctx context.Context, g *store.Graph, env, name string) (string, error) {
	if env == "" {
		return name, nil
	}
	prefixed := env + "#" + name
	ok, err := g.Exists(ctx, prefixed)
	if err != nil {
		return "", err
	}
	if ok {
		return prefixed, nil
	}
	return name, nil
}
