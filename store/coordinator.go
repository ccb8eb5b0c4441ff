package store

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/evalgo/rangedb/kv"
	"github.com/evalgo/rangedb/rlog"
)

// PrimaryGraph and DependencyGraph name the two graph instances every
// rangedb deployment carries: node membership, and cross-environment
// dependency edges.
const (
	PrimaryGraph    = "primary"
	DependencyGraph = "dependency"
)

const coordinatorBucket = "coordinator::meta"

var rangeVersionKey = []byte("range_version")

// Coordinator owns the set of named graph instances sharing one backend
// and the global range version: a counter bumped on every write-api
// mutation, used to give readers a consistent point-in-time label across
// both graphs. Per this module's resolution of the dependency-graph
// versioning question (see DESIGN.md), the dependency graph is always read
// and written at its current state; only the primary graph's node content
// is meaningfully addressed by a range version.
type Coordinator struct {
	backend kv.Backend
	logger  *rlog.ContextLogger

	mu     sync.Mutex
	graphs map[string]*Graph

	wantedMu sync.RWMutex
	wanted   *uint64
}

// NewCoordinator returns a Coordinator over backend. logger may be nil.
func NewCoordinator(backend kv.Backend, logger *rlog.ContextLogger) *Coordinator {
	if logger == nil {
		logger = rlog.Default()
	}
	return &Coordinator{
		backend: backend,
		logger:  logger,
		graphs:  make(map[string]*Graph),
	}
}

// Graph returns the named graph instance, creating and caching its handle
// on first use.
func (c *Coordinator) Graph(name string) *Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.graphs[name]
	if !ok {
		g = NewGraph(name, c.backend, c.logger)
		c.graphs[name] = g
	}
	return g
}

// RangeVersion returns the coordinator's current global range version.
func (c *Coordinator) RangeVersion(ctx context.Context) (uint64, error) {
	var v uint64
	err := c.backend.View(ctx, func(txn kv.Txn) error {
		var err error
		v, err = readRangeVersion(txn)
		return err
	})
	return v, err
}

// readRangeVersion returns the global range version as currently persisted
// in txn's snapshot, shared by RangeVersion, AddNewRangeVersion and
// peekNextRangeVersion so they all agree on the stored encoding.
func readRangeVersion(txn kv.Txn) (uint64, error) {
	data, ok, err := txn.Get(coordinatorBucket, rangeVersionKey)
	if err != nil || !ok {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

// peekNextRangeVersion returns the range version that the next
// AddNewRangeVersion call on this backend would assign, without persisting
// anything. A Graph stamps a newly created node's GraphVersions with this
// value, since the write-api operation creating it calls
// Coordinator.AddNewRangeVersion only after the creation itself commits
// (see api/writer.go's forwardOrApply).
func peekNextRangeVersion(ctx context.Context, backend kv.Backend) (uint64, error) {
	var next uint64
	err := backend.View(ctx, func(txn kv.Txn) error {
		cur, err := readRangeVersion(txn)
		if err != nil {
			return err
		}
		next = cur + 1
		return nil
	})
	return next, err
}

// AddNewRangeVersion bumps and persists the global range version, and
// should be called once per completed write-api operation, after its
// graph-level changelog entries have been committed.
func (c *Coordinator) AddNewRangeVersion(ctx context.Context) (uint64, error) {
	var next uint64
	err := c.backend.Update(ctx, func(txn kv.Txn) error {
		cur, err := readRangeVersion(txn)
		if err != nil {
			return err
		}
		next = cur + 1
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], next)
		return txn.Put(coordinatorBucket, rangeVersionKey, buf[:])
	})
	if err == nil {
		c.logger.WithField("range_version", next).Debug("range version advanced")
	}
	return next, err
}

// SetWantedVersion pins subsequent reads through this Coordinator to range
// version v, so a long-running report can see a stable snapshot even as
// writers advance the range version underneath it.
func (c *Coordinator) SetWantedVersion(v uint64) {
	c.wantedMu.Lock()
	defer c.wantedMu.Unlock()
	c.wanted = &v
}

// ClearWantedVersion releases a pinned version, returning to always-current
// reads.
func (c *Coordinator) ClearWantedVersion() {
	c.wantedMu.Lock()
	defer c.wantedMu.Unlock()
	c.wanted = nil
}

// WantedVersion returns the pinned version and true, or (0, false) if reads
// are tracking the current range version.
func (c *Coordinator) WantedVersion() (uint64, bool) {
	c.wantedMu.RLock()
	defer c.wantedMu.RUnlock()
	if c.wanted == nil {
		return 0, false
	}
	return *c.wanted, true
}

// NodeVisibleAt reports whether node n was present as of range version v,
// based on the GraphVersions stamped on its record at creation (and by
// Node.AddGraphVersion).
func NodeVisibleAt(n *Record, v uint64) bool {
	for _, gv := range n.GraphVersions {
		if gv <= v {
			return true
		}
	}
	return false
}
