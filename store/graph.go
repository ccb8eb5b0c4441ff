package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/evalgo/rangedb/kv"
	"github.com/evalgo/rangedb/rlog"
)

// Graph is one versioned graph instance (e.g. "primary" or "dependency").
// Node creation and removal append to its changelog (tag and edge
// mutations do not); the graph's version is defined as the changelog's
// length.
type Graph struct {
	Name    string
	backend kv.Backend
	logger  *rlog.ContextLogger
}

// NewGraph binds a named graph instance to backend. logger may be nil, in
// which case the package default logger is used.
func NewGraph(name string, backend kv.Backend, logger *rlog.ContextLogger) *Graph {
	if logger == nil {
		logger = rlog.Default()
	}
	return &Graph{Name: name, backend: backend, logger: logger.WithField("graph", name)}
}

func (g *Graph) nodesBucket() string     { return g.Name + "::nodes" }
func (g *Graph) changelogBucket() string { return g.Name + changelogBucketSuffix }

// Version returns the graph's current version (its changelog length).
func (g *Graph) Version(ctx context.Context) (uint64, error) {
	var v uint64
	err := g.backend.View(ctx, func(txn kv.Txn) error {
		var err error
		v, err = changelogLength(txn, g.changelogBucket())
		return err
	})
	return v, err
}

func (g *Graph) loadRecord(ctx context.Context, name string) (*Record, error) {
	var rec *Record
	err := g.backend.View(ctx, func(txn kv.Txn) error {
		data, ok, err := txn.Get(g.nodesBucket(), []byte(name))
		if err != nil {
			return err
		}
		if !ok {
			return ErrNodeNotFound
		}
		rec, err = Decode(data)
		return err
	})
	return rec, err
}

func (g *Graph) storeRecord(ctx context.Context, name string, rec *Record) error {
	data, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("store: encode record %s: %w", name, err)
	}
	return g.backend.Update(ctx, func(txn kv.Txn) error {
		return txn.Put(g.nodesBucket(), []byte(name), data)
	})
}

// Get returns a lazily-loaded handle to the node named name. It does not
// itself verify the node exists; the first read (e.g. Type, TagValues)
// loads the record and surfaces ErrNodeNotFound if absent.
func (g *Graph) Get(ctx context.Context, name string) *Node {
	return newNode(g, name)
}

// Exists reports whether a node named name currently exists in the graph.
// A node marked removed (see Remove) reports false even though its record
// is still on disk for historical reads.
func (g *Graph) Exists(ctx context.Context, name string) (bool, error) {
	rec, err := g.loadRecord(ctx, name)
	if err == ErrNodeNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.RemovedAtVersion == nil, nil
}

// Mutate runs fn inside a single writable transaction, so that every
// Node.Commit and changelog append fn performs is atomic: either all of it
// lands, or none of it does. Mutate is re-entrant: calling Mutate from
// inside another Mutate call on the same ctx reuses the outer transaction.
func (g *Graph) Mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.backend.Update(ctx, func(txn kv.Txn) error {
		nested := kv.WithTxn(ctx, txn)
		return fn(nested)
	})
}

// Create creates a new node of nodeType named name, returning
// ErrNodeExists if a node with that name is already present. The node is
// stamped with the coordinator's next global range version (the one the
// enclosing write-api call will commit to once it finishes) in its
// GraphVersions list, and the creation is appended to this graph's own
// changelog.
func (g *Graph) Create(ctx context.Context, nodeType, name string) (*Node, error) {
	var node *Node
	err := g.Mutate(ctx, func(ctx context.Context) error {
		if ok, err := g.Exists(ctx, name); err != nil {
			return err
		} else if ok {
			return ErrNodeExists
		}

		rec := NewRecord(nodeType, name)
		if _, err := g.recordChange(ctx, OpCreateNode, nodeType, name); err != nil {
			return err
		}
		rangeVersion, err := peekNextRangeVersion(ctx, g.backend)
		if err != nil {
			return err
		}
		rec.GraphVersions = append(rec.GraphVersions, rangeVersion)

		if err := g.storeRecord(ctx, name, rec); err != nil {
			return err
		}

		n := newNode(g, name)
		n.rec = rec
		n.loaded = true
		node = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.logger.WithFields(map[string]interface{}{"node": name, "node_type": nodeType}).Info("node created")
	return node, nil
}

// Remove marks the node named name absent as of a new list_version. Per
// spec, removal does not delete the underlying record: every edge, tag and
// value on the node stops extending past this point, so a read pinned to
// an earlier version still sees the node intact, but the record itself
// stays in the nodes bucket. AllNames and Exists treat it as gone; Get
// still returns a handle, whose unpinned Type reports ErrNodeNotFound.
// A node recreated later under the same name starts a fresh record at
// list_version 0, discarding whatever history the removed record held.
func (g *Graph) Remove(ctx context.Context, name string) error {
	return g.Mutate(ctx, func(ctx context.Context) error {
		n := g.Get(ctx, name)
		if err := n.ensureLoaded(ctx); err != nil {
			return err
		}
		nodeType := n.rec.NodeType
		if err := n.markRemoved(ctx); err != nil {
			return err
		}
		if err := n.Commit(ctx); err != nil {
			return err
		}
		if _, err := g.recordChange(ctx, OpRemoveNode, nodeType, name); err != nil {
			return err
		}
		g.logger.WithField("node", name).Info("node removed")
		return nil
	})
}

// recordChange appends a changelog entry within the active transaction on
// ctx and returns the graph's new version.
func (g *Graph) recordChange(ctx context.Context, op ChangeOp, nodeType, name string) (uint64, error) {
	var newVersion uint64
	err := g.backend.Update(ctx, func(txn kv.Txn) error {
		v, err := appendChange(txn, g.changelogBucket(), ChangeRecord{
			Op:        op,
			NodeType:  nodeType,
			NodeName:  name,
			Timestamp: time.Now(),
		})
		newVersion = v
		return err
	})
	return newVersion, err
}

// ChangeAt returns the changelog entry recorded at seq.
func (g *Graph) ChangeAt(ctx context.Context, seq uint64) (ChangeRecord, bool, error) {
	return changelogEntry(ctx, g.backend, g.changelogBucket(), seq)
}

// AllNames returns every node currently present in the graph, in lexical
// order. A node marked removed (see Remove) is excluded even though its
// record remains on disk for historical reads.
func (g *Graph) AllNames(ctx context.Context) ([]string, error) {
	var names []string
	err := g.backend.View(ctx, func(txn kv.Txn) error {
		c, err := txn.Cursor(g.nodesBucket())
		if err != nil {
			return err
		}
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec, err := Decode(v)
			if err != nil {
				return err
			}
			if rec.RemovedAtVersion != nil {
				continue
			}
			names = append(names, string(k))
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}
