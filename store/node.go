package store

import (
	"context"
	"sync"
)

// Observer is notified after a node's mutations are committed.
type Observer func(n *Node)

// Node is the in-memory, lazily-loaded view of one graph node. It wraps a
// Record, tracks whether it has been loaded and whether it has pending
// mutations, and funnels every mutator through the same discipline: bump
// list_version, extend every other currently-live edge/tag/value into the
// new version, stage the change, and leave persistence to Commit.
//
// Reads default to the node's latest list_version. Pinning wanted to an
// earlier version (SetWantedVersion) makes every read method — Type,
// Keys, TagValues, Edges — answer as of that version instead, without
// reconstructing anything: the version lists already carry the history.
type Node struct {
	graph *Graph
	name  string

	mu        sync.Mutex
	rec       *Record
	loaded    bool
	dirty     bool
	wanted    *uint64
	observers []Observer
}

func newNode(g *Graph, name string) *Node {
	return &Node{graph: g, name: name}
}

// Name returns the node's name, available without loading the record.
func (n *Node) Name() string { return n.name }

// ensureLoaded lazily fetches and decodes the node's record on first use.
func (n *Node) ensureLoaded(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ensureLoadedLocked(ctx)
}

func (n *Node) ensureLoadedLocked(ctx context.Context) error {
	if n.loaded {
		return nil
	}
	rec, err := n.graph.loadRecord(ctx, n.name)
	if err != nil {
		return err
	}
	n.rec = rec
	n.loaded = true
	return nil
}

// SetWantedVersion pins every subsequent read on this node handle to v,
// regardless of mutations the node has since accumulated.
func (n *Node) SetWantedVersion(v uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.wanted = &v
}

// ClearWantedVersion reverts to reading the node's latest list_version.
func (n *Node) ClearWantedVersion() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.wanted = nil
}

// effectiveVersion returns the version reads should be evaluated at. Caller
// must hold n.mu.
func (n *Node) effectiveVersion() uint64 {
	if n.wanted != nil {
		return *n.wanted
	}
	return n.rec.ListVersion
}

// versionAt returns the largest entry of versions (kept in ascending,
// append-only order) that is <= at, and whether one exists.
func versionAt(versions []uint64, at uint64) (uint64, bool) {
	var last uint64
	found := false
	for _, v := range versions {
		if v > at {
			break
		}
		last = v
		found = true
	}
	return last, found
}

// liveAt reports whether a field whose own touch points are entryVersions
// was still live as of version at, given the node's own mutation history
// mutationVersions. A field is live exactly when its own most recent touch
// at-or-before at is the same mutation the node itself most recently
// received at-or-before at: nothing removed it in between.
func liveAt(entryVersions, mutationVersions []uint64, at uint64) bool {
	nodeAt, ok := versionAt(mutationVersions, at)
	if !ok {
		return false
	}
	entryAt, ok := versionAt(entryVersions, at)
	if !ok {
		return false
	}
	return entryAt == nodeAt
}

// extendLiveTags appends v to the version list of every tag key and value
// still live at old, except the one named by removeKey (skipped wholesale,
// key and values alike) or the single (removeValueKey, removeValue) pair.
// Pass "" for whichever skip is not in use.
func extendLiveTags(tags map[string]*Tag, mutationVersions []uint64, old, v uint64, removeKey, removeValueKey, removeValue string) {
	for key, tag := range tags {
		if key == removeKey {
			continue
		}
		if liveAt(tag.Versions, mutationVersions, old) {
			tag.Versions = append(tag.Versions, v)
		}
		for i := range tag.Values {
			if key == removeValueKey && tag.Values[i].Value == removeValue {
				continue
			}
			if liveAt(tag.Values[i].Versions, mutationVersions, old) {
				tag.Values[i].Versions = append(tag.Values[i].Versions, v)
			}
		}
	}
}

// extendLiveEdgeGroup appends v to the version list of every edge in groups
// still live at old, except the one named (skipLabel, skipName).
func extendLiveEdgeGroup(groups []EdgeGroup, mutationVersions []uint64, old, v uint64, skipLabel, skipName string) {
	for gi := range groups {
		for ei := range groups[gi].Edges {
			if groups[gi].Label == skipLabel && groups[gi].Edges[ei].Name == skipName {
				continue
			}
			if liveAt(groups[gi].Edges[ei].Versions, mutationVersions, old) {
				groups[gi].Edges[ei].Versions = append(groups[gi].Edges[ei].Versions, v)
			}
		}
	}
}

// addOrExtendEdge appends v to name's version list within label's group,
// creating the group or the edge itself if either is absent.
func addOrExtendEdge(groups *[]EdgeGroup, label, name string, v uint64) {
	for i := range *groups {
		if (*groups)[i].Label != label {
			continue
		}
		for j := range (*groups)[i].Edges {
			if (*groups)[i].Edges[j].Name == name {
				(*groups)[i].Edges[j].Versions = append((*groups)[i].Edges[j].Versions, v)
				return
			}
		}
		(*groups)[i].Edges = append((*groups)[i].Edges, EdgeRef{Name: name, Versions: []uint64{v}})
		return
	}
	*groups = append(*groups, EdgeGroup{Label: label, Edges: []EdgeRef{{Name: name, Versions: []uint64{v}}}})
}

// Type returns the node's type (ENVIRONMENT, CLUSTER, HOST, ...). It fails
// with ErrNodeNotFound once the node is no longer live as of the effective
// read version.
func (n *Node) Type(ctx context.Context) (string, error) {
	if err := n.ensureLoaded(ctx); err != nil {
		return "", err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.liveAtLocked(n.effectiveVersion()) {
		return "", ErrNodeNotFound
	}
	return n.rec.NodeType, nil
}

// liveAtLocked reports whether the node itself (as opposed to one of its
// edges or tags) is present as of version at. Caller must hold n.mu.
func (n *Node) liveAtLocked(at uint64) bool {
	return n.rec.RemovedAtVersion == nil || at < *n.rec.RemovedAtVersion
}

// ListVersion returns the node's current list_version.
func (n *Node) ListVersion(ctx context.Context) (uint64, error) {
	if err := n.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rec.ListVersion, nil
}

// VisibleAt reports whether the node had already been created as of range
// version v, per NodeVisibleAt. It does not account for node removal: a
// node removed after v but before the current read is still reported
// visible, since that is a separate concern from list_version history (see
// DESIGN.md) — removal there is governed by RemovedAtVersion instead.
func (n *Node) VisibleAt(ctx context.Context, v uint64) (bool, error) {
	if err := n.ensureLoaded(ctx); err != nil {
		return false, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return NodeVisibleAt(n.rec, v), nil
}

// TagValues returns the values live under key as of the effective read
// version, or ErrKeyNotFound if key is not live.
func (n *Node) TagValues(ctx context.Context, key string) ([]string, error) {
	if err := n.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	at := n.effectiveVersion()
	tag, ok := n.rec.Tags[key]
	if !ok || !liveAt(tag.Versions, n.rec.MutationVersions, at) {
		return nil, ErrKeyNotFound
	}
	var out []string
	for _, tv := range tag.Values {
		if liveAt(tv.Versions, n.rec.MutationVersions, at) {
			out = append(out, tv.Value)
		}
	}
	return out, nil
}

// Keys returns every tag key live as of the effective read version.
func (n *Node) Keys(ctx context.Context) ([]string, error) {
	if err := n.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	at := n.effectiveVersion()
	var keys []string
	for k, tag := range n.rec.Tags {
		if liveAt(tag.Versions, n.rec.MutationVersions, at) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Edges returns the names in the forward or reverse edge group labelled by
// label that are live as of the effective read version (nil if the group
// does not exist or every edge in it has since been removed).
func (n *Node) Edges(ctx context.Context, forward bool, label string) ([]string, error) {
	if err := n.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	groups := n.rec.Reverse
	if forward {
		groups = n.rec.Forward
	}
	at := n.effectiveVersion()
	for _, g := range groups {
		if g.Label != label {
			continue
		}
		var names []string
		for _, e := range g.Edges {
			if liveAt(e.Versions, n.rec.MutationVersions, at) {
				names = append(names, e.Name)
			}
		}
		return names, nil
	}
	return nil, nil
}

// OnCommit registers an observer invoked after this node's next successful
// commit.
func (n *Node) OnCommit(fn Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, fn)
}

// AddTagValue appends value to key's value list, bumping the node's
// list_version and extending every other currently-live edge and tag into
// the new version. It does not commit; call Commit (or go through
// Graph.Mutate) to persist.
func (n *Node) AddTagValue(ctx context.Context, key, value string) error {
	if err := n.ensureLoaded(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	old, v := n.rec.ListVersion, n.rec.ListVersion+1

	extendLiveTags(n.rec.Tags, n.rec.MutationVersions, old, v, "", "", "")
	extendLiveEdgeGroup(n.rec.Forward, n.rec.MutationVersions, old, v, "", "")
	extendLiveEdgeGroup(n.rec.Reverse, n.rec.MutationVersions, old, v, "", "")

	tag, ok := n.rec.Tags[key]
	if !ok {
		tag = &Tag{}
		n.rec.Tags[key] = tag
	}
	tag.Versions = append(tag.Versions, v)

	valIdx := -1
	for i := range tag.Values {
		if tag.Values[i].Value == value {
			valIdx = i
			break
		}
	}
	if valIdx >= 0 {
		tag.Values[valIdx].Versions = append(tag.Values[valIdx].Versions, v)
	} else {
		tag.Values = append(tag.Values, TaggedValue{Value: value, Versions: []uint64{v}})
	}

	n.rec.ListVersion = v
	n.rec.MutationVersions = append(n.rec.MutationVersions, v)
	n.dirty = true
	return nil
}

// RemoveTagValue removes value from key's live value list by simply not
// extending its version list into the new list_version: the value's
// history up to the old version remains queryable at any earlier pinned
// read. Removing the last live value leaves an empty, but still live, key.
func (n *Node) RemoveTagValue(ctx context.Context, key, value string) error {
	if err := n.ensureLoaded(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	old := n.rec.ListVersion
	tag, ok := n.rec.Tags[key]
	if !ok || !liveAt(tag.Versions, n.rec.MutationVersions, old) {
		return ErrKeyNotFound
	}
	found := false
	for i := range tag.Values {
		if tag.Values[i].Value == value && liveAt(tag.Values[i].Versions, n.rec.MutationVersions, old) {
			found = true
			break
		}
	}
	if !found {
		return ErrKeyNotFound
	}

	v := old + 1
	extendLiveTags(n.rec.Tags, n.rec.MutationVersions, old, v, "", key, value)
	extendLiveEdgeGroup(n.rec.Forward, n.rec.MutationVersions, old, v, "", "")
	extendLiveEdgeGroup(n.rec.Reverse, n.rec.MutationVersions, old, v, "", "")

	n.rec.ListVersion = v
	n.rec.MutationVersions = append(n.rec.MutationVersions, v)
	n.dirty = true
	return nil
}

// RemoveKey deletes key entirely by not extending its version list (nor any
// of its values') into the new list_version, bumping the node's
// list_version.
func (n *Node) RemoveKey(ctx context.Context, key string) error {
	if err := n.ensureLoaded(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	old := n.rec.ListVersion
	tag, ok := n.rec.Tags[key]
	if !ok || !liveAt(tag.Versions, n.rec.MutationVersions, old) {
		return ErrKeyNotFound
	}

	v := old + 1
	extendLiveTags(n.rec.Tags, n.rec.MutationVersions, old, v, key, "", "")
	extendLiveEdgeGroup(n.rec.Forward, n.rec.MutationVersions, old, v, "", "")
	extendLiveEdgeGroup(n.rec.Reverse, n.rec.MutationVersions, old, v, "", "")

	n.rec.ListVersion = v
	n.rec.MutationVersions = append(n.rec.MutationVersions, v)
	n.dirty = true
	return nil
}

// AddEdge adds name to the forward or reverse edge group labelled by
// label, bumping the node's list_version and extending every other
// currently-live edge and tag into the new version. Adding an edge that
// already exists appends the new list_version to its history rather than
// duplicating the edge.
func (n *Node) AddEdge(ctx context.Context, forward bool, label, name string) error {
	if err := n.ensureLoaded(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	old, v := n.rec.ListVersion, n.rec.ListVersion+1
	extendLiveTags(n.rec.Tags, n.rec.MutationVersions, old, v, "", "", "")
	groups := &n.rec.Reverse
	other := n.rec.Forward
	if forward {
		groups = &n.rec.Forward
		other = n.rec.Reverse
	}
	extendLiveEdgeGroup(*groups, n.rec.MutationVersions, old, v, label, name)
	extendLiveEdgeGroup(other, n.rec.MutationVersions, old, v, "", "")

	addOrExtendEdge(groups, label, name, v)

	n.rec.ListVersion = v
	n.rec.MutationVersions = append(n.rec.MutationVersions, v)
	n.dirty = true
	return nil
}

// RemoveEdge removes name from the forward or reverse edge group labelled
// by label by not extending its version list into the new list_version,
// bumping the node's list_version and extending every other currently-live
// edge and tag.
func (n *Node) RemoveEdge(ctx context.Context, forward bool, label, name string) error {
	if err := n.ensureLoaded(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	old := n.rec.ListVersion
	groups := n.rec.Reverse
	other := n.rec.Forward
	if forward {
		groups = n.rec.Forward
		other = n.rec.Reverse
	}
	live := false
	for gi := range groups {
		if groups[gi].Label != label {
			continue
		}
		for _, e := range groups[gi].Edges {
			if e.Name == name && liveAt(e.Versions, n.rec.MutationVersions, old) {
				live = true
			}
		}
	}
	if !live {
		return ErrEdgeNotFound
	}

	v := old + 1
	extendLiveTags(n.rec.Tags, n.rec.MutationVersions, old, v, "", "", "")
	extendLiveEdgeGroup(groups, n.rec.MutationVersions, old, v, label, name)
	extendLiveEdgeGroup(other, n.rec.MutationVersions, old, v, "", "")

	n.rec.ListVersion = v
	n.rec.MutationVersions = append(n.rec.MutationVersions, v)
	n.dirty = true
	return nil
}

// AddGraphVersion records that this node is present as of range version v.
func (n *Node) AddGraphVersion(ctx context.Context, v uint64) error {
	if err := n.ensureLoaded(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rec.GraphVersions = append(n.rec.GraphVersions, v)
	n.dirty = true
	return nil
}

// markRemoved marks the node absent as of a new list_version without
// deleting its record. Every edge, tag and value on it stops extending
// past this version, so a read pinned to any earlier version still sees
// the node and its history intact.
func (n *Node) markRemoved(ctx context.Context) error {
	if err := n.ensureLoaded(ctx); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rec.RemovedAtVersion != nil {
		return ErrNodeNotFound
	}
	v := n.rec.ListVersion + 1
	n.rec.ListVersion = v
	n.rec.MutationVersions = append(n.rec.MutationVersions, v)
	n.rec.RemovedAtVersion = &v
	n.dirty = true
	return nil
}

// Commit persists the node's pending mutations and notifies observers. It
// is a no-op if the node has no pending changes.
func (n *Node) Commit(ctx context.Context) error {
	n.mu.Lock()
	if !n.dirty {
		n.mu.Unlock()
		return nil
	}
	rec := n.rec
	n.mu.Unlock()

	if err := n.graph.storeRecord(ctx, n.name, rec); err != nil {
		return err
	}

	n.mu.Lock()
	n.dirty = false
	observers := n.observers
	n.mu.Unlock()

	for _, obs := range observers {
		obs(n)
	}
	return nil
}
