package api

import (
	"context"

	"github.com/evalgo/rangedb/store"
)

// CurrentVersion returns the coordinator's current global range version,
// the value a write operation most recently advanced it to.
func (a *API) CurrentVersion(ctx context.Context) (uint64, error) {
	return a.coord.RangeVersion(ctx)
}

// PinVersion pins subsequent reads through this API to range version v, so
// that spec §4.9's optional version argument (e.g. all_environments(v)) is
// satisfied by pinning before the call rather than threading a version
// parameter through every read method. Call UnpinVersion to return to
// always-current reads.
//
// Pinning filters node existence only: a node created after v is hidden,
// but a node removed after v remains visible. That is because this pin
// operates on the coordinator's global range_version (store.GraphVersions),
// a different scale from the per-node list_version that tracks edge, tag
// and removal history (store.Record.MutationVersions/RemovedAtVersion); the
// latter is what Node.SetWantedVersion pins against instead (see
// DESIGN.md). A range-version pinned read therefore approximates "what
// existed by version v", not a fully faithful historical snapshot.
func (a *API) PinVersion(v uint64) {
	a.coord.SetWantedVersion(v)
}

// UnpinVersion releases a version pinned by PinVersion.
func (a *API) UnpinVersion() {
	a.coord.ClearWantedVersion()
}

// visible reports whether name should appear in a listing given the
// coordinator's currently pinned version, if any.
func visible(ctx context.Context, coord *store.Coordinator, g *store.Graph, name string) (bool, error) {
	v, pinned := coord.WantedVersion()
	if !pinned {
		return true, nil
	}
	return g.Get(ctx, name).VisibleAt(ctx, v)
}
