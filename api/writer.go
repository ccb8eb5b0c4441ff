package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evalgo/rangedb/queue"
	"github.com/evalgo/rangedb/store"
)

// qualifyWrite returns name unchanged if it is already environment-
// qualified (contains "#") — letting a write reattach a node created under
// a different environment, which is how add_host_to_cluster's cross-
// environment invariant gets exercised — otherwise it prefixes name with
// env, the usual case of creating or addressing a node local to env.
func qualifyWrite(env, name string) string {
	if strings.Contains(name, "#") {
		return name
	}
	return env + "#" + name
}

// SetForwardTransport wires a queue.Transport that write operations publish
// to instead of applying locally, implementing spec §4.9's "use_stored"
// remote-write path (§6). A nil transport (the default) applies every
// write locally. An empty proposerID keeps the random one New assigned;
// pass one explicitly to identify this range daemon under a stable name.
func (a *API) SetForwardTransport(t queue.Transport, proposerID string) {
	a.forward = t
	if proposerID != "" {
		a.proposerID = proposerID
	}
}

// forwardOrApply sends op to the forwarding daemon when a transport is
// configured, otherwise runs apply locally. Either way, a successful local
// application bumps the coordinator's global range version (spec §4.9 step
// 4); a forwarded write's range version advances only once the daemon
// applies it, which is outside this module's scope (see DESIGN.md).
func (a *API) forwardOrApply(ctx context.Context, op, nodeType, nodeName string, apply func(ctx context.Context) error) error {
	if a.forward != nil {
		return a.forward.Publish(ctx, queue.Message{
			ProposerID: a.proposerID,
			GraphName:  store.PrimaryGraph,
			Op:         op,
			NodeType:   nodeType,
			NodeName:   nodeName,
			Timestamp:  time.Now(),
		})
	}
	if err := apply(ctx); err != nil {
		return err
	}
	_, err := a.coord.AddNewRangeVersion(ctx)
	return err
}

// CreateEnv creates a new ENVIRONMENT node named name.
func (a *API) CreateEnv(ctx context.Context, name string) error {
	return a.forwardOrApply(ctx, "create_env", TypeEnvironment, name, func(ctx context.Context) error {
		_, err := a.primary().Create(ctx, TypeEnvironment, name)
		return err
	})
}

// RemoveEnv removes the ENVIRONMENT node named name and detaches it from
// any members, per the removal discipline in spec §4.3 item 1.
func (a *API) RemoveEnv(ctx context.Context, name string) error {
	return a.forwardOrApply(ctx, "remove_env", TypeEnvironment, name, func(ctx context.Context) error {
		return a.removeNodeDetached(ctx, name)
	})
}

// AddClusterToEnv creates (or reuses) a CLUSTER node named "<env>#<cluster>"
// and attaches it as a member of env.
func (a *API) AddClusterToEnv(ctx context.Context, env, cluster string) error {
	qname := qualifyWrite(env, cluster)
	return a.forwardOrApply(ctx, "add_cluster_to_env", TypeCluster, qname, func(ctx context.Context) error {
		if err := a.requireType(ctx, env, TypeEnvironment); err != nil {
			return err
		}
		return a.createAndAttach(ctx, TypeCluster, qname, env)
	})
}

// RemoveClusterFromEnv detaches cluster from env (a forward/reverse member
// edge pair), without deleting the cluster node itself.
func (a *API) RemoveClusterFromEnv(ctx context.Context, env, cluster string) error {
	qname := qualifyWrite(env, cluster)
	return a.forwardOrApply(ctx, "remove_cluster_from_env", TypeCluster, qname, func(ctx context.Context) error {
		return a.detach(ctx, env, qname)
	})
}

// AddClusterToCluster attaches an existing or new child cluster under
// parent, both within env.
func (a *API) AddClusterToCluster(ctx context.Context, env, parent, child string) error {
	qparent := qualifyWrite(env, parent)
	qchild := qualifyWrite(env, child)
	return a.forwardOrApply(ctx, "add_cluster_to_cluster", TypeCluster, qchild, func(ctx context.Context) error {
		if err := a.requireType(ctx, qparent, TypeCluster); err != nil {
			return err
		}
		return a.createAndAttach(ctx, TypeCluster, qchild, qparent)
	})
}

// RemoveClusterFromCluster detaches child from parent, both within env.
func (a *API) RemoveClusterFromCluster(ctx context.Context, env, parent, child string) error {
	qparent := qualifyWrite(env, parent)
	qchild := qualifyWrite(env, child)
	return a.forwardOrApply(ctx, "remove_cluster_from_cluster", TypeCluster, qchild, func(ctx context.Context) error {
		return a.detach(ctx, qparent, qchild)
	})
}

// RemoveCluster deletes cluster entirely, detaching it from every current
// parent and child first (spec §4.3 item 1's symmetric edge teardown).
func (a *API) RemoveCluster(ctx context.Context, env, cluster string) error {
	qname := qualifyWrite(env, cluster)
	return a.forwardOrApply(ctx, "remove_cluster", TypeCluster, qname, func(ctx context.Context) error {
		if err := a.requireType(ctx, qname, TypeCluster); err != nil {
			return err
		}
		return a.removeNodeDetached(ctx, qname)
	})
}

// AddHostToCluster attaches host (creating it if new) under cluster, both
// within env. Per spec §4.9, every existing parent cluster of a
// pre-existing host must already lie in env; otherwise ErrInvalidEnvironment.
func (a *API) AddHostToCluster(ctx context.Context, env, cluster, host string) error {
	qcluster := qualifyWrite(env, cluster)
	qhost := qualifyWrite(env, host)
	return a.forwardOrApply(ctx, "add_host_to_cluster", TypeHost, qhost, func(ctx context.Context) error {
		if err := a.requireType(ctx, qcluster, TypeCluster); err != nil {
			return err
		}
		g := a.primary()
		exists, err := g.Exists(ctx, qhost)
		if err != nil {
			return err
		}
		if exists {
			parents, err := g.Get(ctx, qhost).Edges(ctx, false, memberLabel)
			if err != nil {
				return err
			}
			for _, p := range parents {
				if !hasEnvPrefix(p, env) {
					return ErrInvalidEnvironment
				}
			}
		}
		return a.createAndAttach(ctx, TypeHost, qhost, qcluster)
	})
}

// RemoveHostFromCluster detaches host from cluster, both within env.
func (a *API) RemoveHostFromCluster(ctx context.Context, env, cluster, host string) error {
	qcluster := qualifyWrite(env, cluster)
	qhost := qualifyWrite(env, host)
	return a.forwardOrApply(ctx, "remove_host_from_cluster", TypeHost, qhost, func(ctx context.Context) error {
		return a.detach(ctx, qcluster, qhost)
	})
}

// AddHost creates a HOST node named "<env>#<host>" with no parent yet.
func (a *API) AddHost(ctx context.Context, env, host string) error {
	qname := qualifyWrite(env, host)
	return a.forwardOrApply(ctx, "add_host", TypeHost, qname, func(ctx context.Context) error {
		_, err := a.primary().Create(ctx, TypeHost, qname)
		return err
	})
}

// RemoveHost deletes a HOST node entirely, detaching it from every parent
// cluster first.
func (a *API) RemoveHost(ctx context.Context, env, host string) error {
	qname := qualifyWrite(env, host)
	return a.forwardOrApply(ctx, "remove_host", TypeHost, qname, func(ctx context.Context) error {
		if err := a.requireType(ctx, qname, TypeHost); err != nil {
			return err
		}
		return a.removeNodeDetached(ctx, qname)
	})
}

// AddNodeKeyValue appends value to key's value list on node.
func (a *API) AddNodeKeyValue(ctx context.Context, env, node, key, value string) error {
	qname, err := qualify(ctx, a.primary(), env, node)
	if err != nil {
		return err
	}
	return a.forwardOrApply(ctx, "add_node_key_value", "", qname, func(ctx context.Context) error {
		return a.primary().Mutate(ctx, func(ctx context.Context) error {
			n := a.primary().Get(ctx, qname)
			if err := n.AddTagValue(ctx, key, value); err != nil {
				return err
			}
			return n.Commit(ctx)
		})
	})
}

// RemoveNodeKeyValue removes the first occurrence of value from key's
// value list on node.
func (a *API) RemoveNodeKeyValue(ctx context.Context, env, node, key, value string) error {
	qname, err := qualify(ctx, a.primary(), env, node)
	if err != nil {
		return err
	}
	return a.forwardOrApply(ctx, "remove_node_key_value", "", qname, func(ctx context.Context) error {
		return a.primary().Mutate(ctx, func(ctx context.Context) error {
			n := a.primary().Get(ctx, qname)
			if err := n.RemoveTagValue(ctx, key, value); err != nil {
				return err
			}
			return n.Commit(ctx)
		})
	})
}

// RemoveKeyFromNode deletes key entirely from node.
func (a *API) RemoveKeyFromNode(ctx context.Context, env, node, key string) error {
	qname, err := qualify(ctx, a.primary(), env, node)
	if err != nil {
		return err
	}
	return a.forwardOrApply(ctx, "remove_key_from_node", "", qname, func(ctx context.Context) error {
		return a.primary().Mutate(ctx, func(ctx context.Context) error {
			n := a.primary().Get(ctx, qname)
			if err := n.RemoveKey(ctx, key); err != nil {
				return err
			}
			return n.Commit(ctx)
		})
	})
}

// AddNodeEnvDependency records that node (within env) depends on depEnv, a
// purely dependency-graph edge that never touches the primary graph's
// graph_versions.
func (a *API) AddNodeEnvDependency(ctx context.Context, env, node, depEnv string) error {
	qname, err := qualify(ctx, a.primary(), env, node)
	if err != nil {
		return err
	}
	return a.forwardOrApply(ctx, "add_node_env_dependency", "", qname, func(ctx context.Context) error {
		return a.addDependencyEdge(ctx, qname, depEnv)
	})
}

// RemoveNodeEnvDependency removes the dependency edge added by
// AddNodeEnvDependency.
func (a *API) RemoveNodeEnvDependency(ctx context.Context, env, node, depEnv string) error {
	qname, err := qualify(ctx, a.primary(), env, node)
	if err != nil {
		return err
	}
	return a.forwardOrApply(ctx, "remove_node_env_dependency", "", qname, func(ctx context.Context) error {
		return a.removeDependencyEdge(ctx, qname, depEnv)
	})
}

// AddNodeExtDependency records an external (non-environment) dependency
// edge from node to depName, purely on the dependency graph.
func (a *API) AddNodeExtDependency(ctx context.Context, env, node, depName string) error {
	qname, err := qualify(ctx, a.primary(), env, node)
	if err != nil {
		return err
	}
	return a.forwardOrApply(ctx, "add_node_ext_dependency", "", qname, func(ctx context.Context) error {
		return a.addDependencyEdge(ctx, qname, depName)
	})
}

// RemoveNodeExtDependency removes the dependency edge added by
// AddNodeExtDependency.
func (a *API) RemoveNodeExtDependency(ctx context.Context, env, node, depName string) error {
	qname, err := qualify(ctx, a.primary(), env, node)
	if err != nil {
		return err
	}
	return a.forwardOrApply(ctx, "remove_node_ext_dependency", "", qname, func(ctx context.Context) error {
		return a.removeDependencyEdge(ctx, qname, depName)
	})
}

func (a *API) addDependencyEdge(ctx context.Context, from, to string) error {
	dep := a.dependency()
	return dep.Mutate(ctx, func(ctx context.Context) error {
		if ok, err := dep.Exists(ctx, from); err != nil {
			return err
		} else if !ok {
			if _, err := dep.Create(ctx, "", from); err != nil {
				return err
			}
		}
		if ok, err := dep.Exists(ctx, to); err != nil {
			return err
		} else if !ok {
			if _, err := dep.Create(ctx, "", to); err != nil {
				return err
			}
		}
		fromNode := dep.Get(ctx, from)
		if err := fromNode.AddEdge(ctx, true, dependencyLabel, to); err != nil {
			return err
		}
		if err := fromNode.Commit(ctx); err != nil {
			return err
		}
		toNode := dep.Get(ctx, to)
		if err := toNode.AddEdge(ctx, false, dependencyLabel, from); err != nil {
			return err
		}
		return toNode.Commit(ctx)
	})
}

func (a *API) removeDependencyEdge(ctx context.Context, from, to string) error {
	dep := a.dependency()
	return dep.Mutate(ctx, func(ctx context.Context) error {
		fromNode := dep.Get(ctx, from)
		if err := fromNode.RemoveEdge(ctx, true, dependencyLabel, to); err != nil {
			return err
		}
		if err := fromNode.Commit(ctx); err != nil {
			return err
		}
		toNode := dep.Get(ctx, to)
		if err := toNode.RemoveEdge(ctx, false, dependencyLabel, from); err != nil {
			return err
		}
		return toNode.Commit(ctx)
	})
}

// requireType returns store.ErrIncorrectNodeType if name does not exist as
// typ.
func (a *API) requireType(ctx context.Context, name, typ string) error {
	actual, err := a.primary().Get(ctx, name).Type(ctx)
	if err != nil {
		return err
	}
	if actual != typ {
		return fmt.Errorf("%w: %s is %s, want %s", store.ErrIncorrectNodeType, name, actual, typ)
	}
	return nil
}

// createAndAttach creates child (if it does not already exist) as nodeType
// and attaches it as a member of parent, syncing both edge directions.
func (a *API) createAndAttach(ctx context.Context, nodeType, child, parent string) error {
	g := a.primary()
	return g.Mutate(ctx, func(ctx context.Context) error {
		if ok, err := g.Exists(ctx, child); err != nil {
			return err
		} else if !ok {
			if _, err := g.Create(ctx, nodeType, child); err != nil {
				return err
			}
		}
		return a.attach(ctx, parent, child)
	})
}

// attach adds a member forward edge parent->child and a matching reverse
// edge child->parent, within the active transaction on ctx.
func (a *API) attach(ctx context.Context, parent, child string) error {
	g := a.primary()
	parentNode := g.Get(ctx, parent)
	if err := parentNode.AddEdge(ctx, true, memberLabel, child); err != nil {
		return err
	}
	if err := parentNode.Commit(ctx); err != nil {
		return err
	}
	childNode := g.Get(ctx, child)
	if err := childNode.AddEdge(ctx, false, memberLabel, parent); err != nil {
		return err
	}
	return childNode.Commit(ctx)
}

// detach removes the member edge pair between parent and child.
func (a *API) detach(ctx context.Context, parent, child string) error {
	g := a.primary()
	return g.Mutate(ctx, func(ctx context.Context) error {
		parentNode := g.Get(ctx, parent)
		if err := parentNode.RemoveEdge(ctx, true, memberLabel, child); err != nil {
			return err
		}
		if err := parentNode.Commit(ctx); err != nil {
			return err
		}
		childNode := g.Get(ctx, child)
		if err := childNode.RemoveEdge(ctx, false, memberLabel, parent); err != nil {
			return err
		}
		return childNode.Commit(ctx)
	})
}

// removeNodeDetached detaches name from every current parent and child,
// then marks it removed (Graph.Remove), which keeps its record for
// historical reads, per spec §4.3 item 1's removal discipline.
func (a *API) removeNodeDetached(ctx context.Context, name string) error {
	g := a.primary()
	return g.Mutate(ctx, func(ctx context.Context) error {
		parents, err := g.Get(ctx, name).Edges(ctx, false, memberLabel)
		if err != nil {
			return err
		}
		for _, p := range parents {
			if err := a.detach(ctx, p, name); err != nil {
				return err
			}
		}

		children, err := g.Get(ctx, name).Edges(ctx, true, memberLabel)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := a.detach(ctx, name, c); err != nil {
				return err
			}
		}

		return g.Remove(ctx, name)
	})
}
