// Package queue defines the forwarding daemon's wire message and the
// pluggable Transport it is shipped over. The daemon itself — consensus,
// scheduling, retry policy — is out of scope (see SPEC_FULL.md §6
// Non-goals); this package only standardizes how one committed mutation is
// framed and handed to a transport for delivery to peer range daemons.
package queue

import (
	"context"
	"time"
)

// Message is one forwarded mutation: a single changelog entry from one
// graph, tagged with the proposer that committed it so a receiving daemon
// can deduplicate and ack it.
type Message struct {
	ProposerID string    `json:"proposer_id"`
	GraphName  string    `json:"graph_name"`
	Seq        uint64    `json:"seq"`
	Op         string    `json:"op"`
	NodeType   string    `json:"node_type"`
	NodeName   string    `json:"node_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// Handler processes one received Message. Returning an error leaves the
// message for redelivery, transport permitting.
type Handler func(ctx context.Context, msg Message) error

// Transport ships Messages between range daemons. Implementations need not
// guarantee ordering across graphs, only within a single GraphName.
type Transport interface {
	// Publish ships msg, returning once the transport has accepted it
	// (not necessarily once a peer has received it).
	Publish(ctx context.Context, msg Message) error
	// Subscribe blocks, invoking handler for each received Message, until
	// ctx is cancelled or an unrecoverable transport error occurs.
	Subscribe(ctx context.Context, handler Handler) error
	// Close releases the transport's underlying connection.
	Close() error
}
