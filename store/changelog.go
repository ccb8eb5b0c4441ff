package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evalgo/rangedb/kv"
)

const changelogBucketSuffix = "::changelog"

// ChangeOp names the kind of mutation a changelog entry records.
type ChangeOp string

const (
	OpCreateNode ChangeOp = "create_node"
	OpRemoveNode ChangeOp = "remove_node"
	OpMutateNode ChangeOp = "mutate_node"
)

// ChangeRecord is one append-only changelog entry. A graph instance's
// version is defined as the length of its changelog.
type ChangeRecord struct {
	Seq       uint64    `json:"seq"`
	Op        ChangeOp  `json:"op"`
	NodeType  string    `json:"node_type"`
	NodeName  string    `json:"node_name"`
	Timestamp time.Time `json:"timestamp"`
}

func seqKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

// appendChange appends rec to the graph's changelog within txn, assigning
// it the next sequence number, and returns the new changelog length (the
// graph's new version).
func appendChange(txn kv.Txn, bucket string, rec ChangeRecord) (uint64, error) {
	length, err := changelogLength(txn, bucket)
	if err != nil {
		return 0, err
	}
	rec.Seq = length
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("store: marshal changelog entry: %w", err)
	}
	if err := txn.Put(bucket, seqKey(rec.Seq), data); err != nil {
		return 0, err
	}
	return length + 1, nil
}

// changelogLength returns the number of entries in the graph's changelog,
// i.e. its current version.
func changelogLength(txn kv.Txn, bucket string) (uint64, error) {
	c, err := txn.Cursor(bucket)
	if err != nil {
		return 0, err
	}
	k, _ := c.Last()
	if k == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(k) + 1, nil
}

// changelogEntry fetches the changelog entry at seq, if any.
func changelogEntry(ctx context.Context, backend kv.Backend, bucket string, seq uint64) (ChangeRecord, bool, error) {
	var rec ChangeRecord
	var ok bool
	err := backend.View(ctx, func(txn kv.Txn) error {
		data, found, err := txn.Get(bucket, seqKey(seq))
		if err != nil || !found {
			return err
		}
		ok = true
		return json.Unmarshal(data, &rec)
	})
	return rec, ok, err
}
