// Package kv defines the ordered key-value backend contract that the
// versioned graph store is built on: get/put/delete, range-scan cursors,
// and ACID transactions with snapshot isolation and reentrant nesting.
// rangedb/kv/boltkv provides the only implementation shipped with this
// module, backed by go.etcd.io/bbolt.
package kv

import "context"

// Cursor walks an ordered key range within a single bucket.
type Cursor interface {
	// Seek positions the cursor at the first key >= seek, or exhausts it.
	Seek(seek []byte) (key, value []byte)
	// First positions the cursor at the first key in the bucket.
	First() (key, value []byte)
	// Last positions the cursor at the last key in the bucket.
	Last() (key, value []byte)
	// Next advances the cursor and returns the new position.
	Next() (key, value []byte)
	// Prev moves the cursor back and returns the new position.
	Prev() (key, value []byte)
}

// Txn is a single transaction against one or more buckets. An Update/View
// call whose ctx already carries a Txn (see WithTxn) is a nested call: it
// reuses that transaction, and only the outermost call commits or rolls
// back, matching the store's "thread-local single active transaction" model.
type Txn interface {
	// Get returns the value stored at key in bucket, or (nil, false).
	Get(bucket string, key []byte) ([]byte, bool, error)
	// Put stores value at key in bucket, creating the bucket if needed.
	Put(bucket string, key, value []byte) error
	// Delete removes key from bucket. Deleting an absent key is not an error.
	Delete(bucket string, key []byte) error
	// Cursor returns a Cursor over bucket as of this transaction's snapshot.
	Cursor(bucket string) (Cursor, error)
	// Writable reports whether this transaction may mutate data.
	Writable() bool
}

// Backend is the KV contract a graph store is built against.
type Backend interface {
	// Update runs fn inside a writable transaction, committing on a nil
	// return and rolling back otherwise. Nested Update/View calls whose ctx
	// carries the outer transaction (see WithTxn) reuse it.
	Update(ctx context.Context, fn func(Txn) error) error
	// View runs fn inside a read-only, snapshot-isolated transaction.
	View(ctx context.Context, fn func(Txn) error) error
	// Close releases the backend's resources.
	Close() error
}

type txnCtxKey struct{}

// WithTxn returns a context carrying txn as the active transaction, so that
// a caller already inside one Backend.Update/View call can thread that
// same transaction through further Update/View calls instead of opening a
// second one. Backend implementations check for this on every Update/View
// call, giving the reentrant, thread-local-like nesting the store layer is
// built around (see spec's explicit ThreadContext design note) without an
// actual goroutine-local variable.
func WithTxn(ctx context.Context, txn Txn) context.Context {
	return context.WithValue(ctx, txnCtxKey{}, txn)
}

// TxnFromContext returns the transaction stashed by WithTxn, if any.
func TxnFromContext(ctx context.Context) (Txn, bool) {
	txn, ok := ctx.Value(txnCtxKey{}).(Txn)
	return txn, ok
}
