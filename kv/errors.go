package kv

import "errors"

var (
	// ErrBucketNotFound names a read against a bucket that has never been
	// created by a write. boltkv does not return it: such a read reports a
	// miss (Get) or an empty cursor (Cursor).
	ErrBucketNotFound = errors.New("kv: bucket not found")
	// ErrKeyNotFound names an absent key. Txn.Get does not return it: an
	// absent key is reported as (nil, false, nil), so callers check the
	// bool return.
	ErrKeyNotFound = errors.New("kv: key not found")
	// ErrTxnClosed names use of a Txn after its Update/View call has
	// returned. boltkv does not check for this and does not return it.
	ErrTxnClosed = errors.New("kv: transaction already closed")
	// ErrLocking surfaces a backend-level lock acquisition failure,
	// grounding spec's DatabaseLocking error.
	ErrLocking = errors.New("kv: could not acquire database lock")
)
