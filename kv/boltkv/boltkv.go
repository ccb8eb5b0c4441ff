// Package boltkv implements rangedb/kv.Backend on top of go.etcd.io/bbolt,
// following the wrapper shape of this codebase's other bbolt client.
package boltkv

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo/rangedb/kv"
	bolt "go.etcd.io/bbolt"
)

// Backend is a kv.Backend backed by a single bbolt database file.
type Backend struct {
	db *bolt.DB
}

// Open opens or creates a bbolt database at path. cacheSize bounds bbolt's
// memory-mapped page cache hint via InitialMmapSize.
func Open(path string, cacheSize int64) (*Backend, error) {
	opts := &bolt.Options{Timeout: 1 * time.Second}
	if cacheSize > 0 {
		opts.InitialMmapSize = int(cacheSize)
	}
	db, err := bolt.Open(path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("boltkv: open %s: %w", path, err)
	}
	return &Backend{db: db}, nil
}

// Close closes the underlying database file.
func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("boltkv: close: %w", err)
	}
	return nil
}

// Update runs fn inside a writable transaction. A transaction already
// active on ctx (from an enclosing Update/View call) is reused rather than
// nested, giving the reentrant-call semantics the store layer relies on;
// an outer read-only transaction cannot be upgraded to writable and
// returns kv.ErrLocking.
func (b *Backend) Update(ctx context.Context, fn func(kv.Txn) error) error {
	if existing, ok := kv.TxnFromContext(ctx); ok {
		if !existing.Writable() {
			return kv.ErrLocking
		}
		return fn(existing)
	}
	return b.db.Update(func(btx *bolt.Tx) error {
		return fn(&txn{tx: btx, writable: true})
	})
}

// View runs fn inside a read-only, snapshot-isolated transaction. A
// transaction already active on ctx is reused regardless of its
// writability, since a writer may always read its own writes.
func (b *Backend) View(ctx context.Context, fn func(kv.Txn) error) error {
	if existing, ok := kv.TxnFromContext(ctx); ok {
		return fn(existing)
	}
	return b.db.View(func(btx *bolt.Tx) error {
		return fn(&txn{tx: btx, writable: false})
	})
}

type txn struct {
	tx       *bolt.Tx
	writable bool
}

func (t *txn) Writable() bool { return t.writable }

func (t *txn) Get(bucket string, key []byte) ([]byte, bool, error) {
	b := t.tx.Bucket([]byte(bucket))
	if b == nil {
		return nil, false, nil
	}
	v := b.Get(key)
	if v == nil {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (t *txn) Put(bucket string, key, value []byte) error {
	if !t.writable {
		return kv.ErrLocking
	}
	b, err := t.tx.CreateBucketIfNotExists([]byte(bucket))
	if err != nil {
		return fmt.Errorf("boltkv: create bucket %s: %w", bucket, err)
	}
	return b.Put(key, value)
}

func (t *txn) Delete(bucket string, key []byte) error {
	if !t.writable {
		return kv.ErrLocking
	}
	b := t.tx.Bucket([]byte(bucket))
	if b == nil {
		return nil
	}
	return b.Delete(key)
}

func (t *txn) Cursor(bucket string) (kv.Cursor, error) {
	b := t.tx.Bucket([]byte(bucket))
	if b == nil {
		return emptyCursor{}, nil
	}
	return &cursor{c: b.Cursor()}, nil
}

type cursor struct {
	c *bolt.Cursor
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte)  { return c.c.Seek(seek) }
func (c *cursor) First() ([]byte, []byte)            { return c.c.First() }
func (c *cursor) Last() ([]byte, []byte)             { return c.c.Last() }
func (c *cursor) Next() ([]byte, []byte)              { return c.c.Next() }
func (c *cursor) Prev() ([]byte, []byte)              { return c.c.Prev() }

type emptyCursor struct{}

func (emptyCursor) Seek([]byte) ([]byte, []byte) { return nil, nil }
func (emptyCursor) First() ([]byte, []byte)      { return nil, nil }
func (emptyCursor) Last() ([]byte, []byte)       { return nil, nil }
func (emptyCursor) Next() ([]byte, []byte)       { return nil, nil }
func (emptyCursor) Prev() ([]byte, []byte)       { return nil, nil }
