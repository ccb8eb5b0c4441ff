package boltkv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/evalgo/rangedb/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Backend {
	t.Helper()
	dir := t.TempDir()
	b, err := Open(filepath.Join(dir, "rangedb.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestPutGetDelete(t *testing.T) {
	b := openTemp(t)
	ctx := context.Background()

	require.NoError(t, b.Update(ctx, func(txn kv.Txn) error {
		return txn.Put("nodes", []byte("host1"), []byte("payload"))
	}))

	t.Run("get returns the stored value", func(t *testing.T) {
		var got []byte
		var ok bool
		require.NoError(t, b.View(ctx, func(txn kv.Txn) error {
			var err error
			got, ok, err = txn.Get("nodes", []byte("host1"))
			return err
		}))
		assert.True(t, ok)
		assert.Equal(t, []byte("payload"), got)
	})

	t.Run("get on missing key returns ok=false", func(t *testing.T) {
		var ok bool
		require.NoError(t, b.View(ctx, func(txn kv.Txn) error {
			var err error
			_, ok, err = txn.Get("nodes", []byte("missing"))
			return err
		}))
		assert.False(t, ok)
	})

	t.Run("delete then get misses", func(t *testing.T) {
		require.NoError(t, b.Update(ctx, func(txn kv.Txn) error {
			return txn.Delete("nodes", []byte("host1"))
		}))
		var ok bool
		require.NoError(t, b.View(ctx, func(txn kv.Txn) error {
			_, ok, _ = txn.Get("nodes", []byte("host1"))
			return nil
		}))
		assert.False(t, ok)
	})
}

func TestNestedUpdateReusesOuterTransaction(t *testing.T) {
	b := openTemp(t)
	ctx := context.Background()

	require.NoError(t, b.Update(ctx, func(outer kv.Txn) error {
		nested := kv.WithTxn(ctx, outer)
		return b.Update(nested, func(inner kv.Txn) error {
			assert.Same(t, outer, inner)
			return inner.Put("nodes", []byte("k"), []byte("v"))
		})
	}))

	var ok bool
	require.NoError(t, b.View(ctx, func(txn kv.Txn) error {
		_, ok, _ = txn.Get("nodes", []byte("k"))
		return nil
	}))
	assert.True(t, ok)
}

func TestViewCannotWrite(t *testing.T) {
	b := openTemp(t)
	ctx := context.Background()

	err := b.View(ctx, func(txn kv.Txn) error {
		return txn.Put("nodes", []byte("k"), []byte("v"))
	})
	assert.ErrorIs(t, err, kv.ErrLocking)
}

func TestCursorOrdersKeys(t *testing.T) {
	b := openTemp(t)
	ctx := context.Background()

	require.NoError(t, b.Update(ctx, func(txn kv.Txn) error {
		for _, k := range []string{"b", "a", "c"} {
			if err := txn.Put("nodes", []byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var order []string
	require.NoError(t, b.View(ctx, func(txn kv.Txn) error {
		c, err := txn.Cursor("nodes")
		if err != nil {
			return err
		}
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			order = append(order, string(k))
		}
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
