// Package dbtest holds the behaviour every db.Database backend must show.
package dbtest

import (
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-ballotbox/db"
)

// TestWriteTx checks read-your-writes, commit and discard.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)
	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// not visible before commit
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(wTx.Commit(), qt.IsNil)

	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// discarded writes never land
	wTx = database.WriteTx()
	c.Assert(wTx.Set([]byte("c"), []byte("d")), qt.IsNil)
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	_, err = wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	wTx.Discard()

	_, err = database.Get([]byte("c"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)

	// committed deletion
	wTx = database.WriteTx()
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestIterate checks prefix filtering, key order and prefix stripping, both
// on the database and on a transaction with pending writes.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	for i := range 20 {
		c.Assert(wTx.Set(fmt.Appendf(nil, "p/%02d", i), []byte{byte(i)}), qt.IsNil)
	}
	c.Assert(wTx.Set([]byte("q/00"), []byte{0xff}), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	var keys []string
	err := database.Iterate([]byte("p/"), func(k, v []byte) bool {
		c.Assert(v, qt.DeepEquals, []byte{byte(len(keys))})
		keys = append(keys, string(k))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.HasLen, 20)
	c.Assert(keys[0], qt.Equals, "00")
	c.Assert(keys[19], qt.Equals, "19")

	// early stop
	n := 0
	err = database.Iterate([]byte("p/"), func(_, _ []byte) bool {
		n++
		return n < 5
	})
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 5)

	// pending writes are merged into the transaction view
	wTx = database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Delete([]byte("p/00")), qt.IsNil)
	c.Assert(wTx.Set([]byte("p/20"), []byte{20}), qt.IsNil)
	keys = nil
	err = wTx.Iterate([]byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.HasLen, 20)
	c.Assert(keys[0], qt.Equals, "01")
	c.Assert(keys[19], qt.Equals, "20")
}

// TestWriteTxApply checks merging one transaction into another.
func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("a"), []byte("a")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	tx1 := database.WriteTx()
	c.Assert(tx1.Set([]byte("b"), []byte("b")), qt.IsNil)
	tx2 := database.WriteTx()
	c.Assert(tx2.Set([]byte("c"), []byte("c")), qt.IsNil)
	c.Assert(tx2.Delete([]byte("a")), qt.IsNil)

	c.Assert(tx1.Apply(tx2), qt.IsNil)
	tx2.Discard()
	c.Assert(tx1.Commit(), qt.IsNil)

	for _, k := range []string{"b", "c"} {
		v, err := database.Get([]byte(k))
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.DeepEquals, []byte(k))
	}
	_, err := database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestWriteTxApplyPrefixed checks that prefixed transactions of the same
// backend can be merged and land under their prefix.
func TestWriteTxApplyPrefixed(t *testing.T, database, prefixed db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	c.Assert(tx.Set([]byte("plain"), []byte("1")), qt.IsNil)
	ptx := prefixed.WriteTx()
	c.Assert(ptx.Set([]byte("scoped"), []byte("2")), qt.IsNil)

	c.Assert(tx.Apply(ptx), qt.IsNil)
	ptx.Discard()
	c.Assert(tx.Commit(), qt.IsNil)

	v, err := prefixed.Get([]byte("scoped"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("2"))
	_, err = prefixed.Get([]byte("plain"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	v, err = database.Get([]byte("plain"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("1"))
}

// TestConcurrentWriteTx runs read-modify-write increments from several
// goroutines, retrying on db.ErrConflict. Only backends with conflict
// detection can pass it.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)
	key := []byte("counter")

	const workers, increments = 8, 25
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range increments {
				for {
					tx := database.WriteTx()
					v, err := tx.Get(key)
					if err != nil && err != db.ErrKeyNotFound {
						t.Error(err)
						return
					}
					n := byte(0)
					if len(v) == 1 {
						n = v[0]
					}
					if err := tx.Set(key, []byte{n + 1}); err != nil {
						t.Error(err)
						return
					}
					err = tx.Commit()
					if err == nil {
						break
					}
					tx.Discard()
					if err != db.ErrConflict {
						t.Error(err)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	v, err := database.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte{workers * increments})
}
