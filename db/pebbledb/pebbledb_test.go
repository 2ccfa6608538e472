package pebbledb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-ballotbox/db"
	"github.com/vocdoni/zk-ballotbox/db/internal/dbtest"
	"github.com/vocdoni/zk-ballotbox/db/prefixeddb"
)

func newTestDB(t *testing.T) *PebbleDB {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestWriteTx(t *testing.T) {
	dbtest.TestWriteTx(t, newTestDB(t))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, newTestDB(t))
}

func TestWriteTxApply(t *testing.T) {
	dbtest.TestWriteTxApply(t, newTestDB(t))
}

func TestWriteTxApplyPrefixed(t *testing.T) {
	database := newTestDB(t)
	dbtest.TestWriteTxApplyPrefixed(t, database, prefixeddb.NewPrefixedDatabase(database, []byte("one")))
}

// Pebble batches do not detect conflicts, so TestConcurrentWriteTx does not
// apply to this backend.

func TestReopen(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()

	database, err := New(db.Options{Path: dir})
	c.Assert(err, qt.IsNil)
	tx := database.WriteTx()
	c.Assert(tx.Set([]byte("root"), []byte{1, 2, 3}), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	c.Assert(database.Compact(), qt.IsNil)
	c.Assert(database.Close(), qt.IsNil)
	// closing twice is harmless
	c.Assert(database.Close(), qt.IsNil)

	database, err = New(db.Options{Path: dir})
	c.Assert(err, qt.IsNil)
	defer database.Close()
	v, err := database.Get([]byte("root"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte{1, 2, 3})
}

func TestTxDone(t *testing.T) {
	c := qt.New(t)
	database := newTestDB(t)

	tx := database.WriteTx()
	c.Assert(tx.Commit(), qt.IsNil)
	c.Assert(tx.Set([]byte("k"), []byte("v")), qt.ErrorIs, db.ErrTxDone)
	c.Assert(tx.Commit(), qt.ErrorIs, db.ErrTxDone)
	tx.Discard()
}
