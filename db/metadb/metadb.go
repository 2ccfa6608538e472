// Package metadb opens a db.Database by backend name.
package metadb

import (
	"cmp"
	"fmt"
	"os"
	"testing"

	"github.com/vocdoni/zk-ballotbox/db"
	"github.com/vocdoni/zk-ballotbox/db/goleveldb"
	"github.com/vocdoni/zk-ballotbox/db/inmemory"
	"github.com/vocdoni/zk-ballotbox/db/mongodb"
	"github.com/vocdoni/zk-ballotbox/db/pebbledb"
)

// Types lists the accepted backend names.
var Types = []string{db.TypePebble, db.TypeLevelDB, db.TypeInMem, db.TypeMongo}

// New opens the backend typ at dir (a database name for mongodb).
func New(typ, dir string) (db.Database, error) {
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeLevelDB:
		return goleveldb.New(opts)
	case db.TypeInMem:
		return inmemory.New(opts)
	case db.TypeMongo:
		return mongodb.New(opts)
	default:
		return nil, fmt.Errorf("invalid db type %q, available types: %q", typ, Types)
	}
}

// ForTest returns the backend used by tests, $DB_TYPE or pebble.
func ForTest() string {
	return cmp.Or(os.Getenv("DB_TYPE"), db.TypePebble)
}

// NewTest opens a fresh ForTest backend closed at the end of the test.
func NewTest(tb testing.TB) db.Database {
	database, err := New(ForTest(), tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { _ = database.Close() })
	return database
}
