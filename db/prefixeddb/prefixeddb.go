// Package prefixeddb scopes a db.Database, db.WriteTx or db.Reader to a key
// prefix, so independent components can share one backend.
package prefixeddb

import (
	"github.com/vocdoni/zk-ballotbox/db"
)

func prefixed(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// PrefixedReader reads keys under a prefix.
type PrefixedReader struct {
	prefix []byte
	reader db.Reader
}

var _ db.Reader = (*PrefixedReader)(nil)

// NewPrefixedReader returns a reader over the keys of r starting with prefix.
func NewPrefixedReader(r db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{prefix: prefix, reader: r}
}

func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(prefixed(r.prefix, key))
}

func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return r.reader.Iterate(prefixed(r.prefix, prefix), callback)
}

// PrefixedDatabase is a db.Database whose keys all live under a prefix of the
// parent database.
type PrefixedDatabase struct {
	prefix []byte
	db     db.Database
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns database scoped to prefix.
func NewPrefixedDatabase(database db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{prefix: prefix, db: database}
}

// Close does nothing: the parent database owns the backend.
func (d *PrefixedDatabase) Close() error {
	return nil
}

func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}

func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(prefixed(d.prefix, key))
}

func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.db.Iterate(prefixed(d.prefix, prefix), callback)
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// PrefixedWriteTx writes keys under a prefix of the wrapped transaction.
type PrefixedWriteTx struct {
	prefix []byte
	tx     db.WriteTx
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx returns tx scoped to prefix. Committing it commits tx.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{prefix: prefix, tx: tx}
}

func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(prefixed(t.prefix, key))
}

func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return t.tx.Iterate(prefixed(t.prefix, prefix), callback)
}

func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(prefixed(t.prefix, key), value)
}

func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(prefixed(t.prefix, key))
}

// Apply merges the writes of other. Both transactions must belong to the same
// backend; the keys of other already carry their own prefixes.
func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	return t.tx.Apply(db.UnwrapWriteTx(other))
}

func (t *PrefixedWriteTx) Commit() error {
	return t.tx.Commit()
}

func (t *PrefixedWriteTx) Discard() {
	t.tx.Discard()
}

// Unwrap returns the wrapped transaction.
func (t *PrefixedWriteTx) Unwrap() db.WriteTx {
	return t.tx
}
