// Package inmemory is an ephemeral db.Database with optimistic conflict
// detection, used by tests and by ballot boxes started without a data dir.
package inmemory

import (
	"bytes"
	"maps"
	"slices"
	"sync"

	"github.com/vocdoni/zk-ballotbox/db"
)

type record struct {
	value   []byte
	version uint64
	deleted bool
}

// Database keeps every key in a map. Each write bumps a global version so
// that transactions can detect that a key they read changed before commit.
type Database struct {
	mu      sync.RWMutex
	records map[string]record
	version uint64
}

var _ db.Database = (*Database)(nil)

// New returns an empty database. Options are ignored.
func New(_ db.Options) (*Database, error) {
	return &Database{records: make(map[string]record)}, nil
}

func (d *Database) Close() error   { return nil }
func (d *Database) Compact() error { return nil }

func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[string(key)]
	if !ok || r.deleted {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(r.value), nil
}

func (d *Database) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	d.mu.RLock()
	snapshot := d.collect(prefix, nil)
	d.mu.RUnlock()
	walk(snapshot, len(prefix), callback)
	return nil
}

// collect copies the live records under prefix. If versions is not nil, the
// version of each collected key is stored in it. Caller holds d.mu.
func (d *Database) collect(prefix []byte, versions map[string]uint64) map[string][]byte {
	out := make(map[string][]byte)
	for k, r := range d.records {
		if r.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		out[k] = bytes.Clone(r.value)
		if versions != nil {
			versions[k] = r.version
		}
	}
	return out
}

func (d *Database) versionOf(key string) uint64 {
	return d.records[key].version
}

func (d *Database) WriteTx() db.WriteTx {
	d.mu.RLock()
	base := d.version
	d.mu.RUnlock()
	return &WriteTx{
		db:      d,
		base:    base,
		pending: make(map[string][]byte),
		reads:   make(map[string]uint64),
	}
}

// WriteTx buffers writes in memory. A nil value in pending is a deletion.
type WriteTx struct {
	db      *Database
	base    uint64
	pending map[string][]byte
	reads   map[string]uint64
	done    bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) observe(key string) {
	if _, ok := tx.reads[key]; ok {
		return
	}
	tx.db.mu.RLock()
	tx.reads[key] = tx.db.versionOf(key)
	tx.db.mu.RUnlock()
}

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, db.ErrTxDone
	}
	k := string(key)
	if v, ok := tx.pending[k]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(v), nil
	}
	tx.observe(k)
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.done {
		return db.ErrTxDone
	}
	versions := make(map[string]uint64)
	tx.db.mu.RLock()
	view := tx.db.collect(prefix, versions)
	tx.db.mu.RUnlock()
	for k, ver := range versions {
		if _, ok := tx.reads[k]; !ok {
			tx.reads[k] = ver
		}
	}
	for k, v := range tx.pending {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(view, k)
			continue
		}
		view[k] = bytes.Clone(v)
	}
	walk(view, len(prefix), callback)
	return nil
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	k := string(key)
	tx.observe(k)
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	tx.pending[k] = v
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	k := string(key)
	tx.observe(k)
	tx.pending[k] = nil
	return nil
}

// Apply merges the pending writes of another in-memory transaction.
func (tx *WriteTx) Apply(other db.WriteTx) error {
	if tx.done {
		return db.ErrTxDone
	}
	o, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return db.ErrConflict
	}
	for k, v := range o.pending {
		tx.observe(k)
		tx.pending[k] = bytes.Clone(v)
	}
	return nil
}

// Commit fails with db.ErrConflict if any key read or written by the
// transaction changed after the transaction started.
func (tx *WriteTx) Commit() error {
	if tx.done {
		return db.ErrTxDone
	}
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	for k, ver := range tx.reads {
		if ver > tx.base || tx.db.versionOf(k) != ver {
			return db.ErrConflict
		}
	}
	for k, v := range tx.pending {
		tx.db.version++
		tx.db.records[k] = record{value: v, version: tx.db.version, deleted: v == nil}
	}
	tx.done = true
	return nil
}

func (tx *WriteTx) Discard() {
	tx.pending = map[string][]byte{}
	tx.reads = map[string]uint64{}
	tx.done = true
}

func walk(entries map[string][]byte, strip int, callback func(key, value []byte) bool) {
	for _, k := range slices.Sorted(maps.Keys(entries)) {
		if !callback([]byte(k)[strip:], entries[k]) {
			return
		}
	}
}
