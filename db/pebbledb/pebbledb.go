// Package pebbledb implements db.Database on top of cockroachdb/pebble. It is
// the default persistent backend of the ballot box.
package pebbledb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/vocdoni/zk-ballotbox/db"
)

// PebbleDB is a db.Database backed by a pebble instance in a directory.
type PebbleDB struct {
	db     *pebble.DB
	closed atomic.Bool
}

var _ db.Database = (*PebbleDB)(nil)

// New opens (creating if needed) the pebble database at opts.Path.
func New(opts db.Options) (*PebbleDB, error) {
	if err := os.MkdirAll(opts.Path, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create pebble dir: %w", err)
	}
	pdb, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	return &PebbleDB{db: pdb}, nil
}

func get(value []byte, closer interface{ Close() error }, err error) ([]byte, error) {
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	out := bytes.Clone(value)
	return out, closer.Close()
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	return get(p.db.Get(key))
}

type iterable interface {
	NewIter(*pebble.IterOptions) (*pebble.Iterator, error)
}

func iterate(src iterable, prefix []byte, callback func(key, value []byte) bool) (err error) {
	iter, err := src.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: db.PrefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
	}()
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key()[len(prefix):], iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (p *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(p.db, prefix, callback)
}

// WriteTx returns a transaction backed by an indexed batch. Pebble batches do
// not detect conflicts: callers must serialise writers of the same keys.
func (p *PebbleDB) WriteTx() db.WriteTx {
	return &WriteTx{batch: p.db.NewIndexedBatch()}
}

func (p *PebbleDB) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}

// Compact compacts the whole key space.
func (p *PebbleDB) Compact() error {
	iter, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	var first, last []byte
	if iter.First() {
		first = bytes.Clone(iter.Key())
	}
	if iter.Last() {
		last = bytes.Clone(iter.Key())
	}
	if err := iter.Close(); err != nil {
		return err
	}
	if first == nil || last == nil {
		return nil
	}
	return p.db.Compact(first, append(last, 0xff), true)
}

// WriteTx wraps a pebble indexed batch, so reads see the pending writes.
type WriteTx struct {
	batch *pebble.Batch
	done  bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, db.ErrTxDone
	}
	return get(tx.batch.Get(key))
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.done {
		return db.ErrTxDone
	}
	return iterate(tx.batch, prefix, callback)
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	return tx.batch.Set(key, value, nil)
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	return tx.batch.Delete(key, nil)
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	if tx.done {
		return db.ErrTxDone
	}
	o, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply %T to a pebble transaction", other)
	}
	return tx.batch.Apply(o.batch, nil)
}

func (tx *WriteTx) Commit() error {
	if tx.done {
		return db.ErrTxDone
	}
	tx.done = true
	if err := tx.batch.Commit(pebble.Sync); err != nil {
		_ = tx.batch.Close()
		return err
	}
	return tx.batch.Close()
}

func (tx *WriteTx) Discard() {
	if tx.done {
		return
	}
	tx.done = true
	_ = tx.batch.Close()
}
