// Package goleveldb implements db.Database on top of syndtr/goleveldb.
package goleveldb

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vocdoni/zk-ballotbox/db"
)

// LevelDB is a db.Database stored in a leveldb directory.
type LevelDB struct {
	db *leveldb.DB
}

var _ db.Database = (*LevelDB)(nil)

// New opens (creating if needed) the leveldb database at opts.Path.
func New(opts db.Options) (*LevelDB, error) {
	ldb, err := leveldb.OpenFile(opts.Path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelDB{db: ldb}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	return v, err
}

func (l *LevelDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !callback(iter.Key()[len(prefix):], iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (l *LevelDB) WriteTx() db.WriteTx {
	return &WriteTx{db: l, batch: new(leveldb.Batch), pending: make(map[string][]byte)}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

func (l *LevelDB) Compact() error {
	return l.db.CompactRange(util.Range{})
}

// WriteTx collects writes in a leveldb.Batch. The pending map mirrors the
// batch so reads inside the transaction observe their own writes; a nil
// value marks a deletion.
type WriteTx struct {
	db      *LevelDB
	batch   *leveldb.Batch
	pending map[string][]byte
	done    bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, db.ErrTxDone
	}
	if v, ok := tx.pending[string(key)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(v), nil
	}
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.done {
		return db.ErrTxDone
	}
	view := make(map[string][]byte)
	if err := tx.db.Iterate(prefix, func(k, v []byte) bool {
		view[string(k)] = bytes.Clone(v)
		return true
	}); err != nil {
		return err
	}
	for k, v := range tx.pending {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		stripped := k[len(prefix):]
		if v == nil {
			delete(view, stripped)
			continue
		}
		view[stripped] = v
	}
	for _, k := range slices.Sorted(maps.Keys(view)) {
		if !callback([]byte(k), view[k]) {
			break
		}
	}
	return nil
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	tx.pending[string(key)] = v
	tx.batch.Put(key, v)
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.done {
		return db.ErrTxDone
	}
	tx.pending[string(key)] = nil
	tx.batch.Delete(key)
	return nil
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	if tx.done {
		return db.ErrTxDone
	}
	o, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply %T to a leveldb transaction", other)
	}
	for k, v := range o.pending {
		if v == nil {
			if err := tx.Delete([]byte(k)); err != nil {
				return err
			}
			continue
		}
		if err := tx.Set([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (tx *WriteTx) Commit() error {
	if tx.done {
		return db.ErrTxDone
	}
	tx.done = true
	return tx.db.db.Write(tx.batch, &opt.WriteOptions{Sync: true})
}

func (tx *WriteTx) Discard() {
	tx.done = true
	tx.batch.Reset()
	tx.pending = nil
}
