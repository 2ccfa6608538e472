// Package db defines the key-value storage interfaces every persistent part of
// the ballot box is written against, and the names of the available backends.
package db

import (
	"errors"
	"io"
)

const (
	TypePebble  = "pebble"
	TypeLevelDB = "leveldb"
	TypeMongo   = "mongodb"
	TypeInMem   = "inmem"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when a concurrent transaction
	// modified a key this transaction depends on. Backends without conflict
	// detection never return it.
	ErrConflict = errors.New("transaction conflict")
	// ErrTxDone is returned when a committed or discarded transaction is used.
	ErrTxDone = errors.New("transaction already committed or discarded")
)

// Options are the backend independent opening options.
type Options struct {
	// Path is a directory for file based backends and a database name for
	// mongodb.
	Path string
}

// Reader is the read side shared by databases and write transactions.
type Reader interface {
	// Get returns a copy of the value stored at key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key with the given prefix in
	// ascending key order, until callback returns false. Keys are passed
	// with the prefix removed. The slices are only valid during the call.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a set of pending writes applied atomically on Commit. Reads on a
// WriteTx observe its own pending writes.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// Apply copies the pending writes of other into this transaction.
	Apply(other WriteTx) error
	// Commit persists the writes. The transaction cannot be used afterwards.
	Commit() error
	// Discard drops the writes. It is safe to call after Commit.
	Discard()
}

// Database is a key-value store with atomic write transactions.
type Database interface {
	io.Closer
	Reader
	WriteTx() WriteTx
	// Compact reclaims space, when the backend supports it.
	Compact() error
}

// UnwrapWriteTx returns the innermost WriteTx of a chain of wrappers, such as
// the prefixed ones, so that backends can recognise their own type in Apply.
func UnwrapWriteTx(tx WriteTx) WriteTx {
	for {
		u, ok := tx.(interface{ Unwrap() WriteTx })
		if !ok {
			return tx
		}
		tx = u.Unwrap()
	}
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil if there is no such key (all 0xff bytes or empty prefix).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
