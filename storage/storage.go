/*
Package storage keeps the artifacts of the ballot box that live outside of
the per-election ledgers.

# Storage Organization

The storage uses a key-value database with prefixed namespaces:

  - e/  : electionID → ElectionConfig (immutable once written)
  - tr/ : electionID → TallyReport (latest report submitted by a trustee)

# Separate Databases

  - el_<electionID> : prefix of the database of each election, holding its
    eligibility tree, spent nullifiers and ballot ledger
*/
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vocdoni/zk-ballotbox/db"
	"github.com/vocdoni/zk-ballotbox/db/prefixeddb"
	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/types"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")

	// Prefixes
	electionPrefix    = []byte("e/")
	tallyReportPrefix = []byte("tr/")
	electionDBprefix  = []byte("el_")
)

const cacheSize = 1000

// Storage stores election configurations and tally reports, and hands out
// the database of each election.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	cache      *lru.Cache[string, any]
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:    database,
		cache: cache,
	}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Errorw(err, "failed to close storage")
	}
}

// ElectionDB returns the database reserved to an election. Nothing else in
// the storage writes under its prefix.
func (s *Storage) ElectionDB(id types.ElectionID) db.Database {
	prefix := append(bytes.Clone(electionDBprefix), id.Bytes()...)
	return prefixeddb.NewPrefixedDatabase(s.db, prefix)
}

func cacheKey(prefix, key []byte) string {
	return string(prefix) + string(key)
}

// setArtifact encodes artifact and stores it under prefix+key. If overwrite
// is false and the key exists, ErrKeyAlreadyExists is returned. Caller holds
// globalLock.
func (s *Storage) setArtifact(prefix, key []byte, artifact any, overwrite bool) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	defer wTx.Discard()
	if !overwrite {
		if _, err := wTx.Get(key); err == nil {
			return ErrKeyAlreadyExists
		} else if !errors.Is(err, db.ErrKeyNotFound) {
			return err
		}
	}
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(prefix, key))
	return nil
}

// getArtifact decodes the artifact stored under prefix+key into out.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("could not decode artifact: %w", err)
	}
	return nil
}

// listArtifacts retrieves all the keys for a given prefix.
func (s *Storage) listArtifacts(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	if err := prefixeddb.NewPrefixedReader(s.db, prefix).Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, bytes.Clone(k))
		return true
	}); err != nil {
		return nil, err
	}
	return keys, nil
}
