package election

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/zk-ballotbox/crypto/hash"
	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/storage"
	"github.com/vocdoni/zk-ballotbox/types"
	"github.com/vocdoni/zk-ballotbox/verifier"
)

// Manager creates elections and keeps the open ones in memory. Elections
// are loaded lazily from the storage on first access.
type Manager struct {
	storage  *storage.Storage
	resolver *verifier.Resolver

	mu        sync.Mutex
	elections map[types.ElectionID]*Election
}

// NewManager returns a manager over st that resolves the verifier
// references of each election with resolver.
func NewManager(st *storage.Storage, resolver *verifier.Resolver) *Manager {
	return &Manager{
		storage:   st,
		resolver:  resolver,
		elections: make(map[types.ElectionID]*Election),
	}
}

// Storage returns the storage the manager works on.
func (m *Manager) Storage() *storage.Storage {
	return m.storage
}

// Create stores a new election and opens it. A zero id is derived from the
// name, or chosen at random when there is no name either. CreatedAt is set
// to now when zero and the hash defaults to Poseidon.
func (m *Manager) Create(cfg types.ElectionConfig) (*Election, error) {
	if cfg.ID == (types.ElectionID{}) {
		if cfg.Name != "" {
			cfg.ID = types.NewElectionID(cfg.Name)
		} else {
			cfg.ID = types.RandomElectionID()
		}
	}
	if cfg.Hash == "" {
		cfg.Hash = hash.TypePoseidon
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.open(&cfg)
	if err != nil {
		return nil, err
	}
	if err := m.storage.SetElection(&cfg); err != nil {
		if errors.Is(err, storage.ErrKeyAlreadyExists) {
			return nil, fmt.Errorf("%w: %s", ErrElectionExists, cfg.ID)
		}
		return nil, err
	}
	m.elections[cfg.ID] = e
	log.Infow("election created",
		"electionId", cfg.ID.String(),
		"name", cfg.Name,
		"depth", cfg.TreeDepth,
		"hash", cfg.Hash,
		"strictPaths", cfg.StrictPaths)
	return e, nil
}

// Get returns the election with the given id.
func (m *Manager) Get(id types.ElectionID) (*Election, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.elections[id]; ok {
		return e, nil
	}
	cfg, err := m.storage.Election(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrElectionNotFound, id)
		}
		return nil, err
	}
	e, err := m.open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open election %s: %w", id, err)
	}
	m.elections[id] = e
	return e, nil
}

// List returns the configuration of every stored election.
func (m *Manager) List() ([]types.ElectionConfig, error) {
	ids, err := m.storage.ListElections()
	if err != nil {
		return nil, err
	}
	out := make([]types.ElectionConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := m.storage.Election(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, nil
}

// Close drops the open elections and closes the storage.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.elections)
	m.storage.Close()
}

func (m *Manager) open(cfg *types.ElectionConfig) (*Election, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	registration, err := m.resolver.Resolve(cfg.RegistrationVerifier)
	if err != nil {
		return nil, fmt.Errorf("%w: registration verifier: %w", ErrInvalidConfig, err)
	}
	vote, err := m.resolver.Resolve(cfg.VoteVerifier)
	if err != nil {
		return nil, fmt.Errorf("%w: vote verifier: %w", ErrInvalidConfig, err)
	}
	return New(cfg, m.storage.ElectionDB(cfg.ID), registration, vote)
}
