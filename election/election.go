// Package election implements one election instance: the eligibility tree,
// the spent nullifier set and the append-only ballot ledger, mutated only
// through the proof-gated Register and Vote operations.
package election

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vocdoni/zk-ballotbox/accumulator"
	"github.com/vocdoni/zk-ballotbox/crypto"
	"github.com/vocdoni/zk-ballotbox/crypto/hash"
	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/db"
	"github.com/vocdoni/zk-ballotbox/db/prefixeddb"
	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/storage"
	"github.com/vocdoni/zk-ballotbox/types"
	"github.com/vocdoni/zk-ballotbox/verifier"
)

var (
	treePrefix      = []byte("t/")
	ballotPrefix    = []byte("b/")
	nullifierPrefix = []byte("nf/")
	keyBallotCount  = []byte("count")
)

const ballotCacheSize = 4096

// Election owns the mutable state of one election. Register and Vote are
// totally ordered by a single lock, and each of them commits its effects in
// one write transaction, so a failed call never leaves partial state.
// Readers see the last committed state.
type Election struct {
	cfg          types.ElectionConfig
	db           db.Database
	tree         *accumulator.Tree
	registration verifier.Verifier
	vote         verifier.Verifier

	mu      sync.Mutex
	ballots *lru.Cache[uint64, types.Ballot]
}

// New opens the election stored in database, which must be reserved to it.
// The config is validated but not stored; see Manager for that.
func New(cfg *types.ElectionConfig, database db.Database, registration, vote verifier.Verifier) (*Election, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if registration == nil || vote == nil {
		return nil, fmt.Errorf("%w: nil verifier", ErrInvalidConfig)
	}
	hasher, err := hash.New(cfg.Hash)
	if err != nil {
		return nil, err
	}
	tree, err := accumulator.New(prefixeddb.NewPrefixedDatabase(database, treePrefix), cfg.TreeDepth, hasher)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[uint64, types.Ballot](ballotCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create ballot cache: %w", err)
	}
	return &Election{
		cfg:          *cfg,
		db:           database,
		tree:         tree,
		registration: registration,
		vote:         vote,
		ballots:      cache,
	}, nil
}

// Config returns a copy of the election configuration.
func (e *Election) Config() types.ElectionConfig {
	return e.cfg
}

func (e *Election) ID() types.ElectionID {
	return e.cfg.ID
}

// Root returns the current eligibility root.
func (e *Election) Root() ([]byte, error) {
	return e.tree.Root()
}

// RegisteredCount returns the number of registered commitments.
func (e *Election) RegisteredCount() (uint64, error) {
	return e.tree.Size()
}

// Hasher returns the hash function of the eligibility tree.
func (e *Election) Hasher() hash.Hasher {
	return e.tree.Hasher()
}

// Capacity returns the maximum number of registrations.
func (e *Election) Capacity() uint64 {
	return e.tree.Capacity()
}

// NextPath returns the slot the next registration must use together with
// the siblings and path indices a registrant needs to build its proof.
func (e *Election) NextPath() (uint64, [][]byte, []uint8, error) {
	return e.tree.NextPath()
}

// Path returns the membership path of a registered leaf.
func (e *Election) Path(index uint64) ([][]byte, []uint8, error) {
	return e.tree.Path(index)
}

// CommitmentIndex returns the slot of a registered commitment.
func (e *Election) CommitmentIndex(leaf []byte) (uint64, bool, error) {
	return e.tree.Contains(leaf)
}

// Register inserts leaf in the eligibility tree at the slot designated by
// indices. The new root is computed from siblings and the registration
// proof must bind {old root, leaf, new root}.
func (e *Election) Register(leaf []byte, siblings [][]byte, indices []uint8, proof []byte) (*accumulator.Insertion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ins, err := e.tree.Prepare(leaf, siblings, indices, e.cfg.StrictPaths)
	if err != nil {
		err = registrationError(err)
		log.Debugw("registration rejected", "electionId", e.cfg.ID.String(), "error", err.Error())
		return nil, err
	}

	inputs := verifier.RegistrationInputs(ins.OldRoot, ins.Leaf, ins.NewRoot)
	if ok, err := e.registration.Verify(proof, inputs); err != nil || !ok {
		log.Debugw("registration proof rejected",
			"electionId", e.cfg.ID.String(), "index", ins.Index, "error", fmt.Sprint(err))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMembershipProof, err)
		}
		return nil, ErrInvalidMembershipProof
	}

	wtx := e.db.WriteTx()
	defer wtx.Discard()
	if err := e.tree.Apply(prefixeddb.NewPrefixedWriteTx(wtx, treePrefix), ins); err != nil {
		return nil, fmt.Errorf("stage registration: %w", err)
	}
	if err := wtx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration: %w", err)
	}
	log.Debugw("commitment registered",
		"electionId", e.cfg.ID.String(),
		"index", ins.Index,
		"root", fmt.Sprintf("%x", ins.NewRoot))
	return ins, nil
}

// registrationError maps tree validation errors to the registration kinds.
func registrationError(err error) error {
	switch {
	case errors.Is(err, accumulator.ErrInvalidLeaf):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, accumulator.ErrInvalidSiblings),
		errors.Is(err, accumulator.ErrInconsistentPath):
		return fmt.Errorf("%w: %w", ErrInvalidMembershipProof, err)
	case errors.Is(err, accumulator.ErrInvalidIndices),
		errors.Is(err, accumulator.ErrInvalidPosition),
		errors.Is(err, accumulator.ErrFull):
		return fmt.Errorf("%w: %w", ErrInvalidInsertionPosition, err)
	case errors.Is(err, accumulator.ErrDuplicateLeaf):
		return fmt.Errorf("%w: %w", ErrDuplicateCommitment, err)
	}
	return err
}

// Vote records the ballot {c1, c2} for nullifier and returns its index in
// the ledger. The vote proof must bind {current root, nullifier, election
// id}. The nullifier, the ballot and the new count are committed together.
func (e *Election) Vote(c1, c2, nullifier, proof []byte) (uint64, error) {
	if err := hybrid.ValidateBallot(c1, c2); err != nil {
		log.Debugw("vote rejected", "electionId", e.cfg.ID.String(), "error", err.Error())
		return 0, err
	}
	if err := checkNullifier(nullifier); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	spent, err := e.hasVoted(nullifier)
	if err != nil {
		return 0, err
	}
	if spent {
		log.Debugw("vote rejected", "electionId", e.cfg.ID.String(), "error", ErrDoubleVote.Error())
		return 0, ErrDoubleVote
	}

	root, err := e.tree.Root()
	if err != nil {
		return 0, err
	}
	inputs := verifier.VoteInputs(root, nullifier, e.cfg.ID.Bytes())
	if ok, err := e.vote.Verify(proof, inputs); err != nil || !ok {
		log.Debugw("vote proof rejected", "electionId", e.cfg.ID.String(), "error", fmt.Sprint(err))
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidVoteProof, err)
		}
		return 0, ErrInvalidVoteProof
	}

	index, err := e.ballotCount()
	if err != nil {
		return 0, err
	}
	ballot := types.Ballot{C1: bytes.Clone(c1), C2: bytes.Clone(c2)}
	data, err := storage.EncodeArtifact(&ballot)
	if err != nil {
		return 0, fmt.Errorf("encode ballot: %w", err)
	}

	wtx := e.db.WriteTx()
	defer wtx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wtx, nullifierPrefix).Set(nullifier, uint64Bytes(index)); err != nil {
		return 0, err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wtx, ballotPrefix).Set(uint64Bytes(index), data); err != nil {
		return 0, err
	}
	if err := wtx.Set(keyBallotCount, uint64Bytes(index+1)); err != nil {
		return 0, err
	}
	if err := wtx.Commit(); err != nil {
		return 0, fmt.Errorf("commit vote: %w", err)
	}
	e.ballots.Add(index, ballot)
	log.Debugw("ballot recorded", "electionId", e.cfg.ID.String(), "index", index)
	return index, nil
}

// HasVoted reports whether nullifier was already spent.
func (e *Election) HasVoted(nullifier []byte) (bool, error) {
	if err := checkNullifier(nullifier); err != nil {
		return false, err
	}
	return e.hasVoted(nullifier)
}

// checkNullifier accepts only canonical field elements. The vote verifier
// reads public inputs mod r, so n and n+k*r would all match one proof while
// being distinct keys of the spent set.
func checkNullifier(nullifier []byte) error {
	if len(nullifier) != crypto.WordLen {
		return fmt.Errorf("%w: nullifier is %d bytes, expected %d", ErrInvalidInput, len(nullifier), crypto.WordLen)
	}
	if !crypto.IsFieldElement(nullifier) {
		return fmt.Errorf("%w: nullifier is not a canonical field element", ErrInvalidInput)
	}
	return nil
}

func (e *Election) hasVoted(nullifier []byte) (bool, error) {
	_, err := prefixeddb.NewPrefixedReader(e.db, nullifierPrefix).Get(nullifier)
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// BallotIndex returns the ledger index of the ballot cast with nullifier,
// so a voter can check that their ballot was recorded as cast.
func (e *Election) BallotIndex(nullifier []byte) (uint64, error) {
	if err := checkNullifier(nullifier); err != nil {
		return 0, err
	}
	v, err := prefixeddb.NewPrefixedReader(e.db, nullifierPrefix).Get(nullifier)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, ErrBallotNotFound
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// BallotCount returns the number of recorded ballots.
func (e *Election) BallotCount() (uint64, error) {
	return e.ballotCount()
}

func (e *Election) ballotCount() (uint64, error) {
	v, err := e.db.Get(keyBallotCount)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// Ballot returns the ballot at index.
func (e *Election) Ballot(index uint64) (*types.Ballot, error) {
	if b, ok := e.ballots.Get(index); ok {
		return &b, nil
	}
	data, err := prefixeddb.NewPrefixedReader(e.db, ballotPrefix).Get(uint64Bytes(index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: index %d", ErrBallotNotFound, index)
	}
	if err != nil {
		return nil, err
	}
	var b types.Ballot
	if err := storage.DecodeArtifact(data, &b); err != nil {
		return nil, fmt.Errorf("decode ballot %d: %w", index, err)
	}
	e.ballots.Add(index, b)
	return &b, nil
}

// Ballots returns the ballots in [from, to), clamped to the ledger size.
func (e *Election) Ballots(from, to uint64) ([]*types.Ballot, error) {
	count, err := e.ballotCount()
	if err != nil {
		return nil, err
	}
	to = min(to, count)
	if from >= to {
		return []*types.Ballot{}, nil
	}
	out := make([]*types.Ballot, 0, to-from)
	for i := from; i < to; i++ {
		b, err := e.Ballot(i)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func uint64Bytes(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}
