// Package testutil holds fixtures shared by the tests of several packages:
// deterministic trustee keys, ready to use election managers and voters
// able to register and vote.
package testutil

import (
	"crypto/ecdsa"
	"encoding/binary"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/vocdoni/zk-ballotbox/accumulator"
	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/db/metadb"
	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/identity"
	"github.com/vocdoni/zk-ballotbox/storage"
	"github.com/vocdoni/zk-ballotbox/types"
	"github.com/vocdoni/zk-ballotbox/verifier"
)

// DefaultDepth is the tree depth of test elections.
const DefaultDepth = 8

// DeterministicElectionID returns the election id number n.
func DeterministicElectionID(n uint64) types.ElectionID {
	return types.ElectionID(ethcrypto.Keccak256Hash(binary.BigEndian.AppendUint64([]byte("election"), n)))
}

// DeterministicTrusteeKey returns the trustee key number n.
func DeterministicTrusteeKey(n uint64) *ecdsa.PrivateKey {
	seed := ethcrypto.Keccak256(binary.BigEndian.AppendUint64([]byte("trustee"), n))
	key, err := ethcrypto.ToECDSA(seed)
	if err != nil {
		panic(err)
	}
	return key
}

// ElectionConfig returns a config accepting every proof, with id n and the
// public key of DeterministicTrusteeKey(n).
func ElectionConfig(n uint64) types.ElectionConfig {
	return types.ElectionConfig{
		ID:                   DeterministicElectionID(n),
		TreeDepth:            DefaultDepth,
		TrusteePubKey:        hybrid.PublicKeyBytes(&DeterministicTrusteeKey(n).PublicKey),
		RegistrationVerifier: verifier.RefAccept,
		VoteVerifier:         verifier.RefAccept,
		StrictPaths:          true,
		CreatedAt:            time.Unix(1760000000, 0).UTC(),
	}
}

// NewManager returns a manager over a fresh test database. The resolver
// has no key directory; register custom verifiers on it when needed.
func NewManager(tb testing.TB) (*election.Manager, *verifier.Resolver) {
	resolver := verifier.NewResolver(tb.TempDir())
	return election.NewManager(storage.New(metadb.NewTest(tb)), resolver), resolver
}

// NewElection creates the election number n on a fresh manager.
func NewElection(tb testing.TB, n uint64) *election.Election {
	m, _ := NewManager(tb)
	e, err := m.Create(ElectionConfig(n))
	if err != nil {
		tb.Fatal(err)
	}
	return e
}

// Voter is a registered or registrable identity.
type Voter struct {
	*identity.Identity
	Index uint64
}

// NewVoters returns n fresh voters.
func NewVoters(n int) []*Voter {
	voters := make([]*Voter, n)
	for i := range voters {
		voters[i] = &Voter{Identity: identity.New()}
	}
	return voters
}

// Register inserts the voter commitment at the next free slot of e.
func (v *Voter) Register(e *election.Election) (*accumulator.Insertion, error) {
	_, siblings, indices, err := e.NextPath()
	if err != nil {
		return nil, err
	}
	ins, err := e.Register(v.Commitment(), siblings, indices, nil)
	if err != nil {
		return nil, err
	}
	v.Index = ins.Index
	return ins, nil
}

// Vote encrypts choice for the election trustee and casts it.
func (v *Voter) Vote(e *election.Election, choice byte) (uint64, error) {
	cfg := e.Config()
	c1, c2, err := hybrid.Encrypt(choice, cfg.TrusteePubKey)
	if err != nil {
		return 0, err
	}
	return e.Vote(c1, c2, v.Nullifier(cfg.ID), nil)
}
