// Package identity derives the values a voter publishes from a private
// secret: the leaf commitment inserted at registration and the per election
// nullifier revealed when voting.
//
//	commitment = Poseidon(secret)
//	nullifier  = Poseidon(secret, electionID mod q)
//
// The membership and vote circuits recompute both values from the secret as
// private input, so the ledger never learns which leaf cast which ballot.
package identity

import (
	"errors"
	"math/big"

	"github.com/vocdoni/zk-ballotbox/crypto"
	"github.com/vocdoni/zk-ballotbox/crypto/hash/poseidon"
	"github.com/vocdoni/zk-ballotbox/types"
	"github.com/vocdoni/zk-ballotbox/util"
)

// ErrZeroSecret is returned for a secret that reduces to zero, which would
// collide with the empty leaf of the tree.
var ErrZeroSecret = errors.New("identity secret reduces to zero")

// Identity is a voter secret, a BN254 scalar field element.
type Identity struct {
	secret *big.Int
}

// New returns an identity with a uniformly random secret.
func New() *Identity {
	for {
		id, err := FromSecret(util.RandomBytes(crypto.WordLen))
		if err == nil {
			return id
		}
	}
}

// FromSecret builds an identity from a stored secret, reduced into the field.
func FromSecret(secret []byte) (*Identity, error) {
	s := crypto.BytesToFF(secret)
	if s.Sign() == 0 {
		return nil, ErrZeroSecret
	}
	return &Identity{secret: s}, nil
}

// Secret returns the 32-byte secret. It must never leave the voter device.
func (i *Identity) Secret() []byte {
	return crypto.BigToWord(i.secret)
}

// Commitment returns the leaf registered in the eligibility tree.
func (i *Identity) Commitment() []byte {
	h, err := poseidon.Hash(i.secret)
	if err != nil {
		// a single reduced input never fails
		panic(err)
	}
	return crypto.BigToWord(h)
}

// Nullifier returns the value that marks this identity as having voted in
// the given election. It is stable per election and unlinkable across them.
func (i *Identity) Nullifier(electionID types.ElectionID) []byte {
	h, err := poseidon.Hash(i.secret, new(big.Int).SetBytes(electionID.Bytes()))
	if err != nil {
		panic(err)
	}
	return crypto.BigToWord(h)
}
