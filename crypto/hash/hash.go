// Package hash selects the two-to-one hash used to build Merkle trees.
package hash

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/zk-ballotbox/crypto"
	"github.com/vocdoni/zk-ballotbox/crypto/hash/poseidon"
)

const (
	TypePoseidon  = "poseidon"
	TypeKeccak256 = "keccak256"
)

// Hasher compresses two 32-byte nodes into their 32-byte parent.
type Hasher interface {
	Type() string
	Hash(left, right []byte) ([]byte, error)
}

// New returns the hasher registered under typ. An empty typ selects Poseidon.
func New(typ string) (Hasher, error) {
	switch typ {
	case TypePoseidon, "":
		return Poseidon{}, nil
	case TypeKeccak256:
		return Keccak256{}, nil
	default:
		return nil, fmt.Errorf("unknown hash type %q", typ)
	}
}

// Poseidon is the BN254 Poseidon hash with two inputs, the one the
// membership circuits and the on-chain PoseidonT3 library use.
type Poseidon struct{}

func (Poseidon) Type() string { return TypePoseidon }

func (Poseidon) Hash(left, right []byte) ([]byte, error) {
	return poseidon.HashWords(left, right)
}

// Keccak256 hashes the concatenation of both nodes. It is not SNARK friendly
// and only suits ledgers whose proofs are checked outside a circuit.
type Keccak256 struct{}

func (Keccak256) Type() string { return TypeKeccak256 }

func (Keccak256) Hash(left, right []byte) ([]byte, error) {
	return ethcrypto.Keccak256(crypto.PadWord(left), crypto.PadWord(right)), nil
}
