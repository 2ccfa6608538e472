// Package poseidon wraps the iden3 Poseidon hash over the BN254 scalar field,
// the hash used by the eligibility tree and the identity commitments.
package poseidon

import (
	"errors"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/zk-ballotbox/crypto"
)

// maxInputs is the widest Poseidon instance provided by iden3.
const maxInputs = 16

// ErrNoInputs is returned when hashing an empty input list.
var ErrNoInputs = errors.New("no inputs provided")

// Hash returns the Poseidon hash of up to 16 field elements. Inputs outside
// the field are reduced first, as the circuits do with their signals.
func Hash(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	q := crypto.ScalarField()
	reduced := make([]*big.Int, len(inputs))
	for i, in := range inputs {
		reduced[i] = crypto.BigToFF(q, in)
	}
	if len(reduced) > maxInputs {
		return MultiPoseidon(reduced...)
	}
	return poseidon.Hash(reduced)
}

// HashWords hashes 32-byte big-endian words and returns the result as a word.
func HashWords(words ...[]byte) ([]byte, error) {
	inputs := make([]*big.Int, len(words))
	for i, w := range words {
		inputs[i] = new(big.Int).SetBytes(w)
	}
	h, err := Hash(inputs...)
	if err != nil {
		return nil, err
	}
	return crypto.BigToWord(h), nil
}

// MultiPoseidon hashes any number of inputs by hashing chunks of 16 and then
// hashing the chunk digests, recursively.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	if len(inputs) <= maxInputs {
		return poseidon.Hash(inputs)
	}
	digests := make([]*big.Int, 0, (len(inputs)+maxInputs-1)/maxInputs)
	for i := 0; i < len(inputs); i += maxInputs {
		h, err := poseidon.Hash(inputs[i:min(i+maxInputs, len(inputs))])
		if err != nil {
			return nil, err
		}
		digests = append(digests, h)
	}
	return MultiPoseidon(digests...)
}
