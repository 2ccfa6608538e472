package poseidon

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/zk-ballotbox/crypto"
)

func TestHash(t *testing.T) {
	c := qt.New(t)

	// reference value of Poseidon(1, 2) for the circomlib parameters
	h, err := Hash(big.NewInt(1), big.NewInt(2))
	c.Assert(err, qt.IsNil)
	c.Assert(h.String(), qt.Equals, "7853200120776062878684798364095072458815029376092732009249414926327459813530")

	// out of field inputs are reduced
	q := crypto.ScalarField()
	h2, err := Hash(new(big.Int).Add(q, big.NewInt(1)), big.NewInt(2))
	c.Assert(err, qt.IsNil)
	c.Assert(h2.Cmp(h), qt.Equals, 0)

	w, err := HashWords(crypto.BigToWord(big.NewInt(1)), crypto.BigToWord(big.NewInt(2)))
	c.Assert(err, qt.IsNil)
	c.Assert(new(big.Int).SetBytes(w).Cmp(h), qt.Equals, 0)
	c.Assert(w, qt.HasLen, 32)

	_, err = Hash()
	c.Assert(err, qt.ErrorIs, ErrNoInputs)
}

func TestMultiPoseidon(t *testing.T) {
	c := qt.New(t)

	inputs := make([]*big.Int, 40)
	for i := range inputs {
		inputs[i] = big.NewInt(int64(i + 1))
	}
	got, err := MultiPoseidon(inputs...)
	c.Assert(err, qt.IsNil)

	var digests []*big.Int
	for i := 0; i < 40; i += 16 {
		d, err := poseidon.Hash(inputs[i:min(i+16, 40)])
		c.Assert(err, qt.IsNil)
		digests = append(digests, d)
	}
	want, err := poseidon.Hash(digests)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Cmp(want), qt.Equals, 0)

	small, err := MultiPoseidon(inputs[:3]...)
	c.Assert(err, qt.IsNil)
	direct, err := poseidon.Hash(inputs[:3])
	c.Assert(err, qt.IsNil)
	c.Assert(small.Cmp(direct), qt.Equals, 0)
}
