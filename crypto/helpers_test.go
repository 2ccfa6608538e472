package crypto

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestFieldHelpers(t *testing.T) {
	c := qt.New(t)
	q := ScalarField()

	c.Assert(BigToFF(q, big.NewInt(5)).Int64(), qt.Equals, int64(5))
	c.Assert(BigToFF(q, q).Sign(), qt.Equals, 0)
	c.Assert(BigToFF(q, new(big.Int).Add(q, big.NewInt(3))).Int64(), qt.Equals, int64(3))
	c.Assert(BigToFF(q, big.NewInt(-1)).Cmp(new(big.Int).Sub(q, big.NewInt(1))), qt.Equals, 0)

	c.Assert(PadWord([]byte{1}), qt.HasLen, WordLen)
	c.Assert(PadWord(make([]byte, 40)), qt.HasLen, WordLen)
	c.Assert(BigToWord(big.NewInt(258))[30:], qt.DeepEquals, []byte{1, 2})

	c.Assert(IsFieldElement(BigToWord(big.NewInt(1))), qt.IsTrue)
	c.Assert(IsFieldElement(BigToWord(q)), qt.IsFalse)
	c.Assert(IsFieldElement([]byte{1}), qt.IsFalse)
	c.Assert(BytesToFF(BigToWord(q)).Sign(), qt.Equals, 0)
}
