package util

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHelpers(t *testing.T) {
	c := qt.New(t)

	c.Assert(RandomBytes(12), qt.HasLen, 12)
	c.Assert(RandomHex(4), qt.HasLen, 8)
	c.Assert(TrimHex("0xabcd"), qt.Equals, "abcd")
	c.Assert(TrimHex("0Xab"), qt.Equals, "ab")
	c.Assert(TrimHex("ab"), qt.Equals, "ab")
	c.Assert(PadLeft([]byte{1}, 3), qt.DeepEquals, []byte{0, 0, 1})
	c.Assert(PadLeft([]byte{1, 2, 3}, 2), qt.DeepEquals, []byte{1, 2, 3})

	lo, hi := big.NewInt(10), big.NewInt(20)
	for range 50 {
		n := RandomBigInt(lo, hi)
		c.Assert(n.Cmp(lo) >= 0 && n.Cmp(hi) < 0, qt.IsTrue)
	}
}
