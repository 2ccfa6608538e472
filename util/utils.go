package util

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// RandomBytes returns n random bytes. It panics if the system source fails.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// Random32 returns a random 32-byte array.
func Random32() [32]byte {
	var out [32]byte
	copy(out[:], RandomBytes(32))
	return out
}

// RandomHex returns the hex encoding of n random bytes.
func RandomHex(n int) string {
	return hex.EncodeToString(RandomBytes(n))
}

// RandomBigInt returns a uniform random integer in [min, max).
func RandomBigInt(min, max *big.Int) *big.Int {
	n, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		panic(err)
	}
	return n.Add(n, min)
}

// TrimHex removes a leading 0x or 0X.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// PadLeft returns b left padded with zeros to n bytes. Longer inputs are
// returned unchanged.
func PadLeft(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
