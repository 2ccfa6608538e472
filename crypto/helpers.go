// Package crypto holds the field helpers shared by the hashing and identity
// code. Every value that enters a proof is a BN254 scalar field element
// serialised as a 32-byte big-endian word.
package crypto

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// WordLen is the size of a serialised field element.
const WordLen = 32

// ScalarField returns the BN254 scalar field modulus.
func ScalarField() *big.Int {
	return fr.Modulus()
}

// BigToFF reduces v modulo field. Values already in range are returned as is.
func BigToFF(field, v *big.Int) *big.Int {
	if v.Sign() >= 0 && v.Cmp(field) < 0 {
		return v
	}
	return new(big.Int).Mod(v, field)
}

// BytesToFF interprets b as a big-endian integer and reduces it into the
// BN254 scalar field.
func BytesToFF(b []byte) *big.Int {
	return BigToFF(ScalarField(), new(big.Int).SetBytes(b))
}

// PadWord left pads b with zeros to WordLen bytes, keeping only the last
// WordLen bytes of longer inputs.
func PadWord(b []byte) []byte {
	if len(b) > WordLen {
		return b[len(b)-WordLen:]
	}
	out := make([]byte, WordLen)
	copy(out[WordLen-len(b):], b)
	return out
}

// BigToWord serialises v as a 32-byte big-endian word.
func BigToWord(v *big.Int) []byte {
	return PadWord(v.Bytes())
}

// IsFieldElement reports whether the 32-byte word b encodes a canonical
// (reduced) field element.
func IsFieldElement(b []byte) bool {
	return len(b) == WordLen && new(big.Int).SetBytes(b).Cmp(ScalarField()) < 0
}
