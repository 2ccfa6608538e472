package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-ballotbox/util"
)

// HexBytes is a []byte that encodes as a 0x-prefixed hexadecimal JSON string
// instead of base64.
type HexBytes []byte

// HexBytesFromString decodes a hex string, with or without the 0x prefix.
func HexBytesFromString(s string) (HexBytes, error) {
	b, err := hex.DecodeString(util.TrimHex(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", s, err)
	}
	return b, nil
}

// Bytes returns the underlying slice.
func (b HexBytes) Bytes() []byte {
	return b
}

// String returns the 0x-prefixed hexadecimal form.
func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// BigInt interprets the bytes as a big-endian unsigned integer.
func (b HexBytes) BigInt() *big.Int {
	return new(big.Int).SetBytes(b)
}

// LeftPad returns a copy of b padded with leading zeros up to n bytes.
func (b HexBytes) LeftPad(n int) HexBytes {
	if len(b) >= n {
		return bytes.Clone(b)
	}
	out := make(HexBytes, n)
	copy(out[n-len(b):], b)
	return out
}

// Equal reports whether b and other hold the same bytes.
func (b HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(b, other)
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0], enc[1], enc[2] = '"', '0', 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	dec, err := HexBytesFromString(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*b = dec
	return nil
}

// HexSlice encodes each element of a [][]byte as HexBytes.
func HexSlice(in [][]byte) []HexBytes {
	out := make([]HexBytes, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// ByteSlices is the inverse of HexSlice.
func ByteSlices(in []HexBytes) [][]byte {
	out := make([][]byte, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
