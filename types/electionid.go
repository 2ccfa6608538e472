package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/zk-ballotbox/util"
)

// ElectionIDLen is the size in bytes of an election identifier.
const ElectionIDLen = common.HashLength

// ElectionID identifies an election instance. It is also a public input of
// the vote proof, so nullifiers are bound to it.
type ElectionID common.Hash

// NewElectionID derives an election id from a free-form name, so that
// operators can refer to elections by something readable.
func NewElectionID(name string) ElectionID {
	return ElectionID(crypto.Keccak256Hash([]byte(name)))
}

// RandomElectionID returns a random election id.
func RandomElectionID() ElectionID {
	return ElectionID(util.Random32())
}

// ElectionIDFromString parses a 0x-prefixed (or bare) 32-byte hex string.
func ElectionIDFromString(s string) (ElectionID, error) {
	b, err := HexBytesFromString(s)
	if err != nil {
		return ElectionID{}, err
	}
	if len(b) != ElectionIDLen {
		return ElectionID{}, fmt.Errorf("invalid election id length %d, expected %d", len(b), ElectionIDLen)
	}
	return ElectionID(common.BytesToHash(b)), nil
}

func (id ElectionID) Bytes() []byte {
	return id[:]
}

func (id ElectionID) String() string {
	return common.Hash(id).Hex()
}

func (id ElectionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ElectionID) UnmarshalText(text []byte) error {
	parsed, err := ElectionIDFromString(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
