package hybrid

import (
	"crypto/ecdsa"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/zk-ballotbox/util"
)

// GenerateKey creates a new trustee key pair on secp256k1.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return priv, nil
}

// ParsePrivateKey decodes a hex encoded 32-byte private key, with or without
// the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	priv, err := ethcrypto.HexToECDSA(util.TrimHex(hexKey))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return priv, nil
}

// PrivateKeyBytes returns the 32-byte big-endian scalar of priv.
func PrivateKeyBytes(priv *ecdsa.PrivateKey) []byte {
	return ethcrypto.FromECDSA(priv)
}

// PublicKeyBytes returns the 33-byte compressed encoding of pub, the form
// stored in election configurations.
func PublicKeyBytes(pub *ecdsa.PublicKey) []byte {
	return ethcrypto.CompressPubkey(pub)
}

// ParsePublicKey decodes a compressed (33 bytes) or uncompressed (65 bytes)
// secp256k1 public key.
func ParsePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	var (
		pub *ecdsa.PublicKey
		err error
	)
	switch len(b) {
	case 33:
		pub, err = ethcrypto.DecompressPubkey(b)
	case 65:
		pub, err = ethcrypto.UnmarshalPubkey(b)
	default:
		return nil, fmt.Errorf("%w: length %d", ErrInvalidPublicKey, len(b))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pub, nil
}
