// Package hybrid implements the ballot cipher: an ephemeral secp256k1 ECDH
// agreement with the trustee key followed by AES-256-GCM over the one byte
// vote.
//
// A ballot is the pair (c1, c2) where c1 is the 33-byte compressed ephemeral
// public key and c2 is nonce(12) || tag(16) || ciphertext(1). The symmetric
// key is, by default, the x coordinate of the shared point (bytes 1..33 of its
// compressed form) without any further derivation, which is what existing
// voter clients produce. KDFHKDFSHA256 derives the key with HKDF instead, at
// the cost of not being readable by those clients.
package hybrid

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/zk-ballotbox/util"
	"golang.org/x/crypto/hkdf"
)

const (
	C1Len    = 33
	C2Len    = NonceLen + TagLen + 1
	NonceLen = 12
	TagLen   = 16
	KeyLen   = 32
)

var (
	// ErrMalformedCiphertext is returned when c1 is not a valid compressed
	// point or c2 does not have the expected length.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	// ErrAuthFailure is returned when the GCM tag does not verify, which
	// happens for tampered ballots and for ballots sealed to another key.
	ErrAuthFailure = errors.New("ciphertext authentication failed")
	// ErrUnexpectedVoteValue is returned when an authentic ballot does not
	// decrypt to 0 or 1.
	ErrUnexpectedVoteValue = errors.New("unexpected vote value")
	// ErrInvalidVote is returned when encrypting a value other than 0 or 1.
	ErrInvalidVote = errors.New("vote must be 0 or 1")
	// ErrInvalidPublicKey is returned for undecodable trustee keys.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// KDF selects how the AES key is obtained from the ECDH shared point.
type KDF uint8

const (
	// KDFRawX uses the 32-byte x coordinate of the shared point as key.
	KDFRawX KDF = iota
	// KDFHKDFSHA256 feeds the compressed shared point to HKDF-SHA256.
	KDFHKDFSHA256
)

var hkdfInfo = []byte("zk-ballotbox/hybrid/v1")

func (k KDF) String() string {
	switch k {
	case KDFRawX:
		return "raw-x"
	case KDFHKDFSHA256:
		return "hkdf-sha256"
	default:
		return fmt.Sprintf("kdf(%d)", uint8(k))
	}
}

// ParseKDF is the inverse of KDF.String.
func ParseKDF(s string) (KDF, error) {
	switch s {
	case "", "raw-x":
		return KDFRawX, nil
	case "hkdf-sha256":
		return KDFHKDFSHA256, nil
	}
	return 0, fmt.Errorf("unknown kdf %q", s)
}

// Cipher encrypts and decrypts ballots with a fixed key derivation.
type Cipher struct {
	KDF KDF
}

// Default is the wire compatible cipher used by the package level functions.
var Default = Cipher{KDF: KDFRawX}

// Encrypt seals vote to the trustee with the Default cipher.
func Encrypt(vote byte, trusteePub []byte) (c1, c2 []byte, err error) {
	return Default.Encrypt(vote, trusteePub)
}

// Decrypt opens a ballot with the Default cipher.
func Decrypt(c1, c2 []byte, priv *ecdsa.PrivateKey) (byte, error) {
	return Default.Decrypt(c1, c2, priv)
}

// Encrypt seals vote (0 or 1) to the trustee public key with a fresh
// ephemeral key and nonce.
func (c Cipher) Encrypt(vote byte, trusteePub []byte) (c1, c2 []byte, err error) {
	ephemeral, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.EncryptWith(vote, trusteePub, ephemeral, nonce)
}

// EncryptWith is Encrypt with caller provided randomness. Reusing an
// ephemeral key or nonce across ballots breaks confidentiality; it exists
// for reproducible test vectors.
func (c Cipher) EncryptWith(vote byte, trusteePub []byte, ephemeral *ecdsa.PrivateKey, nonce []byte) (c1, c2 []byte, err error) {
	if vote > 1 {
		return nil, nil, ErrInvalidVote
	}
	return c.seal(vote, trusteePub, ephemeral, nonce)
}

func (c Cipher) seal(plaintext byte, trusteePub []byte, ephemeral *ecdsa.PrivateKey, nonce []byte) (c1, c2 []byte, err error) {
	if len(nonce) != NonceLen {
		return nil, nil, fmt.Errorf("nonce must be %d bytes, got %d", NonceLen, len(nonce))
	}
	pub, err := ParsePublicKey(trusteePub)
	if err != nil {
		return nil, nil, err
	}
	aead, err := c.aead(ephemeral, pub)
	if err != nil {
		return nil, nil, err
	}
	// Seal returns ciphertext || tag, the wire order is tag || ciphertext
	sealed := aead.Seal(nil, nonce, []byte{plaintext}, nil)
	ct, tag := sealed[:1], sealed[1:]

	c2 = make([]byte, 0, C2Len)
	c2 = append(c2, nonce...)
	c2 = append(c2, tag...)
	c2 = append(c2, ct...)
	return ethcrypto.CompressPubkey(&ephemeral.PublicKey), c2, nil
}

// Decrypt recovers the vote of a ballot using the trustee private key.
func (c Cipher) Decrypt(c1, c2 []byte, priv *ecdsa.PrivateKey) (byte, error) {
	ephemeral, err := parseBallot(c1, c2)
	if err != nil {
		return 0, err
	}
	aead, err := c.aead(priv, ephemeral)
	if err != nil {
		return 0, err
	}
	nonce := c2[:NonceLen]
	tag := c2[NonceLen : NonceLen+TagLen]
	ct := c2[NonceLen+TagLen:]

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return 0, ErrAuthFailure
	}
	if len(plaintext) != 1 || plaintext[0] > 1 {
		return 0, fmt.Errorf("%w: %x", ErrUnexpectedVoteValue, plaintext)
	}
	return plaintext[0], nil
}

// ValidateBallot checks the ballot format without decrypting it: c1 must be
// a valid compressed secp256k1 point and c2 exactly C2Len bytes.
func ValidateBallot(c1, c2 []byte) error {
	_, err := parseBallot(c1, c2)
	return err
}

func parseBallot(c1, c2 []byte) (*ecdsa.PublicKey, error) {
	if len(c1) != C1Len {
		return nil, fmt.Errorf("%w: c1 is %d bytes, expected %d", ErrMalformedCiphertext, len(c1), C1Len)
	}
	if len(c2) != C2Len {
		return nil, fmt.Errorf("%w: c2 is %d bytes, expected %d", ErrMalformedCiphertext, len(c2), C2Len)
	}
	pub, err := ethcrypto.DecompressPubkey(c1)
	if err != nil {
		return nil, fmt.Errorf("%w: c1: %v", ErrMalformedCiphertext, err)
	}
	return pub, nil
}

func (c Cipher) aead(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) (cipher.AEAD, error) {
	key, err := c.sharedKey(priv, pub)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// sharedKey computes the ECDH point priv*pub and derives the AES key from it.
func (c Cipher) sharedKey(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) ([]byte, error) {
	curve := ethcrypto.S256()
	x, y := curve.ScalarMult(pub.X, pub.Y, util.PadLeft(priv.D.Bytes(), 32))
	if x.Sign() == 0 && y.Sign() == 0 {
		return nil, ErrInvalidPublicKey
	}
	shared := ethcrypto.CompressPubkey(&ecdsa.PublicKey{Curve: curve, X: x, Y: y})
	switch c.KDF {
	case KDFRawX:
		return shared[1:], nil
	case KDFHKDFSHA256:
		key := make([]byte, KeyLen)
		if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, hkdfInfo), key); err != nil {
			return nil, err
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unknown kdf %s", c.KDF)
	}
}
