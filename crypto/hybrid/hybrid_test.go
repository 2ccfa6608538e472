package hybrid

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"encoding/hex"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
)

func TestRoundTrip(t *testing.T) {
	c := qt.New(t)
	trustee, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	pub := PublicKeyBytes(&trustee.PublicKey)
	c.Assert(pub, qt.HasLen, 33)

	for _, kdf := range []KDF{KDFRawX, KDFHKDFSHA256} {
		ciph := Cipher{KDF: kdf}
		for _, vote := range []byte{0, 1} {
			c1, c2, err := ciph.Encrypt(vote, pub)
			c.Assert(err, qt.IsNil)
			c.Assert(c1, qt.HasLen, C1Len)
			c.Assert(c2, qt.HasLen, C2Len)

			got, err := ciph.Decrypt(c1, c2, trustee)
			c.Assert(err, qt.IsNil, qt.Commentf("kdf %s", kdf))
			c.Assert(got, qt.Equals, vote)
		}
	}

	// fresh randomness per ballot
	a1, a2, err := Encrypt(1, pub)
	c.Assert(err, qt.IsNil)
	b1, b2, err := Encrypt(1, pub)
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.Equal(a1, b1), qt.IsFalse)
	c.Assert(bytes.Equal(a2[:NonceLen], b2[:NonceLen]), qt.IsFalse)
}

// TestWireLayout rebuilds a ballot by hand from the ECDH x coordinate to pin
// the c2 layout nonce || tag || ciphertext.
func TestWireLayout(t *testing.T) {
	c := qt.New(t)
	trustee, err := ParsePrivateKey("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	c.Assert(err, qt.IsNil)
	ephemeral, err := ParsePrivateKey("8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f")
	c.Assert(err, qt.IsNil)
	nonce := bytes.Repeat([]byte{0x42}, NonceLen)

	c1, c2, err := Default.EncryptWith(1, PublicKeyBytes(&trustee.PublicKey), ephemeral, nonce)
	c.Assert(err, qt.IsNil)
	c.Assert(c1, qt.DeepEquals, ethcrypto.CompressPubkey(&ephemeral.PublicKey))
	c.Assert(c2[:NonceLen], qt.DeepEquals, nonce)

	// the trustee side of the agreement gives the same x coordinate
	x, y := ethcrypto.S256().ScalarMult(ephemeral.PublicKey.X, ephemeral.PublicKey.Y, trustee.D.Bytes())
	shared := ethcrypto.CompressPubkey(&ecdsa.PublicKey{Curve: ethcrypto.S256(), X: x, Y: y})
	block, err := aes.NewCipher(shared[1:])
	c.Assert(err, qt.IsNil)
	gcm, err := cipher.NewGCM(block)
	c.Assert(err, qt.IsNil)
	sealed := gcm.Seal(nil, nonce, []byte{1}, nil)
	c.Assert(c2[NonceLen:NonceLen+TagLen], qt.DeepEquals, sealed[1:])
	c.Assert(c2[NonceLen+TagLen:], qt.DeepEquals, sealed[:1])

	// deterministic inputs give a deterministic ballot
	d1, d2, err := Default.EncryptWith(1, PublicKeyBytes(&trustee.PublicKey), ephemeral, nonce)
	c.Assert(err, qt.IsNil)
	c.Assert(d1, qt.DeepEquals, c1)
	c.Assert(d2, qt.DeepEquals, c2)
}

func TestTamperDetection(t *testing.T) {
	c := qt.New(t)
	trustee, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	c1, c2, err := Encrypt(0, PublicKeyBytes(&trustee.PublicKey))
	c.Assert(err, qt.IsNil)

	for i := range c2 {
		for _, bit := range []byte{0x01, 0x80} {
			tampered := bytes.Clone(c2)
			tampered[i] ^= bit
			_, err := Decrypt(c1, tampered, trustee)
			c.Assert(err, qt.ErrorIs, ErrAuthFailure, qt.Commentf("byte %d bit %x", i, bit))
		}
	}

	// a different valid ephemeral point yields a different key
	other, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	_, err = Decrypt(PublicKeyBytes(&other.PublicKey), c2, trustee)
	c.Assert(err, qt.ErrorIs, ErrAuthFailure)

	// a ballot sealed to another trustee does not open
	_, err = Decrypt(c1, c2, other)
	c.Assert(err, qt.ErrorIs, ErrAuthFailure)

	// keys derived with another kdf do not open either
	_, err = Cipher{KDF: KDFHKDFSHA256}.Decrypt(c1, c2, trustee)
	c.Assert(err, qt.ErrorIs, ErrAuthFailure)
}

func TestMalformed(t *testing.T) {
	c := qt.New(t)
	trustee, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	c1, c2, err := Encrypt(1, PublicKeyBytes(&trustee.PublicKey))
	c.Assert(err, qt.IsNil)

	_, err = Decrypt(c1[:32], c2, trustee)
	c.Assert(err, qt.ErrorIs, ErrMalformedCiphertext)
	_, err = Decrypt(c1, append(bytes.Clone(c2), 0), trustee)
	c.Assert(err, qt.ErrorIs, ErrMalformedCiphertext)
	_, err = Decrypt(c1, c2[:28], trustee)
	c.Assert(err, qt.ErrorIs, ErrMalformedCiphertext)

	// 0x05 is not a valid compressed point prefix
	bad := bytes.Clone(c1)
	bad[0] = 0x05
	c.Assert(ValidateBallot(bad, c2), qt.ErrorIs, ErrMalformedCiphertext)
	c.Assert(ValidateBallot(c1, c2), qt.IsNil)
}

func TestUnexpectedVoteValue(t *testing.T) {
	c := qt.New(t)
	trustee, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	pub := PublicKeyBytes(&trustee.PublicKey)
	ephemeral, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	nonce := make([]byte, NonceLen)

	_, _, err = Default.EncryptWith(2, pub, ephemeral, nonce)
	c.Assert(err, qt.ErrorIs, ErrInvalidVote)

	c1, c2, err := Default.seal(2, pub, ephemeral, nonce)
	c.Assert(err, qt.IsNil)
	_, err = Decrypt(c1, c2, trustee)
	c.Assert(err, qt.ErrorIs, ErrUnexpectedVoteValue)
}

func TestKeys(t *testing.T) {
	c := qt.New(t)
	priv, err := GenerateKey()
	c.Assert(err, qt.IsNil)

	back, err := ParsePrivateKey("0x" + hex.EncodeToString(PrivateKeyBytes(priv)))
	c.Assert(err, qt.IsNil)
	c.Assert(back.D.Cmp(priv.D), qt.Equals, 0)

	compressed, err := ParsePublicKey(PublicKeyBytes(&priv.PublicKey))
	c.Assert(err, qt.IsNil)
	c.Assert(compressed.X.Cmp(priv.X), qt.Equals, 0)
	uncompressed, err := ParsePublicKey(ethcrypto.FromECDSAPub(&priv.PublicKey))
	c.Assert(err, qt.IsNil)
	c.Assert(uncompressed.Y.Cmp(priv.Y), qt.Equals, 0)

	_, err = ParsePublicKey(make([]byte, 20))
	c.Assert(err, qt.ErrorIs, ErrInvalidPublicKey)
	_, err = ParsePublicKey(append([]byte{0x07}, make([]byte, 32)...))
	c.Assert(err, qt.ErrorIs, ErrInvalidPublicKey)
	_, _, err = Encrypt(1, make([]byte, 33))
	c.Assert(err, qt.ErrorIs, ErrInvalidPublicKey)
	_, err = ParsePrivateKey("zz")
	c.Assert(err, qt.ErrorMatches, "invalid private key.*")
}

func TestParseKDF(t *testing.T) {
	c := qt.New(t)
	for _, k := range []KDF{KDFRawX, KDFHKDFSHA256} {
		parsed, err := ParseKDF(k.String())
		c.Assert(err, qt.IsNil)
		c.Assert(parsed, qt.Equals, k)
	}
	_, err := ParseKDF("scrypt")
	c.Assert(err, qt.ErrorMatches, `unknown kdf "scrypt"`)
}
