package tally

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/types"
)

// ErrInvalidSignature is returned when a signed report was not signed by
// the election trustee.
var ErrInvalidSignature = errors.New("report not signed by the election trustee")

// SignedReport is a tally report as submitted to the ballot box. The
// signature covers the exact report bytes, so it survives any re-encoding
// on the way.
type SignedReport struct {
	Report    json.RawMessage `json:"report"`
	Signature types.HexBytes  `json:"signature"`
}

// Sign encodes report and signs its keccak256 hash with the trustee key,
// the same key ballots are encrypted to.
func Sign(report *types.TallyReport, priv *ecdsa.PrivateKey) (*SignedReport, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	sig, err := ethcrypto.Sign(ethcrypto.Keccak256(data), priv)
	if err != nil {
		return nil, fmt.Errorf("sign report: %w", err)
	}
	return &SignedReport{Report: data, Signature: sig}, nil
}

// Open checks that the report was signed by the holder of trusteePub (a
// compressed secp256k1 key) and decodes it.
func (s *SignedReport) Open(trusteePub []byte) (*types.TallyReport, error) {
	signer, err := ethcrypto.SigToPub(ethcrypto.Keccak256(s.Report), s.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !bytes.Equal(hybrid.PublicKeyBytes(signer), trusteePub) {
		return nil, ErrInvalidSignature
	}
	report := &types.TallyReport{}
	if err := json.Unmarshal(s.Report, report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}
