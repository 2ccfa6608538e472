package election

import (
	"fmt"

	"github.com/vocdoni/zk-ballotbox/accumulator"
	"github.com/vocdoni/zk-ballotbox/crypto/hash"
	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/types"
)

// ValidateConfig checks the static parameters of an election. Verifier
// references are checked when they are resolved.
func ValidateConfig(cfg *types.ElectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if cfg.ID == (types.ElectionID{}) {
		return fmt.Errorf("%w: empty election id", ErrInvalidConfig)
	}
	if cfg.TreeDepth < 1 || cfg.TreeDepth > accumulator.MaxDepth {
		return fmt.Errorf("%w: tree depth %d out of 1..%d", ErrInvalidConfig, cfg.TreeDepth, accumulator.MaxDepth)
	}
	if _, err := hash.New(cfg.Hash); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if len(cfg.TrusteePubKey) != hybrid.C1Len {
		return fmt.Errorf("%w: trustee key must be a %d-byte compressed point", ErrInvalidConfig, hybrid.C1Len)
	}
	if _, err := hybrid.ParsePublicKey(cfg.TrusteePubKey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.RegistrationVerifier == "" || cfg.VoteVerifier == "" {
		return fmt.Errorf("%w: missing verifier reference", ErrInvalidConfig)
	}
	return nil
}
