package election

import (
	"errors"

	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
)

// Errors returned by the gated operations. Every rejected call leaves the
// election untouched. Callers match them with errors.Is.
var (
	// ErrInvalidMembershipProof is returned when the registration proof is
	// rejected or the sibling path is malformed.
	ErrInvalidMembershipProof = errors.New("invalid membership proof")
	// ErrInvalidInsertionPosition is returned when the path indices do not
	// designate the next free slot of the eligibility tree.
	ErrInvalidInsertionPosition = errors.New("invalid insertion position")
	// ErrDuplicateCommitment is returned when the leaf is already
	// registered. The first registration wins.
	ErrDuplicateCommitment = errors.New("commitment already registered")
	ErrDoubleVote          = errors.New("nullifier already spent")
	ErrInvalidVoteProof    = errors.New("invalid vote proof")
	ErrMalformedCiphertext = hybrid.ErrMalformedCiphertext
	ErrInvalidInput        = errors.New("invalid input")

	ErrBallotNotFound   = errors.New("ballot not found")
	ErrElectionNotFound = errors.New("election not found")
	ErrElectionExists   = errors.New("election already exists")
	ErrInvalidConfig    = errors.New("invalid election config")
)
