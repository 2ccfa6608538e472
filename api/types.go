package api

import (
	"github.com/vocdoni/zk-ballotbox/tally"
	"github.com/vocdoni/zk-ballotbox/types"
)

// CreateElectionRequest is the body of a new election. The election id is
// derived from the name when omitted. StrictPaths falls back to the server
// default when nil.
type CreateElectionRequest struct {
	ElectionID           *types.ElectionID `json:"electionId,omitempty"`
	Name                 string            `json:"name,omitempty"`
	TreeDepth            int               `json:"treeDepth"`
	Hash                 string            `json:"hash,omitempty"`
	TrusteePubKey        types.HexBytes    `json:"trusteePubKey"`
	RegistrationVerifier string            `json:"registrationVerifier"`
	VoteVerifier         string            `json:"voteVerifier"`
	StrictPaths          *bool             `json:"strictPaths,omitempty"`
}

// ElectionResponse is the election config along with its current state.
type ElectionResponse struct {
	types.ElectionConfig
	Root       types.HexBytes `json:"root"`
	Registered uint64         `json:"registered"`
	Capacity   uint64         `json:"capacity"`
	Ballots    uint64         `json:"ballots"`
}

// ElectionList holds the config of every known election.
type ElectionList struct {
	Elections []types.ElectionConfig `json:"elections"`
}

// RootResponse holds the current eligibility root of an election.
type RootResponse struct {
	Root       types.HexBytes `json:"root"`
	Registered uint64         `json:"registered"`
}

// PathResponse is the authentication path of a leaf slot. Registering at
// Index takes exactly these siblings and indices.
type PathResponse struct {
	Index       uint64           `json:"index"`
	Siblings    []types.HexBytes `json:"siblings"`
	PathIndices []int            `json:"pathIndices"`
}

// RegisterRequest inserts a commitment into the eligibility tree.
type RegisterRequest struct {
	Commitment  types.HexBytes   `json:"commitment"`
	Siblings    []types.HexBytes `json:"siblings"`
	PathIndices []int            `json:"pathIndices"`
	Proof       types.HexBytes   `json:"proof"`
}

// RegisterResponse reports where the commitment was stored and the roots
// before and after it.
type RegisterResponse struct {
	Index   uint64         `json:"index"`
	OldRoot types.HexBytes `json:"oldRoot"`
	NewRoot types.HexBytes `json:"newRoot"`
}

// VoteRequest casts an encrypted ballot.
type VoteRequest struct {
	C1        types.HexBytes `json:"c1"`
	C2        types.HexBytes `json:"c2"`
	Nullifier types.HexBytes `json:"nullifier"`
	Proof     types.HexBytes `json:"proof"`
}

// VoteResponse is the ledger position of an accepted ballot.
type VoteResponse struct {
	BallotIndex uint64 `json:"ballotIndex"`
}

// NullifierResponse tells whether a nullifier has been spent and, if so,
// which ballot spent it.
type NullifierResponse struct {
	Spent       bool    `json:"spent"`
	BallotIndex *uint64 `json:"ballotIndex,omitempty"`
}

// BallotsResponse is a page of the ballot ledger starting at From. Total is
// the ledger size when the page was read.
type BallotsResponse struct {
	From    uint64          `json:"from"`
	Total   uint64          `json:"total"`
	Ballots []*types.Ballot `json:"ballots"`
}

// ResultsRequest is a tally report signed by the election trustee.
type ResultsRequest = tally.SignedReport

// indicesToInts converts path indices to their JSON form. Byte slices would
// otherwise encode as base64.
func indicesToInts(indices []uint8) []int {
	out := make([]int, len(indices))
	for i, v := range indices {
		out[i] = int(v)
	}
	return out
}

// intsToIndices is the inverse of indicesToInts. ok is false when a value
// is not a bit.
func intsToIndices(in []int) (indices []uint8, ok bool) {
	indices = make([]uint8, len(in))
	for i, v := range in {
		if v != 0 && v != 1 {
			return nil, false
		}
		indices[i] = uint8(v)
	}
	return indices, true
}
