package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ElectionConfig holds the immutable parameters of an election. It is fixed
// when the election is created and never changes afterwards.
type ElectionConfig struct {
	ID                   ElectionID `json:"electionId" cbor:"0,keyasint,omitempty"`
	Name                 string     `json:"name,omitempty" cbor:"1,keyasint,omitempty"`
	TreeDepth            int        `json:"treeDepth" cbor:"2,keyasint,omitempty"`
	Hash                 string     `json:"hash" cbor:"3,keyasint,omitempty"`
	TrusteePubKey        HexBytes   `json:"trusteePubKey" cbor:"4,keyasint,omitempty"`
	RegistrationVerifier string     `json:"registrationVerifier" cbor:"5,keyasint,omitempty"`
	VoteVerifier         string     `json:"voteVerifier" cbor:"6,keyasint,omitempty"`
	StrictPaths          bool       `json:"strictPaths" cbor:"7,keyasint,omitempty"`
	CreatedAt            time.Time  `json:"createdAt" cbor:"8,keyasint,omitempty"`
}

// Ballot is an encrypted vote as recorded in the ledger. Its position in the
// ledger is its identifier.
type Ballot struct {
	C1 HexBytes `json:"c1" cbor:"0,keyasint"`
	C2 HexBytes `json:"c2" cbor:"1,keyasint"`
}

// Tally is the result of decrypting every ballot of an election.
type Tally struct {
	Count0 uint64 `json:"count0" cbor:"0,keyasint"`
	Count1 uint64 `json:"count1" cbor:"1,keyasint"`
	Failed uint64 `json:"failed" cbor:"2,keyasint"`
	Total  uint64 `json:"total" cbor:"3,keyasint"`
}

// Winner returns the option with most votes. ok is false on a tie.
func (t Tally) Winner() (winner uint64, ok bool) {
	switch {
	case t.Count1 > t.Count0:
		return 1, true
	case t.Count0 > t.Count1:
		return 0, true
	}
	return 0, false
}

// BallotFailure records why a ballot could not be counted.
type BallotFailure struct {
	Index  uint64 `json:"index" cbor:"0,keyasint"`
	Reason string `json:"reason" cbor:"1,keyasint"`
}

// TallyReport is the outcome of a tally run as published by a trustee.
type TallyReport struct {
	RunID      string          `json:"runId" cbor:"0,keyasint"`
	ElectionID ElectionID      `json:"electionId" cbor:"1,keyasint"`
	Tally      Tally           `json:"tally" cbor:"2,keyasint"`
	Failures   []BallotFailure `json:"failures,omitempty" cbor:"3,keyasint,omitempty"`
	// Votes holds the decrypted value of each ballot by index, -1 when the
	// ballot failed.
	Votes     []int         `json:"votes" cbor:"4,keyasint"`
	StartedAt time.Time     `json:"startedAt" cbor:"5,keyasint"`
	Duration  time.Duration `json:"duration" cbor:"6,keyasint"`
}

// Check recounts Votes and verifies that the tally and the failure list
// agree with it. Votes entries must be 0, 1 or -1 for a failed ballot.
func (r *TallyReport) Check() error {
	var recount Tally
	for i, v := range r.Votes {
		switch v {
		case 0:
			recount.Count0++
		case 1:
			recount.Count1++
		case -1:
			recount.Failed++
		default:
			return fmt.Errorf("vote %d has value %d", i, v)
		}
		recount.Total++
	}
	if recount != r.Tally {
		return fmt.Errorf("tally %+v does not match the votes, recounted %+v", r.Tally, recount)
	}
	if uint64(len(r.Failures)) != recount.Failed {
		return fmt.Errorf("%d failures listed, %d failed votes", len(r.Failures), recount.Failed)
	}
	seen := make(map[uint64]bool, len(r.Failures))
	for _, f := range r.Failures {
		if f.Index >= uint64(len(r.Votes)) || r.Votes[f.Index] != -1 || seen[f.Index] {
			return fmt.Errorf("failure at index %d is not a failed vote", f.Index)
		}
		seen[f.Index] = true
	}
	return nil
}

// CircuitInput returns the JSON input of the winner circuit: the counted
// votes in ledger order. Failed ballots are left out.
func (r *TallyReport) CircuitInput() ([]byte, error) {
	votes := make([]int, 0, len(r.Votes))
	for _, v := range r.Votes {
		if v >= 0 {
			votes = append(votes, v)
		}
	}
	return json.Marshal(struct {
		Votes []int `json:"votes"`
	}{votes})
}
