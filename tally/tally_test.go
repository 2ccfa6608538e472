package tally_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/internal/testutil"
	"github.com/vocdoni/zk-ballotbox/tally"
	"github.com/vocdoni/zk-ballotbox/types"
	"github.com/vocdoni/zk-ballotbox/verifier"
)

// sliceSource serves a fixed ledger.
type sliceSource struct {
	id      types.ElectionID
	ballots []*types.Ballot
	err     error
}

func (s *sliceSource) ID() types.ElectionID { return s.id }

func (s *sliceSource) BallotCount() (uint64, error) {
	return uint64(len(s.ballots)), nil
}

func (s *sliceSource) Ballots(from, to uint64) ([]*types.Ballot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ballots[from:to], nil
}

func TestFiveVoterElection(t *testing.T) {
	c := qt.New(t)
	e := testutil.NewElection(t, 1)
	trustee := testutil.DeterministicTrusteeKey(1)

	choices := []byte{1, 0, 1, 1, 0}
	for i, v := range testutil.NewVoters(len(choices)) {
		_, err := v.Register(e)
		c.Assert(err, qt.IsNil)
		_, err = v.Vote(e, choices[i])
		c.Assert(err, qt.IsNil)
	}

	report, err := tally.Run(context.Background(), e, trustee, tally.Options{Workers: 2, BatchSize: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(report.Tally, qt.Equals, types.Tally{Count0: 2, Count1: 3, Failed: 0, Total: 5})
	c.Assert(report.Votes, qt.DeepEquals, []int{1, 0, 1, 1, 0})
	c.Assert(report.Failures, qt.HasLen, 0)
	c.Assert(report.ElectionID, qt.Equals, e.ID())
	c.Assert(report.RunID, qt.Not(qt.Equals), "")

	winner, ok := report.Tally.Winner()
	c.Assert(ok, qt.IsTrue)
	c.Assert(winner, qt.Equals, uint64(1))
	c.Assert(verifier.WinnerInputs(winner)[0].Uint64(), qt.Equals, uint64(1))

	input, err := report.CircuitInput()
	c.Assert(err, qt.IsNil)
	var decoded struct {
		Votes []int `json:"votes"`
	}
	c.Assert(json.Unmarshal(input, &decoded), qt.IsNil)
	c.Assert(decoded.Votes, qt.DeepEquals, []int{1, 0, 1, 1, 0})
}

func TestFailuresAreAttributed(t *testing.T) {
	c := qt.New(t)
	trustee := testutil.DeterministicTrusteeKey(2)
	other := testutil.DeterministicTrusteeKey(3)
	pub := hybrid.PublicKeyBytes(&trustee.PublicKey)
	otherPub := hybrid.PublicKeyBytes(&other.PublicKey)

	seal := func(vote byte, key []byte) *types.Ballot {
		c1, c2, err := hybrid.Encrypt(vote, key)
		c.Assert(err, qt.IsNil)
		return &types.Ballot{C1: c1, C2: c2}
	}
	tampered := seal(1, pub)
	tampered.C2[hybrid.C2Len-1] ^= 0x01
	badTag := seal(0, pub)
	badTag.C2[hybrid.NonceLen] ^= 0x80

	src := &sliceSource{
		id: testutil.DeterministicElectionID(2),
		ballots: []*types.Ballot{
			seal(1, pub),
			tampered,
			seal(0, pub),
			seal(1, otherPub),
			badTag,
			seal(0, pub),
		},
	}
	report, err := tally.Run(context.Background(), src, trustee, tally.Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(report.Tally, qt.Equals, types.Tally{Count0: 2, Count1: 1, Failed: 3, Total: 6})
	c.Assert(report.Votes, qt.DeepEquals, []int{1, -1, 0, -1, -1, 0})
	c.Assert(report.Failures, qt.HasLen, 3)
	for i, idx := range []uint64{1, 3, 4} {
		c.Assert(report.Failures[i].Index, qt.Equals, idx)
		c.Assert(report.Failures[i].Reason, qt.Contains, hybrid.ErrAuthFailure.Error())
	}

	_, ok := report.Tally.Winner()
	c.Assert(ok, qt.IsFalse)
	input, err := report.CircuitInput()
	c.Assert(err, qt.IsNil)
	c.Assert(string(input), qt.Equals, `{"votes":[1,0,0]}`)
}

func TestEmptyAndAborted(t *testing.T) {
	c := qt.New(t)
	trustee := testutil.DeterministicTrusteeKey(4)

	report, err := tally.Run(context.Background(), &sliceSource{}, trustee, tally.Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(report.Tally, qt.Equals, types.Tally{})
	c.Assert(report.Votes, qt.HasLen, 0)

	c1, c2, err := hybrid.Encrypt(1, hybrid.PublicKeyBytes(&trustee.PublicKey))
	c.Assert(err, qt.IsNil)
	src := &sliceSource{ballots: []*types.Ballot{{C1: c1, C2: c2}}}

	src.err = errors.New("ledger unavailable")
	_, err = tally.Run(context.Background(), src, trustee, tally.Options{})
	c.Assert(err, qt.ErrorMatches, ".*ledger unavailable")

	src.err = nil
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tally.Run(ctx, src, trustee, tally.Options{})
	c.Assert(err, qt.ErrorIs, context.Canceled)

	_, err = tally.Run(context.Background(), src, nil, tally.Options{})
	c.Assert(err, qt.IsNotNil)
}
