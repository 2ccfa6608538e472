package tally_test

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/internal/testutil"
	"github.com/vocdoni/zk-ballotbox/tally"
	"github.com/vocdoni/zk-ballotbox/types"
)

func TestSignedReport(t *testing.T) {
	c := qt.New(t)
	trustee := testutil.DeterministicTrusteeKey(7)
	pub := hybrid.PublicKeyBytes(&trustee.PublicKey)
	report := &types.TallyReport{
		RunID:      "run",
		ElectionID: testutil.DeterministicElectionID(7),
		Tally:      types.Tally{Count0: 1, Count1: 2, Total: 3},
		Votes:      []int{1, 0, 1},
	}

	signed, err := tally.Sign(report, trustee)
	c.Assert(err, qt.IsNil)

	// the signed form travels as JSON
	data, err := json.Marshal(signed)
	c.Assert(err, qt.IsNil)
	var received tally.SignedReport
	c.Assert(json.Unmarshal(data, &received), qt.IsNil)

	opened, err := received.Open(pub)
	c.Assert(err, qt.IsNil)
	c.Assert(opened.Tally, qt.Equals, report.Tally)
	c.Assert(opened.ElectionID, qt.Equals, report.ElectionID)

	other := testutil.DeterministicTrusteeKey(8)
	_, err = received.Open(hybrid.PublicKeyBytes(&other.PublicKey))
	c.Assert(err, qt.ErrorIs, tally.ErrInvalidSignature)

	received.Report = []byte(`{"runId":"forged"}`)
	_, err = received.Open(pub)
	c.Assert(err, qt.ErrorIs, tally.ErrInvalidSignature)

	received.Signature = []byte{1, 2, 3}
	_, err = received.Open(pub)
	c.Assert(err, qt.ErrorIs, tally.ErrInvalidSignature)
}
