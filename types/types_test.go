package types

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestHexBytesJSON(t *testing.T) {
	c := qt.New(t)

	out, err := json.Marshal(HexBytes{0x00, 0xab, 0xcd})
	c.Assert(err, qt.IsNil)
	c.Assert(string(out), qt.Equals, `"0x00abcd"`)

	out, err = json.Marshal(HexBytes(nil))
	c.Assert(err, qt.IsNil)
	c.Assert(string(out), qt.Equals, `"0x"`)

	var hb HexBytes
	c.Assert(json.Unmarshal([]byte(`"0x0102"`), &hb), qt.IsNil)
	c.Assert(hb, qt.DeepEquals, HexBytes{1, 2})
	// the prefix is optional
	c.Assert(json.Unmarshal([]byte(`"ff"`), &hb), qt.IsNil)
	c.Assert(hb, qt.DeepEquals, HexBytes{0xff})

	c.Assert(json.Unmarshal([]byte(`"0xzz"`), &hb), qt.ErrorMatches, `invalid hex string.*`)
	c.Assert(json.Unmarshal([]byte(`12`), &hb), qt.ErrorMatches, `invalid JSON string.*`)
}

func TestHexBytesHelpers(t *testing.T) {
	c := qt.New(t)

	hb := HexBytes{0x01, 0x00}
	c.Assert(hb.String(), qt.Equals, "0x0100")
	c.Assert(hb.BigInt().Int64(), qt.Equals, int64(256))
	c.Assert(hb.LeftPad(4), qt.DeepEquals, HexBytes{0, 0, 1, 0})
	c.Assert(hb.LeftPad(1), qt.DeepEquals, hb)
	c.Assert(hb.Equal(HexBytes{1, 0}), qt.IsTrue)
	c.Assert(hb.Equal(HexBytes{1}), qt.IsFalse)

	in := [][]byte{{1}, {2, 3}}
	c.Assert(ByteSlices(HexSlice(in)), qt.DeepEquals, in)
}

func TestElectionID(t *testing.T) {
	c := qt.New(t)

	id := NewElectionID("board-2026")
	c.Assert(id, qt.Equals, NewElectionID("board-2026"))
	c.Assert(id, qt.Not(qt.Equals), NewElectionID("board-2027"))

	parsed, err := ElectionIDFromString(id.String())
	c.Assert(err, qt.IsNil)
	c.Assert(parsed, qt.Equals, id)

	_, err = ElectionIDFromString("0x0102")
	c.Assert(err, qt.ErrorMatches, `invalid election id length 2.*`)

	out, err := json.Marshal(map[string]ElectionID{"id": id})
	c.Assert(err, qt.IsNil)
	var back map[string]ElectionID
	c.Assert(json.Unmarshal(out, &back), qt.IsNil)
	c.Assert(back["id"], qt.Equals, id)

	c.Assert(RandomElectionID(), qt.Not(qt.Equals), RandomElectionID())
}

func TestTallyReportCheck(t *testing.T) {
	c := qt.New(t)
	report := func() *TallyReport {
		return &TallyReport{
			Tally:    Tally{Count0: 1, Count1: 2, Failed: 1, Total: 4},
			Votes:    []int{1, -1, 0, 1},
			Failures: []BallotFailure{{Index: 1, Reason: "ciphertext authentication failed"}},
		}
	}
	c.Assert(report().Check(), qt.IsNil)

	r := report()
	r.Votes = []int{1, -1, 1, 1}
	c.Assert(r.Check(), qt.ErrorMatches, "tally .* does not match the votes.*")

	r = report()
	r.Votes[0] = 7
	c.Assert(r.Check(), qt.ErrorMatches, "vote 0 has value 7")

	r = report()
	r.Failures = nil
	c.Assert(r.Check(), qt.ErrorMatches, "0 failures listed, 1 failed votes")

	r = report()
	r.Failures[0].Index = 2
	c.Assert(r.Check(), qt.ErrorMatches, "failure at index 2 is not a failed vote")
}
