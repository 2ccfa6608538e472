package storage

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-ballotbox/db/metadb"
	"github.com/vocdoni/zk-ballotbox/types"
)

func testConfig(name string) *types.ElectionConfig {
	return &types.ElectionConfig{
		ID:        types.NewElectionID(name),
		Name:      name,
		TreeDepth: 10,
		Hash:      "poseidon",
		CreatedAt: time.Unix(1760000000, 0).UTC(),
	}
}

func TestElections(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))

	_, err := st.Election(types.NewElectionID("missing"))
	c.Assert(err, qt.ErrorIs, ErrNotFound)

	a, b := testConfig("a"), testConfig("b")
	c.Assert(st.SetElection(a), qt.IsNil)
	c.Assert(st.SetElection(b), qt.IsNil)
	c.Assert(st.SetElection(a), qt.ErrorIs, ErrKeyAlreadyExists)

	got, err := st.Election(a.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Name, qt.Equals, "a")
	c.Assert(got.TreeDepth, qt.Equals, 10)
	c.Assert(got.CreatedAt.Equal(a.CreatedAt), qt.IsTrue)

	// cached copies must not leak mutations back
	got.Name = "changed"
	again, err := st.Election(a.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Name, qt.Equals, "a")

	ids, err := st.ListElections()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)
	c.Assert(ids, qt.Contains, a.ID)
	c.Assert(ids, qt.Contains, b.ID)
}

func TestElectionDBIsolation(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))
	a, b := testConfig("a"), testConfig("b")
	c.Assert(st.SetElection(a), qt.IsNil)

	dbA, dbB := st.ElectionDB(a.ID), st.ElectionDB(b.ID)
	wtx := dbA.WriteTx()
	c.Assert(wtx.Set([]byte("count"), []byte{1}), qt.IsNil)
	c.Assert(wtx.Commit(), qt.IsNil)

	v, err := dbA.Get([]byte("count"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte{1})
	_, err = dbB.Get([]byte("count"))
	c.Assert(err, qt.IsNotNil)

	// election databases never show up as configs
	ids, err := st.ListElections()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.DeepEquals, []types.ElectionID{a.ID})
}

func TestTallyReports(t *testing.T) {
	c := qt.New(t)
	st := New(metadb.NewTest(t))
	cfg := testConfig("reports")

	report := &types.TallyReport{
		RunID:      "run-1",
		ElectionID: cfg.ID,
		Tally:      types.Tally{Count0: 2, Count1: 3, Total: 5},
		Votes:      []int{1, 0, 1, 1, 0},
		StartedAt:  time.Unix(1760000100, 0).UTC(),
		Duration:   1500 * time.Millisecond,
	}
	c.Assert(st.SetTallyReport(report), qt.ErrorIs, ErrNotFound)
	c.Assert(st.SetElection(cfg), qt.IsNil)
	c.Assert(st.SetTallyReport(report), qt.IsNil)

	got, err := st.TallyReport(cfg.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Tally, qt.Equals, report.Tally)
	c.Assert(got.Votes, qt.DeepEquals, report.Votes)
	c.Assert(got.Duration, qt.Equals, report.Duration)

	// a later run replaces the stored report
	report.RunID = "run-2"
	report.Tally.Failed = 1
	c.Assert(st.SetTallyReport(report), qt.IsNil)
	got, err = st.TallyReport(cfg.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.RunID, qt.Equals, "run-2")
	c.Assert(got.Tally.Failed, qt.Equals, uint64(1))

	_, err = st.TallyReport(types.NewElectionID("none"))
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}
