package election_test

import (
	"bytes"
	"errors"
	"math/big"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"

	"github.com/vocdoni/zk-ballotbox/accumulator"
	"github.com/vocdoni/zk-ballotbox/crypto"
	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/internal/testutil"
	"github.com/vocdoni/zk-ballotbox/util"
	"github.com/vocdoni/zk-ballotbox/verifier"
)

// bigIntsEqual compares *big.Int values, which qt.DeepEquals cannot handle.
var bigIntsEqual = qt.CmpEquals(cmp.Comparer(func(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}))

func TestRegisterSequential(t *testing.T) {
	c := qt.New(t)
	e := testutil.NewElection(t, 1)

	root, err := e.Root()
	c.Assert(err, qt.IsNil)
	voters := testutil.NewVoters(4)
	for i, v := range voters {
		ins, err := v.Register(e)
		c.Assert(err, qt.IsNil)
		c.Assert(ins.Index, qt.Equals, uint64(i))
		c.Assert(ins.OldRoot, qt.DeepEquals, root)
		root, err = e.Root()
		c.Assert(err, qt.IsNil)
		c.Assert(ins.NewRoot, qt.DeepEquals, root)
	}
	count, err := e.RegisteredCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(4))

	// every registered leaf has a path that reproduces the current root
	for _, v := range voters {
		idx, found, err := e.CommitmentIndex(v.Commitment())
		c.Assert(err, qt.IsNil)
		c.Assert(found, qt.IsTrue)
		siblings, indices, err := e.Path(idx)
		c.Assert(err, qt.IsNil)
		got, err := accumulator.ComputeRoot(e.Hasher(), v.Commitment(), siblings, indices)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, root)
	}
}

func TestRegisterRejections(t *testing.T) {
	c := qt.New(t)
	e := testutil.NewElection(t, 2)
	voters := testutil.NewVoters(3)

	// two registrants fetch the same slot, the second one loses
	_, siblings, indices, err := e.NextPath()
	c.Assert(err, qt.IsNil)
	_, err = e.Register(voters[0].Commitment(), siblings, indices, nil)
	c.Assert(err, qt.IsNil)
	rootAfterFirst, err := e.Root()
	c.Assert(err, qt.IsNil)
	_, err = e.Register(voters[1].Commitment(), siblings, indices, nil)
	c.Assert(err, qt.ErrorIs, election.ErrInvalidInsertionPosition)

	c.Run("duplicate commitment", func(c *qt.C) {
		_, err := voters[0].Register(e)
		c.Assert(err, qt.ErrorIs, election.ErrDuplicateCommitment)
	})

	c.Run("malformed siblings", func(c *qt.C) {
		_, siblings, indices, err := e.NextPath()
		c.Assert(err, qt.IsNil)
		_, err = e.Register(voters[1].Commitment(), siblings[1:], indices, nil)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidMembershipProof)
	})

	c.Run("malformed indices", func(c *qt.C) {
		_, siblings, indices, err := e.NextPath()
		c.Assert(err, qt.IsNil)
		indices[0] = 2
		_, err = e.Register(voters[1].Commitment(), siblings, indices, nil)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidInsertionPosition)
	})

	c.Run("zero leaf", func(c *qt.C) {
		_, siblings, indices, err := e.NextPath()
		c.Assert(err, qt.IsNil)
		_, err = e.Register(make([]byte, 32), siblings, indices, nil)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidInput)
	})

	c.Run("commitment plus the field modulus", func(c *qt.C) {
		_, siblings, indices, err := e.NextPath()
		c.Assert(err, qt.IsNil)
		_, err = e.Register(aliased(voters[0].Commitment()), siblings, indices, nil)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidInput)
	})

	c.Run("path inconsistent with the root", func(c *qt.C) {
		_, siblings, indices, err := e.NextPath()
		c.Assert(err, qt.IsNil)
		siblings[0] = util.RandomBytes(32)
		_, err = e.Register(voters[1].Commitment(), siblings, indices, nil)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidMembershipProof)
	})

	root, err := e.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root, qt.DeepEquals, rootAfterFirst)
	count, err := e.RegisteredCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))
}

func TestRegistrationOracle(t *testing.T) {
	c := qt.New(t)
	m, resolver := testutil.NewManager(t)
	rec := &verifier.Recorder{}
	resolver.Register("recorder", rec)
	cfg := testutil.ElectionConfig(3)
	cfg.RegistrationVerifier = "recorder"
	e, err := m.Create(cfg)
	c.Assert(err, qt.IsNil)

	v := testutil.NewVoters(1)[0]
	oldRoot, err := e.Root()
	c.Assert(err, qt.IsNil)
	_, siblings, indices, err := e.NextPath()
	c.Assert(err, qt.IsNil)
	proof := []byte("registration proof")

	_, err = e.Register(v.Commitment(), siblings, indices, proof)
	c.Assert(err, qt.ErrorIs, election.ErrInvalidMembershipProof)
	root, err := e.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root, qt.DeepEquals, oldRoot)

	calls := rec.Calls()
	c.Assert(calls, qt.HasLen, 1)
	c.Assert(calls[0].Proof, qt.DeepEquals, proof)
	newRoot, err := accumulator.ComputeRoot(e.Hasher(), v.Commitment(), siblings, indices)
	c.Assert(err, qt.IsNil)
	c.Assert(calls[0].PublicInputs, bigIntsEqual, verifier.RegistrationInputs(oldRoot, v.Commitment(), newRoot))

	rec.SetAccept(true)
	ins, err := e.Register(v.Commitment(), siblings, indices, proof)
	c.Assert(err, qt.IsNil)
	c.Assert(ins.NewRoot, qt.DeepEquals, newRoot)
}

func TestVote(t *testing.T) {
	c := qt.New(t)
	m, resolver := testutil.NewManager(t)
	rec := &verifier.Recorder{Accept: true}
	resolver.Register("recorder", rec)
	cfg := testutil.ElectionConfig(4)
	cfg.VoteVerifier = "recorder"
	e, err := m.Create(cfg)
	c.Assert(err, qt.IsNil)

	voters := testutil.NewVoters(2)
	for _, v := range voters {
		_, err := v.Register(e)
		c.Assert(err, qt.IsNil)
	}
	root, err := e.Root()
	c.Assert(err, qt.IsNil)

	nullifier := voters[0].Nullifier(cfg.ID)
	voted, err := e.HasVoted(nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsFalse)

	index, err := voters[0].Vote(e, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(index, qt.Equals, uint64(0))
	calls := rec.Calls()
	c.Assert(calls, qt.HasLen, 1)
	c.Assert(calls[0].PublicInputs, bigIntsEqual, verifier.VoteInputs(root, nullifier, cfg.ID.Bytes()))

	voted, err = e.HasVoted(nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)
	got, err := e.BallotIndex(nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, index)

	c.Run("double vote", func(c *qt.C) {
		_, err := voters[0].Vote(e, 0)
		c.Assert(err, qt.ErrorIs, election.ErrDoubleVote)
	})

	c.Run("malformed ciphertext is checked first", func(c *qt.C) {
		_, c2, err := hybrid.Encrypt(1, cfg.TrusteePubKey)
		c.Assert(err, qt.IsNil)
		_, err = e.Vote(make([]byte, 33), c2, nullifier, nil)
		c.Assert(err, qt.ErrorIs, election.ErrMalformedCiphertext)
		c1, _, err := hybrid.Encrypt(1, cfg.TrusteePubKey)
		c.Assert(err, qt.IsNil)
		_, err = e.Vote(c1, c2[:28], nullifier, nil)
		c.Assert(err, qt.ErrorIs, election.ErrMalformedCiphertext)
	})

	c.Run("short nullifier", func(c *qt.C) {
		c1, c2, err := hybrid.Encrypt(1, cfg.TrusteePubKey)
		c.Assert(err, qt.IsNil)
		_, err = e.Vote(c1, c2, nullifier[:31], nil)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidInput)
	})

	c.Run("rejected proof", func(c *qt.C) {
		rec.SetAccept(false)
		defer rec.SetAccept(true)
		_, err := voters[1].Vote(e, 0)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidVoteProof)
		voted, err := e.HasVoted(voters[1].Nullifier(cfg.ID))
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsFalse)
	})

	c.Run("nullifier plus the field modulus", func(c *qt.C) {
		alias := aliased(nullifier)
		c1, c2, err := hybrid.Encrypt(1, cfg.TrusteePubKey)
		c.Assert(err, qt.IsNil)
		_, err = e.Vote(c1, c2, alias, nil)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidInput)
		_, err = e.HasVoted(alias)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidInput)
		_, err = e.BallotIndex(alias)
		c.Assert(err, qt.ErrorIs, election.ErrInvalidInput)
	})

	count, err := e.BallotCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))

	index, err = voters[1].Vote(e, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(index, qt.Equals, uint64(1))

	ballots, err := e.Ballots(0, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(ballots, qt.HasLen, 2)
	ballots, err = e.Ballots(1, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(ballots, qt.HasLen, 1)
	ballots, err = e.Ballots(5, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(ballots, qt.HasLen, 0)
	_, err = e.Ballot(2)
	c.Assert(err, qt.ErrorIs, election.ErrBallotNotFound)
	_, err = e.BallotIndex(testutil.NewVoters(1)[0].Nullifier(cfg.ID))
	c.Assert(err, qt.ErrorIs, election.ErrBallotNotFound)
}

func TestConcurrentMutations(t *testing.T) {
	c := qt.New(t)
	e := testutil.NewElection(t, 7)

	// registrations racing for the same slot: the first writer wins
	voters := testutil.NewVoters(20)
	_, siblings, indices, err := e.NextPath()
	c.Assert(err, qt.IsNil)
	errs := make([]error, len(voters))
	var wg sync.WaitGroup
	for i, v := range voters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Register(v.Commitment(), siblings, indices, nil)
		}()
	}
	wg.Wait()
	winner := -1
	for i, err := range errs {
		if err == nil {
			c.Assert(winner, qt.Equals, -1, qt.Commentf("two registrations accepted"))
			winner = i
			continue
		}
		c.Assert(err, qt.ErrorIs, election.ErrInvalidInsertionPosition)
	}
	c.Assert(winner, qt.Not(qt.Equals), -1)
	registered, err := e.RegisteredCount()
	c.Assert(err, qt.IsNil)
	c.Assert(registered, qt.Equals, uint64(1))

	// votes racing with the same nullifier: exactly one ballot is recorded
	v := voters[winner]
	errs = make([]error, 50)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = v.Vote(e, byte(i%2))
		}()
	}
	wg.Wait()
	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		c.Assert(errors.Is(err, election.ErrDoubleVote), qt.IsTrue, qt.Commentf("%v", err))
	}
	c.Assert(accepted, qt.Equals, 1)
	count, err := e.BallotCount()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))
}

// aliased returns w + r, the same field element under another encoding.
func aliased(w []byte) []byte {
	v := new(big.Int).Add(new(big.Int).SetBytes(w), crypto.ScalarField())
	return v.FillBytes(make([]byte, 32))
}

func TestFiveVoters(t *testing.T) {
	c := qt.New(t)
	e := testutil.NewElection(t, 5)
	trustee := testutil.DeterministicTrusteeKey(5)

	choices := []byte{1, 0, 1, 1, 0}
	voters := testutil.NewVoters(len(choices))
	for _, v := range voters {
		_, err := v.Register(e)
		c.Assert(err, qt.IsNil)
	}
	for i, v := range voters {
		index, err := v.Vote(e, choices[i])
		c.Assert(err, qt.IsNil)
		c.Assert(index, qt.Equals, uint64(i))
	}

	ballots, err := e.Ballots(0, uint64(len(choices)))
	c.Assert(err, qt.IsNil)
	var counts [2]int
	for i, b := range ballots {
		vote, err := hybrid.Decrypt(b.C1, b.C2, trustee)
		c.Assert(err, qt.IsNil)
		c.Assert(vote, qt.Equals, choices[i])
		counts[vote]++
	}
	c.Assert(counts, qt.Equals, [2]int{2, 3})

	// ledger ciphertexts are exactly what the voters submitted
	for _, b := range ballots {
		c.Assert(b.C1, qt.HasLen, hybrid.C1Len)
		c.Assert(b.C2, qt.HasLen, hybrid.C2Len)
		c.Assert(bytes.Equal(b.C1, b.C2), qt.IsFalse)
	}
}

func TestNonStrictPaths(t *testing.T) {
	c := qt.New(t)
	m, _ := testutil.NewManager(t)
	cfg := testutil.ElectionConfig(6)
	cfg.StrictPaths = false
	e, err := m.Create(cfg)
	c.Assert(err, qt.IsNil)

	// without strict paths the oracle alone judges the siblings
	_, siblings, indices, err := e.NextPath()
	c.Assert(err, qt.IsNil)
	siblings[3] = new(big.Int).SetUint64(7).FillBytes(make([]byte, 32))
	ins, err := e.Register(testutil.NewVoters(1)[0].Commitment(), siblings, indices, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(ins.Index, qt.Equals, uint64(0))
}
