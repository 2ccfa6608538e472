package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/types"
)

// newVote casts an encrypted ballot.
// POST /elections/{electionId}/votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	req := &VoteRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	index, err := e.Vote(req.C1, req.C2, req.Nullifier, req.Proof)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &VoteResponse{BallotIndex: index})
}

// nullifierStatus tells whether a nullifier was spent and by which ballot.
// GET /elections/{electionId}/nullifiers/{nullifier}
func (a *API) nullifierStatus(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	nullifier, err := types.HexBytesFromString(chi.URLParam(r, NullifierURLParam))
	if err != nil {
		ErrMalformedNullifier.WithErr(err).Write(w)
		return
	}
	index, err := e.BallotIndex(nullifier)
	switch {
	case errors.Is(err, election.ErrBallotNotFound):
		httpWriteJSON(w, &NullifierResponse{Spent: false})
		return
	case err != nil:
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &NullifierResponse{Spent: true, BallotIndex: &index})
}

// ballots returns a page of the ballot ledger. from defaults to 0 and to
// to the ledger size; a page holds at most MaxBallotsPerPage ballots.
// GET /elections/{electionId}/ballots?from=<n>&to=<m>
func (a *API) ballots(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	from, _, ok := queryUint64(w, r, FromQueryParam)
	if !ok {
		return
	}
	to, toPresent, ok := queryUint64(w, r, ToQueryParam)
	if !ok {
		return
	}
	total, err := e.BallotCount()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if !toPresent {
		to = total
	}
	if to > from && to-from > MaxBallotsPerPage {
		to = from + MaxBallotsPerPage
	}
	list, err := e.Ballots(from, to)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &BallotsResponse{From: from, Total: total, Ballots: list})
}

// ballot returns a single ballot by ledger index.
// GET /elections/{electionId}/ballots/{ballotIndex}
func (a *API) ballot(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	index, err := strconv.ParseUint(chi.URLParam(r, BallotIndexURLParam), 10, 64)
	if err != nil {
		ErrMalformedParam.Withf("%s: %v", BallotIndexURLParam, err).Write(w)
		return
	}
	b, err := e.Ballot(index)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, b)
}
