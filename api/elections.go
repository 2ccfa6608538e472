package api

import (
	"errors"
	"net/http"

	"github.com/vocdoni/zk-ballotbox/accumulator"
	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/types"
)

// newElection creates an election.
// POST /elections
func (a *API) newElection(w http.ResponseWriter, r *http.Request) {
	req := &CreateElectionRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	cfg := types.ElectionConfig{
		Name:                 req.Name,
		TreeDepth:            req.TreeDepth,
		Hash:                 req.Hash,
		TrusteePubKey:        req.TrusteePubKey,
		RegistrationVerifier: req.RegistrationVerifier,
		VoteVerifier:         req.VoteVerifier,
		StrictPaths:          a.strictPaths,
	}
	if req.ElectionID != nil {
		cfg.ID = *req.ElectionID
	}
	if req.StrictPaths != nil {
		cfg.StrictPaths = *req.StrictPaths
	}
	e, err := a.manager.Create(cfg)
	if err != nil {
		errorFor(err).Write(w)
		return
	}
	a.writeElection(w, e)
}

// listElections returns every known election.
// GET /elections
func (a *API) listElections(w http.ResponseWriter, r *http.Request) {
	configs, err := a.manager.List()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ElectionList{Elections: configs})
}

// electionInfo returns an election config and its current state.
// GET /elections/{electionId}
func (a *API) electionInfo(w http.ResponseWriter, r *http.Request) {
	a.writeElection(w, electionFromContext(r.Context()))
}

func (a *API) writeElection(w http.ResponseWriter, e *election.Election) {
	root, err := e.Root()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	registered, err := e.RegisteredCount()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	ballots, err := e.BallotCount()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ElectionResponse{
		ElectionConfig: e.Config(),
		Root:           root,
		Registered:     registered,
		Capacity:       e.Capacity(),
		Ballots:        ballots,
	})
}

// electionRoot returns the current eligibility root.
// GET /elections/{electionId}/root
func (a *API) electionRoot(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	root, err := e.Root()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	registered, err := e.RegisteredCount()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &RootResponse{Root: root, Registered: registered})
}

// electionPath returns the path of the next free slot, or of the slot
// given by the index query parameter.
// GET /elections/{electionId}/path?index=<n>
func (a *API) electionPath(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	index, present, ok := queryUint64(w, r, IndexQueryParam)
	if !ok {
		return
	}
	var (
		siblings [][]byte
		indices  []uint8
		err      error
	)
	if present {
		siblings, indices, err = e.Path(index)
	} else {
		index, siblings, indices, err = e.NextPath()
	}
	switch {
	case errors.Is(err, accumulator.ErrIndexOutOfRange):
		ErrMalformedParam.WithErr(err).Write(w)
		return
	case errors.Is(err, accumulator.ErrFull):
		ErrInvalidInsertionPosition.WithErr(err).Write(w)
		return
	case err != nil:
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &PathResponse{
		Index:       index,
		Siblings:    types.HexSlice(siblings),
		PathIndices: indicesToInts(indices),
	})
}

// register inserts a commitment into the eligibility tree.
// POST /elections/{electionId}/register
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	req := &RegisterRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	indices, ok := intsToIndices(req.PathIndices)
	if !ok {
		ErrInvalidInsertionPosition.With("path indices must be 0 or 1").Write(w)
		return
	}
	ins, err := e.Register(req.Commitment, types.ByteSlices(req.Siblings), indices, req.Proof)
	if err != nil {
		log.Debugw("registration failed", "electionId", e.ID().String(), "error", err.Error())
		errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &RegisterResponse{
		Index:   ins.Index,
		OldRoot: ins.OldRoot,
		NewRoot: ins.NewRoot,
	})
}
