package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vocdoni/zk-ballotbox/api"
	"github.com/vocdoni/zk-ballotbox/tally"
	"github.com/vocdoni/zk-ballotbox/types"
)

func electionPath(endpoint string, id types.ElectionID) string {
	return api.EndpointWithParam(endpoint, api.ElectionURLParam, id.String())
}

// CreateElection creates an election.
func (c *HTTPclient) CreateElection(ctx context.Context, req *api.CreateElectionRequest) (*api.ElectionResponse, error) {
	out := &api.ElectionResponse{}
	if err := c.do(ctx, HTTPPOST, req, out, nil, api.ElectionsEndpoint); err != nil {
		return nil, err
	}
	return out, nil
}

// Elections lists the known elections.
func (c *HTTPclient) Elections(ctx context.Context) ([]types.ElectionConfig, error) {
	out := &api.ElectionList{}
	if err := c.do(ctx, HTTPGET, nil, out, nil, api.ElectionsEndpoint); err != nil {
		return nil, err
	}
	return out.Elections, nil
}

// Election returns an election config and state.
func (c *HTTPclient) Election(ctx context.Context, id types.ElectionID) (*api.ElectionResponse, error) {
	out := &api.ElectionResponse{}
	if err := c.do(ctx, HTTPGET, nil, out, nil, electionPath(api.ElectionEndpoint, id)); err != nil {
		return nil, err
	}
	return out, nil
}

// Root returns the current eligibility root.
func (c *HTTPclient) Root(ctx context.Context, id types.ElectionID) (*api.RootResponse, error) {
	out := &api.RootResponse{}
	if err := c.do(ctx, HTTPGET, nil, out, nil, electionPath(api.ElectionRootEndpoint, id)); err != nil {
		return nil, err
	}
	return out, nil
}

// NextPath returns the slot and path the next registration must use.
func (c *HTTPclient) NextPath(ctx context.Context, id types.ElectionID) (*api.PathResponse, error) {
	out := &api.PathResponse{}
	if err := c.do(ctx, HTTPGET, nil, out, nil, electionPath(api.PathEndpoint, id)); err != nil {
		return nil, err
	}
	return out, nil
}

// Path returns the membership path of the leaf at index.
func (c *HTTPclient) Path(ctx context.Context, id types.ElectionID, index uint64) (*api.PathResponse, error) {
	out := &api.PathResponse{}
	params := []string{api.IndexQueryParam, strconv.FormatUint(index, 10)}
	if err := c.do(ctx, HTTPGET, nil, out, params, electionPath(api.PathEndpoint, id)); err != nil {
		return nil, err
	}
	return out, nil
}

// Register inserts a commitment into the eligibility tree.
func (c *HTTPclient) Register(ctx context.Context, id types.ElectionID, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	out := &api.RegisterResponse{}
	if err := c.do(ctx, HTTPPOST, req, out, nil, electionPath(api.RegisterEndpoint, id)); err != nil {
		return nil, err
	}
	return out, nil
}

// Vote casts an encrypted ballot and returns its ledger index.
func (c *HTTPclient) Vote(ctx context.Context, id types.ElectionID, req *api.VoteRequest) (uint64, error) {
	out := &api.VoteResponse{}
	if err := c.do(ctx, HTTPPOST, req, out, nil, electionPath(api.VotesEndpoint, id)); err != nil {
		return 0, err
	}
	return out.BallotIndex, nil
}

// Nullifier returns the spent status of a nullifier.
func (c *HTTPclient) Nullifier(ctx context.Context, id types.ElectionID, nullifier []byte) (*api.NullifierResponse, error) {
	out := &api.NullifierResponse{}
	ep := api.EndpointWithParam(electionPath(api.NullifierEndpoint, id),
		api.NullifierURLParam, types.HexBytes(nullifier).String())
	if err := c.do(ctx, HTTPGET, nil, out, nil, ep); err != nil {
		return nil, err
	}
	return out, nil
}

// Ballots returns one page of the ballot ledger starting at from. The
// server may return fewer ballots than requested.
func (c *HTTPclient) Ballots(ctx context.Context, id types.ElectionID, from, to uint64) (*api.BallotsResponse, error) {
	out := &api.BallotsResponse{}
	params := []string{
		api.FromQueryParam, strconv.FormatUint(from, 10),
		api.ToQueryParam, strconv.FormatUint(to, 10),
	}
	if err := c.do(ctx, HTTPGET, nil, out, params, electionPath(api.BallotsEndpoint, id)); err != nil {
		return nil, err
	}
	return out, nil
}

// Ballot returns the ballot at index.
func (c *HTTPclient) Ballot(ctx context.Context, id types.ElectionID, index uint64) (*types.Ballot, error) {
	out := &types.Ballot{}
	ep := api.EndpointWithParam(electionPath(api.BallotEndpoint, id),
		api.BallotIndexURLParam, strconv.FormatUint(index, 10))
	if err := c.do(ctx, HTTPGET, nil, out, nil, ep); err != nil {
		return nil, err
	}
	return out, nil
}

// Results returns the last published tally report.
func (c *HTTPclient) Results(ctx context.Context, id types.ElectionID) (*types.TallyReport, error) {
	out := &types.TallyReport{}
	if err := c.do(ctx, HTTPGET, nil, out, nil, electionPath(api.ResultsEndpoint, id)); err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitResults publishes a signed tally report.
func (c *HTTPclient) SubmitResults(ctx context.Context, signed *tally.SignedReport) (*types.TallyReport, error) {
	report := &types.TallyReport{}
	// the route is taken from the election named by the signed report
	if err := json.Unmarshal(signed.Report, report); err != nil {
		return nil, fmt.Errorf("decode signed report: %w", err)
	}
	out := &types.TallyReport{}
	if err := c.do(ctx, HTTPPOST, signed, out, nil, electionPath(api.ResultsEndpoint, report.ElectionID)); err != nil {
		return nil, err
	}
	return out, nil
}
