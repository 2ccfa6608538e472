package client

import (
	"context"
	"fmt"

	"github.com/vocdoni/zk-ballotbox/tally"
	"github.com/vocdoni/zk-ballotbox/types"
)

// ballotSource reads the ledger of one election through the API.
type ballotSource struct {
	c   *HTTPclient
	ctx context.Context
	id  types.ElectionID
}

// Source returns a tally.BallotSource over the ledger of election id. Every
// request it makes is bound to ctx.
func (c *HTTPclient) Source(ctx context.Context, id types.ElectionID) tally.BallotSource {
	return &ballotSource{c: c, ctx: ctx, id: id}
}

func (s *ballotSource) ID() types.ElectionID {
	return s.id
}

func (s *ballotSource) BallotCount() (uint64, error) {
	page, err := s.c.Ballots(s.ctx, s.id, 0, 0)
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// Ballots follows the server pagination until [from, to) is complete or
// the ledger ends.
func (s *ballotSource) Ballots(from, to uint64) ([]*types.Ballot, error) {
	var out []*types.Ballot
	for from < to {
		page, err := s.c.Ballots(s.ctx, s.id, from, to)
		if err != nil {
			return nil, err
		}
		if len(page.Ballots) == 0 {
			break
		}
		if page.From != from {
			return nil, fmt.Errorf("ballot page starts at %d, requested %d", page.From, from)
		}
		out = append(out, page.Ballots...)
		from += uint64(len(page.Ballots))
	}
	return out, nil
}
