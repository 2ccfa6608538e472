// Package tally is the trustee side of an election: it reads the ordered
// ballot ledger, opens every ballot with the trustee key and counts the
// votes. A ballot that cannot be opened is counted as failed and never
// stops the run.
package tally

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/types"
)

// DefaultBatchSize is the number of ballots fetched per source call.
const DefaultBatchSize = 256

// BallotSource is a read-only view of an election ledger. It is satisfied by
// *election.Election and by the API client.
type BallotSource interface {
	ID() types.ElectionID
	BallotCount() (uint64, error)
	// Ballots returns the ballots in [from, to).
	Ballots(from, to uint64) ([]*types.Ballot, error)
}

// Options tunes a tally run. The zero value is usable.
type Options struct {
	// Workers bounds concurrent decryptions, runtime.NumCPU() if zero.
	Workers int
	// BatchSize is the page size used to read the ledger.
	BatchSize uint64
	// Cipher must match the one voters used, hybrid.Default if zero.
	Cipher hybrid.Cipher
}

type outcome struct {
	vote byte
	err  error
}

// Run tallies every ballot of src with the trustee key. Only a source or
// context error aborts it; per ballot failures end up in the report.
func Run(ctx context.Context, src BallotSource, priv *ecdsa.PrivateKey, opts Options) (*types.TallyReport, error) {
	if priv == nil {
		return nil, fmt.Errorf("nil trustee key")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	started := time.Now()

	ballots, err := fetch(ctx, src, opts.BatchSize)
	if err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(ballots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, b := range ballots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vote, err := opts.Cipher.Decrypt(b.C1, b.C2, priv)
			outcomes[i] = outcome{vote: vote, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tally interrupted: %w", err)
	}

	report := &types.TallyReport{
		RunID:      uuid.NewString(),
		ElectionID: src.ID(),
		Votes:      make([]int, len(outcomes)),
		StartedAt:  started.UTC(),
	}
	for i, o := range outcomes {
		report.Tally.Total++
		if o.err != nil {
			report.Tally.Failed++
			report.Votes[i] = -1
			report.Failures = append(report.Failures, types.BallotFailure{Index: uint64(i), Reason: o.err.Error()})
			log.Warnw("ballot not counted", "electionId", report.ElectionID.String(), "index", i, "error", o.err.Error())
			continue
		}
		report.Votes[i] = int(o.vote)
		if o.vote == 1 {
			report.Tally.Count1++
		} else {
			report.Tally.Count0++
		}
	}
	report.Duration = time.Since(started)

	log.Monitor("tally finished", map[string]any{
		"electionId": report.ElectionID.String(),
		"runId":      report.RunID,
		"count0":     report.Tally.Count0,
		"count1":     report.Tally.Count1,
		"failed":     report.Tally.Failed,
		"total":      report.Tally.Total,
		"workers":    opts.Workers,
		"elapsed":    report.Duration.String(),
	})
	return report, nil
}

// fetch reads the whole ledger in pages. The count is read once, so ballots
// cast during the run are left for the next one.
func fetch(ctx context.Context, src BallotSource, batch uint64) ([]*types.Ballot, error) {
	count, err := src.BallotCount()
	if err != nil {
		return nil, fmt.Errorf("ballot count: %w", err)
	}
	ballots := make([]*types.Ballot, 0, count)
	for from := uint64(0); from < count; from += batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		to := min(from+batch, count)
		page, err := src.Ballots(from, to)
		if err != nil {
			return nil, fmt.Errorf("ballots %d..%d: %w", from, to, err)
		}
		if uint64(len(page)) != to-from {
			return nil, fmt.Errorf("ballots %d..%d: got %d ballots", from, to, len(page))
		}
		ballots = append(ballots, page...)
	}
	return ballots, nil
}
