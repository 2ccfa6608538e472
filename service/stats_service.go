package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/log"
)

// StatsMonitorInterval is the interval at which election statistics are
// logged. This can be overridden before starting the service.
var StatsMonitorInterval = 60 * time.Second

// ElectionStats is a snapshot of the counters of one election.
type ElectionStats struct {
	Registered uint64
	Capacity   uint64
	Ballots    uint64
}

// StatsService periodically logs the registration and ballot counters of
// every election.
type StatsService struct {
	manager *election.Manager
	mu      sync.Mutex
	cancel  context.CancelFunc
}

// NewStats creates a stats service over manager.
func NewStats(manager *election.Manager) *StatsService {
	return &StatsService{manager: manager}
}

// Start launches the monitor. It returns an error if the service is
// already running.
func (ss *StatsService) Start(ctx context.Context, interval time.Duration) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if interval <= 0 {
		interval = StatsMonitorInterval
	}
	var sctx context.Context
	sctx, ss.cancel = context.WithCancel(ctx)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		log.Infow("election stats monitor started", "interval", interval.String())
		for {
			select {
			case <-sctx.Done():
				log.Infow("election stats monitor stopped")
				return
			case <-ticker.C:
				ss.logStats()
			}
		}
	}()
	return nil
}

// Stop halts the monitor.
func (ss *StatsService) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.cancel != nil {
		ss.cancel()
		ss.cancel = nil
	}
}

// Snapshot returns the counters of every election by id.
func (ss *StatsService) Snapshot() (map[string]ElectionStats, error) {
	configs, err := ss.manager.List()
	if err != nil {
		return nil, err
	}
	out := make(map[string]ElectionStats, len(configs))
	for _, cfg := range configs {
		e, err := ss.manager.Get(cfg.ID)
		if err != nil {
			log.Warnw("failed to open election for stats", "electionId", cfg.ID.String(), "error", err)
			continue
		}
		registered, err := e.RegisteredCount()
		if err != nil {
			return nil, err
		}
		ballots, err := e.BallotCount()
		if err != nil {
			return nil, err
		}
		out[cfg.ID.String()] = ElectionStats{
			Registered: registered,
			Capacity:   e.Capacity(),
			Ballots:    ballots,
		}
	}
	return out, nil
}

func (ss *StatsService) logStats() {
	stats, err := ss.Snapshot()
	if err != nil {
		log.Warnw("failed to collect election stats", "error", err)
		return
	}
	var totalRegistered, totalBallots uint64
	for id, s := range stats {
		totalRegistered += s.Registered
		totalBallots += s.Ballots
		// Skip elections nobody registered to
		if s.Registered == 0 {
			continue
		}
		log.Monitor(fmt.Sprintf("election %s", id), map[string]any{
			"registered": s.Registered,
			"capacity":   s.Capacity,
			"ballots":    s.Ballots,
		})
	}
	log.Monitor("global statistics summary", map[string]any{
		"elections":  len(stats),
		"registered": totalRegistered,
		"ballots":    totalBallots,
	})
}
