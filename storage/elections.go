package storage

import (
	"errors"
	"fmt"

	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/types"
)

// SetElection stores the configuration of a new election. Configurations are
// immutable, so storing an id twice returns ErrKeyAlreadyExists.
func (s *Storage) SetElection(cfg *types.ElectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil election config")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.setArtifact(electionPrefix, cfg.ID.Bytes(), cfg, false); err != nil {
		return fmt.Errorf("store election %s: %w", cfg.ID, err)
	}
	log.Debugw("election stored", "electionId", cfg.ID.String(), "depth", cfg.TreeDepth)
	return nil
}

// Election returns the configuration of an election, or ErrNotFound.
func (s *Storage) Election(id types.ElectionID) (*types.ElectionConfig, error) {
	key := cacheKey(electionPrefix, id.Bytes())
	if v, ok := s.cache.Get(key); ok {
		if cfg, ok := v.(*types.ElectionConfig); ok {
			c := *cfg
			return &c, nil
		}
	}
	cfg := &types.ElectionConfig{}
	if err := s.getArtifact(electionPrefix, id.Bytes(), cfg); err != nil {
		return nil, err
	}
	c := *cfg
	s.cache.Add(key, &c)
	return cfg, nil
}

// ListElections returns the ids of every stored election, ordered by id.
func (s *Storage) ListElections() ([]types.ElectionID, error) {
	keys, err := s.listArtifacts(electionPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]types.ElectionID, 0, len(keys))
	for _, k := range keys {
		if len(k) != types.ElectionIDLen {
			log.Warnw("skipping malformed election key", "key", fmt.Sprintf("%x", k))
			continue
		}
		ids = append(ids, types.ElectionID(k))
	}
	return ids, nil
}

// SetTallyReport stores the report of a tally run, replacing the previous
// one for the same election.
func (s *Storage) SetTallyReport(report *types.TallyReport) error {
	if report == nil {
		return fmt.Errorf("nil tally report")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if _, err := s.Election(report.ElectionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("tally report for unknown election %s: %w", report.ElectionID, err)
		}
		return err
	}
	if err := s.setArtifact(tallyReportPrefix, report.ElectionID.Bytes(), report, true); err != nil {
		return fmt.Errorf("store tally report: %w", err)
	}
	log.Infow("tally report stored",
		"electionId", report.ElectionID.String(),
		"runId", report.RunID,
		"count0", report.Tally.Count0,
		"count1", report.Tally.Count1,
		"failed", report.Tally.Failed)
	return nil
}

// TallyReport returns the last stored report of an election, or ErrNotFound.
func (s *Storage) TallyReport(id types.ElectionID) (*types.TallyReport, error) {
	report := &types.TallyReport{}
	if err := s.getArtifact(tallyReportPrefix, id.Bytes(), report); err != nil {
		return nil, err
	}
	return report, nil
}
