package api

import (
	"errors"
	"net/http"

	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/storage"
	"github.com/vocdoni/zk-ballotbox/tally"
)

// results returns the last tally report published for the election.
// GET /elections/{electionId}/results
func (a *API) results(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	report, err := a.manager.Storage().TallyReport(e.ID())
	if errors.Is(err, storage.ErrNotFound) {
		ErrResultsNotFound.Withf("election %s", e.ID()).Write(w)
		return
	}
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, report)
}

// submitResults stores a tally report. Only reports signed with the
// election trustee key are accepted.
// POST /elections/{electionId}/results
func (a *API) submitResults(w http.ResponseWriter, r *http.Request) {
	e := electionFromContext(r.Context())
	signed := &tally.SignedReport{}
	if !decodeBody(w, r, signed) {
		return
	}
	report, err := signed.Open(e.Config().TrusteePubKey)
	switch {
	case errors.Is(err, tally.ErrInvalidSignature):
		ErrInvalidReportSignature.WithErr(err).Write(w)
		return
	case err != nil:
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if report.ElectionID != e.ID() {
		ErrReportMismatch.Withf("report is for election %s", report.ElectionID).Write(w)
		return
	}
	if err := report.Check(); err != nil {
		ErrReportMismatch.WithErr(err).Write(w)
		return
	}
	t := report.Tally
	ballots, err := e.BallotCount()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if t.Total > ballots {
		ErrReportMismatch.Withf("report counts %d ballots, the ledger has %d", t.Total, ballots).Write(w)
		return
	}
	if err := a.manager.Storage().SetTallyReport(report); err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("tally report published",
		"electionId", e.ID().String(),
		"runId", report.RunID,
		"total", t.Total)
	httpWriteJSON(w, report)
}
