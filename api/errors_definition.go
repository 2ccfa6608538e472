//nolint:lll
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/tally"
)

// Error codes in the 40001-49999 range are the user's fault, and they
// return HTTP Status 400, 403, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault and they return HTTP
// Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXXX or 5XXXX. If there is a gap, don't fill it: that
// code was used in the past and must not be reused.
//
// The errors of the election operations keep the election sentinel as their
// Err, so clients can match them with errors.Is on both sides of the wire.
var (
	ErrResourceNotFound         = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody            = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam           = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedElectionID      = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed election ID")}
	ErrElectionNotFound         = Error{Code: 40005, HTTPstatus: http.StatusNotFound, Err: election.ErrElectionNotFound}
	ErrElectionExists           = Error{Code: 40006, HTTPstatus: http.StatusConflict, Err: election.ErrElectionExists}
	ErrInvalidElectionConfig    = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: election.ErrInvalidConfig}
	ErrInvalidMembershipProof   = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: election.ErrInvalidMembershipProof}
	ErrInvalidInsertionPosition = Error{Code: 40009, HTTPstatus: http.StatusConflict, Err: election.ErrInvalidInsertionPosition}
	ErrDuplicateCommitment      = Error{Code: 40010, HTTPstatus: http.StatusConflict, Err: election.ErrDuplicateCommitment}
	ErrDoubleVote               = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: election.ErrDoubleVote}
	ErrInvalidVoteProof         = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: election.ErrInvalidVoteProof}
	ErrMalformedCiphertext      = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: election.ErrMalformedCiphertext}
	ErrInvalidInput             = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: election.ErrInvalidInput}
	ErrBallotNotFound           = Error{Code: 40015, HTTPstatus: http.StatusNotFound, Err: election.ErrBallotNotFound}
	ErrMalformedNullifier       = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed nullifier")}
	ErrResultsNotFound          = Error{Code: 40017, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("results not found")}
	ErrInvalidReportSignature   = Error{Code: 40018, HTTPstatus: http.StatusForbidden, Err: tally.ErrInvalidSignature}
	ErrReportMismatch           = Error{Code: 40019, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("report does not match the election")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)

// electionErrors lists the API errors bound to an election sentinel, in
// the order they are matched.
var electionErrors = []Error{
	ErrElectionNotFound,
	ErrElectionExists,
	ErrInvalidElectionConfig,
	ErrInvalidMembershipProof,
	ErrInvalidInsertionPosition,
	ErrDuplicateCommitment,
	ErrDoubleVote,
	ErrInvalidVoteProof,
	ErrMalformedCiphertext,
	ErrInvalidInput,
	ErrBallotNotFound,
	ErrInvalidReportSignature,
}

// errorFor returns the API error matching err, falling back to a generic
// internal error.
func errorFor(err error) Error {
	for _, e := range electionErrors {
		if errors.Is(err, e.Err) {
			return e.WithErr(err)
		}
	}
	return ErrGenericInternalServerError.WithErr(err)
}

// ErrorByCode returns the API error registered under code.
func ErrorByCode(code int) (Error, bool) {
	for _, e := range allErrors {
		if e.Code == code {
			return e, true
		}
	}
	return Error{}, false
}

var allErrors = append([]Error{
	ErrResourceNotFound,
	ErrMalformedBody,
	ErrMalformedParam,
	ErrMalformedElectionID,
	ErrMalformedNullifier,
	ErrResultsNotFound,
	ErrReportMismatch,
	ErrMarshalingServerJSONFailed,
	ErrGenericInternalServerError,
}, electionErrors...)
