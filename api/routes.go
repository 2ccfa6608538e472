package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// Election endpoints
	ElectionURLParam     = "electionId"                             // URL parameter for election ID
	ElectionsEndpoint    = "/elections"                             // GET: List elections, POST: Create election
	ElectionEndpoint     = ElectionsEndpoint + "/{" + ElectionURLParam + "}" // GET: Get election info
	ElectionRootEndpoint = ElectionEndpoint + "/root"              // GET: Current eligibility root

	// Registration endpoints
	IndexQueryParam  = "index"                      // URL query param for a leaf index
	PathEndpoint     = ElectionEndpoint + "/path"     // GET: Path of the next free slot, or of ?index=
	RegisterEndpoint = ElectionEndpoint + "/register" // POST: Register a commitment

	// Vote endpoints
	NullifierURLParam = "nullifier"                                            // URL parameter for a nullifier
	VotesEndpoint     = ElectionEndpoint + "/votes"                            // POST: Cast a vote
	NullifierEndpoint = ElectionEndpoint + "/nullifiers/{" + NullifierURLParam + "}" // GET: Spent status of a nullifier

	// Ballot ledger endpoints
	BallotIndexURLParam = "ballotIndex"                                      // URL parameter for a ballot index
	FromQueryParam      = "from"                                             // URL query param, first ballot index
	ToQueryParam        = "to"                                               // URL query param, ballot index past the last one
	BallotsEndpoint     = ElectionEndpoint + "/ballots"                      // GET: Ballots in [from, to)
	BallotEndpoint      = BallotsEndpoint + "/{" + BallotIndexURLParam + "}" // GET: Ballot by index

	// Results endpoints
	ResultsEndpoint = ElectionEndpoint + "/results" // GET: Last tally report, POST: Submit a signed tally report

	// MaxBallotsPerPage bounds the ballots returned by one ledger request.
	MaxBallotsPerPage = 1000
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
