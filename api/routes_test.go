package api

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestEndpointWithParam(t *testing.T) {
	c := qt.New(t)
	id := "0x" + "ab"

	c.Assert(EndpointWithParam(ElectionEndpoint, ElectionURLParam, id), qt.Equals, "/elections/0xab")

	ep := EndpointWithParam(NullifierEndpoint, ElectionURLParam, id)
	ep = EndpointWithParam(ep, NullifierURLParam, "0x01")
	c.Assert(ep, qt.Equals, "/elections/0xab/nullifiers/0x01")

	// parameters without placeholder become query params
	ep = EndpointWithParam(BallotsEndpoint, ElectionURLParam, id)
	ep = EndpointWithParam(ep, FromQueryParam, "2")
	ep = EndpointWithParam(ep, ToQueryParam, "5")
	c.Assert(ep, qt.Equals, "/elections/0xab/ballots?from=2&to=5")
}
