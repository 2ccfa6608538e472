package storage

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-ballotbox/types"
	"github.com/vocdoni/zk-ballotbox/util"
)

func TestEncodeDecodeArtifact(t *testing.T) {
	c := qt.New(t)
	artifact := types.ElectionConfig{
		ID:            types.NewElectionID("encode"),
		TreeDepth:     20,
		Hash:          "poseidon",
		TrusteePubKey: util.RandomBytes(33),
		VoteVerifier:  "accept",
		StrictPaths:   true,
		CreatedAt:     time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC),
	}

	c.Run("default encoding", func(c *qt.C) {
		encoded, err := EncodeArtifact(artifact)
		c.Assert(err, qt.IsNil)
		var decoded types.ElectionConfig
		c.Assert(DecodeArtifact(encoded, &decoded), qt.IsNil)
		c.Assert(decoded.ID, qt.Equals, artifact.ID)
		c.Assert(decoded.TrusteePubKey.Equal(artifact.TrusteePubKey), qt.IsTrue)
		c.Assert(decoded.CreatedAt.Equal(artifact.CreatedAt), qt.IsTrue)
		c.Assert(decoded.StrictPaths, qt.IsTrue)
	})

	c.Run("cbor is deterministic", func(c *qt.C) {
		a, err := EncodeArtifact(artifact, ArtifactEncodingCBOR)
		c.Assert(err, qt.IsNil)
		b, err := EncodeArtifact(artifact, ArtifactEncodingCBOR)
		c.Assert(err, qt.IsNil)
		c.Assert(a, qt.DeepEquals, b)
	})

	c.Run("json encoding", func(c *qt.C) {
		ballot := types.Ballot{C1: util.RandomBytes(33), C2: util.RandomBytes(29)}
		encoded, err := EncodeArtifact(ballot, ArtifactEncodingJSON)
		c.Assert(err, qt.IsNil)
		c.Assert(string(encoded), qt.Contains, `"c1":"0x`)
		var decoded types.Ballot
		c.Assert(DecodeArtifact(encoded, &decoded, ArtifactEncodingJSON), qt.IsNil)
		c.Assert(decoded.C1.Equal(ballot.C1), qt.IsTrue)
		c.Assert(decoded.C2.Equal(ballot.C2), qt.IsTrue)
	})

	c.Run("invalid encoding", func(c *qt.C) {
		encoded, err := EncodeArtifact(artifact, ArtifactEncoding(100))
		c.Assert(err, qt.IsNotNil)
		var decoded types.ElectionConfig
		c.Assert(DecodeArtifact(encoded, &decoded, ArtifactEncoding(100)), qt.IsNotNil)
	})
}
