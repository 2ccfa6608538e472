package reports

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	qt "github.com/frankban/quicktest"

	"github.com/vocdoni/zk-ballotbox/types"
)

func TestNewS3Publisher(t *testing.T) {
	c := qt.New(t)

	_, err := NewS3Publisher(NewDefaultS3Config())
	c.Assert(err, qt.ErrorIs, ErrDisabled)

	cfg := NewDefaultS3Config()
	cfg.Enabled = true
	_, err = NewS3Publisher(cfg)
	c.Assert(err, qt.ErrorMatches, ".*access key.*")

	cfg.AccessKey, cfg.SecretKey = "key", "secret"
	p, err := NewS3Publisher(cfg)
	c.Assert(err, qt.IsNil)

	report := &types.TallyReport{ElectionID: types.NewElectionID("s3"), RunID: "run"}
	c.Assert(p.ObjectKey(report, false), qt.Equals, "reports/"+report.ElectionID.String()+".json")
	c.Assert(p.ObjectKey(report, true), qt.Equals, "reports/"+report.ElectionID.String()+"-run.json")
}

func TestDescribe(t *testing.T) {
	c := qt.New(t)
	plain := errors.New("dial tcp: timeout")
	c.Assert(describe(plain), qt.Equals, plain)

	apiErr := &smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}
	err := describe(apiErr)
	c.Assert(err, qt.ErrorMatches, "AccessDenied \\(no\\): .*")
	c.Assert(errors.Is(err, apiErr), qt.IsTrue)
}

// TestPublishLive runs against a real space when S3_ACCESS_KEY,
// S3_SECRET_KEY and S3_SPACE are set.
func TestPublishLive(t *testing.T) {
	if os.Getenv("S3_ACCESS_KEY") == "" || os.Getenv("S3_SECRET_KEY") == "" || os.Getenv("S3_SPACE") == "" {
		t.Skip("S3 credentials not provided")
	}
	c := qt.New(t)
	cfg := NewDefaultS3Config()
	cfg.Enabled = true
	cfg.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.Space = os.Getenv("S3_SPACE")
	if host := os.Getenv("S3_HOST"); host != "" {
		cfg.HostBase = host
	}
	p, err := NewS3Publisher(cfg)
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	c.Assert(p.TestConnection(ctx), qt.IsNil)
	keys, err := p.PublishReport(ctx, &types.TallyReport{
		RunID:      "test",
		ElectionID: types.RandomElectionID(),
		Tally:      types.Tally{Count0: 1, Total: 1},
		Votes:      []int{0},
		StartedAt:  time.Now(),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.HasLen, 2)
}
