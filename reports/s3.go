// Package reports publishes tally reports to an S3 compatible object store,
// so that anyone can fetch the trustee's result next to the ledger.
package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/types"
)

// ErrDisabled is returned when publishing is not enabled.
var ErrDisabled = errors.New("s3 publishing not enabled")

// S3Config holds the configuration for S3 uploads
type S3Config struct {
	Enabled   bool
	HostBase  string
	AccessKey string
	SecretKey string
	Region    string
	Space     string
	Bucket    string
}

// NewDefaultS3Config returns a new S3Config with default values
func NewDefaultS3Config() *S3Config {
	return &S3Config{
		Enabled:  false,
		HostBase: "ams3.digitaloceanspaces.com",
		Region:   "us-east-1",
		Space:    "ballotbox",
		Bucket:   "reports",
	}
}

// S3Publisher uploads tally reports to S3
type S3Publisher struct {
	client *s3.Client
	config *S3Config
}

// NewS3Publisher creates a new S3Publisher with the provided configuration
func NewS3Publisher(cfg *S3Config) (*S3Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	if cfg.Space == "" {
		return nil, fmt.Errorf("s3 space is required")
	}

	sdkConfig, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		// required by the SDK even when the endpoint ignores it
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.HostBase != "" {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", cfg.HostBase))
		}
		o.UsePathStyle = true
	})

	return &S3Publisher{
		client: client,
		config: cfg,
	}, nil
}

// ObjectKey is the key a report is stored under: one object per election,
// replaced by later runs, plus one per run.
func (p *S3Publisher) ObjectKey(report *types.TallyReport, perRun bool) string {
	name := report.ElectionID.String() + ".json"
	if perRun {
		name = report.ElectionID.String() + "-" + report.RunID + ".json"
	}
	return path.Join(p.config.Bucket, name)
}

// PublishReport uploads the JSON encoding of report twice, under its
// election key and under its run key, and returns both keys.
func (p *S3Publisher) PublishReport(ctx context.Context, report *types.TallyReport) ([]string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	keys := []string{p.ObjectKey(report, false), p.ObjectKey(report, true)}
	for _, key := range keys {
		if err := p.Publish(ctx, key, data); err != nil {
			return nil, err
		}
	}
	log.Infow("tally report published",
		"electionId", report.ElectionID.String(),
		"runId", report.RunID,
		"space", p.config.Space,
		"keys", keys)
	return keys, nil
}

// Publish uploads data under key with a public-read ACL.
func (p *S3Publisher) Publish(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.config.Space),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		ACL:         s3types.ObjectCannedACLPublicRead,
	}
	log.Debugw("uploading object to S3", "key", key, "space", p.config.Space, "size", len(data))
	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, describe(err))
	}
	return nil
}

// TestConnection lists at most one object to check access to the space.
func (p *S3Publisher) TestConnection(ctx context.Context) error {
	_, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.config.Space),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("S3 connection test failed: %w", describe(err))
	}
	log.Infow("S3 connection successful",
		"host", p.config.HostBase,
		"space", p.config.Space,
		"bucket", p.config.Bucket)
	return nil
}

// describe adds the service error code, when there is one, to err.
func describe(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s (%s): %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return err
}
