package main

import (
	"cmp"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/zk-ballotbox/api/client"
	"github.com/vocdoni/zk-ballotbox/crypto/hybrid"
	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/reports"
	"github.com/vocdoni/zk-ballotbox/tally"
	"github.com/vocdoni/zk-ballotbox/types"
	"github.com/vocdoni/zk-ballotbox/verifier"
)

// KeyPair is the output of keygen and pubkey.
type KeyPair struct {
	PrivateKey types.HexBytes `json:"privateKey,omitempty"`
	PublicKey  types.HexBytes `json:"publicKey"`
}

// TallyOutput is the output of tally.
type TallyOutput struct {
	Report *types.TallyReport `json:"report"`
	Winner *uint64            `json:"winner,omitempty"`
	// WinnerInputs are the public inputs of the winner proof.
	WinnerInputs []string `json:"winnerInputs,omitempty"`
	Published    []string `json:"published,omitempty"`
}

func keygen(_ context.Context, args []string) error {
	fs := newFlagSet("keygen")
	if err := fs.Parse(args); err != nil {
		return err
	}
	priv, err := hybrid.GenerateKey()
	if err != nil {
		return err
	}
	return printJSON(&KeyPair{
		PrivateKey: hybrid.PrivateKeyBytes(priv),
		PublicKey:  hybrid.PublicKeyBytes(&priv.PublicKey),
	})
}

func pubkey(_ context.Context, args []string) error {
	fs := newFlagSet("pubkey")
	privHex := fs.StringP("privkey", "k", "", "trustee private key (hex), $"+envPrivKey+" if empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	priv, err := privateKey(*privHex)
	if err != nil {
		return err
	}
	return printJSON(&KeyPair{PublicKey: hybrid.PublicKeyBytes(&priv.PublicKey)})
}

func encrypt(_ context.Context, args []string) error {
	fs := newFlagSet("encrypt")
	pub := fs.BytesHex("pubkey", nil, "trustee public key (hex)")
	vote := fs.Uint8("vote", 0, "vote to encrypt, 0 or 1")
	kdf := fs.String("kdf", hybrid.Default.KDF.String(), "key derivation of the ballot cipher")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(*pub) == 0 {
		return fmt.Errorf("--pubkey is required")
	}
	cipher, err := cipherFor(*kdf)
	if err != nil {
		return err
	}
	c1, c2, err := cipher.Encrypt(*vote, *pub)
	if err != nil {
		return err
	}
	return printJSON(&types.Ballot{C1: c1, C2: c2})
}

func decrypt(_ context.Context, args []string) error {
	fs := newFlagSet("decrypt")
	privHex := fs.StringP("privkey", "k", "", "trustee private key (hex), $"+envPrivKey+" if empty")
	c1 := fs.BytesHex("c1", nil, "ballot ephemeral key (hex)")
	c2 := fs.BytesHex("c2", nil, "ballot ciphertext (hex)")
	kdf := fs.String("kdf", hybrid.Default.KDF.String(), "key derivation of the ballot cipher")
	if err := fs.Parse(args); err != nil {
		return err
	}
	priv, err := privateKey(*privHex)
	if err != nil {
		return err
	}
	cipher, err := cipherFor(*kdf)
	if err != nil {
		return err
	}
	vote, err := cipher.Decrypt(*c1, *c2, priv)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"vote": int(vote)})
}

func tallyCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("tally")
	privHex := fs.StringP("privkey", "k", "", "trustee private key (hex), $"+envPrivKey+" if empty")
	apiURL := fs.StringP("api", "a", "", "ballot box API URL, $"+envAPI+" if empty")
	electionID := fs.StringP("election", "e", "", "election id (hex)")
	workers := fs.IntP("workers", "w", 0, "concurrent decryptions (number of CPUs if 0)")
	batch := fs.Uint64("batch", tally.DefaultBatchSize, "ballots fetched per request")
	kdf := fs.String("kdf", hybrid.Default.KDF.String(), "key derivation of the ballot cipher")
	circuitInput := fs.String("circuit-input", "", "write the winner circuit input to this file")
	output := fs.StringP("output", "o", "", "write the report to this file")
	submit := fs.Bool("submit", false, "sign the report and submit it to the ballot box")
	s3Config := s3Flags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	priv, err := privateKey(*privHex)
	if err != nil {
		return err
	}
	id, err := types.ElectionIDFromString(*electionID)
	if err != nil {
		return fmt.Errorf("--election: %w", err)
	}
	cipher, err := cipherFor(*kdf)
	if err != nil {
		return err
	}
	cli, err := client.New(ctx, apiEndpoint(*apiURL))
	if err != nil {
		return err
	}
	e, err := cli.Election(ctx, id)
	if err != nil {
		return err
	}
	if !e.TrusteePubKey.Equal(hybrid.PublicKeyBytes(&priv.PublicKey)) {
		return fmt.Errorf("the private key does not match the trustee key of election %s", id)
	}

	report, err := tally.Run(ctx, cli.Source(ctx, id), priv, tally.Options{
		Workers:   *workers,
		BatchSize: *batch,
		Cipher:    cipher,
	})
	if err != nil {
		return err
	}
	out := &TallyOutput{Report: report}
	if winner, ok := report.Tally.Winner(); ok {
		out.Winner = &winner
		for _, in := range verifier.WinnerInputs(winner) {
			out.WinnerInputs = append(out.WinnerInputs, in.String())
		}
	} else {
		log.Warnw("tally is a tie, no winner", "electionId", id.String())
	}

	if *circuitInput != "" {
		data, err := report.CircuitInput()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*circuitInput, data, 0o644); err != nil {
			return fmt.Errorf("write circuit input: %w", err)
		}
		log.Infow("winner circuit input written", "file", *circuitInput)
	}
	if *output != "" {
		if err := writeReport(*output, report); err != nil {
			return err
		}
	}
	if *submit {
		if err := submitReport(ctx, cli, report, priv); err != nil {
			return err
		}
	}
	if out.Published, err = publishS3(ctx, s3Config, report); err != nil {
		return err
	}
	return printJSON(out)
}

func publish(ctx context.Context, args []string) error {
	fs := newFlagSet("publish")
	privHex := fs.StringP("privkey", "k", "", "trustee private key (hex), $"+envPrivKey+" if empty")
	apiURL := fs.StringP("api", "a", "", "ballot box API URL, $"+envAPI+" if empty")
	reportFile := fs.StringP("report", "r", "", "report file written by tally --output")
	s3Config := s3Flags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	priv, err := privateKey(*privHex)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*reportFile)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	report := &types.TallyReport{}
	if err := json.Unmarshal(data, report); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	cli, err := client.New(ctx, apiEndpoint(*apiURL))
	if err != nil {
		return err
	}
	if err := submitReport(ctx, cli, report, priv); err != nil {
		return err
	}
	keys, err := publishS3(ctx, s3Config, report)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"report": report, "published": keys})
}

func results(ctx context.Context, args []string) error {
	fs := newFlagSet("results")
	apiURL := fs.StringP("api", "a", "", "ballot box API URL, $"+envAPI+" if empty")
	electionID := fs.StringP("election", "e", "", "election id (hex)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := types.ElectionIDFromString(*electionID)
	if err != nil {
		return fmt.Errorf("--election: %w", err)
	}
	cli, err := client.New(ctx, apiEndpoint(*apiURL))
	if err != nil {
		return err
	}
	report, err := cli.Results(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func submitReport(ctx context.Context, cli *client.HTTPclient, report *types.TallyReport, priv *ecdsa.PrivateKey) error {
	signed, err := tally.Sign(report, priv)
	if err != nil {
		return err
	}
	if _, err := cli.SubmitResults(ctx, signed); err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	log.Infow("tally report submitted", "electionId", report.ElectionID.String(), "runId", report.RunID)
	return nil
}

func writeReport(file string, report *types.TallyReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Infow("tally report written", "file", file)
	return nil
}

// s3Flags registers the S3 publishing flags on fs.
func s3Flags(fs *flag.FlagSet) *reports.S3Config {
	cfg := reports.NewDefaultS3Config()
	fs.BoolVar(&cfg.Enabled, "s3.enabled", false, "publish the report to S3")
	fs.StringVar(&cfg.HostBase, "s3.host-base", cfg.HostBase, "S3 host base")
	fs.StringVar(&cfg.AccessKey, "s3.access-key", "", "S3 access key")
	fs.StringVar(&cfg.SecretKey, "s3.secret-key", "", "S3 secret key")
	fs.StringVar(&cfg.Region, "s3.region", cfg.Region, "S3 region")
	fs.StringVar(&cfg.Space, "s3.space", cfg.Space, "S3 space (bucket name)")
	fs.StringVar(&cfg.Bucket, "s3.bucket", cfg.Bucket, "S3 bucket (folder name)")
	return cfg
}

// publishS3 uploads report when S3 publishing is enabled.
func publishS3(ctx context.Context, cfg *reports.S3Config, report *types.TallyReport) ([]string, error) {
	publisher, err := reports.NewS3Publisher(cfg)
	if errors.Is(err, reports.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := publisher.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("S3 connection test failed: %w", err)
	}
	return publisher.PublishReport(ctx, report)
}

func privateKey(flagValue string) (*ecdsa.PrivateKey, error) {
	hexKey := cmp.Or(flagValue, os.Getenv(envPrivKey))
	if hexKey == "" {
		return nil, fmt.Errorf("private key is required (use --privkey flag or %s environment variable)", envPrivKey)
	}
	return hybrid.ParsePrivateKey(hexKey)
}

func apiEndpoint(flagValue string) string {
	return cmp.Or(flagValue, os.Getenv(envAPI), defaultAPI)
}

func cipherFor(kdf string) (hybrid.Cipher, error) {
	k, err := hybrid.ParseKDF(kdf)
	if err != nil {
		return hybrid.Cipher{}, err
	}
	c := hybrid.Default
	c.KDF = k
	return c, nil
}
