package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/vocdoni/zk-ballotbox/log"
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

const (
	envPrivKey = "TRUSTEE_PRIVKEY"
	envAPI     = "BALLOTBOX_API"
	defaultAPI = "http://127.0.0.1:9090"
)

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

var commands map[string]command

// commands is filled in init because newFlagSet refers back to it.
func init() {
	commands = map[string]command{
		"keygen":  {"generate a trustee key pair", keygen},
		"pubkey":  {"print the public key of --privkey", pubkey},
		"encrypt": {"encrypt --vote for --pubkey", encrypt},
		"decrypt": {"decrypt the ballot --c1 --c2 with --privkey", decrypt},
		"tally":   {"tally the ballots of --election from --api", tallyCmd},
		"publish": {"sign a --report file and submit it to --api", publish},
		"results": {"fetch the published results of --election", results},
	}
}

var commandOrder = []string{"keygen", "pubkey", "encrypt", "decrypt", "tally", "publish", "results"}

func usage() {
	fmt.Fprintf(os.Stderr, "trustee v%s\n\n", Version)
	fmt.Fprintf(os.Stderr, "Usage: trustee <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'trustee <command> --help' for the flags of a command.\n")
	fmt.Fprintf(os.Stderr, "The private key defaults to $%s and the API to $%s.\n", envPrivKey, envAPI)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}
	log.Init(cmp.Or(os.Getenv("LOG_LEVEL"), log.LogLevelInfo), "stderr", nil)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := cmd.run(ctx, os.Args[2:]); err != nil {
		log.Errorw(err, os.Args[1]+" failed")
		cancel()
		os.Exit(1)
	}
}

// newFlagSet returns a flag set for the sub-command name.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: trustee %s [flags]\n\n%s\n\nFlags:\n", name, commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

// printJSON writes v to stdout, indented.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
