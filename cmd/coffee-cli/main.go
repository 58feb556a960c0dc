package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"cryptocoffee/cmd/internal/passphrase"
	"cryptocoffee/rpc"
)

const (
	defaultRPCEndpoint = "http://127.0.0.1:8080"
	rpcEnv             = "COFFEE_RPC_URL"
	passphraseEnv      = "COFFEE_KEYSTORE_PASSPHRASE"
)

// cli carries the global flags and the collaborators a command needs.
type cli struct {
	endpoint string
	keystore string
	chainID  uint64
	timeout  time.Duration

	stdout     io.Writer
	passphrase func() (string, error)
	client     *rpc.Client
}

func main() {
	app := &cli{
		stdout:     os.Stdout,
		passphrase: passphrase.NewSource(passphraseEnv, "").Get,
	}
	if err := app.run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) run(args []string) error {
	flags := pflag.NewFlagSet("coffee-cli", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	endpoint := defaultRPCEndpoint
	if fromEnv := strings.TrimSpace(os.Getenv(rpcEnv)); fromEnv != "" {
		endpoint = fromEnv
	}
	flags.StringVar(&c.endpoint, "rpc", endpoint, "JSON-RPC endpoint of the coffee node")
	flags.StringVar(&c.keystore, "keystore", "./coffee.keystore", "Path to the signing keystore")
	flags.Uint64Var(&c.chainID, "chain-id", 0, "Chain id to sign for (fetched from the node when 0)")
	flags.DurationVar(&c.timeout, "timeout", 15*time.Second, "Per-command timeout")
	flags.Usage = func() { printUsage(c.stdout, flags) }
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(c.stdout, flags)
		return nil
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		printUsage(c.stdout, flags)
		return fmt.Errorf("unknown command %q", rest[0])
	}
	if len(rest)-1 != len(cmd.args) {
		return fmt.Errorf("usage: coffee-cli %s %s", rest[0], strings.Join(cmd.args, " "))
	}
	if c.client == nil {
		c.client = rpc.NewClient(c.endpoint, nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return cmd.run(ctx, c, rest[1:])
}

func (c *cli) print(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.stdout, string(data))
	return err
}

func printUsage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: coffee-cli [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range commandOrder {
		cmd := commands[name]
		fmt.Fprintf(w, "  %-26s %s\n", strings.TrimSpace(name+" "+strings.Join(cmd.args, " ")), cmd.help)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, flags.FlagUsages())
}
