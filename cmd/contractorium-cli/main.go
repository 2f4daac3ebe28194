package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"contractorium/cmd/internal/passphrase"
	"contractorium/crypto"
	"contractorium/rpc"
)

const (
	rpcURLEnv        = "CONTRACTORIUM_RPC_URL"
	rpcTokenEnv      = "CONTRACTORIUM_RPC_TOKEN"
	keystorePassEnv  = "CONTRACTORIUM_KEYSTORE_PASS"
	defaultRPCURL    = "http://127.0.0.1:8080"
	defaultCallLimit = 30 * time.Second
)

type cli struct {
	stdout io.Writer
	stderr io.Writer

	output     string
	client     *rpc.Client
	passphrase func() (string, error)
	keys       map[string]*crypto.PrivateKey
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("contractorium-cli", flag.ContinueOnError)
	global.SetOutput(stderr)
	endpoint := global.String("rpc", envOr(rpcURLEnv, defaultRPCURL), "node JSON-RPC endpoint")
	token := global.String("token", os.Getenv(rpcTokenEnv), "bearer token for write calls")
	output := global.String("output", "json", "output format: json or yaml")
	global.Usage = func() { fmt.Fprintln(stderr, usage()) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if *output != "json" && *output != "yaml" {
		fmt.Fprintf(stderr, "unsupported output format %q\n", *output)
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 2
	}

	c := &cli{
		stdout:     stdout,
		stderr:     stderr,
		output:     *output,
		client:     rpc.NewClient(*endpoint, *token),
		passphrase: passphrase.NewSource(keystorePassEnv, "keystore").Get,
	}
	return c.dispatch(rest[0], rest[1:])
}

func (c *cli) dispatch(command string, args []string) int {
	switch command {
	case "keygen":
		return c.runKeygen(args)
	case "address":
		return c.runAddress(args)
	case "status":
		return c.runStatus(args)
	case "config":
		return c.runConfig(args)
	case "balance":
		return c.runBalance(args)
	case "transfer":
		return c.runTransfer(args)
	case "program":
		return c.runProgram(args)
	case "report":
		return c.runReport(args)
	case "settlement":
		return c.runSettlement(args)
	case "admin":
		return c.runAdmin(args)
	case "preview-cut":
		return c.runPreviewCut(args)
	case "receipt":
		return c.runReceipt(args)
	case "events":
		return c.runEvents(args)
	case "export":
		return c.runExport(args)
	case "help", "-h", "--help":
		fmt.Fprintln(c.stdout, usage())
		return 0
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", command)
		fmt.Fprintln(c.stderr, usage())
		return 2
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: contractorium-cli [--rpc URL] [--token JWT] [--output json|yaml] <command> [flags]

Keys:
  keygen --out FILE                    create an encrypted keystore
  address --keystore FILE              print the keystore address

Queries:
  status | config
  balance --address ADDR
  program get --owner ADDR
  report get --id N | report list (--program ADDR | --reporter ADDR) [--status S]
  settlement get --id N
  preview-cut --amount N
  receipt --tx HASH
  events [--after SEQ] [--limit N]

Transactions (all take --keystore FILE):
  transfer --to ADDR --amount N
  program create|edit --name S --description S [--image URL]
  program delete | program verify --target ADDR | program remove --target ADDR
  report create --program ADDR --title S --description S
  report pay --id N --amount N --note S [--receiver ADDR]
  report delete --id N | report remove --id N
  admin resign --manager ADDR | admin set-cut --bps N | admin payday

Exports:
  export --out FILE [--format csv|jsonl|parquet] (--dsn DSN | --program ADDR)`)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultCallLimit)
}

// print renders v in the selected output format. YAML output keeps the JSON
// field names by round-tripping through a generic value.
func (c *cli) print(v interface{}) int {
	var (
		data []byte
		err  error
	)
	switch c.output {
	case "yaml":
		var generic interface{}
		raw, marshalErr := json.Marshal(v)
		if marshalErr != nil {
			return c.fail(marshalErr)
		}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return c.fail(err)
		}
		data, err = yaml.Marshal(generic)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return c.fail(err)
	}
	_, _ = c.stdout.Write(data)
	return 0
}

func (c *cli) fail(err error) int {
	fmt.Fprintf(c.stderr, "Error: %v\n", err)
	return 1
}

func (c *cli) missing(fs *flag.FlagSet, names ...string) bool {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil || strings.TrimSpace(f.Value.String()) == "" {
			fmt.Fprintf(c.stderr, "Error: --%s is required\n", name)
			return true
		}
	}
	return false
}
