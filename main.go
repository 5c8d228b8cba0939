package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/healthcheck"
	"github.com/vipnode/nodehealth/jsonrpc2"
)

// Version of the binary, assigned during build.
var Version string = "dev"

// Options contains the flag options
type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version bool   `long:"version" description:"Print version and exit."`

	Config    string        `long:"config" env:"NODEHEALTH_CONFIG" description:"YAML file with network overrides."`
	DataDir   string        `long:"datadir" env:"NODEHEALTH_DATADIR" description:"Path for storing the persisted node sets. (Default: $XDG_DATA_HOME/nodehealth)"`
	Store     string        `long:"store" env:"NODEHEALTH_STORE" description:"Storage driver." choice:"badger" choice:"memory" default:"badger"`
	Timeout   time.Duration `long:"timeout" env:"NODEHEALTH_TIMEOUT" description:"Timeout for each request to a node." default:"10s"`
	RateLimit float64       `long:"ratelimit" env:"NODEHEALTH_RATELIMIT" description:"Maximum requests per second to each node, 0 for unlimited." default:"5"`

	Status struct {
		Args struct {
			Networks []string `positional-arg-name:"network" description:"Networks to check. (Default: all)"`
		} `positional-args:"yes"`
	} `command:"status" description:"Probe every node once and print a status table."`

	Watch struct {
		Args struct {
			Networks []string `positional-arg-name:"network" description:"Networks to watch. (Default: all)"`
		} `positional-args:"yes"`
		Metrics  string `long:"metrics" env:"NODEHEALTH_METRICS" description:"Address to serve Prometheus metrics on, such as :9100."`
		OnScreen bool   `long:"onscreen" description:"Use the on-screen refresh interval."`
	} `command:"watch" description:"Keep checking node health and log status changes."`

	Serve struct {
		Args struct {
			Networks []string `positional-arg-name:"network" description:"Networks to serve. (Default: all)"`
		} `positional-args:"yes"`
		Bind          string        `long:"bind" env:"NODEHEALTH_BIND" description:"Address and port to listen on." default:"0.0.0.0:8080"`
		TLSHost       string        `long:"tlshost" env:"NODEHEALTH_TLSHOST" description:"Acquire an ACME certificate for this host and listen on :443."`
		Metrics       string        `long:"metrics" env:"NODEHEALTH_METRICS" description:"Address to serve Prometheus metrics on, such as :9100."`
		AllowOrigin   string        `long:"allow-origin" description:"Access-Control-Allow-Origin header for RPC responses."`
		CacheDuration time.Duration `long:"cache" description:"How long status responses are cached." default:"10s"`
		Admin         []string      `long:"admin" env:"NODEHEALTH_ADMIN" env-delim:"," description:"Address allowed to make signed admin requests. (Can be repeated)"`
	} `command:"serve" description:"Keep checking node health and serve the status over JSONRPC."`

	Call struct {
		Args struct {
			Network string   `positional-arg-name:"network" required:"yes"`
			Method  string   `positional-arg-name:"method" description:"JSONRPC method, or the path for REST networks." required:"yes"`
			Params  []string `positional-arg-name:"params" description:"Parameters, as JSON values or plain strings."`
		} `positional-args:"yes"`
		Fastest bool `long:"fastest" description:"Use the fastest node instead of a random allowed node."`
		Ether   bool `long:"ether" description:"Format a quantity result as an ether amount."`
	} `command:"call" description:"Make one request with automatic failover across nodes."`

	Admin struct {
		Args struct {
			Action  string   `positional-arg-name:"action" description:"One of: address, enable, disable, add, remove" required:"yes"`
			Network string   `positional-arg-name:"network"`
			Target  []string `positional-arg-name:"target" description:"Node ID prefix, or the main and alt origin for add."`
		} `positional-args:"yes"`
		RPC        string `long:"rpc" env:"NODEHEALTH_RPC" description:"URL of the nodehealth server." default:"http://localhost:8080"`
		PrivateKey string `long:"privatekey" env:"NODEHEALTH_PRIVATEKEY" description:"Path to the admin private key. (Default: $XDG_DATA_HOME/nodehealth/admin.key)"`
	} `command:"admin" description:"Manage the nodes of a running server with signed requests."`
}

const callUsage = `Examples:
* Get the latest block number from any healthy Ethereum node:
  $ nodehealth call eth eth_blockNumber

* Get a balance from the fastest node:
  $ nodehealth call --fastest --ether eth eth_getBalance 0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae latest

* Query an ADAMANT node's REST API:
  $ nodehealth call adm /api/blocks/getHeight
`

func subcommand(cmd string, options Options) error {
	switch cmd {
	case "status":
		return runStatus(options)
	case "watch":
		return runWatch(options)
	case "serve":
		return runServe(options)
	case "call":
		return runCall(options)
	case "admin":
		return runAdmin(options)
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func main() {
	// Environment defaults can come from a .env file.
	_ = godotenv.Load()

	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	parser.SubcommandsOptional = true
	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Println(err)
		}
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp && parser.Active != nil {
			// Print additional usage help when run with --help
			switch parser.Active.Name {
			case "call":
				exit(0, callUsage)
			case "admin":
				exit(0, adminUsage)
			}
		}
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	setVerbosity(os.Stderr, len(options.Verbose))

	cmd := "status"
	if parser.Active != nil {
		cmd = parser.Active.Name
	}
	err = subcommand(cmd, options)
	if err == nil {
		return
	}

	if err == io.EOF {
		exit(3, "Connection closed.\n")
	}

	err = explain(err)
	exit(2, "%s failed: %s\n", cmd, err)
}

// explain annotates an error with a hint for the user.
func explain(err error) error {
	var explained ErrExplain
	var failed *healthcheck.NodesFailedError
	var errResp *jsonrpc2.ErrResponse
	var netErr net.Error
	switch {
	case errors.As(err, &explained):
		return err
	case errors.Is(err, healthcheck.ErrNoNodesAvailable):
		return ErrExplain{err, `None of the nodes are healthy right now. Run the status command to see why, or add nodes with --config.`}
	case errors.As(err, &failed):
		return ErrExplain{err, `Every node that was tried failed to respond. Could be a connectivity issue on this side. Try again?`}
	case errors.As(err, &errResp):
		switch errResp.Code {
		case jsonrpc2.ErrCodeMethodNotFound:
			return ErrExplain{err, `The node does not support this RPC method.`}
		case jsonrpc2.ErrCodeInvalidParams:
			return ErrExplain{err, `The node rejected the parameters. JSON values are passed as-is, anything else as a string.`}
		}
		return ErrExplain{err, fmt.Sprintf(`The node answered with an error (code %d).`, errResp.Code)}
	case api.KindOf(err) == api.KindDecode:
		return ErrExplain{err, `The node answered with something that is not valid JSON. Is the network's family configured correctly?`}
	case errors.As(err, &netErr):
		return ErrExplain{err, `Failed to listen or connect. Check that the address is available.`}
	}
	return ErrExplain{err, fmt.Sprintf(`Error type %T is missing an explanation. Please open an issue at https://github.com/vipnode/nodehealth`, err)}
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with an explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}

func (err ErrExplain) Unwrap() error {
	return err.Cause
}
