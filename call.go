package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/coins"
	"github.com/vipnode/nodehealth/healthcheck"
	"github.com/vipnode/nodehealth/internal/pretty"
	"github.com/vipnode/nodehealth/node"
)

var callTimeout = time.Minute

// parseParams passes through params that are valid JSON, and quotes the
// rest as strings.
func parseParams(args []string) []interface{} {
	params := make([]interface{}, 0, len(args))
	for _, arg := range args {
		if json.Valid([]byte(arg)) {
			params = append(params, json.RawMessage(arg))
			continue
		}
		params = append(params, arg)
	}
	return params
}

// formatResult renders a call result, as an ether amount if asked to.
func formatResult(result json.RawMessage, ether bool) (string, error) {
	if ether {
		var quantity string
		if err := json.Unmarshal(result, &quantity); err != nil {
			return "", fmt.Errorf("result is not a quantity: %s", result)
		}
		wei, err := hexutil.DecodeBig(quantity)
		if err != nil {
			return "", err
		}
		return pretty.Ether(*wei).String(), nil
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func runCall(options Options) error {
	args := options.Call.Args
	rt, err := setup(options, []string{args.Network}, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	n := rt.Networks[0]
	n.Wrapper.SortedBySpeed = options.Call.Fastest

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := n.Set.RefreshAll(ctx); err != nil {
		return err
	}

	params := parseParams(args.Params)
	result, err := healthcheck.Request(ctx, n.Wrapper, func(ctx context.Context, core api.Core, origin node.Origin) (json.RawMessage, error) {
		logger.Debugf("Calling %s on %s", args.Method, origin)
		var r json.RawMessage
		if n.Family == coins.REST {
			err := core.Get(ctx, origin, args.Method, &r)
			return r, err
		}
		err := core.Call(ctx, origin, &r, args.Method, params...)
		return r, err
	})
	if err != nil {
		return err
	}

	out, err := formatResult(result, options.Call.Ether)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, out)
	return nil
}
