// Package coins describes the built-in networks: their seed nodes, health
// check parameters and the probe that speaks their protocol.
package coins

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/probe"
)

// Family is the node protocol of a network.
type Family string

const (
	EVM     Family = "evm"
	Bitcoin Family = "bitcoin"
	REST    Family = "rest"
)

// Seed is a static node of a network.
type Seed struct {
	Main string `yaml:"main"`
	Alt  string `yaml:"alt,omitempty"`
	// WS marks nodes known to serve websocket connections, on WSPort if
	// set.
	WS     bool `yaml:"ws,omitempty"`
	WSPort int  `yaml:"ws_port,omitempty"`
}

// Network is the static configuration of one coin network.
type Network struct {
	Name   string
	Family Family
	Seeds  []Seed
	Params node.Params
}

// Nodes returns fresh nodes for the network's seeds.
func (n Network) Nodes() ([]node.Node, error) {
	nodes := make([]node.Node, 0, len(n.Seeds))
	for _, s := range n.Seeds {
		main, err := node.ParseOrigin(s.Main)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid seed: %w", n.Name, err)
		}
		var alt *node.Origin
		if s.Alt != "" {
			o, err := node.ParseOrigin(s.Alt)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid alt origin for %s: %w", n.Name, s.Main, err)
			}
			alt = &o
		}
		nd := node.New(main, alt)
		nd.WSEnabled = s.WS
		nd.WSPort = s.WSPort
		nodes = append(nodes, nd)
	}
	return nodes, nil
}

// Probe returns the probe for the network's family.
func (n Network) Probe(core api.Core) (probe.Probe, error) {
	switch n.Family {
	case EVM:
		p := probe.NewEVM(core)
		p.CheckWebsocket = n.Params.WebsocketFallback || n.hasWebsocketSeeds()
		return p, nil
	case Bitcoin:
		return probe.NewBitcoin(core), nil
	case REST:
		return probe.NewREST(core), nil
	}
	return nil, fmt.Errorf("%s: unknown node family: %q", n.Name, n.Family)
}

func (n Network) hasWebsocketSeeds() bool {
	for _, s := range n.Seeds {
		if s.WS {
			return true
		}
	}
	return false
}

func builtin() map[string]Network {
	return map[string]Network{
		"adm": {
			Name:   "adm",
			Family: REST,
			Seeds: []Seed{
				{Main: "https://clown.adamant.im", WS: true, WSPort: 36668},
				{Main: "https://lake.adamant.im", WS: true, WSPort: 36668},
				{Main: "https://endless.adamant.im", Alt: "http://149.102.157.15:36666", WS: true, WSPort: 36668},
				{Main: "https://bid.adamant.im", WS: true, WSPort: 36668},
				{Main: "https://unusual.adamant.im", WS: true, WSPort: 36668},
			},
			Params: node.Params{
				NormalUpdateInterval:   5 * time.Minute,
				CrucialUpdateInterval:  30 * time.Second,
				OnScreenUpdateInterval: 10 * time.Second,
				Threshold:              10,
				MinNodeVersion:         &node.Version{Major: 0, Minor: 8, Patch: 0},
			},
		},
		"eth": {
			Name:   "eth",
			Family: EVM,
			Seeds: []Seed{
				{Main: "https://ethnode1.adamant.im"},
				{Main: "https://ethnode2.adamant.im", Alt: "http://95.216.114.252:44099"},
				{Main: "https://ethnode3.adamant.im"},
			},
			Params: node.Params{
				NormalUpdateInterval:   5 * time.Minute,
				CrucialUpdateInterval:  30 * time.Second,
				OnScreenUpdateInterval: 10 * time.Second,
				Threshold:              5,
			},
		},
		"btc": {
			Name:   "btc",
			Family: Bitcoin,
			Seeds: []Seed{
				{Main: "https://btcnode1.adamant.im/bitcoind", Alt: "http://176.9.38.204:44099/bitcoind"},
				{Main: "https://btcnode3.adamant.im/bitcoind"},
			},
			Params: node.Params{
				NormalUpdateInterval:   10 * time.Minute,
				CrucialUpdateInterval:  time.Minute,
				OnScreenUpdateInterval: 30 * time.Second,
				Threshold:              2,
				ProbeTimeout:           10 * time.Second,
			},
		},
	}
}

// Builtin returns a copy of the built-in networks, by name.
func Builtin() map[string]Network {
	return builtin()
}

// Names returns the sorted network names.
func Names(networks map[string]Network) []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the named networks, or all of them if names is empty.
func Select(networks map[string]Network, names ...string) ([]Network, error) {
	if len(names) == 0 {
		names = Names(networks)
	}
	r := make([]Network, 0, len(names))
	for _, name := range names {
		n, ok := networks[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown network: %q (available: %s)", name, strings.Join(Names(networks), ", "))
		}
		r = append(r, n)
	}
	return r, nil
}

// Heartbeat makes the network's cheapest request against origin, to check
// that requests get through.
func (n Network) Heartbeat(ctx context.Context, core api.Core, origin node.Origin) error {
	switch n.Family {
	case EVM:
		var blockNumber hexutil.Uint64
		return core.Call(ctx, origin, &blockNumber, "eth_blockNumber")
	case Bitcoin:
		var height uint64
		return core.Call(ctx, origin, &height, "getblockcount")
	case REST:
		var r json.RawMessage
		return core.Get(ctx, origin, probe.DefaultStatusPath, &r)
	}
	return fmt.Errorf("%s: unknown node family: %q", n.Name, n.Family)
}
