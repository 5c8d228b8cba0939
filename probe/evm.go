package probe

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/node"
)

var _ Probe = &EVM{}

// EVM probes Ethereum-compatible JSONRPC nodes with a single batch of
// eth_blockNumber, web3_clientVersion and eth_syncing.
type EVM struct {
	clock
	Core api.Core

	// CheckWebsocket enables a websocket round trip on every probe, to
	// detect websocket support.
	CheckWebsocket bool
	// WSPort is the websocket port to check. 0 means the origin's port, or
	// the node's own WSPort if it has one.
	WSPort int
}

// NewEVM returns an EVM probe using the given core.
func NewEVM(core api.Core) *EVM {
	return &EVM{Core: core}
}

func (p *EVM) Probe(ctx context.Context, n node.Node) (node.StatusInfo, error) {
	return eachOrigin(ctx, n, func(origin node.Origin) (node.StatusInfo, error) {
		return p.probeOrigin(ctx, n, origin)
	})
}

func (p *EVM) probeOrigin(ctx context.Context, n node.Node, origin node.Origin) (node.StatusInfo, error) {

	var blockNumber hexutil.Uint64
	var clientVersion string
	var syncing json.RawMessage
	batch := []jsonrpc2.BatchElem{
		{Method: "eth_blockNumber", Result: &blockNumber},
		{Method: "web3_clientVersion", Result: &clientVersion},
		{Method: "eth_syncing", Result: &syncing},
	}

	start := p.now()
	if err := p.Core.Batch(ctx, origin, batch); err != nil {
		return node.StatusInfo{}, transportError(err)
	}
	if err := batch[0].Error; err != nil {
		if api.IsNetwork(err) {
			return node.StatusInfo{}, NetworkError(err)
		}
		return node.StatusInfo{}, ParsingError(err)
	}
	info := node.StatusInfo{
		Ping:   p.now().Sub(start),
		Height: node.Uint64(uint64(blockNumber)),
	}

	// Optional fields, missing or failed values are left empty.
	if batch[1].Error == nil && clientVersion != "" {
		client := ParseClient(clientVersion)
		info.Version = client.Version
		logger.Printf("%s: %s client %s at height %d", origin, client.Kind, clientVersion, blockNumber)
	}
	if batch[2].Error == nil {
		info.Syncing = isSyncing(syncing)
	}

	if p.CheckWebsocket {
		port := p.WSPort
		if port == 0 {
			port = n.WSPort
		}
		info.WSEnabled = p.checkWebsocket(ctx, origin, port)
		if info.WSEnabled {
			info.WSPort = port
		}
	}
	return info, nil
}

// checkWebsocket returns true if a websocket connection can serve a call.
func (p *EVM) checkWebsocket(ctx context.Context, origin node.Origin, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, err := p.Core.DialWebsocket(ctx, origin, port)
	if err != nil {
		return false
	}
	defer conn.Close()
	var blockNumber hexutil.Uint64
	if err := conn.Call(ctx, &blockNumber, "eth_blockNumber"); err != nil {
		logger.Printf("%s: websocket call failed: %s", origin, err)
		return false
	}
	return true
}

// isSyncing decodes the result of eth_syncing, which is false when the node
// is in sync and a progress object otherwise.
func isSyncing(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var progress struct {
		CurrentBlock *hexutil.Uint64 `json:"currentBlock"`
		HighestBlock *hexutil.Uint64 `json:"highestBlock"`
	}
	if err := json.Unmarshal(raw, &progress); err != nil {
		return false
	}
	return progress.HighestBlock != nil
}

var errNoHeight = errors.New("missing height in response")
