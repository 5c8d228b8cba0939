package probe

import (
	"context"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/jsonrpc2"
	"github.com/vipnode/nodehealth/node"
)

var _ Probe = &Bitcoin{}

// Bitcoin probes bitcoind-compatible JSONRPC nodes.
type Bitcoin struct {
	clock
	Core api.Core
}

// NewBitcoin returns a Bitcoin probe using the given core.
func NewBitcoin(core api.Core) *Bitcoin {
	return &Bitcoin{Core: core}
}

type blockchainInfo struct {
	Chain                string   `json:"chain"`
	Blocks               *uint64  `json:"blocks"`
	Headers              *uint64  `json:"headers"`
	InitialBlockDownload bool     `json:"initialblockdownload"`
	VerificationProgress *float64 `json:"verificationprogress"`
}

type networkInfo struct {
	Version    int    `json:"version"`
	Subversion string `json:"subversion"`
}

func (p *Bitcoin) Probe(ctx context.Context, n node.Node) (node.StatusInfo, error) {
	return eachOrigin(ctx, n, func(origin node.Origin) (node.StatusInfo, error) {
		return p.probeOrigin(ctx, origin)
	})
}

func (p *Bitcoin) probeOrigin(ctx context.Context, origin node.Origin) (node.StatusInfo, error) {

	var chain blockchainInfo
	var network networkInfo
	batch := []jsonrpc2.BatchElem{
		{Method: "getblockchaininfo", Result: &chain},
		{Method: "getnetworkinfo", Result: &network},
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
	if chain.Blocks == nil {
		return node.StatusInfo{}, ParsingError(errNoHeight)
	}

	info := node.StatusInfo{
		Ping:    p.now().Sub(start),
		Height:  node.Uint64(*chain.Blocks),
		Syncing: chain.InitialBlockDownload,
	}
	if batch[1].Error == nil && network.Subversion != "" {
		info.Version = ParseClient(network.Subversion).Version
	}
	return info, nil
}
