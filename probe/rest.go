package probe

import (
	"context"
	"errors"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/node"
)

// DefaultStatusPath is the node status endpoint queried by REST probes.
const DefaultStatusPath = "/api/node/status"

var _ Probe = &REST{}

// REST probes nodes that expose a JSON status endpoint, such as ADAMANT
// nodes.
type REST struct {
	clock
	Core api.Core
	// Path is the status endpoint, DefaultStatusPath if empty.
	Path string
}

// NewREST returns a REST probe using the given core.
func NewREST(core api.Core) *REST {
	return &REST{Core: core}
}

type restStatus struct {
	Success *bool `json:"success"`
	Network *struct {
		Height *uint64 `json:"height"`
	} `json:"network"`
	Version *struct {
		Version string `json:"version"`
	} `json:"version"`
	WSClient *struct {
		Enabled bool `json:"enabled"`
		Port    int  `json:"port"`
	} `json:"wsClient"`
}

var errNotSuccessful = errors.New("node status response was not successful")

func (p *REST) Probe(ctx context.Context, n node.Node) (node.StatusInfo, error) {
	return eachOrigin(ctx, n, func(origin node.Origin) (node.StatusInfo, error) {
		return p.probeOrigin(ctx, origin)
	})
}

func (p *REST) probeOrigin(ctx context.Context, origin node.Origin) (node.StatusInfo, error) {
	path := p.Path
	if path == "" {
		path = DefaultStatusPath
	}

	var status restStatus
	start := p.now()
	if err := p.Core.Get(ctx, origin, path, &status); err != nil {
		return node.StatusInfo{}, transportError(err)
	}
	if status.Success != nil && !*status.Success {
		return node.StatusInfo{}, ParsingError(errNotSuccessful)
	}

	info := node.StatusInfo{
		Ping: p.now().Sub(start),
	}
	if status.Network != nil && status.Network.Height != nil {
		info.Height = node.Uint64(*status.Network.Height)
	}
	if status.Version != nil && status.Version.Version != "" {
		if v, err := node.ParseVersion(status.Version.Version); err == nil {
			info.Version = &v
		}
	}
	if status.WSClient != nil && status.WSClient.Enabled {
		info.WSEnabled = true
		info.WSPort = status.WSClient.Port
	}
	return info, nil
}
