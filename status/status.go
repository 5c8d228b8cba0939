// Package status serves cached public views of node sets, for status
// dashboards and the CLI.
package status

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/selector"
)

const refreshTimeout = time.Second * 30

// Source is a node set to report on, usually a *nodeset.Controller.
type Source interface {
	Network() string
	Nodes() []node.Node
	RefreshAll(ctx context.Context) error
}

// Node is a public view of a node.
type Node struct {
	ShortID   string      `json:"short_id"`
	Origin    string      `json:"origin"`
	Status    node.Status `json:"status"`
	PingMS    *float64    `json:"ping_ms,omitempty"`
	Height    *uint64     `json:"height,omitempty"`
	Version   string      `json:"version,omitempty"`
	Enabled   bool        `json:"enabled"`
	Websocket bool        `json:"websocket"`
	// UsingAlt is set when requests go to the node's alternate origin
	// first.
	UsingAlt bool `json:"using_alt"`
}

// ShortID returns the abbreviated form of a node ID used in public views.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}

func publicNode(n node.Node) Node {
	r := Node{
		ShortID:   ShortID(n.ID),
		Origin:    n.Main.String(),
		Status:    n.Status,
		Height:    n.Height,
		Enabled:   n.IsEnabled,
		Websocket: n.WSEnabled,
		UsingAlt:  n.Alt != nil && n.Origins()[0] == *n.Alt,
	}
	if n.Ping != nil {
		ms := float64(*n.Ping) / float64(time.Millisecond)
		r.PingMS = &ms
	}
	if n.Version != nil {
		r.Version = n.Version.String()
	}
	return r
}

// Response is the response type for Status calls.
type Response struct {
	// TimeUpdated is the time when the response was generated. Because the
	// response is cached, it can be sometime in the past.
	TimeUpdated time.Time `json:"time_updated"`

	// TimeStarted is when the service started.
	TimeStarted time.Time `json:"time_started"`

	// Version of the service that is currently running.
	Version string `json:"version"`

	Network string `json:"network"`
	Nodes   []Node `json:"nodes"`

	// Preferred lists the short IDs of allowed nodes, fastest first.
	Preferred []string `json:"preferred"`

	// Allowed is the number of nodes currently serving requests.
	Allowed int `json:"allowed"`

	// Error is set if the refresh before this response failed.
	Error string `json:"error,omitempty"`
}

// NetworkStatus provides cached status responses for one network. Because
// status calls are unauthenticated, only public data is included and
// responses are cached.
type NetworkStatus struct {
	Source Source

	// TimeStarted is the time when the service was started.
	TimeStarted time.Time

	// Version of the service to report.
	Version string

	// CacheDuration is the time for responses to be cached.
	CacheDuration time.Duration

	// RefreshOnMiss refreshes the node set before building a response when
	// the cache has expired.
	RefreshOnMiss bool

	mu         sync.RWMutex
	cachedResp *Response
}

// getStatus is an uncached version of Status.
func (s *NetworkStatus) getStatus(refreshErr error) *Response {
	nodes := s.Source.Nodes()
	r := &Response{
		TimeUpdated: time.Now(),
		TimeStarted: s.TimeStarted,
		Version:     s.Version,
		Network:     s.Source.Network(),
		Nodes:       make([]Node, 0, len(nodes)),
		Preferred:   []string{},
	}
	if refreshErr != nil {
		r.Error = refreshErr.Error()
	}
	for _, n := range nodes {
		r.Nodes = append(r.Nodes, publicNode(n))
		if selector.Eligible(n) {
			r.Allowed++
		}
	}
	for _, id := range selector.Ranked(nodes) {
		r.Preferred = append(r.Preferred, ShortID(id))
	}
	return r
}

func (s *NetworkStatus) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	return s.Source.RefreshAll(ctx)
}

// Status returns the status of the network.
func (s *NetworkStatus) Status(ctx context.Context) (*Response, error) {
	s.mu.RLock()
	cachedResp := s.cachedResp
	s.mu.RUnlock()

	if cachedResp != nil && cachedResp.TimeUpdated.Add(s.CacheDuration).After(time.Now()) {
		return cachedResp, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Did another request beat us to it?
	if s.cachedResp != cachedResp {
		return s.cachedResp, nil
	}

	var err error
	if s.RefreshOnMiss {
		err = s.refresh(ctx)
	}
	// Cache even if the refresh failed, so errors can't be used to force
	// refreshes.
	s.cachedResp = s.getStatus(err)
	return s.cachedResp, err
}

// Refresh forces a refresh of the node set and replaces the cached response.
func (s *NetworkStatus) Refresh(ctx context.Context) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.refresh(ctx)
	s.cachedResp = s.getStatus(err)
	return s.cachedResp, err
}

// ErrUnknownNetwork is returned for networks that are not served.
var ErrUnknownNetwork = errors.New("unknown network")

// Service exposes network statuses over JSONRPC.
type Service struct {
	ByNetwork map[string]*NetworkStatus
}

func (s *Service) network(name string) (*NetworkStatus, error) {
	ns, ok := s.ByNetwork[name]
	if !ok {
		return nil, ErrUnknownNetwork
	}
	return ns, nil
}

// Status returns the cached status of a network.
func (s *Service) Status(ctx context.Context, network string) (*Response, error) {
	ns, err := s.network(network)
	if err != nil {
		return nil, err
	}
	return ns.Status(ctx)
}

// Refresh probes every node of a network and returns the fresh status.
func (s *Service) Refresh(ctx context.Context, network string) (*Response, error) {
	ns, err := s.network(network)
	if err != nil {
		return nil, err
	}
	return ns.Refresh(ctx)
}

// Networks returns the served networks, sorted.
func (s *Service) Networks() []string {
	names := make([]string, 0, len(s.ByNetwork))
	for name := range s.ByNetwork {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
