package main

import (
	"context"
	"errors"
	"os"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/dgraph-io/badger/v2"
	"golang.org/x/sync/errgroup"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/coins"
	"github.com/vipnode/nodehealth/healthcheck"
	"github.com/vipnode/nodehealth/metrics"
	"github.com/vipnode/nodehealth/nodeset"
	"github.com/vipnode/nodehealth/store"
	badgerStore "github.com/vipnode/nodehealth/store/badger"
	"github.com/vipnode/nodehealth/store/memory"
)

// findDataDir returns a valid data dir, will create it if it doesn't
// exist.
func findDataDir(overridePath string) (string, error) {
	path := overridePath
	if path == "" {
		path = xdg.New("vipnode", "nodehealth").DataHome()
	}
	err := os.MkdirAll(path, 0700)
	return path, err
}

func openStore(options Options) (store.Store, error) {
	switch options.Store {
	case "memory":
		return memory.New(), nil
	case "badger", "":
		dir, err := findDataDir(options.DataDir)
		if err != nil {
			return nil, err
		}
		badgerOpts := badger.DefaultOptions(dir).WithLogger(nil)
		s, err := badgerStore.Open(badgerOpts)
		if err != nil {
			return nil, ErrExplain{err, "Failed to open the node database. Is another nodehealth process using the same --datadir?"}
		}
		logger.Infof("Persistent store using badger backend: %s", dir)
		return s, nil
	}
	return nil, errors.New("storage driver not implemented")
}

func loadNetworks(options Options) (map[string]coins.Network, error) {
	if options.Config == "" {
		return coins.Builtin(), nil
	}
	networks, err := coins.LoadFile(options.Config)
	if err != nil {
		return nil, ErrExplain{err, "Failed to load the --config file."}
	}
	return networks, nil
}

// network is one running coin network.
type network struct {
	coins.Network
	Set     *nodeset.Controller
	Wrapper *healthcheck.Wrapper
}

// app is the shared state of a command run.
type app struct {
	Core     api.Core
	Store    store.Store
	Metrics  *metrics.Metrics
	Networks []*network
}

// setup opens the store and starts a controller for each named network,
// or for every network if names is empty.
func setup(options Options, names []string, m *metrics.Metrics) (*app, error) {
	networks, err := loadNetworks(options)
	if err != nil {
		return nil, err
	}
	selected, err := coins.Select(networks, names...)
	if err != nil {
		return nil, err
	}

	s, err := openStore(options)
	if err != nil {
		return nil, err
	}
	rt := &app{
		Core:    api.NewHTTPCore(options.Timeout, options.RateLimit),
		Store:   s,
		Metrics: m,
	}
	for _, n := range selected {
		if err := rt.add(n); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (rt *app) add(n coins.Network) error {
	seeds, err := n.Nodes()
	if err != nil {
		return err
	}
	p, err := n.Probe(rt.Core)
	if err != nil {
		return err
	}
	c, err := nodeset.New(nodeset.Config{
		Network: n.Name,
		Seeds:   seeds,
		Probe:   p,
		Params:  n.Params,
		Store:   rt.Store,
		Metrics: rt.Metrics,
	})
	if err != nil {
		return err
	}
	rt.Networks = append(rt.Networks, &network{
		Network: n,
		Set:     c,
		Wrapper: healthcheck.New(healthcheck.Config{
			Nodes:   c,
			Core:    rt.Core,
			Metrics: rt.Metrics,
		}),
	})
	return nil
}

// Network returns the running network by name.
func (rt *app) Network(name string) (*network, bool) {
	for _, n := range rt.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// RefreshAll probes every network once, concurrently.
func (rt *app) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	for _, n := range rt.Networks {
		n := n
		g.Go(func() error {
			return n.Set.RefreshAll(ctx)
		})
	}
	return g.Wait()
}

// Close stops all networks and closes the store.
func (rt *app) Close() error {
	for _, n := range rt.Networks {
		n.Set.Close()
	}
	return rt.Store.Close()
}
