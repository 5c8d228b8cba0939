package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/healthcheck"
	"github.com/vipnode/nodehealth/internal/pretty"
	"github.com/vipnode/nodehealth/metrics"
	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/scheduler"
)

// serviceCheck is the target of the service-level loop: each refresh makes
// one wrapped request, so requests keep failing over between probe cycles.
type serviceCheck struct {
	*network
}

func (s serviceCheck) Nodes() []node.Node {
	return s.Set.Nodes()
}

func (s serviceCheck) RefreshAll(ctx context.Context) error {
	_, err := healthcheck.Request(ctx, s.Wrapper, func(ctx context.Context, core api.Core, origin node.Origin) (struct{}, error) {
		return struct{}{}, s.Heartbeat(ctx, core, origin)
	})
	return err
}

// watcher runs the schedulers of every network and logs status changes.
type watcher struct {
	mu         sync.Mutex
	schedulers []*scheduler.Scheduler
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func watch(rt *app, onScreen bool) (*watcher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{cancel: cancel}
	for _, n := range rt.Networks {
		params := n.Set.Params()
		nodeLoop := scheduler.New(n.Name, n.Set, params.NodeIntervals())
		nodeLoop.SetOnScreen(onScreen)
		if err := w.start(nodeLoop); err != nil {
			w.Stop()
			return nil, err
		}

		// Heartbeats against a set that hasn't been probed yet can only fail,
		// so the service loop waits for the first active node.
		serviceLoop := scheduler.New(n.Name+"/service", serviceCheck{n}, params.ServiceIntervals())
		serviceLoop.SetOnScreen(onScreen)
		w.wg.Add(2)
		go func(n *network) {
			defer w.wg.Done()
			if err := n.Wrapper.WaitForActiveNode(ctx); err != nil {
				return
			}
			if err := w.start(serviceLoop); err != nil {
				logger.Errorf("%s: failed to start the service loop: %s", n.Name, err)
			}
		}(n)
		go func(n *network) {
			defer w.wg.Done()
			logChanges(ctx, n)
		}(n)
	}
	return w, nil
}

func (w *watcher) start(s *scheduler.Scheduler) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := s.Start(); err != nil {
		return err
	}
	w.schedulers = append(w.schedulers, s)
	return nil
}

// Running returns the number of started schedulers.
func (w *watcher) Running() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.schedulers)
}

// Stop stops all schedulers and waits for them.
func (w *watcher) Stop() {
	// Nothing starts after the goroutines are done.
	w.cancel()
	w.wg.Wait()

	w.mu.Lock()
	schedulers := w.schedulers
	w.mu.Unlock()
	for _, s := range schedulers {
		s.Stop()
	}
	for _, s := range schedulers {
		s.Wait()
	}
}

// logChanges logs every node status change until ctx is done.
func logChanges(ctx context.Context, n *network) {
	ch, cancel := n.Set.Subscribe()
	defer cancel()
	last := map[string]node.Status{}
	for {
		select {
		case <-ctx.Done():
			return
		case nodes, ok := <-ch:
			if !ok {
				return
			}
			for _, nd := range nodes {
				key := nd.ID.String()
				prev, seen := last[key]
				last[key] = nd.Status
				if seen && prev == nd.Status {
					continue
				}
				logger.Infof("%s: %s is %s (ping %s, height %s)", n.Name, nd.Main, nd.Status, pretty.Ping(nd.Ping), pretty.Uint(nd.Height))
			}
		}
	}
}

// newMetrics returns a metrics registry if addr is set.
func newMetrics(addr string) *metrics.Metrics {
	if addr == "" {
		return nil
	}
	return metrics.New()
}

func serveMetrics(addr string, m *metrics.Metrics) {
	if m == nil {
		return
	}
	go func() {
		logger.Infof("Serving metrics on: http://%s/metrics", addr)
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("Metrics server failed: %s", err)
		}
	}()
}

// waitForInterrupt blocks until ctrl+c.
func waitForInterrupt() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	<-sigCh
	signal.Stop(sigCh)
	logger.Info("Shutting down...")
}

func runWatch(options Options) error {
	m := newMetrics(options.Watch.Metrics)
	rt, err := setup(options, options.Watch.Args.Networks, m)
	if err != nil {
		return err
	}
	defer rt.Close()
	serveMetrics(options.Watch.Metrics, m)

	w, err := watch(rt, options.Watch.OnScreen)
	if err != nil {
		return err
	}
	logger.Infof("Watching %d networks.", len(rt.Networks))
	waitForInterrupt()
	w.Stop()
	return nil
}
