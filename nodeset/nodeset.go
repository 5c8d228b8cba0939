// Package nodeset owns the authoritative set of nodes for one network. It
// publishes immutable snapshots of the set, drives probe cycles, applies
// fast-demotes reported by live requests, and persists the set.
package nodeset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vipnode/nodehealth/aggregate"
	"github.com/vipnode/nodehealth/metrics"
	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/probe"
	"github.com/vipnode/nodehealth/store"
)

// ErrClosed is returned when using a controller after Close.
var ErrClosed = errors.New("node set controller is closed")

// ErrUnknownNode is returned by administrative calls for IDs not in the set.
var ErrUnknownNode = errors.New("unknown node")

// ErrDuplicateNode is returned when adding a node whose ID or main origin is
// already in the set.
var ErrDuplicateNode = errors.New("duplicate node")

// Config is the setup for one network's controller.
type Config struct {
	// Network identifies the set, such as "eth". It's used as the storage key.
	Network string
	// Seeds are the static nodes for the network.
	Seeds []node.Node
	// Probe checks one node's health.
	Probe probe.Probe
	// Params are the network's health check parameters.
	Params node.Params
	// Store persists the set across restarts. (Optional)
	Store store.Store
	// Metrics records node health. (Optional)
	Metrics *metrics.Metrics
	// Clock overrides time.Now for measuring refreshes. (Optional)
	Clock func() time.Time
}

// Controller is the single writer of one network's node set. Readers get
// consistent snapshots without blocking.
type Controller struct {
	network string
	probe   probe.Probe
	params  node.Params
	store   store.Store
	metrics *metrics.Metrics
	nowFn   func() time.Time

	snapshot atomic.Pointer[[]node.Node]

	// ctx is cancelled on Close, for background re-probes.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	seq       uint64
	demoted   map[uuid.UUID]uint64
	reprobing map[uuid.UUID]struct{}
	subs      map[int]chan []node.Node
	nextSub   int
	lastSaved string
}

// New returns a controller seeded with the persisted set, if any, and the
// configured seeds. No probe is run until RefreshAll.
func New(cfg Config) (*Controller, error) {
	if cfg.Network == "" {
		return nil, errors.New("nodeset: missing network")
	}
	if cfg.Probe == nil {
		return nil, errors.New("nodeset: missing probe")
	}
	params := cfg.Params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("nodeset: invalid params for %s: %w", cfg.Network, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		network:   cfg.Network,
		probe:     cfg.Probe,
		params:    params,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		nowFn:     cfg.Clock,
		ctx:       ctx,
		cancel:    cancel,
		demoted:   map[uuid.UUID]uint64{},
		reprobing: map[uuid.UUID]struct{}{},
		subs:      map[int]chan []node.Node{},
	}
	if c.nowFn == nil {
		c.nowFn = time.Now
	}

	nodes, err := c.restore(cfg.Seeds)
	if err != nil {
		cancel()
		return nil, err
	}

	c.mu.Lock()
	c.publishLocked(nodes)
	c.mu.Unlock()
	return c, nil
}

// Network returns the network identifier.
func (c *Controller) Network() string {
	return c.network
}

// Params returns the effective health check parameters.
func (c *Controller) Params() node.Params {
	return c.params
}

// Nodes returns the current snapshot. The returned nodes are shared with
// other readers and must not be modified; Clone a node before changing it.
func (c *Controller) Nodes() []node.Node {
	return *c.snapshot.Load()
}

// Node returns the current state of one node.
func (c *Controller) Node(id uuid.UUID) (node.Node, bool) {
	nodes := c.Nodes()
	if i := indexOf(nodes, id); i >= 0 {
		return nodes[i], true
	}
	return node.Node{}, false
}

// Subscribe returns a channel of snapshots, starting with the current one.
// Only the latest snapshot is kept for slow readers. The channel is closed
// when the controller closes or the returned cancel func is called.
func (c *Controller) Subscribe() (<-chan []node.Node, func()) {
	ch := make(chan []node.Node, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.Nodes()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// RefreshAll probes every enabled node, at most Params.MaxConcurrentProbes at
// a time, waits for all of them and then applies the results to the current
// set. If ctx is cancelled or the controller is closed before the probes
// finish, the results are discarded.
func (c *Controller) RefreshAll(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	startSeq := c.seq
	nodes := c.Nodes()
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	start := c.nowFn()
	results := make([]probe.Result, len(nodes))
	probed := make([]bool, len(nodes))

	var g errgroup.Group
	g.SetLimit(c.params.MaxConcurrentProbes)
	for i, n := range nodes {
		if !n.IsEnabled {
			continue
		}
		i, n := i, n
		probed[i] = true
		g.Go(func() error {
			results[i] = c.probeOne(ctx, n)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		if c.ctx.Err() != nil {
			return ErrClosed
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	apply := make(probe.Results, len(nodes))
	for i, n := range nodes {
		if !probed[i] {
			continue
		}
		if c.demoted[n.ID] > startSeq {
			// Demoted by a live request since this refresh began, the
			// failure is newer than the probe.
			continue
		}
		apply[n.ID] = results[i]
	}
	next := aggregate.Apply(c.Nodes(), apply, c.params)
	c.publishLocked(next)

	elapsed := c.nowFn().Sub(start)
	c.metrics.ObserveRefresh(c.network, elapsed)
	logger.Printf("%s: refreshed %d nodes in %s, %d allowed", c.network, len(apply), elapsed, countAllowed(next))
	return nil
}

// probeOne runs a single probe with the per-probe timeout.
func (c *Controller) probeOne(ctx context.Context, n node.Node) probe.Result {
	ctx, cancel := context.WithTimeout(ctx, c.params.ProbeTimeout)
	defer cancel()

	c.metrics.ProbeStarted(c.network)
	info, err := c.probe.Probe(ctx, n)
	if err != nil {
		if probe.KindOf(err) == 0 {
			err = probe.NetworkError(err)
		}
		c.metrics.ProbeDone(c.network, probe.KindOf(err).String())
		logger.Printf("%s: probe failed for %s: %s", c.network, n.Main, err)
		return probe.Result{Err: err}
	}
	c.metrics.ProbeDone(c.network, "")
	return probe.Result{Info: info}
}

// ReportFailure demotes a node to Offline after a live request failed against
// it, and schedules a single-node re-probe after Params.ReprobeDelay so it
// can recover from a transient failure.
func (c *Controller) ReportFailure(id uuid.UUID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	nodes := c.Nodes()
	i := indexOf(nodes, id)
	if i < 0 || !nodes[i].IsEnabled {
		return
	}
	n := nodes[i].Clone()
	n.Status = node.Offline
	n.Ping = nil

	c.seq++
	c.demoted[id] = c.seq
	c.publishLocked(replaced(nodes, i, n))
	c.metrics.Demoted(c.network)
	logger.Printf("%s: demoted %s after request failure: %v", c.network, n.Main, err)

	c.scheduleProbeLocked(id, c.params.ReprobeDelay)
}

// scheduleProbeLocked starts a delayed single-node probe, unless one is
// already pending for the node.
func (c *Controller) scheduleProbeLocked(id uuid.UUID, delay time.Duration) {
	if _, pending := c.reprobing[id]; pending {
		return
	}
	c.reprobing[id] = struct{}{}
	c.wg.Add(1)
	go c.reprobe(id, delay)
}

func (c *Controller) reprobe(id uuid.UUID, delay time.Duration) {
	defer c.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return
	case <-timer.C:
	}

	c.mu.Lock()
	delete(c.reprobing, id)
	startSeq := c.seq
	n, ok := c.Node(id)
	c.mu.Unlock()
	if !ok || !n.IsEnabled {
		return
	}

	res := c.probeOne(c.ctx, n)
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.demoted[id] > startSeq {
		return
	}
	c.publishLocked(aggregate.Apply(c.Nodes(), probe.Results{id: res}, c.params))
}

// SetEnabled turns a node on or off. A disabled node is NotExists, an enabled
// one is Offline until probed, which happens right away.
func (c *Controller) SetEnabled(id uuid.UUID, enabled bool) error {
	return c.update(id, func(n *node.Node) {
		n.IsEnabled = enabled
		if !enabled {
			n.Status = node.NotExists
			n.Ping = nil
			return
		}
		if n.Status == node.NotExists {
			n.Status = node.Offline
		}
		c.scheduleProbeLocked(n.ID, 0)
	})
}

// SetPreferMainOrigin sets or clears (nil) a node's origin preference.
func (c *Controller) SetPreferMainOrigin(id uuid.UUID, prefer *bool) error {
	return c.update(id, func(n *node.Node) {
		n.PreferMainOrigin = nil
		if prefer != nil {
			n.PreferMainOrigin = node.Bool(*prefer)
		}
	})
}

// Add inserts a node into the set and probes it right away. A node without
// an ID is assigned one.
func (c *Controller) Add(n node.Node) (node.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return node.Node{}, ErrClosed
	}
	n = n.Clone()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	nodes := c.Nodes()
	for _, existing := range nodes {
		if existing.ID == n.ID || existing.Main == n.Main {
			return node.Node{}, ErrDuplicateNode
		}
	}
	n.Status = node.Offline
	n.Ping = nil
	if !n.IsEnabled {
		n.Status = node.NotExists
	}

	next := make([]node.Node, 0, len(nodes)+1)
	next = append(next, nodes...)
	next = append(next, n)
	c.publishLocked(next)
	if n.IsEnabled {
		c.scheduleProbeLocked(n.ID, 0)
	}
	return n, nil
}

// Remove deletes a node from the set.
func (c *Controller) Remove(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	nodes := c.Nodes()
	i := indexOf(nodes, id)
	if i < 0 {
		return ErrUnknownNode
	}
	next := make([]node.Node, 0, len(nodes)-1)
	next = append(next, nodes[:i]...)
	next = append(next, nodes[i+1:]...)
	delete(c.demoted, id)
	c.publishLocked(next)
	return nil
}

// Close stops background re-probes, discards in-flight refreshes and closes
// all subscriptions.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancel()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Controller) update(id uuid.UUID, fn func(n *node.Node)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	nodes := c.Nodes()
	i := indexOf(nodes, id)
	if i < 0 {
		return ErrUnknownNode
	}
	n := nodes[i].Clone()
	fn(&n)
	c.publishLocked(replaced(nodes, i, n))
	return nil
}

// publishLocked swaps in the new snapshot, notifies subscribers and persists
// the set. Must be called with c.mu held.
func (c *Controller) publishLocked(nodes []node.Node) {
	c.snapshot.Store(&nodes)
	for _, ch := range c.subs {
		select {
		case ch <- nodes:
		default:
			// Replace the unread snapshot with the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- nodes
		}
	}
	c.metrics.ObserveNodes(c.network, nodes)
	if err := c.saveLocked(nodes); err != nil {
		logger.Printf("%s: failed to persist nodes: %s", c.network, err)
	}
}

func indexOf(nodes []node.Node, id uuid.UUID) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// replaced returns a copy of nodes with the node at i replaced.
func replaced(nodes []node.Node, i int, n node.Node) []node.Node {
	next := make([]node.Node, len(nodes))
	copy(next, nodes)
	next[i] = n
	return next
}

func countAllowed(nodes []node.Node) int {
	num := 0
	for _, n := range nodes {
		if n.Status == node.Allowed && n.IsEnabled {
			num++
		}
	}
	return num
}
