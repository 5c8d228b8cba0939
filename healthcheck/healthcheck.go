// Package healthcheck is the request facade used by coin services. It picks
// a healthy node for each request, fails over to other origins and nodes on
// network errors, and reports failing nodes back to their node set.
package healthcheck

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/metrics"
	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/nodeset"
	"github.com/vipnode/nodehealth/selector"
)

// NodeSet is the node set a wrapper draws from, usually a
// *nodeset.Controller.
type NodeSet interface {
	nodeset.Subscriber
	Network() string
	Params() node.Params
	Nodes() []node.Node
	RefreshAll(ctx context.Context) error
	ReportFailure(id uuid.UUID, err error)
	SetPreferMainOrigin(id uuid.UUID, prefer *bool) error
}

var _ NodeSet = &nodeset.Controller{}

// Config sets up a Wrapper.
type Config struct {
	Nodes NodeSet
	Core  api.Core

	// SortedBySpeed always picks the fastest node instead of spreading
	// requests over all allowed nodes.
	SortedBySpeed bool
	// NeedsWebsocket restricts requests to websocket-enabled nodes.
	NeedsWebsocket bool
	// MapError translates returned errors into the caller's own error
	// vocabulary. (Optional)
	MapError func(error) error
	// Metrics records failovers. (Optional)
	Metrics *metrics.Metrics
	// Rand is the source for random node selection. The wrapper serializes
	// its use, but it must not be shared with anything else. (Optional)
	Rand *rand.Rand
}

// Wrapper runs requests against the nodes of one network.
type Wrapper struct {
	Config

	mu sync.Mutex
	// pinned is the one node this wrapper has switched to its alternate
	// origin, or uuid.Nil.
	pinned uuid.UUID

	randMu sync.Mutex
}

// New returns a wrapper for cfg. A node that already prefers its alternate
// origin, such as one restored from the store, becomes the pinned node.
func New(cfg Config) *Wrapper {
	w := &Wrapper{Config: cfg}
	for _, n := range cfg.Nodes.Nodes() {
		if n.Alt != nil && n.PreferMainOrigin != nil && !*n.PreferMainOrigin {
			w.pinned = n.ID
			break
		}
	}
	return w
}

// Body is one attempt of a request against an origin.
type Body[T any] func(ctx context.Context, core api.Core, origin node.Origin) (T, error)

// Request runs body against a selected node. On a network error it tries the
// node's other origin, then reports the node as failed and moves on to
// another node, trying each node known at the start at most once. Other
// errors are returned without retrying and without demoting the node.
func Request[T any](ctx context.Context, w *Wrapper, body Body[T]) (T, error) {
	var zero T
	limit := len(w.Nodes.Nodes())
	excluded := map[uuid.UUID]struct{}{}
	var failed []NodeError

	for attempt := 0; attempt < limit; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		n, ok := w.selectNode(excluded)
		if !ok {
			break
		}

		result, origin, err := tryNode(ctx, w.Core, n, body)
		if err == nil {
			w.succeeded(n, origin)
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !api.IsNetwork(err) {
			return zero, w.mapError(err)
		}

		w.Nodes.ReportFailure(n.ID, err)
		w.Metrics.FailedOver(w.Nodes.Network(), api.KindOf(err).String())
		logger.Printf("%s: request failed on %s, failing over: %s", w.Nodes.Network(), origin, err)
		excluded[n.ID] = struct{}{}
		failed = append(failed, NodeError{ID: n.ID, Origin: origin, Err: err})
	}

	if len(failed) == 0 {
		return zero, w.mapError(ErrNoNodesAvailable)
	}
	return zero, w.mapError(&NodesFailedError{NumTried: len(failed), Errors: failed})
}

// tryNode runs body against each of the node's origins in preference order,
// moving on only after a network error. It returns the last origin tried.
func tryNode[T any](ctx context.Context, core api.Core, n node.Node, body Body[T]) (T, node.Origin, error) {
	var zero T
	var err error
	var origin node.Origin
	for i, o := range n.Origins() {
		if i > 0 && ctx.Err() != nil {
			break
		}
		origin = o
		var result T
		result, err = body(ctx, core, o)
		if err == nil {
			return result, o, nil
		}
		if !api.IsNetwork(err) {
			break
		}
	}
	return zero, origin, err
}

// succeeded updates the node's origin preference after a successful request.
func (w *Wrapper) succeeded(n node.Node, origin node.Origin) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefersAlt := n.PreferMainOrigin != nil && !*n.PreferMainOrigin
	if n.IsAlt(origin) {
		if w.pinned != uuid.Nil && w.pinned != n.ID {
			w.setPreference(w.pinned, nil)
		}
		w.pinned = n.ID
		if !prefersAlt {
			w.setPreference(n.ID, node.Bool(false))
		}
		return
	}
	if prefersAlt {
		// The main origin is back.
		w.setPreference(n.ID, nil)
		if w.pinned == n.ID {
			w.pinned = uuid.Nil
		}
	}
}

func (w *Wrapper) setPreference(id uuid.UUID, prefer *bool) {
	err := w.Nodes.SetPreferMainOrigin(id, prefer)
	if err != nil && !errors.Is(err, nodeset.ErrUnknownNode) {
		logger.Printf("%s: failed to update origin preference: %s", w.Nodes.Network(), err)
	}
}

func (w *Wrapper) options(excluded map[uuid.UUID]struct{}) selector.Options {
	return selector.Options{
		SortedBySpeed:     w.SortedBySpeed,
		NeedsWebsocket:    w.NeedsWebsocket,
		WebsocketFallback: w.Nodes.Params().WebsocketFallback,
		Excluding:         excluded,
		Rand:              w.Rand,
	}
}

func (w *Wrapper) selectNode(excluded map[uuid.UUID]struct{}) (node.Node, bool) {
	return w.selectFrom(w.Nodes.Nodes(), excluded)
}

func (w *Wrapper) selectFrom(nodes []node.Node, excluded map[uuid.UUID]struct{}) (node.Node, bool) {
	if w.Rand != nil {
		// *rand.Rand is not safe for concurrent use.
		w.randMu.Lock()
		defer w.randMu.Unlock()
	}
	return selector.Select(nodes, w.options(excluded))
}

func (w *Wrapper) mapError(err error) error {
	if w.MapError == nil {
		return err
	}
	return w.MapError(err)
}

// HealthCheck forces an out-of-cycle refresh of the node set.
func (w *Wrapper) HealthCheck(ctx context.Context) error {
	return w.Nodes.RefreshAll(ctx)
}

// HasActiveNode returns true if a request would currently find a node.
func (w *Wrapper) HasActiveNode() bool {
	return w.hasActiveNode(w.Nodes.Nodes())
}

func (w *Wrapper) hasActiveNode(nodes []node.Node) bool {
	_, ok := w.selectFrom(nodes, nil)
	return ok
}

// PreferredNodeIDs returns the allowed nodes ordered from fastest to
// slowest.
func (w *Wrapper) PreferredNodeIDs() []uuid.UUID {
	return selector.Ranked(w.Nodes.Nodes())
}

// ActiveNodeUpdates streams HasActiveNode, starting with the current value
// and then on every change. The channel is closed when ctx is done or the
// node set closes.
func (w *Wrapper) ActiveNodeUpdates(ctx context.Context) <-chan bool {
	out := make(chan bool)
	snapshots, cancel := w.Nodes.Subscribe()
	go func() {
		defer close(out)
		defer cancel()
		first := true
		var last bool
		for {
			select {
			case <-ctx.Done():
				return
			case nodes, ok := <-snapshots:
				if !ok {
					return
				}
				active := w.hasActiveNode(nodes)
				if !first && active == last {
					continue
				}
				first, last = false, active
				select {
				case out <- active:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// WaitForActiveNode blocks until a request would find a node.
func (w *Wrapper) WaitForActiveNode(ctx context.Context) error {
	_, err := nodeset.WaitFor(ctx, w.Nodes, w.hasActiveNode)
	return err
}
