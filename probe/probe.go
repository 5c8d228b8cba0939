// Package probe implements health check probes for each family of node
// protocol. A probe reports raw facts about a node (height, version, ping,
// websocket support) and leaves judging them to the aggregator.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vipnode/nodehealth/api"
	"github.com/vipnode/nodehealth/node"
)

// Probe performs one health check against one node.
type Probe interface {
	Probe(ctx context.Context, n node.Node) (node.StatusInfo, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context, n node.Node) (node.StatusInfo, error)

func (fn ProbeFunc) Probe(ctx context.Context, n node.Node) (node.StatusInfo, error) {
	return fn(ctx, n)
}

// Result is the outcome of probing one node.
type Result struct {
	Info node.StatusInfo
	Err  error
}

// OK returns true if the probe succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Results maps node IDs to their probe outcome for one cycle.
type Results map[uuid.UUID]Result

// Kind is the class of a probe failure.
type Kind int

const (
	// KindNetwork is a node that could not be reached in time.
	KindNetwork Kind = iota + 1
	// KindParsingFailed is a node that answered with something that could
	// not be understood at all.
	KindParsingFailed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParsingFailed:
		return "parsing failed"
	}
	return "unknown"
}

// Error is returned by probes.
type Error struct {
	Kind Kind
	Err  error
}

func (err *Error) Error() string {
	return fmt.Sprintf("probe failed (%s): %s", err.Kind, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

// KindOf returns the probe failure kind of err, or 0 if err is not a probe
// error.
func KindOf(err error) Kind {
	var probeErr *Error
	if errors.As(err, &probeErr) {
		return probeErr.Kind
	}
	return 0
}

// NetworkError wraps err as a network probe failure.
func NetworkError(err error) error {
	return &Error{Kind: KindNetwork, Err: err}
}

// ParsingError wraps err as a parsing probe failure.
func ParsingError(err error) error {
	return &Error{Kind: KindParsingFailed, Err: err}
}

// transportError converts a transport failure into a probe error. Decode
// failures mean the node is up but unparseable, anything else means it could
// not serve the probe.
func transportError(err error) error {
	if api.KindOf(err) == api.KindDecode {
		return ParsingError(err)
	}
	return NetworkError(err)
}

// clock is embedded in probes to allow overriding time in tests.
type clock struct {
	nowFn func() time.Time
}

func (c clock) now() time.Time {
	if c.nowFn == nil {
		return time.Now()
	}
	return c.nowFn()
}

// eachOrigin runs fn against the node's origins in preference order, moving
// on to the next origin only after a network failure, so that a node whose
// main origin is unreachable is still judged by its alternate origin. The
// origin that answered is recorded in the returned info.
func eachOrigin(ctx context.Context, n node.Node, fn func(origin node.Origin) (node.StatusInfo, error)) (node.StatusInfo, error) {
	var err error
	origins := n.Origins()
	for i, origin := range origins {
		if i > 0 && ctx.Err() != nil {
			break
		}
		var info node.StatusInfo
		info, err = fn(origin)
		if err == nil {
			info.Origin = origin
			return info, nil
		}
		if KindOf(err) != KindNetwork {
			break
		}
		if i+1 < len(origins) {
			logger.Printf("%s: unreachable, trying %s: %s", origin, origins[i+1], err)
		}
	}
	return node.StatusInfo{}, err
}
