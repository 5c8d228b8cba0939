// Package fakeprobe is a scriptable probe.Probe for tests. It counts calls
// and the peak number of probes in flight.
package fakeprobe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vipnode/nodehealth/node"
	"github.com/vipnode/nodehealth/probe"
)

// ErrUnreachable is the default failure for origins without a result.
var ErrUnreachable = errors.New("fake node unreachable")

type outcome struct {
	info node.StatusInfo
	err  error
}

// Probe returns canned results by origin.
type Probe struct {
	// Delay is how long each probe takes.
	Delay time.Duration
	// IgnoreCancel makes probes run to completion even when their context
	// is cancelled, like a probe stuck in a non-cancellable call.
	IgnoreCancel bool

	mu          sync.Mutex
	results     map[node.Origin]outcome
	calls       map[node.Origin]int
	gate        chan struct{}
	inFlight    int
	maxInFlight int
}

var _ probe.Probe = &Probe{}

func New() *Probe {
	return &Probe{
		results: map[node.Origin]outcome{},
		calls:   map[node.Origin]int{},
	}
}

// Healthy returns a successful status at the given height and ping.
func Healthy(height uint64, ping time.Duration) node.StatusInfo {
	return node.StatusInfo{
		Ping:   ping,
		Height: node.Uint64(height),
	}
}

// Set makes probes against origin succeed with info.
func (p *Probe) Set(origin node.Origin, info node.StatusInfo) {
	p.mu.Lock()
	p.results[origin] = outcome{info: info}
	p.mu.Unlock()
}

// Fail makes probes against origin fail with a network error.
func (p *Probe) Fail(origin node.Origin) {
	p.mu.Lock()
	p.results[origin] = outcome{err: probe.NetworkError(ErrUnreachable)}
	p.mu.Unlock()
}

// Hold blocks all probes until the returned release func is called.
func (p *Probe) Hold() (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.gate = gate
	p.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			if p.gate == gate {
				p.gate = nil
			}
			p.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns how many probes were started against origin.
func (p *Probe) Calls(origin node.Origin) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[origin]
}

// InFlight returns the number of probes currently running.
func (p *Probe) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// MaxInFlight returns the peak number of concurrent probes.
func (p *Probe) MaxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}

func (p *Probe) Probe(ctx context.Context, n node.Node) (node.StatusInfo, error) {
	origin := n.Origins()[0]

	p.mu.Lock()
	p.calls[origin]++
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	gate := p.gate
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	done := ctx.Done()
	if p.IgnoreCancel {
		done = nil
	}
	if gate != nil {
		select {
		case <-gate:
		case <-done:
			return node.StatusInfo{}, probe.NetworkError(ctx.Err())
		}
	}
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-done:
			return node.StatusInfo{}, probe.NetworkError(ctx.Err())
		}
	}

	p.mu.Lock()
	res, ok := p.results[origin]
	p.mu.Unlock()
	if !ok {
		return node.StatusInfo{}, probe.NetworkError(ErrUnreachable)
	}
	if res.err != nil {
		return node.StatusInfo{}, res.err
	}
	info := res.info
	info.Origin = origin
	return info, nil
}
