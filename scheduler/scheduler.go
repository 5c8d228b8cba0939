// Package scheduler drives the periodic refresh cadence for one network.
//
// The interval depends on what the user can see and on how healthy the set
// looks: the on-screen interval wins while the network is on screen,
// otherwise the crucial interval is used while no node is allowed, and the
// normal interval the rest of the time.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vipnode/nodehealth/node"
)

// Phase is the coarse state of the scheduler loop.
type Phase int

const (
	Idle Phase = iota
	Scheduled
	Running
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// State is a point-in-time view of the scheduler.
type State struct {
	Phase Phase
	// NextFireIsCrucial is set while Scheduled if the pending interval is
	// the crucial one.
	NextFireIsCrucial bool
	// NextFire is when the pending refresh is due. It's zero while the
	// scheduler is suspended in the background or not scheduled.
	NextFire time.Time
}

// Target is refreshed by the scheduler, usually a *nodeset.Controller.
type Target interface {
	RefreshAll(ctx context.Context) error
	Nodes() []node.Node
}

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Scheduler refreshes a target on an adaptive interval. It starts in the
// foreground and off screen.
type Scheduler struct {
	target    Target
	intervals node.Intervals
	name      string

	mu         sync.Mutex
	state      State
	foreground bool
	onScreen   bool
	fireNow    bool
	cancel     context.CancelFunc
	waitCh     chan error
	wake       chan struct{}
}

// New returns an idle scheduler. The name is only used for logging.
func New(name string, target Target, intervals node.Intervals) *Scheduler {
	return &Scheduler{
		target:     target,
		intervals:  intervals,
		name:       name,
		foreground: true,
		wake:       make(chan struct{}, 1),
	}
}

// Interval returns the interval to wait given the visibility and the number
// of allowed nodes, and whether it's the crucial one.
func Interval(iv node.Intervals, onScreen bool, allowed int) (time.Duration, bool) {
	switch {
	case onScreen:
		return iv.OnScreen, false
	case allowed == 0:
		return iv.Crucial, true
	default:
		return iv.Normal, false
	}
}

// Start fires a refresh right away and keeps refreshing until Stop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.waitCh = make(chan error, 1)
	s.fireNow = false
	go func(waitCh chan error) {
		waitCh <- s.run(ctx)
	}(s.waitCh)
	return nil
}

// Stop cancels the pending timer and any refresh in flight. The results of
// an interrupted refresh are discarded by the target.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until the loop exits after Stop, or returns right away if the
// scheduler was never started.
func (s *Scheduler) Wait() error {
	s.mu.Lock()
	waitCh := s.waitCh
	s.mu.Unlock()
	if waitCh == nil {
		return nil
	}
	err := <-waitCh
	// Keep the result for other waiters.
	waitCh <- err
	return err
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetForeground suspends the schedule while in the background. Coming back
// to the foreground fires one refresh immediately.
func (s *Scheduler) SetForeground(foreground bool) {
	s.mu.Lock()
	if s.foreground == foreground {
		s.mu.Unlock()
		return
	}
	s.foreground = foreground
	if foreground {
		s.fireNow = true
	}
	s.mu.Unlock()
	s.poke()
}

// SetOnScreen switches to or from the on-screen interval. The pending timer
// is recomputed from the last refresh.
func (s *Scheduler) SetOnScreen(onScreen bool) {
	s.mu.Lock()
	if s.onScreen == onScreen {
		s.mu.Unlock()
		return
	}
	s.onScreen = onScreen
	s.mu.Unlock()
	s.poke()
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Scheduler) run(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.state = State{Phase: Idle}
		s.cancel = nil
		s.mu.Unlock()
	}()

	// Started in the background, the first refresh waits for the
	// foreground.
	if !s.waitForeground(ctx) {
		return nil
	}
	for {
		s.setState(State{Phase: Running})
		err := s.target.RefreshAll(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Printf("%s: refresh failed: %s", s.name, err)
		}
		last := time.Now()

		if !s.waitNext(ctx, last) {
			return nil
		}
	}
}

// waitForeground blocks while the scheduler is in the background. It
// returns false if the loop should exit.
func (s *Scheduler) waitForeground(ctx context.Context) bool {
	for {
		allowed := countAllowed(s.target.Nodes())
		s.mu.Lock()
		if s.foreground {
			s.fireNow = false
			s.mu.Unlock()
			return true
		}
		_, crucial := Interval(s.intervals, s.onScreen, allowed)
		s.state = State{Phase: Scheduled, NextFireIsCrucial: crucial}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return false
		case <-s.wake:
		}
	}
}

// waitNext blocks until the next refresh is due. It returns false if the
// loop should exit.
func (s *Scheduler) waitNext(ctx context.Context, last time.Time) bool {
	allowed := countAllowed(s.target.Nodes())
	for {
		s.mu.Lock()
		if s.fireNow {
			s.fireNow = false
			s.mu.Unlock()
			return true
		}
		interval, crucial := Interval(s.intervals, s.onScreen, allowed)
		st := State{Phase: Scheduled, NextFireIsCrucial: crucial}
		var timerC <-chan time.Time
		var timer *time.Timer
		if s.foreground {
			st.NextFire = last.Add(interval)
			timer = time.NewTimer(time.Until(st.NextFire))
			timerC = timer.C
		}
		s.state = st
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return false
		case <-timerC:
			return true
		case <-s.wake:
			// Visibility changed, recompute.
			stopTimer(timer)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
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
