package node

import (
	"errors"
	"time"
)

// DefaultMaxConcurrentProbes is the fan-out cap for one probe cycle.
const DefaultMaxConcurrentProbes = 8

const (
	defaultProbeTimeout = 5 * time.Second
	defaultReprobeDelay = 3 * time.Second
)

// Intervals is one set of scheduler cadences.
type Intervals struct {
	Normal   time.Duration
	Crucial  time.Duration
	OnScreen time.Duration
}

// Params is the static health check configuration for one coin network.
type Params struct {
	NormalUpdateInterval   time.Duration `yaml:"normal_update_interval"`
	CrucialUpdateInterval  time.Duration `yaml:"crucial_update_interval"`
	OnScreenUpdateInterval time.Duration `yaml:"onscreen_update_interval"`

	NormalServiceUpdateInterval   time.Duration `yaml:"normal_service_update_interval"`
	CrucialServiceUpdateInterval  time.Duration `yaml:"crucial_service_update_interval"`
	OnScreenServiceUpdateInterval time.Duration `yaml:"onscreen_service_update_interval"`

	// Threshold is the maximum height difference from the best node before
	// a node is considered outdated.
	Threshold uint64 `yaml:"threshold"`

	// MinNodeVersion, if set, marks nodes reporting a lower version as
	// outdated.
	MinNodeVersion *Version `yaml:"min_node_version"`

	// ProbeTimeout bounds each individual probe. It must be shorter than
	// NormalUpdateInterval.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// ReprobeDelay is the wait between a live request failure demoting a
	// node and the single-node re-probe that lets it recover.
	ReprobeDelay time.Duration `yaml:"reprobe_delay"`

	// MaxConcurrentProbes caps how many probes run at once during a refresh.
	MaxConcurrentProbes int `yaml:"max_concurrent_probes"`

	// WebsocketFallback allows node selection to drop the websocket
	// requirement when no websocket-capable node is available.
	WebsocketFallback bool `yaml:"websocket_fallback"`
}

// WithDefaults returns a copy of p with unset tunables filled in.
func (p Params) WithDefaults() Params {
	if p.ProbeTimeout == 0 {
		p.ProbeTimeout = defaultProbeTimeout
	}
	if p.ReprobeDelay == 0 {
		p.ReprobeDelay = defaultReprobeDelay
	}
	if p.MaxConcurrentProbes <= 0 {
		p.MaxConcurrentProbes = DefaultMaxConcurrentProbes
	}
	if p.NormalServiceUpdateInterval == 0 {
		p.NormalServiceUpdateInterval = p.NormalUpdateInterval
	}
	if p.CrucialServiceUpdateInterval == 0 {
		p.CrucialServiceUpdateInterval = p.CrucialUpdateInterval
	}
	if p.OnScreenServiceUpdateInterval == 0 {
		p.OnScreenServiceUpdateInterval = p.OnScreenUpdateInterval
	}
	return p
}

// Validate checks that the intervals are usable.
func (p Params) Validate() error {
	if p.NormalUpdateInterval <= 0 || p.CrucialUpdateInterval <= 0 || p.OnScreenUpdateInterval <= 0 {
		return errors.New("update intervals must be positive")
	}
	if p.ProbeTimeout >= p.NormalUpdateInterval {
		return errors.New("probe timeout must be shorter than the normal update interval")
	}
	return nil
}

// NodeIntervals returns the cadences for the node health check loop.
func (p Params) NodeIntervals() Intervals {
	return Intervals{
		Normal:   p.NormalUpdateInterval,
		Crucial:  p.CrucialUpdateInterval,
		OnScreen: p.OnScreenUpdateInterval,
	}
}

// ServiceIntervals returns the cadences for the secondary service-level
// check loop.
func (p Params) ServiceIntervals() Intervals {
	return Intervals{
		Normal:   p.NormalServiceUpdateInterval,
		Crucial:  p.CrucialServiceUpdateInterval,
		OnScreen: p.OnScreenServiceUpdateInterval,
	}
}
