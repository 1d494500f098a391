package host

import (
	"fmt"
	"time"

	"github.com/twitter/dispatch/heartbeat"
)

// SelectorType names a HostSelector and the HostManager built around it.
type SelectorType string

const (
	LowerWeightSelector SelectorType = "lowerweight"
	RoundRobinSelector  SelectorType = "roundrobin"
	RandomSelector      SelectorType = "random"
)

const (
	DefaultRefreshInterval = time.Second
	DefaultMaxHeartbeatAge = 30 * time.Second
	DefaultWarnInterval    = time.Minute
)

// Config is supplied when a HostManager is built and never reloaded.
type Config struct {
	Selector SelectorType

	// Period of the weight refresh.
	RefreshInterval time.Duration

	// Heartbeats reported longer ago are ignored; zero disables the check.
	MaxHeartbeatAge time.Duration

	// Minimum time between two exclusion warnings for the same worker;
	// zero logs every exclusion.
	WarnInterval time.Duration

	Thresholds heartbeat.Thresholds
	Weights    WeightConfig
}

func DefaultConfig() Config {
	return Config{
		Selector:        LowerWeightSelector,
		RefreshInterval: DefaultRefreshInterval,
		MaxHeartbeatAge: DefaultMaxHeartbeatAge,
		WarnInterval:    DefaultWarnInterval,
		Thresholds:      heartbeat.DefaultThresholds(),
		Weights:         DefaultWeightConfig(),
	}
}

func (c Config) Validate() error {
	switch c.Selector {
	case LowerWeightSelector, RoundRobinSelector, RandomSelector:
	default:
		return fmt.Errorf("unknown selector %q", c.Selector)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	if c.MaxHeartbeatAge < 0 || c.WarnInterval < 0 {
		return fmt.Errorf("max heartbeat age and warn interval must not be negative, got %s and %s",
			c.MaxHeartbeatAge, c.WarnInterval)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return c.Weights.Validate()
}
