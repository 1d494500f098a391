package host

import (
	"fmt"
	"time"

	"github.com/twitter/dispatch/heartbeat"
)

const (
	DefaultCPUFactor      = 10
	DefaultMemoryFactor   = 20
	DefaultLoadFactor     = 70
	DefaultBaseHostWeight = 100
	DefaultWarmUp         = 10 * time.Minute

	// caps the warm up penalty of a worker that has only just started
	maxWarmUpFactor = 100
)

// WeightConfig holds the coefficients of the weight function:
//
//	weight = (1 + CPUFactor*cpu + MemoryFactor*mem + LoadFactor*load)
//	         * BaseHostWeight/declared * warmUp
//
// warmUp is WarmUp/uptime while the worker has been up for less than WarmUp,
// so a fresh worker ramps up its share instead of taking a burst.
type WeightConfig struct {
	CPUFactor      float64
	MemoryFactor   float64
	LoadFactor     float64
	BaseHostWeight int
	WarmUp         time.Duration
}

func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		CPUFactor:      DefaultCPUFactor,
		MemoryFactor:   DefaultMemoryFactor,
		LoadFactor:     DefaultLoadFactor,
		BaseHostWeight: DefaultBaseHostWeight,
		WarmUp:         DefaultWarmUp,
	}
}

func (c WeightConfig) Validate() error {
	if c.CPUFactor <= 0 || c.MemoryFactor <= 0 || c.LoadFactor <= 0 {
		return fmt.Errorf("weight factors must be positive, got cpu: %g, memory: %g, load: %g",
			c.CPUFactor, c.MemoryFactor, c.LoadFactor)
	}
	if c.BaseHostWeight <= 0 {
		return fmt.Errorf("base host weight must be positive, got %d", c.BaseHostWeight)
	}
	if c.WarmUp < 0 {
		return fmt.Errorf("warm up must not be negative, got %s", c.WarmUp)
	}
	return nil
}

// Weight computes the weight of a worker reporting r at now. The result is
// positive, increases with each of cpu, memory and load, and decreases as
// the declared weight grows.
func (c WeightConfig) Weight(r heartbeat.Reading, now time.Time) float64 {
	load := 1 + c.CPUFactor*nonNegative(r.CPUUsage) +
		c.MemoryFactor*nonNegative(r.MemoryUsage) +
		c.LoadFactor*nonNegative(r.LoadAverage)

	declared := r.DeclaredWeight
	if declared <= 0 {
		declared = c.BaseHostWeight
	}
	return load * float64(c.BaseHostWeight) / float64(declared) * c.warmUp(r.StartupTime, now)
}

func (c WeightConfig) warmUp(startup, now time.Time) float64 {
	if c.WarmUp <= 0 || startup.IsZero() {
		return 1
	}
	uptime := now.Sub(startup)
	if uptime <= 0 || uptime >= c.WarmUp {
		return 1
	}
	f := float64(c.WarmUp) / float64(uptime)
	if f > maxWarmUpFactor {
		return maxWarmUpFactor
	}
	return f
}

// nonNegative maps negative and NaN metrics to zero.
func nonNegative(f float64) float64 {
	if !(f > 0) {
		return 0
	}
	return f
}

// NewHostWeight builds the HostWeight of the worker at addr in group.
func NewHostWeight(addr, group string, r heartbeat.Reading, weight float64) HostWeight {
	return HostWeight{
		Worker: HostWorker{
			Host:           Host{Address: addr, WorkerGroup: group},
			DeclaredWeight: r.DeclaredWeight,
		},
		Weight:      weight,
		CPUUsage:    r.CPUUsage,
		MemoryUsage: r.MemoryUsage,
		LoadAverage: r.LoadAverage,
		StartupTime: r.StartupTime,
	}
}
