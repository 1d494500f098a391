package heartbeat

import (
	"fmt"
)

// Thresholds classify a Reading. A zero field disables its check.
type Thresholds struct {
	MaxCPUUsage          float64 `json:"MaxCPUUsage"`          // abnormal above this cpu fraction
	MaxMemoryUsage       float64 `json:"MaxMemoryUsage"`       // abnormal above this memory fraction
	MaxLoadAverage       float64 `json:"MaxLoadAverage"`       // abnormal above this load average
	MinAvailableMemoryGB float64 `json:"MinAvailableMemoryGB"` // abnormal below this free memory
	BusyRatio            float64 `json:"BusyRatio"`            // busy when waiting tasks > BusyRatio * exec threads
}

func (t Thresholds) String() string {
	return fmt.Sprintf("Thresholds: MaxCPUUsage: %g, MaxMemoryUsage: %g, MaxLoadAverage: %g, MinAvailableMemoryGB: %g, BusyRatio: %g",
		t.MaxCPUUsage, t.MaxMemoryUsage, t.MaxLoadAverage, t.MinAvailableMemoryGB, t.BusyRatio)
}

// Status evaluates r against t, ignoring the status the worker declared.
// Abnormal takes precedence over Busy.
func (t Thresholds) Status(r Reading) ServerStatus {
	if t.abnormal(r) {
		return Abnormal
	}
	if t.BusyRatio > 0 && float64(r.WaitingTaskCount) > t.BusyRatio*float64(r.ExecThreadCount) {
		return Busy
	}
	return Normal
}

// Effective returns the worse of the status the worker declared and the
// status t assigns to r.
func (t Thresholds) Effective(r Reading) ServerStatus {
	evaluated := t.Status(r)
	if r.ServerStatus == Abnormal || evaluated == Abnormal {
		return Abnormal
	}
	if r.ServerStatus == Busy || evaluated == Busy {
		return Busy
	}
	return Normal
}

func (t Thresholds) abnormal(r Reading) bool {
	switch {
	case t.MaxCPUUsage > 0 && r.CPUUsage > t.MaxCPUUsage:
		return true
	case t.MaxMemoryUsage > 0 && r.MemoryUsage > t.MaxMemoryUsage:
		return true
	case t.MaxLoadAverage > 0 && r.LoadAverage > t.MaxLoadAverage:
		return true
	case t.MinAvailableMemoryGB > 0 && r.AvailableMemoryGB < t.MinAvailableMemoryGB:
		return true
	}
	return false
}

// Validate rejects negative limits.
func (t Thresholds) Validate() error {
	if t.MaxCPUUsage < 0 || t.MaxMemoryUsage < 0 || t.MaxLoadAverage < 0 || t.MinAvailableMemoryGB < 0 || t.BusyRatio < 0 {
		return fmt.Errorf("thresholds must not be negative: %s", t)
	}
	return nil
}

// DefaultThresholds mark a worker busy once it has more waiting tasks than
// executor threads, and abnormal near cpu or memory exhaustion.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxCPUUsage:    0.95,
		MaxMemoryUsage: 0.95,
		BusyRatio:      1,
	}
}
