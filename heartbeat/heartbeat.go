// Package heartbeat models the periodic health/load report a worker node
// publishes, its text encoding, and the thresholds that classify a node as
// normal, busy or abnormal.
package heartbeat

import (
	"fmt"
	"time"
)

// ServerStatus is the health classification carried by a heartbeat.
type ServerStatus int

const (
	Normal ServerStatus = iota
	Abnormal
	Busy
)

func (s ServerStatus) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Abnormal:
		return "ABNORMAL"
	case Busy:
		return "BUSY"
	default:
		return fmt.Sprintf("ServerStatus(%d)", int(s))
	}
}

func (s ServerStatus) valid() bool {
	return s == Normal || s == Abnormal || s == Busy
}

// Reading is one decoded heartbeat. It is produced fresh for every refresh
// and never mutated.
type Reading struct {
	StartupTime time.Time
	ReportTime  time.Time

	CPUUsage          float64 // fraction of total cpu, may exceed 1
	MemoryUsage       float64 // fraction of physical memory in use
	LoadAverage       float64 // 1 minute load average
	AvailableMemoryGB float64

	// Limits the worker applied when it computed ServerStatus.
	MaxCPULoadAvg    float64
	ReservedMemoryGB float64
	DiskAvailableGB  float64

	ServerStatus     ServerStatus
	ProcessID        int
	DeclaredWeight   int // worker-declared base weight, > 0
	WaitingTaskCount int
	ExecThreadCount  int
}

func (r Reading) String() string {
	return fmt.Sprintf("{status:%s, cpu:%.3f, mem:%.3f, load:%.2f, availMemGB:%.2f, weight:%d, waiting:%d, threads:%d, startup:%s, report:%s}",
		r.ServerStatus, r.CPUUsage, r.MemoryUsage, r.LoadAverage, r.AvailableMemoryGB,
		r.DeclaredWeight, r.WaitingTaskCount, r.ExecThreadCount,
		r.StartupTime.Format(time.RFC3339), r.ReportTime.Format(time.RFC3339))
}
