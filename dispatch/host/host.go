// Package host picks the worker a task is dispatched to.
//
// A HostManager answers Select(workerGroup) from the dispatch path. The
// load aware manager keeps a Registry of per group HostWeights that a
// background refresh rebuilds from worker heartbeats, and spreads selections
// over each group in inverse proportion to weight.
package host

import (
	"fmt"
	"time"
)

// Host identifies a worker within one worker group.
type Host struct {
	Address     string // host:port
	WorkerGroup string
}

func (h Host) String() string {
	return h.Address + "@" + h.WorkerGroup
}

// HostWorker is a Host plus the base weight its worker declares.
type HostWorker struct {
	Host
	DeclaredWeight int
}

// HostWeight is a worker's load as of one refresh generation and the weight
// derived from it. Lower weight means more desirable.
type HostWeight struct {
	Worker      HostWorker
	Weight      float64
	CPUUsage    float64
	MemoryUsage float64
	LoadAverage float64
	StartupTime time.Time
}

func (w HostWeight) String() string {
	return fmt.Sprintf("HostWeight{%s, weight: %.3f, cpu: %.3f, mem: %.3f, load: %.3f}",
		w.Worker.Host, w.Weight, w.CPUUsage, w.MemoryUsage, w.LoadAverage)
}

// GroupWeightTable maps a worker group to the eligible hosts in it.
type GroupWeightTable map[string][]HostWeight

// NumHosts counts the hosts across all groups.
func (t GroupWeightTable) NumHosts() int {
	n := 0
	for _, hosts := range t {
		n += len(hosts)
	}
	return n
}
