package host

import (
	"math"
	"sync"
)

// Weights are clamped to [minWeight, maxWeight] so every share is finite and
// nonzero. NaN counts as maxWeight.
const (
	minWeight = 1e-9
	maxWeight = 1e12
)

func share(weight float64) float64 {
	switch {
	case math.IsNaN(weight) || weight > maxWeight:
		weight = maxWeight
	case weight < minWeight:
		weight = minWeight
	}
	return 1 / weight
}

// LowerWeightRoundRobin is a smooth weighted round robin where each host's
// share is 1/weight. Every call adds each host's share to its accumulator,
// picks the host with the largest accumulator and takes the total share back
// from it. Over many calls each host is picked in proportion to 1/weight;
// hosts of equal weight are picked in turn, lower address first.
//
// Accumulators are kept per worker group. Hosts missing from a call are
// forgotten and hosts new to a call start from zero.
type LowerWeightRoundRobin struct {
	mu     sync.Mutex
	groups map[string]*lwrrGroup
}

type lwrrGroup struct {
	mu      sync.Mutex
	current map[Host]float64
}

func NewLowerWeightRoundRobin() *LowerWeightRoundRobin {
	return &LowerWeightRoundRobin{groups: map[string]*lwrrGroup{}}
}

func (s *LowerWeightRoundRobin) group(name string) *lwrrGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		g = &lwrrGroup{current: map[Host]float64{}}
		s.groups[name] = g
	}
	return g
}

func (s *LowerWeightRoundRobin) Select(hosts []HostWeight) (HostWeight, error) {
	if len(hosts) == 0 {
		return HostWeight{}, ErrEmptyHostSet
	}
	if len(hosts) == 1 {
		return hosts[0], nil
	}
	g := s.group(groupOf(hosts))

	g.mu.Lock()
	defer g.mu.Unlock()
	next := make(map[Host]float64, len(hosts))
	total := 0.0
	best := -1
	for i, h := range hosts {
		if _, dup := next[h.Worker.Host]; dup {
			continue
		}
		inc := share(h.Weight)
		acc := g.current[h.Worker.Host] + inc
		next[h.Worker.Host] = acc
		total += inc
		if best < 0 || acc > next[hosts[best].Worker.Host] ||
			(acc == next[hosts[best].Worker.Host] && h.Worker.Address < hosts[best].Worker.Address) {
			best = i
		}
	}
	next[hosts[best].Worker.Host] -= total
	g.current = next
	return hosts[best], nil
}
