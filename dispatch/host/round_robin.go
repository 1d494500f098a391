package host

import (
	"sync"
)

// RoundRobin picks hosts in address order, one after the other, ignoring
// weights. The cursor is kept per worker group.
type RoundRobin struct {
	mu      sync.Mutex
	cursors map[string]uint64
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{cursors: map[string]uint64{}}
}

func (s *RoundRobin) Select(hosts []HostWeight) (HostWeight, error) {
	if len(hosts) == 0 {
		return HostWeight{}, ErrEmptyHostSet
	}
	hosts = byAddress(hosts)
	group := groupOf(hosts)

	s.mu.Lock()
	i := s.cursors[group]
	s.cursors[group] = i + 1
	s.mu.Unlock()
	return hosts[i%uint64(len(hosts))], nil
}
