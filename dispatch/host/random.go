package host

import (
	"math/rand"
	"sync"
)

// Random picks a host uniformly at random, ignoring weights.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rnd: rand.New(rand.NewSource(seed))}
}

func (s *Random) Select(hosts []HostWeight) (HostWeight, error) {
	if len(hosts) == 0 {
		return HostWeight{}, ErrEmptyHostSet
	}
	s.mu.Lock()
	i := s.rnd.Intn(len(hosts))
	s.mu.Unlock()
	return hosts[i], nil
}
