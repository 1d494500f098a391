package host

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrEmptyHostSet is returned by a HostSelector given no hosts. Managers
// check for an empty set before selecting, so seeing it is a bug.
var ErrEmptyHostSet = errors.New("select from an empty host set")

// HostSelector picks one of a non-empty set of hosts of one worker group.
// Selectors keep per group state between calls and are safe for concurrent
// use.
type HostSelector interface {
	Select(hosts []HostWeight) (HostWeight, error)
}

// NewHostSelector returns the selector named by t.
func NewHostSelector(t SelectorType) (HostSelector, error) {
	switch t {
	case LowerWeightSelector:
		return NewLowerWeightRoundRobin(), nil
	case RoundRobinSelector:
		return NewRoundRobin(), nil
	case RandomSelector:
		return NewRandom(time.Now().UnixNano()), nil
	}
	return nil, fmt.Errorf("unknown selector %q", t)
}

func groupOf(hosts []HostWeight) string {
	return hosts[0].Worker.WorkerGroup
}

// byAddress returns hosts sorted by address, copying only if they are not
// sorted already.
func byAddress(hosts []HostWeight) []HostWeight {
	less := func(s []HostWeight) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Worker.Address < s[j].Worker.Address }
	}
	if sort.SliceIsSorted(hosts, less(hosts)) {
		return hosts
	}
	sorted := make([]HostWeight, len(hosts))
	copy(sorted, hosts)
	sort.SliceStable(sorted, less(sorted))
	return sorted
}
