package host

import (
	"sort"
	"sync"
)

// Registry holds the live GroupWeightTable. Publish replaces the whole table
// at once, so a reader sees one generation or the next, never a mix.
// A published table is never mutated.
type Registry struct {
	mu         sync.RWMutex
	table      GroupWeightTable
	generation uint64
}

func NewRegistry() *Registry {
	return &Registry{table: GroupWeightTable{}}
}

// Publish makes table the live generation and returns its number. Hosts are
// deduplicated and sorted by address and empty groups dropped before the
// lock is taken; table itself is not retained.
func (r *Registry) Publish(table GroupWeightTable) uint64 {
	next := normalize(table)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = next
	r.generation++
	return r.generation
}

// Lookup returns a copy of the hosts of group in the live generation, or nil
// if the group has none.
func (r *Registry) Lookup(group string) []HostWeight {
	r.mu.RLock()
	hosts := r.table[group]
	r.mu.RUnlock()
	if len(hosts) == 0 {
		return nil
	}
	out := make([]HostWeight, len(hosts))
	copy(out, hosts)
	return out
}

// Snapshot returns a copy of the live table and its generation.
func (r *Registry) Snapshot() (GroupWeightTable, uint64) {
	r.mu.RLock()
	table, gen := r.table, r.generation
	r.mu.RUnlock()
	out := make(GroupWeightTable, len(table))
	for group, hosts := range table {
		out[group] = append([]HostWeight(nil), hosts...)
	}
	return out, gen
}

func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

func normalize(table GroupWeightTable) GroupWeightTable {
	out := make(GroupWeightTable, len(table))
	for group, hosts := range table {
		seen := make(map[Host]bool, len(hosts))
		kept := make([]HostWeight, 0, len(hosts))
		for _, h := range hosts {
			if seen[h.Worker.Host] {
				continue
			}
			seen[h.Worker.Host] = true
			kept = append(kept, h)
		}
		if len(kept) == 0 {
			continue
		}
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].Worker.Address < kept[j].Worker.Address })
		out[group] = kept
	}
	return out
}
