package host

import (
	log "github.com/sirupsen/logrus"

	"github.com/twitter/dispatch/common/stats"
)

// CommonHostManager selects among the current members of a worker group
// with a weight agnostic selector. It keeps no state of its own and reads
// membership on every call.
type CommonHostManager struct {
	selector   HostSelector
	membership Membership
	stat       stats.StatsReceiver
}

func NewCommonHostManager(selector HostSelector, membership Membership, stat stats.StatsReceiver) *CommonHostManager {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &CommonHostManager{selector: selector, membership: membership, stat: stat.Scope("hostmanager")}
}

func (m *CommonHostManager) Start() error { return nil }
func (m *CommonHostManager) Stop()        {}

func (m *CommonHostManager) Select(workerGroup string) (Host, bool) {
	defer m.stat.Latency(stats.HostSelectLatency_ms).Time().Stop()
	m.stat.Counter(stats.HostSelectCounter).Inc(1)

	members, err := m.membership.WorkerGroupMembers()
	if err != nil {
		log.Warnf("Reading members of worker group %s: %v", workerGroup, err)
	}
	addrs := members[workerGroup]
	if len(addrs) == 0 {
		m.stat.Counter(stats.HostSelectNoHostCounter).Inc(1)
		return Host{}, false
	}
	hosts := make([]HostWeight, len(addrs))
	for i, addr := range addrs {
		hosts[i] = HostWeight{Worker: HostWorker{Host: Host{Address: addr, WorkerGroup: workerGroup}}}
	}
	hw, err := m.selector.Select(hosts)
	if err != nil {
		m.stat.Counter(stats.HostSelectNoHostCounter).Inc(1)
		return Host{}, false
	}
	return hw.Worker.Host, true
}

// SelectFrom picks one of workers, ErrNoHostAvailable if there are none.
func (m *CommonHostManager) SelectFrom(workers []HostWorker) (HostWorker, error) {
	if len(workers) == 0 {
		return HostWorker{}, ErrNoHostAvailable
	}
	hosts := make([]HostWeight, len(workers))
	for i, w := range workers {
		hosts[i] = HostWeight{Worker: w}
	}
	hw, err := m.selector.Select(hosts)
	if err != nil {
		return HostWorker{}, err
	}
	return hw.Worker, nil
}
