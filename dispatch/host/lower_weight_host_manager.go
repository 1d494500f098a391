package host

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/twitter/dispatch/common/stats"
)

type lifecycle int

const (
	idle lifecycle = iota
	running
	stopped
)

// LowerWeightHostManager selects by weight from a Registry that a background
// loop refreshes every RefreshInterval. The first refresh runs in Start, so
// Select is answered from real data as soon as Start returns.
type LowerWeightHostManager struct {
	registry  *Registry
	selector  HostSelector
	refresher *refresher
	cfg       Config
	stat      stats.StatsReceiver
	time      stats.StatsTime

	mu     sync.Mutex
	state  lifecycle
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewLowerWeightHostManager builds a manager that is idle until Start.
// cfg is assumed valid.
func NewLowerWeightHostManager(cfg Config, membership Membership, heartbeats HeartbeatSource,
	decode DecodeFunc, stat stats.StatsReceiver) *LowerWeightHostManager {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	stat = stat.Scope("hostmanager")
	registry := NewRegistry()
	m := &LowerWeightHostManager{
		registry: registry,
		selector: NewLowerWeightRoundRobin(),
		cfg:      cfg,
		stat:     stat,
	}
	m.refresher = &refresher{
		membership: membership,
		heartbeats: heartbeats,
		decode:     decode,
		registry:   registry,
		cfg:        cfg,
		stat:       stat,
		warnings:   map[string]*rate.Limiter{},
	}
	m.setTime(stats.DefaultStatsTime())
	return m
}

func (m *LowerWeightHostManager) setTime(t stats.StatsTime) {
	m.time = t
	m.refresher.time = t
}

func (m *LowerWeightHostManager) Start() error {
	m.mu.Lock()
	switch m.state {
	case running:
		m.mu.Unlock()
		return ErrAlreadyStarted
	case stopped:
		m.mu.Unlock()
		return ErrStopped
	}
	var ctx context.Context
	ctx, m.cancel = context.WithCancel(context.Background())
	m.doneCh = make(chan struct{})
	m.state = running
	m.mu.Unlock()

	log.Infof("Starting host manager, refreshing every %s", m.cfg.RefreshInterval)
	m.refresher.refresh(ctx)
	go m.loop(ctx, m.time.NewTicker(m.cfg.RefreshInterval), m.doneCh)
	return nil
}

// Stop cancels the refresh loop and waits for it to exit. An in progress
// cycle stops at the next worker group without publishing.
func (m *LowerWeightHostManager) Stop() {
	m.mu.Lock()
	prev := m.state
	m.state = stopped
	cancel, doneCh := m.cancel, m.doneCh
	m.mu.Unlock()
	if prev != running {
		return
	}
	cancel()
	<-doneCh
	log.Infof("Stopped host manager at generation %d", m.registry.Generation())
}

func (m *LowerWeightHostManager) loop(ctx context.Context, ticker stats.StatsTicker, doneCh chan struct{}) {
	defer close(doneCh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			m.refresher.refresh(ctx)
			// A tick that arrived during the cycle is dropped, not queued.
			select {
			case <-ticker.C():
				m.stat.Counter(stats.HostRefreshSkippedCounter).Inc(1)
			default:
			}
		}
	}
}

// Refresh runs a refresh cycle now, outside the periodic loop. It returns
// ErrRefreshInFlight if a cycle is already running.
func (m *LowerWeightHostManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	if state == stopped {
		return ErrStopped
	}
	return m.refresher.refresh(ctx)
}

func (m *LowerWeightHostManager) Select(workerGroup string) (Host, bool) {
	defer m.stat.Latency(stats.HostSelectLatency_ms).Time().Stop()
	m.stat.Counter(stats.HostSelectCounter).Inc(1)

	hosts := m.registry.Lookup(workerGroup)
	if len(hosts) == 0 {
		m.stat.Counter(stats.HostSelectNoHostCounter).Inc(1)
		return Host{}, false
	}
	hw, err := m.selector.Select(hosts)
	if err != nil {
		log.Errorf("Selecting from %d hosts of worker group %s: %v", len(hosts), workerGroup, err)
		m.stat.Counter(stats.HostSelectNoHostCounter).Inc(1)
		return Host{}, false
	}
	return hw.Worker.Host, true
}

// SelectFrom is not supported: this manager only selects by worker group.
func (m *LowerWeightHostManager) SelectFrom(workers []HostWorker) (HostWorker, error) {
	return HostWorker{}, ErrNotSupported
}

// Snapshot returns the live host weights and their generation.
func (m *LowerWeightHostManager) Snapshot() (GroupWeightTable, uint64) {
	return m.registry.Snapshot()
}
