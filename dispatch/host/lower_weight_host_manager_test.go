package host

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/twitter/dispatch/common/stats"
	"github.com/twitter/dispatch/heartbeat"
)

type testManager struct {
	*LowerWeightHostManager
	stat   stats.StatsReceiver
	tickCh chan time.Time
}

func makeTestManager(cfg Config, membership Membership, heartbeats HeartbeatSource) *testManager {
	stat := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry)
	tickCh := make(chan time.Time)
	m := NewLowerWeightHostManager(cfg, membership, heartbeats, heartbeat.Decode, stat)
	m.setTime(stats.NewTestTime(testNow, 0, tickCh))
	return &testManager{m, stat.Scope("hostmanager"), tickCh}
}

func (m *testManager) count(name string) int64 {
	return m.stat.Counter(name).Count()
}

func (m *testManager) addresses(group string) []string {
	var out []string
	for _, h := range m.registry.Lookup(group) {
		out = append(out, h.Worker.Address)
	}
	return out
}

func (m *testManager) tick() {
	m.tickCh <- testNow
}

func encode(r heartbeat.Reading) string {
	return heartbeat.Encode(r)
}

func withStatus(r heartbeat.Reading, s heartbeat.ServerStatus) heartbeat.Reading {
	r.ServerStatus = s
	return r
}

// fakeHeartbeats serves heartbeats that tests change between cycles.
type fakeHeartbeats struct {
	mu     sync.Mutex
	hbs    map[string]string
	onRead func(addr string)
}

func newFakeHeartbeats() *fakeHeartbeats {
	return &fakeHeartbeats{hbs: map[string]string{}}
}

func (f *fakeHeartbeats) set(addr string, r heartbeat.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hbs[addr] = encode(r)
}

func (f *fakeHeartbeats) LatestHeartbeat(addr string) (string, bool) {
	f.mu.Lock()
	hb, ok := f.hbs[addr]
	onRead := f.onRead
	f.mu.Unlock()
	if onRead != nil {
		onRead(addr)
	}
	return hb, ok
}

func TestLowerWeightScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	membership := NewMockMembership(ctrl)
	membership.EXPECT().WorkerGroupMembers().
		Return(map[string][]string{"default": {"C:1", "B:1", "A:1"}}, nil).AnyTimes()
	heartbeats := NewMockHeartbeatSource(ctrl)
	heartbeats.EXPECT().LatestHeartbeat("A:1").Return(encode(reading(0, 0, 0, 100)), true).AnyTimes()
	heartbeats.EXPECT().LatestHeartbeat("B:1").Return(encode(reading(0.2, 0, 0, 100)), true).AnyTimes()
	heartbeats.EXPECT().LatestHeartbeat("C:1").Return(encode(withStatus(reading(0, 0, 0, 100), heartbeat.Abnormal)), true).AnyTimes()

	m := makeTestManager(DefaultConfig(), membership, heartbeats)
	assert.NoError(t, m.Start())
	defer m.Stop()

	table, gen := m.Snapshot()
	assert.Equal(t, uint64(1), gen)
	assert.Len(t, table["default"], 2)
	assert.InDelta(t, 1.0, table["default"][0].Weight, 1e-9)
	assert.InDelta(t, 3.0, table["default"][1].Weight, 1e-9)
	assert.Equal(t, []string{"A:1", "B:1"}, m.addresses("default"))

	picked := map[string]int{}
	for i := 0; i < 400; i++ {
		h, ok := m.Select("default")
		assert.True(t, ok)
		assert.Equal(t, "default", h.WorkerGroup)
		picked[h.Address]++
	}
	assert.Equal(t, map[string]int{"A:1": 300, "B:1": 100}, picked)

	h, ok := m.Select("other-group")
	assert.False(t, ok)
	assert.Equal(t, Host{}, h)

	assert.Equal(t, int64(1), m.count(stats.HostExcludedAbnormalCounter))
	assert.Equal(t, int64(401), m.count(stats.HostSelectCounter))
	assert.Equal(t, int64(1), m.count(stats.HostSelectNoHostCounter))
	assert.Equal(t, int64(1), m.stat.Gauge(stats.HostPublishedGroupsGauge).Value())
	assert.Equal(t, int64(2), m.stat.Gauge(stats.HostPublishedHostsGauge).Value())
}

func TestLowerWeightAllBusy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	membership := NewMockMembership(ctrl)
	membership.EXPECT().WorkerGroupMembers().
		Return(map[string][]string{"default": {"A:1", "B:1"}, "gpu": {"G:1"}}, nil).AnyTimes()
	hbs := newFakeHeartbeats()
	hbs.set("A:1", reading(0, 0, 0, 100))
	hbs.set("B:1", reading(0, 0, 0, 100))
	hbs.set("G:1", reading(0, 0, 0, 100))

	m := makeTestManager(DefaultConfig(), membership, hbs)
	assert.NoError(t, m.Start())
	defer m.Stop()
	_, ok := m.Select("default")
	assert.True(t, ok)

	hbs.set("A:1", withStatus(reading(0, 0, 0, 100), heartbeat.Busy))
	busy := reading(0, 0, 0, 100)
	busy.WaitingTaskCount = 10
	hbs.set("B:1", busy)
	m.tick()
	assert.Eventually(t, func() bool { return m.registry.Generation() == 2 }, 3*time.Second, time.Millisecond)

	_, ok = m.Select("default")
	assert.False(t, ok, "a group with only busy workers has no host")
	_, ok = m.Select("gpu")
	assert.True(t, ok)
	assert.Equal(t, int64(2), m.count(stats.HostExcludedBusyCounter))

	hbs.set("B:1", reading(0, 0, 0, 100))
	assert.NoError(t, m.Refresh(context.Background()))
	h, ok := m.Select("default")
	assert.True(t, ok)
	assert.Equal(t, "B:1", h.Address)
}

func TestLowerWeightExclusions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	membership := NewMockMembership(ctrl)
	membership.EXPECT().WorkerGroupMembers().Return(map[string][]string{
		"default": {"none:1", "empty:1", "garbage:1", "stale:1", "ok:1"},
		"other":   {"other:1"},
		"dead":    {"none:1"},
	}, nil)
	stale := reading(0, 0, 0, 100)
	stale.ReportTime = testNow.Add(-time.Hour)
	heartbeats := NewMockHeartbeatSource(ctrl)
	heartbeats.EXPECT().LatestHeartbeat("none:1").Return("", false).Times(2)
	heartbeats.EXPECT().LatestHeartbeat("empty:1").Return(" ", true)
	heartbeats.EXPECT().LatestHeartbeat("garbage:1").Return("1,2,three", true)
	heartbeats.EXPECT().LatestHeartbeat("stale:1").Return(encode(stale), true)
	heartbeats.EXPECT().LatestHeartbeat("ok:1").Return(encode(reading(0, 0, 0, 100)), true)
	heartbeats.EXPECT().LatestHeartbeat("other:1").Return(encode(reading(0, 0, 0, 100)), true)

	m := makeTestManager(DefaultConfig(), membership, heartbeats)
	assert.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, []string{"ok:1"}, m.addresses("default"))
	assert.Equal(t, []string{"other:1"}, m.addresses("other"))
	assert.Nil(t, m.addresses("dead"))
	assert.Equal(t, int64(3), m.count(stats.HostExcludedNoHeartbeatCounter))
	assert.Equal(t, int64(1), m.count(stats.HostExcludedDecodeErrCounter))
	assert.Equal(t, int64(1), m.count(stats.HostExcludedStaleCounter))
	assert.Equal(t, int64(0), m.count(stats.HostRefreshFailureCounter))
}

func TestLowerWeightExcludesNonFiniteHeartbeats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	membership := NewMockMembership(ctrl)
	membership.EXPECT().WorkerGroupMembers().
		Return(map[string][]string{"default": {"a:1", "b:1", "c:1", "d:1"}}, nil)
	heartbeats := NewMockHeartbeatSource(ctrl)
	heartbeats.EXPECT().LatestHeartbeat("a:1").Return(encode(reading(0, 0, 0, 100)), true)
	heartbeats.EXPECT().LatestHeartbeat("b:1").Return(encode(reading(math.NaN(), 0, 0, 100)), true)
	heartbeats.EXPECT().LatestHeartbeat("c:1").Return(encode(reading(0, 0, 0, 100)), true)
	// finite, but the load term overflows the weight
	heartbeats.EXPECT().LatestHeartbeat("d:1").Return(encode(reading(0, 0, 1e308, 100)), true)

	m := makeTestManager(DefaultConfig(), membership, heartbeats)
	assert.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, []string{"a:1", "c:1"}, m.addresses("default"))
	assert.Equal(t, int64(2), m.count(stats.HostExcludedDecodeErrCounter))

	picked := map[string]int{}
	for i := 0; i < 300; i++ {
		h, ok := m.Select("default")
		assert.True(t, ok)
		picked[h.Address]++
	}
	assert.Equal(t, map[string]int{"a:1": 150, "c:1": 150}, picked)
}

func TestLowerWeightHostThresholds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	membership := NewMockMembership(ctrl)
	membership.EXPECT().WorkerGroupMembers().Return(map[string][]string{"default": {"hot:1", "ok:1"}}, nil)
	heartbeats := NewMockHeartbeatSource(ctrl)
	heartbeats.EXPECT().LatestHeartbeat("hot:1").Return(encode(reading(0.99, 0, 0, 100)), true)
	heartbeats.EXPECT().LatestHeartbeat("ok:1").Return(encode(reading(0.5, 0, 0, 100)), true)

	m := makeTestManager(DefaultConfig(), membership, heartbeats)
	assert.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, []string{"ok:1"}, m.addresses("default"), "host side thresholds apply to a worker reporting normal")
}

func TestLowerWeightFailedCycleKeepsGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	membership := NewMockMembership(ctrl)
	gomock.InOrder(
		membership.EXPECT().WorkerGroupMembers().Return(map[string][]string{"default": {"A:1"}}, nil),
		membership.EXPECT().WorkerGroupMembers().Return(nil, errors.New("cluster view unavailable")),
		membership.EXPECT().WorkerGroupMembers().Return(map[string][]string{"default": {"A:1", "boom:1"}}, nil),
		membership.EXPECT().WorkerGroupMembers().Return(map[string][]string{"default": {"B:1"}}, nil),
	)
	hbs := newFakeHeartbeats()
	hbs.set("A:1", reading(0, 0, 0, 100))
	hbs.set("B:1", reading(0, 0, 0, 100))
	hbs.onRead = func(addr string) {
		if addr == "boom:1" {
			panic("corrupt cluster view")
		}
	}

	m := makeTestManager(DefaultConfig(), membership, hbs)
	assert.NoError(t, m.Start())
	defer m.Stop()
	assert.Equal(t, uint64(1), m.registry.Generation())

	assert.Error(t, m.Refresh(context.Background()))
	err := m.Refresh(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt cluster view")
	assert.Equal(t, int64(2), m.count(stats.HostRefreshFailureCounter))
	assert.Equal(t, uint64(1), m.registry.Generation())
	assert.Equal(t, []string{"A:1"}, m.addresses("default"))

	// the loop survived both failures
	m.tick()
	assert.Eventually(t, func() bool { return m.registry.Generation() == 2 }, 3*time.Second, time.Millisecond)
	assert.Equal(t, []string{"B:1"}, m.addresses("default"))
}

func TestLowerWeightAbandonedCycle(t *testing.T) {
	membership := &staticMembership{members: map[string][]string{"a": {"A:1"}, "b": {"B:1"}}}
	hbs := newFakeHeartbeats()
	hbs.set("A:1", reading(0, 0, 0, 100))
	hbs.set("B:1", reading(0, 0, 0, 100))
	m := makeTestManager(DefaultConfig(), membership, hbs)

	ctx, cancel := context.WithCancel(context.Background())
	hbs.onRead = func(addr string) { cancel() }
	err := m.Refresh(ctx)
	assert.Equal(t, ErrRefreshAbandoned, errors.Cause(err))
	assert.Equal(t, uint64(0), m.registry.Generation(), "nothing is published")
	assert.Equal(t, int64(1), m.count(stats.HostRefreshAbandonedCounter))
	assert.Equal(t, int64(0), m.count(stats.HostRefreshFailureCounter))
}

func TestLowerWeightSingleFlight(t *testing.T) {
	membership := &staticMembership{members: map[string][]string{"default": {"A:1"}}}
	hbs := newFakeHeartbeats()
	hbs.set("A:1", reading(0, 0, 0, 100))
	m := makeTestManager(DefaultConfig(), membership, hbs)
	assert.NoError(t, m.Start())
	defer m.Stop()

	entered := make(chan struct{})
	release := make(chan struct{})
	hbs.mu.Lock()
	hbs.onRead = func(string) {
		entered <- struct{}{}
		<-release
	}
	hbs.mu.Unlock()

	m.tick()
	<-entered
	assert.Equal(t, ErrRefreshInFlight, m.Refresh(context.Background()))

	// The loop is busy; this tick is dropped once the cycle ends.
	sent := make(chan struct{})
	go func() {
		m.tick()
		close(sent)
	}()
	time.Sleep(50 * time.Millisecond)
	hbs.mu.Lock()
	hbs.onRead = nil
	hbs.mu.Unlock()
	close(release)
	<-sent

	assert.Eventually(t, func() bool { return m.count(stats.HostRefreshSkippedCounter) == 2 }, 3*time.Second, time.Millisecond)
	assert.Equal(t, int64(2), m.count(stats.HostRefreshCounter))
	assert.Equal(t, uint64(2), m.registry.Generation())
}

func TestLowerWeightLifecycle(t *testing.T) {
	membership := &staticMembership{members: map[string][]string{}}
	m := makeTestManager(DefaultConfig(), membership, newFakeHeartbeats())

	assert.NoError(t, m.Start())
	assert.Equal(t, ErrAlreadyStarted, m.Start())
	m.Stop()
	m.Stop()
	assert.Equal(t, ErrStopped, m.Start())
	assert.Equal(t, ErrStopped, m.Refresh(context.Background()))

	_, ok := m.Select("default")
	assert.False(t, ok, "select still answers after stop")

	never := makeTestManager(DefaultConfig(), membership, newFakeHeartbeats())
	never.Stop()
	assert.Equal(t, ErrStopped, never.Start())
}

func TestLowerWeightSelectFromNotSupported(t *testing.T) {
	m := makeTestManager(DefaultConfig(), &staticMembership{}, newFakeHeartbeats())
	_, err := m.SelectFrom([]HostWorker{{Host: Host{Address: "a:1"}}})
	assert.Equal(t, ErrNotSupported, err)
}

func TestWarningsAreThrottled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WarnInterval = time.Minute
	m := makeTestManager(cfg, &staticMembership{}, newFakeHeartbeats())
	r := m.refresher

	assert.True(t, r.allowWarning("a:1", testNow))
	assert.False(t, r.allowWarning("a:1", testNow.Add(time.Second)))
	assert.True(t, r.allowWarning("b:1", testNow.Add(time.Second)))
	assert.True(t, r.allowWarning("a:1", testNow.Add(time.Minute)))

	r.forgetWarnings(map[string]bool{"b:1": true})
	assert.Len(t, r.warnings, 1)

	cfg.WarnInterval = 0
	m = makeTestManager(cfg, &staticMembership{}, newFakeHeartbeats())
	assert.True(t, m.refresher.allowWarning("a:1", testNow))
	assert.True(t, m.refresher.allowWarning("a:1", testNow))
}

type staticMembership struct {
	members map[string][]string
}

func (s *staticMembership) WorkerGroupMembers() (map[string][]string, error) {
	return s.members, nil
}
