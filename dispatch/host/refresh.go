package host

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/twitter/dispatch/common/stats"
	"github.com/twitter/dispatch/heartbeat"
)

var (
	// ErrRefreshInFlight is returned by a refresh requested while another runs.
	ErrRefreshInFlight = errors.New("host weight refresh already in flight")

	// ErrRefreshAbandoned is returned by a refresh cut short by Stop. Nothing
	// is published.
	ErrRefreshAbandoned = errors.New("host weight refresh abandoned")
)

// refresher rebuilds the GroupWeightTable from membership and heartbeats and
// publishes it to the registry.
type refresher struct {
	membership Membership
	heartbeats HeartbeatSource
	decode     DecodeFunc
	registry   *Registry
	cfg        Config
	stat       stats.StatsReceiver
	time       stats.StatsTime

	inFlight int32

	warnMu   sync.Mutex
	warnings map[string]*rate.Limiter
}

// refresh runs one cycle unless one is already running. A failed cycle
// leaves the previous generation live.
func (r *refresher) refresh(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&r.inFlight, 0, 1) {
		r.stat.Counter(stats.HostRefreshSkippedCounter).Inc(1)
		return ErrRefreshInFlight
	}
	defer atomic.StoreInt32(&r.inFlight, 0)
	defer r.stat.Latency(stats.HostRefreshLatency_ms).Time().Stop()
	r.stat.Counter(stats.HostRefreshCounter).Inc(1)

	err := r.cycle(ctx)
	switch {
	case err == nil:
	case errors.Cause(err) == ErrRefreshAbandoned:
		r.stat.Counter(stats.HostRefreshAbandonedCounter).Inc(1)
		log.Infof("Host weight refresh abandoned: %v", err)
	default:
		r.stat.Counter(stats.HostRefreshFailureCounter).Inc(1)
		log.Errorf("Host weight refresh failed, keeping generation %d: %v", r.registry.Generation(), err)
	}
	return err
}

// cycle is the failure boundary of one refresh: any panic below it becomes
// the returned error.
func (r *refresher) cycle(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic during host weight refresh: %v", p)
		}
	}()

	members, err := r.membership.WorkerGroupMembers()
	if err != nil {
		return errors.Wrap(err, "reading worker group members")
	}
	groups := make([]string, 0, len(members))
	for group := range members {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	now := r.time.Now()
	table := GroupWeightTable{}
	seen := map[string]bool{}
	for _, group := range groups {
		if ctx.Err() != nil {
			return errors.Wrapf(ErrRefreshAbandoned, "before worker group %s", group)
		}
		var hosts []HostWeight
		for _, addr := range members[group] {
			seen[addr] = true
			raw, found := r.heartbeats.LatestHeartbeat(addr)
			if hw, ok := r.hostWeight(addr, group, raw, found, now); ok {
				hosts = append(hosts, hw)
			}
		}
		if len(hosts) > 0 {
			table[group] = hosts
		}
	}
	if ctx.Err() != nil {
		return errors.Wrap(ErrRefreshAbandoned, "before publishing")
	}

	gen := r.registry.Publish(table)
	r.stat.Gauge(stats.HostGenerationGauge).Update(int64(gen))
	r.stat.Gauge(stats.HostPublishedGroupsGauge).Update(int64(len(table)))
	r.stat.Gauge(stats.HostPublishedHostsGauge).Update(int64(table.NumHosts()))
	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("Published host weight generation %d: %s", gen, spew.Sdump(table))
	} else {
		log.Debugf("Published host weight generation %d: %d groups, %d hosts", gen, len(table), table.NumHosts())
	}
	r.forgetWarnings(seen)
	return nil
}

// hostWeight derives the HostWeight of the worker at addr from its latest
// heartbeat, or reports why the worker is left out of this generation.
func (r *refresher) hostWeight(addr, group, raw string, found bool, now time.Time) (HostWeight, bool) {
	if !found || strings.TrimSpace(raw) == "" {
		r.exclude(addr, group, now, stats.HostExcludedNoHeartbeatCounter,
			"worker %s in worker group %s has not sent a heartbeat", addr, group)
		return HostWeight{}, false
	}
	reading, err := r.decode(raw)
	if err != nil {
		r.exclude(addr, group, now, stats.HostExcludedDecodeErrCounter,
			"worker %s sent an unreadable heartbeat: %v", addr, err)
		return HostWeight{}, false
	}
	if age := now.Sub(reading.ReportTime); r.cfg.MaxHeartbeatAge > 0 && !reading.ReportTime.IsZero() && age > r.cfg.MaxHeartbeatAge {
		r.exclude(addr, group, now, stats.HostExcludedStaleCounter,
			"worker %s last heartbeat is %s old", addr, age)
		return HostWeight{}, false
	}
	switch r.cfg.Thresholds.Effective(reading) {
	case heartbeat.Abnormal:
		r.exclude(addr, group, now, stats.HostExcludedAbnormalCounter,
			"worker %s current cpu usage %.2f or load average %.2f is too high, or available memory %.2fG is too low",
			addr, reading.CPUUsage, reading.LoadAverage, reading.AvailableMemoryGB)
		return HostWeight{}, false
	case heartbeat.Busy:
		r.exclude(addr, group, now, stats.HostExcludedBusyCounter,
			"worker %s is busy, current waiting task count %d is larger than worker thread count %d",
			addr, reading.WaitingTaskCount, reading.ExecThreadCount)
		return HostWeight{}, false
	}
	weight := r.cfg.Weights.Weight(reading, now)
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		r.exclude(addr, group, now, stats.HostExcludedDecodeErrCounter,
			"worker %s sent a heartbeat with no finite weight: %s", addr, raw)
		return HostWeight{}, false
	}
	return NewHostWeight(addr, group, reading, weight), true
}

// exclude counts every exclusion but warns about a worker at most once per
// WarnInterval.
func (r *refresher) exclude(addr, group string, now time.Time, counter string, format string, args ...interface{}) {
	r.stat.Counter(counter).Inc(1)
	if !r.allowWarning(addr, now) {
		return
	}
	log.WithFields(
		log.Fields{
			"worker":      addr,
			"workerGroup": group,
		}).Warnf(format, args...)
}

func (r *refresher) allowWarning(addr string, now time.Time) bool {
	if r.cfg.WarnInterval <= 0 {
		return true
	}
	r.warnMu.Lock()
	defer r.warnMu.Unlock()
	l, ok := r.warnings[addr]
	if !ok {
		l = rate.NewLimiter(rate.Every(r.cfg.WarnInterval), 1)
		r.warnings[addr] = l
	}
	return l.AllowN(now, 1)
}

// forgetWarnings drops the limiters of workers no longer in any group.
func (r *refresher) forgetWarnings(members map[string]bool) {
	r.warnMu.Lock()
	defer r.warnMu.Unlock()
	for addr := range r.warnings {
		if !members[addr] {
			delete(r.warnings, addr)
		}
	}
}
