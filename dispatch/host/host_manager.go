package host

import (
	"github.com/pkg/errors"

	"github.com/twitter/dispatch/common/stats"
	"github.com/twitter/dispatch/heartbeat"
)

var (
	// ErrNotSupported is returned by a HostManager for an operation it does
	// not implement. Callers must not rely on that path.
	ErrNotSupported = errors.New("not supported")

	// ErrNoHostAvailable is returned by SelectFrom given no workers.
	ErrNoHostAvailable = errors.New("no host available")

	ErrAlreadyStarted = errors.New("host manager already started")
	ErrStopped        = errors.New("host manager stopped")
)

// HostManager is what the dispatch path uses to pick the worker for a task.
type HostManager interface {
	// Start begins any background work. It may be called once.
	Start() error

	// Stop halts background work. An in progress refresh is abandoned.
	Stop()

	// Select picks a worker of workerGroup. The bool is false when the group
	// has no eligible worker; the caller decides whether to retry or fail.
	// Select does no I/O.
	Select(workerGroup string) (Host, bool)

	// SelectFrom picks one of workers.
	SelectFrom(workers []HostWorker) (HostWorker, error)
}

// NewHostManager builds the HostManager named by cfg.Selector. Heartbeats
// are only read by the load aware manager.
func NewHostManager(cfg Config, membership Membership, heartbeats HeartbeatSource, stat stats.StatsReceiver) (HostManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid host manager config")
	}
	switch cfg.Selector {
	case LowerWeightSelector:
		return NewLowerWeightHostManager(cfg, membership, heartbeats, heartbeat.Decode, stat), nil
	default:
		selector, err := NewHostSelector(cfg.Selector)
		if err != nil {
			return nil, err
		}
		return NewCommonHostManager(selector, membership, stat), nil
	}
}
