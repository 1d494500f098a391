package etcd

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/twitter/dispatch/common/stats"
)

const (
	DefaultLeaseTTL         = 10 * time.Second
	DefaultAnnounceInterval = time.Second
)

// AnnounceClient is the part of the etcd client an Announcer writes through.
// *clientv3.Client satisfies it.
type AnnounceClient interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

// AnnouncerConfig describes the worker an Announcer publishes.
type AnnouncerConfig struct {
	Prefix   string
	Addr     string
	Groups   []string
	LeaseTTL time.Duration
	Interval time.Duration
}

// Announcer keeps a worker's heartbeat in etcd: it holds a lease, keeps it
// alive, and rewrites the heartbeat under every group of the worker on each
// tick. A lost lease is re-registered on the next tick.
type Announcer struct {
	client  AnnounceClient
	cfg     AnnouncerConfig
	report  func() (string, error)
	backoff backoff.BackOff
	stat    stats.StatsReceiver
	time    stats.StatsTime

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	leased  bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewAnnouncer creates an Announcer publishing report's heartbeat. A nil b
// retries registration five times with exponential backoff.
func NewAnnouncer(client AnnounceClient, cfg AnnouncerConfig, report func() (string, error),
	b backoff.BackOff, stat stats.StatsReceiver) *Announcer {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.LeaseTTL < time.Second {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultAnnounceInterval
	}
	if len(cfg.Groups) == 0 {
		cfg.Groups = []string{"default"}
	}
	if b == nil {
		b = backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Announcer{
		client:  client,
		cfg:     cfg,
		report:  report,
		backoff: b,
		stat:    stat.Scope("etcd"),
		time:    stats.DefaultStatsTime(),
	}
}

// Start registers the worker, publishes its first heartbeat and keeps
// publishing until ctx is done or Stop is called.
func (a *Announcer) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.doneCh != nil {
		a.mu.Unlock()
		return errors.New("announcer already started")
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	if err := a.register(ctx); err != nil {
		a.cancel()
		close(a.doneCh)
		return err
	}
	if err := a.Announce(ctx); err != nil {
		log.Warnf("etcd: first announce of %s failed, will retry: %v", a.cfg.Addr, err)
	}
	go a.loop(ctx)
	return nil
}

// Stop ends publishing and revokes the lease so the worker leaves the
// cluster at once.
func (a *Announcer) Stop() {
	a.mu.Lock()
	cancel, doneCh := a.cancel, a.doneCh
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-doneCh

	a.mu.Lock()
	id, leased := a.leaseID, a.leased
	a.leased = false
	a.mu.Unlock()
	if !leased {
		return
	}
	ctx, cancelRevoke := context.WithTimeout(context.Background(), a.cfg.Interval)
	defer cancelRevoke()
	if _, err := a.client.Revoke(ctx, id); err != nil {
		log.Warnf("etcd: revoking lease of %s: %v", a.cfg.Addr, err)
	}
}

func (a *Announcer) loop(ctx context.Context) {
	defer close(a.doneCh)
	ticker := a.time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !a.hasLease() {
				if err := a.register(ctx); err != nil {
					log.Errorf("etcd: re-registering %s: %v", a.cfg.Addr, err)
					continue
				}
			}
			if err := a.Announce(ctx); err != nil {
				log.Warnf("etcd: announcing %s: %v", a.cfg.Addr, err)
			}
		}
	}
}

// register grants a lease and keeps it alive, retrying with backoff.
func (a *Announcer) register(ctx context.Context) error {
	a.backoff.Reset()
	var id clientv3.LeaseID
	err := backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		lease, err := a.client.Grant(ctx, int64(a.cfg.LeaseTTL/time.Second))
		if err != nil {
			log.Infof("etcd: lease grant for %s failed: %v", a.cfg.Addr, err)
			return err
		}
		ch, err := a.client.KeepAlive(ctx, lease.ID)
		if err != nil {
			log.Infof("etcd: lease keepalive for %s failed: %v", a.cfg.Addr, err)
			return err
		}
		id = lease.ID
		go a.drainKeepAlive(lease.ID, ch)
		return nil
	}, a.backoff)
	if err != nil {
		return errors.Wrapf(err, "registering %s", a.cfg.Addr)
	}

	a.mu.Lock()
	a.leaseID, a.leased = id, true
	a.mu.Unlock()
	log.Infof("etcd: registered %s in groups %v with lease %x", a.cfg.Addr, a.cfg.Groups, int64(id))
	return nil
}

// drainKeepAlive consumes keepalive responses; the channel closes when the
// lease is lost or its context is done.
func (a *Announcer) drainKeepAlive(id clientv3.LeaseID, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for range ch {
	}
	a.mu.Lock()
	if a.leaseID == id {
		a.leased = false
	}
	a.mu.Unlock()
}

func (a *Announcer) hasLease() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.leased
}

// Announce writes the current heartbeat under every group of the worker.
func (a *Announcer) Announce(ctx context.Context) error {
	a.mu.Lock()
	id, leased := a.leaseID, a.leased
	a.mu.Unlock()
	if !leased {
		return errors.New("no lease")
	}

	hb, err := a.report()
	if err != nil {
		a.stat.Counter(stats.EtcdAnnounceErrCounter).Inc(1)
		return errors.Wrap(err, "collecting heartbeat")
	}
	for _, group := range a.cfg.Groups {
		if _, err := a.client.Put(ctx, Key(a.cfg.Prefix, group, a.cfg.Addr), hb, clientv3.WithLease(id)); err != nil {
			a.stat.Counter(stats.EtcdAnnounceErrCounter).Inc(1)
			a.mu.Lock()
			if a.leaseID == id {
				a.leased = false
			}
			a.mu.Unlock()
			return errors.Wrapf(err, "writing heartbeat of %s in group %s", a.cfg.Addr, group)
		}
	}
	a.stat.Counter(stats.EtcdAnnounceCounter).Inc(1)
	return nil
}
