package etcd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/assert"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/twitter/dispatch/common/stats"
)

func makeTestAnnouncer(client AnnounceClient, hb *string, tickCh chan time.Time) *Announcer {
	a := NewAnnouncer(client, AnnouncerConfig{
		Prefix: "/w",
		Addr:   "host1:9090",
		Groups: []string{"cpu", "gpu"},
	}, func() (string, error) { return *hb, nil },
		backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3), stats.NilStatsReceiver())
	a.time = stats.NewTestTime(time.Now(), 0, tickCh)
	return a
}

func TestAnnouncerStartStop(t *testing.T) {
	kv := newFakeEtcd()
	hb := "hb1"
	tickCh := make(chan time.Time)
	a := makeTestAnnouncer(kv, &hb, tickCh)

	assert.NoError(t, a.Start(context.Background()))
	assert.Error(t, a.Start(context.Background()))
	for _, key := range []string{"/w/cpu/host1:9090", "/w/gpu/host1:9090"} {
		v, ok := kv.value(key)
		assert.True(t, ok, key)
		assert.Equal(t, "hb1", v)
	}

	hb = "hb2"
	tickCh <- time.Now()
	assert.Eventually(t, func() bool {
		v, _ := kv.value("/w/gpu/host1:9090")
		return v == "hb2"
	}, 3*time.Second, 5*time.Millisecond)

	a.Stop()
	a.Stop()
	assert.Equal(t, []clientv3.LeaseID{kv.lastLease()}, kv.revokedLeases())
}

func TestAnnouncerRetriesRegistration(t *testing.T) {
	kv := newFakeEtcd()
	kv.grantErrs = 2
	hb := "hb"
	a := makeTestAnnouncer(kv, &hb, make(chan time.Time))
	assert.NoError(t, a.Start(context.Background()))
	a.Stop()

	kv = newFakeEtcd()
	kv.grantErrs = 10
	a = makeTestAnnouncer(kv, &hb, make(chan time.Time))
	err := a.Start(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "registering host1:9090")
	a.Stop()
	assert.Empty(t, kv.revokedLeases())
}

func TestAnnouncerReregistersLostLease(t *testing.T) {
	kv := newFakeEtcd()
	hb := "hb"
	tickCh := make(chan time.Time)
	a := makeTestAnnouncer(kv, &hb, tickCh)
	assert.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	first := kv.lastLease()
	kv.loseLease(first)
	assert.Eventually(t, func() bool { return !a.hasLease() }, 3*time.Second, 5*time.Millisecond)

	tickCh <- time.Now()
	assert.Eventually(t, func() bool { return a.hasLease() && kv.lastLease() == first+1 }, 3*time.Second, 5*time.Millisecond)
}

func TestAnnounceFailure(t *testing.T) {
	kv := newFakeEtcd()
	hb := "hb"
	stat := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry)
	a := makeTestAnnouncer(kv, &hb, make(chan time.Time))
	a.stat = stat.Scope("etcd")

	assert.Error(t, a.Announce(context.Background()), "no lease yet")
	assert.NoError(t, a.register(context.Background()))
	assert.NoError(t, a.Announce(context.Background()))

	kv.putErr = errors.New("etcdserver: requested lease not found")
	assert.Error(t, a.Announce(context.Background()))
	assert.False(t, a.hasLease())

	scoped := stat.Scope("etcd")
	assert.Equal(t, int64(1), scoped.Counter(stats.EtcdAnnounceCounter).Count())
	assert.Equal(t, int64(1), scoped.Counter(stats.EtcdAnnounceErrCounter).Count())
}
