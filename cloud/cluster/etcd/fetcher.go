package etcd

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/twitter/dispatch/cloud/cluster"
	"github.com/twitter/dispatch/common/stats"
)

// DefaultFetchTimeout bounds one listing of the worker keys.
const DefaultFetchTimeout = 3 * time.Second

// Getter is the part of the etcd KV api the fetcher reads through.
// *clientv3.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

type fetcher struct {
	kv      Getter
	prefix  string
	timeout time.Duration
	stat    stats.StatsReceiver
}

// MakeFetcher returns a Fetcher listing every worker under prefix. A worker
// in several groups becomes one node with all its groups; its status is the
// most recently written of its heartbeats.
func MakeFetcher(kv Getter, prefix string, timeout time.Duration, stat stats.StatsReceiver) cluster.Fetcher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &fetcher{kv: kv, prefix: prefix, timeout: timeout, stat: stat.Scope("etcd")}
}

type worker struct {
	groups   []string
	status   string
	revision int64
}

func (f *fetcher) Fetch() ([]cluster.Node, error) {
	defer f.stat.Latency(stats.EtcdFetchLatency_ms).Time().Stop()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	resp, err := f.kv.Get(ctx, groupPrefix(f.prefix), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "listing workers under %s", f.prefix)
	}

	workers := map[string]*worker{}
	for _, kv := range resp.Kvs {
		group, addr, ok := parseKey(f.prefix, string(kv.Key))
		if !ok {
			log.Debugf("etcd: ignoring key %q", kv.Key)
			continue
		}
		w, ok := workers[addr]
		if !ok {
			w = &worker{}
			workers[addr] = w
		}
		w.groups = append(w.groups, group)
		if kv.ModRevision >= w.revision {
			w.status, w.revision = string(kv.Value), kv.ModRevision
		}
	}

	addrs := make([]string, 0, len(workers))
	for addr := range workers {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	nodes := make([]cluster.Node, 0, len(addrs))
	for _, addr := range addrs {
		w := workers[addr]
		nodes = append(nodes, cluster.NewWorkerNode(addr, w.groups, w.status))
	}
	return nodes, nil
}
