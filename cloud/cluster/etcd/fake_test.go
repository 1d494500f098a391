package etcd

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeEtcd is an in-memory stand in for the parts of the etcd client used
// here. Leases are not expired; tests close keepalive channels instead.
type fakeEtcd struct {
	mu         sync.Mutex
	kvs        map[string]*mvccpb.KeyValue
	revision   int64
	nextLease  clientv3.LeaseID
	keepAlives map[clientv3.LeaseID]chan *clientv3.LeaseKeepAliveResponse
	revoked    []clientv3.LeaseID
	grantErrs  int
	putErr     error
	getErr     error
}

func newFakeEtcd() *fakeEtcd {
	return &fakeEtcd{
		kvs:        map[string]*mvccpb.KeyValue{},
		nextLease:  100,
		keepAlives: map[clientv3.LeaseID]chan *clientv3.LeaseKeepAliveResponse{},
	}
}

func (f *fakeEtcd) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	resp := &clientv3.GetResponse{}
	for k, kv := range f.kvs {
		if strings.HasPrefix(k, key) {
			resp.Kvs = append(resp.Kvs, kv)
		}
	}
	return resp, nil
}

func (f *fakeEtcd) Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.put(key, val)
	return &clientv3.PutResponse{}, nil
}

func (f *fakeEtcd) put(key, val string) {
	f.revision++
	f.kvs[key] = &mvccpb.KeyValue{Key: []byte(key), Value: []byte(val), ModRevision: f.revision}
}

func (f *fakeEtcd) Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErrs > 0 {
		f.grantErrs--
		return nil, errors.New("etcdserver: request timed out")
	}
	f.nextLease++
	return &clientv3.LeaseGrantResponse{ID: f.nextLease, TTL: ttl}, nil
}

func (f *fakeEtcd) KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan *clientv3.LeaseKeepAliveResponse)
	f.keepAlives[id] = ch
	return ch, nil
}

func (f *fakeEtcd) Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id)
	return &clientv3.LeaseRevokeResponse{}, nil
}

// loseLease closes the keepalive channel of id as etcd does when a lease expires.
func (f *fakeEtcd) loseLease(id clientv3.LeaseID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.keepAlives[id]; ok {
		close(ch)
		delete(f.keepAlives, id)
	}
}

func (f *fakeEtcd) value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, ok := f.kvs[key]
	if !ok {
		return "", false
	}
	return string(kv.Value), true
}

func (f *fakeEtcd) lastLease() clientv3.LeaseID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextLease
}

func (f *fakeEtcd) revokedLeases() []clientv3.LeaseID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]clientv3.LeaseID(nil), f.revoked...)
}
