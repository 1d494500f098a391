// Package etcd backs the cluster view with etcd. Every worker writes its
// latest heartbeat under one key per worker group it serves:
//
//	{prefix}/{group}/{addr} = heartbeat
//
// Keys are attached to a lease the worker keeps alive, so a dead worker's
// keys expire and it drops out of the cluster.
package etcd

import (
	"strings"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "/dispatch/workers"

// Key returns the key a worker at addr writes its heartbeat under for group.
func Key(prefix, group, addr string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + group + "/" + addr
}

// groupPrefix is what a Get WithPrefix lists: every group under prefix.
func groupPrefix(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/"
}

// parseKey splits a key written by Key. Keys with an empty group or addr, or
// outside prefix, are rejected.
func parseKey(prefix, key string) (group, addr string, ok bool) {
	rest := strings.TrimPrefix(key, groupPrefix(prefix))
	if rest == key {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
