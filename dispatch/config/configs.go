package config

import (
	"time"

	"github.com/twitter/dispatch/cloud/cluster/etcd"
	"github.com/twitter/dispatch/cloud/cluster/memory"
	"github.com/twitter/dispatch/dispatch/host"
)

// ServiceConfigs the map of available configurations
var ServiceConfigs = map[string]ServiceConfig{
	"default":      defaultConfig,
	"local.memory": localMemory,
	"local.etcd":   localEtcd,
}

// defaultConfig the configuration values that are used for unset parts of a JSON configuration
var defaultConfig = ServiceConfig{
	Cluster: ClusterConfig{
		Type:           "memory",
		Workers:        localWorkers(3),
		FetchInterval:  DefaultFetchInterval,
		DeclaredWeight: host.DefaultBaseHostWeight,
	},
	HostManager: host.DefaultConfig(),
	HTTPAddr:    "localhost:9091",
}

// localMemory config for local.memory - !!! make sure this constant is added to ServiceConfigs map above !!!
var localMemory = ServiceConfig{
	Cluster: ClusterConfig{
		Type:           "memory",
		Workers:        append(localWorkers(4), memory.Worker{Addr: "localhost:9200", Groups: []string{"gpu"}}),
		FetchInterval:  250 * time.Millisecond,
		DeclaredWeight: host.DefaultBaseHostWeight,
	},
	HostManager: host.DefaultConfig(),
	HTTPAddr:    "localhost:9091",
}

// localEtcd config for local.etcd - !!! make sure this constant is added to ServiceConfigs map above !!!
var localEtcd = ServiceConfig{
	Cluster: ClusterConfig{
		Type:          "etcd",
		Endpoints:     []string{"localhost:2379"},
		Prefix:        etcd.DefaultPrefix,
		FetchInterval: DefaultFetchInterval,
		DialTimeout:   DefaultDialTimeout,
		FetchTimeout:  etcd.DefaultFetchTimeout,
	},
	HostManager: host.DefaultConfig(),
	HTTPAddr:    "localhost:9091",
}
