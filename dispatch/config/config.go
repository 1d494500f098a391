// Package config builds the host selection service from a named preset or a
// JSON document laid over the default preset.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/twitter/dispatch/cloud/cluster"
	"github.com/twitter/dispatch/cloud/cluster/etcd"
	"github.com/twitter/dispatch/cloud/cluster/memory"
	"github.com/twitter/dispatch/common/stats"
	"github.com/twitter/dispatch/dispatch/host"
	"github.com/twitter/dispatch/heartbeat"
)

// How often the cluster view is refetched.
const DefaultFetchInterval = time.Second

// How long to wait for the etcd connection.
const DefaultDialTimeout = 5 * time.Second

// ServiceConfig is everything needed to run the host selection service.
type ServiceConfig struct {
	Cluster     ClusterConfig
	HostManager host.Config
	HTTPAddr    string
}

func (s ServiceConfig) String() string {
	return fmt.Sprintf("\n%s\nHostManager: %+v\nHTTPAddr: %s", s.Cluster, s.HostManager, s.HTTPAddr)
}

// ClusterConfig selects and parameterizes the cluster view.
type ClusterConfig struct {
	Type          string // memory, etcd
	FetchInterval time.Duration

	// memory: the in-process workers and the weight they declare
	Workers        []memory.Worker
	DeclaredWeight int

	// etcd
	Endpoints    []string
	Prefix       string
	DialTimeout  time.Duration
	FetchTimeout time.Duration
}

func (c ClusterConfig) String() string {
	return fmt.Sprintf("ClusterConfig: Type: %s, FetchInterval: %s, Workers: %v, DeclaredWeight: %d, "+
		"Endpoints: %v, Prefix: %s, DialTimeout: %s, FetchTimeout: %s",
		c.Type, c.FetchInterval, c.Workers, c.DeclaredWeight, c.Endpoints, c.Prefix, c.DialTimeout, c.FetchTimeout)
}

// JSONConfigs is the JSON form of a ServiceConfig. Durations are strings
// such as "1s". A section left out, or whose Type/Selector is empty, takes
// the default preset's value.
type JSONConfigs struct {
	Cluster     ClusterJSONConfig     `json:"Cluster"`
	HostManager HostManagerJSONConfig `json:"HostManager"`
	HTTPAddr    string                `json:"HTTPAddr"`
}

type ClusterJSONConfig struct {
	Type           string          `json:"Type"`
	FetchInterval  string          `json:"FetchInterval"`
	Workers        []memory.Worker `json:"Workers"`
	DeclaredWeight int             `json:"DeclaredWeight"`
	Endpoints      []string        `json:"Endpoints"`
	Prefix         string          `json:"Prefix"`
	DialTimeout    string          `json:"DialTimeout"`
	FetchTimeout   string          `json:"FetchTimeout"`
}

type HostManagerJSONConfig struct {
	Selector        string                `json:"Selector"`
	RefreshInterval string                `json:"RefreshInterval"`
	MaxHeartbeatAge string                `json:"MaxHeartbeatAge"`
	WarnInterval    string                `json:"WarnInterval"`
	Thresholds      *heartbeat.Thresholds `json:"Thresholds"`
	Weights         *WeightsJSONConfig    `json:"Weights"`
}

type WeightsJSONConfig struct {
	CPUFactor      float64 `json:"CPUFactor"`
	MemoryFactor   float64 `json:"MemoryFactor"`
	LoadFactor     float64 `json:"LoadFactor"`
	BaseHostWeight int     `json:"BaseHostWeight"`
	WarmUp         string  `json:"WarmUp"`
}

// GetServiceConfig returns the preset named by configSelector, or parses
// configSelector as JSON and lays it over the default preset.
func GetServiceConfig(configSelector string) (ServiceConfig, error) {
	if cfg, ok := ServiceConfigs[configSelector]; ok {
		return cfg.copy(), nil
	}
	if !strings.HasPrefix(strings.TrimSpace(configSelector), "{") {
		keys := make([]string, 0, len(ServiceConfigs))
		for k := range ServiceConfigs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return ServiceConfig{}, fmt.Errorf("invalid configuration %s, supported values are %v or a JSON config", configSelector, keys)
	}

	jc := JSONConfigs{}
	if err := json.Unmarshal([]byte(configSelector), &jc); err != nil {
		return ServiceConfig{}, errors.Wrap(err, "couldn't parse top-level config")
	}
	cfg := ServiceConfigs["default"].copy()
	if jc.Cluster.Type == "" {
		log.Infof("using default Cluster config")
	} else {
		c, err := jc.Cluster.create()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.Cluster = c
	}
	if jc.HostManager.Selector == "" {
		log.Infof("using default HostManager config")
	} else {
		h, err := jc.HostManager.create()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.HostManager = h
	}
	if jc.HTTPAddr != "" {
		cfg.HTTPAddr = jc.HTTPAddr
	}
	if err := cfg.HostManager.Validate(); err != nil {
		return ServiceConfig{}, errors.Wrap(err, "invalid HostManager config")
	}
	return cfg, nil
}

func (s ServiceConfig) copy() ServiceConfig {
	c := s
	c.Cluster.Workers = append([]memory.Worker(nil), s.Cluster.Workers...)
	c.Cluster.Endpoints = append([]string(nil), s.Cluster.Endpoints...)
	return c
}

func (jc ClusterJSONConfig) create() (ClusterConfig, error) {
	c := ClusterConfig{
		Type:           jc.Type,
		Workers:        jc.Workers,
		DeclaredWeight: jc.DeclaredWeight,
		Endpoints:      jc.Endpoints,
		Prefix:         jc.Prefix,
	}
	var err error
	if c.FetchInterval, err = parseDuration("Cluster.FetchInterval", jc.FetchInterval, DefaultFetchInterval); err != nil {
		return c, err
	}
	if c.DialTimeout, err = parseDuration("Cluster.DialTimeout", jc.DialTimeout, DefaultDialTimeout); err != nil {
		return c, err
	}
	if c.FetchTimeout, err = parseDuration("Cluster.FetchTimeout", jc.FetchTimeout, etcd.DefaultFetchTimeout); err != nil {
		return c, err
	}
	switch c.Type {
	case "memory":
		if len(c.Workers) == 0 {
			c.Workers = localWorkers(3)
		}
		if c.DeclaredWeight == 0 {
			c.DeclaredWeight = host.DefaultBaseHostWeight
		}
	case "etcd":
		if len(c.Endpoints) == 0 {
			return c, fmt.Errorf("etcd cluster config needs Endpoints")
		}
		if c.Prefix == "" {
			c.Prefix = etcd.DefaultPrefix
		}
	default:
		return c, fmt.Errorf("unknown cluster type %q, supported values are memory and etcd", c.Type)
	}
	return c, nil
}

func (jc HostManagerJSONConfig) create() (host.Config, error) {
	c := host.DefaultConfig()
	c.Selector = host.SelectorType(jc.Selector)
	var err error
	if c.RefreshInterval, err = parseDuration("HostManager.RefreshInterval", jc.RefreshInterval, c.RefreshInterval); err != nil {
		return c, err
	}
	if c.MaxHeartbeatAge, err = parseDuration("HostManager.MaxHeartbeatAge", jc.MaxHeartbeatAge, c.MaxHeartbeatAge); err != nil {
		return c, err
	}
	if c.WarnInterval, err = parseDuration("HostManager.WarnInterval", jc.WarnInterval, c.WarnInterval); err != nil {
		return c, err
	}
	if jc.Thresholds != nil {
		c.Thresholds = *jc.Thresholds
	}
	if w := jc.Weights; w != nil {
		c.Weights = host.WeightConfig{
			CPUFactor:      w.CPUFactor,
			MemoryFactor:   w.MemoryFactor,
			LoadFactor:     w.LoadFactor,
			BaseHostWeight: w.BaseHostWeight,
		}
		if c.Weights.WarmUp, err = parseDuration("HostManager.Weights.WarmUp", w.WarmUp, host.DefaultWarmUp); err != nil {
			return c, err
		}
	}
	return c, nil
}

func parseDuration(field, text string, def time.Duration) (time.Duration, error) {
	if text == "" {
		return def, nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", field)
	}
	return d, nil
}

func localWorkers(n int) []memory.Worker {
	workers := make([]memory.Worker, n)
	for i := range workers {
		workers[i] = memory.Worker{Addr: fmt.Sprintf("localhost:%d", 9100+i)}
	}
	return workers
}

// Create builds the cluster view described by c and starts keeping it
// current every FetchInterval. Closing the cluster stops the fetching and
// closes the etcd client.
func (c ClusterConfig) Create(stat stats.StatsReceiver) (*cluster.Cluster, error) {
	var f cluster.Fetcher
	var closers []io.Closer
	switch c.Type {
	case "memory":
		f = c.memoryFetcher(stat)
	case "etcd":
		client, err := c.NewEtcdClient()
		if err != nil {
			return nil, err
		}
		f = etcd.MakeFetcher(client, c.Prefix, c.FetchTimeout, stat)
		closers = append(closers, client)
	default:
		return nil, fmt.Errorf("unknown cluster type %q", c.Type)
	}
	interval := c.FetchInterval
	if interval <= 0 {
		interval = DefaultFetchInterval
	}
	cl, err := cluster.NewFetchedCluster(f, stats.DefaultStatsTime().NewTicker(interval), stat, closers...)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s cluster", c.Type)
	}
	log.Infof("Created %s cluster with %d nodes", c.Type, len(cl.Members()))
	return cl, nil
}

// memoryFetcher reports every in-process worker with a heartbeat sampled
// from this machine.
func (c ClusterConfig) memoryFetcher(stat stats.StatsReceiver) cluster.Fetcher {
	collectors := map[string]*heartbeat.Collector{}
	for _, w := range c.Workers {
		collectors[w.Addr] = heartbeat.NewCollector(c.DeclaredWeight, heartbeat.DefaultThresholds(), nil, stat.Scope("heartbeat"))
	}
	return memory.MakeFetcher(c.Workers, func(addr string) (string, error) {
		return collectors[addr].CollectEncoded()
	})
}

// NewEtcdClient connects to the configured etcd endpoints.
func (c ClusterConfig) NewEtcdClient() (*clientv3.Client, error) {
	dial := c.DialTimeout
	if dial <= 0 {
		dial = DefaultDialTimeout
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   c.Endpoints,
		DialTimeout: dial,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to etcd at %v", c.Endpoints)
	}
	return client, nil
}
