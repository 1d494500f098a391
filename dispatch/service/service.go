// Package service runs host selection as a standalone process: a cluster
// view, the HostManager reading it, and an admin HTTP server exposing
// selections and the live host weights.
package service

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/dispatch/cloud/cluster"
	"github.com/twitter/dispatch/common/endpoints"
	"github.com/twitter/dispatch/common/stats"
	"github.com/twitter/dispatch/dispatch/config"
	"github.com/twitter/dispatch/dispatch/host"
)

// snapshotter is implemented by managers that keep a weight table.
type snapshotter interface {
	Snapshot() (host.GroupWeightTable, uint64)
}

type Service struct {
	manager host.HostManager
	closer  io.Closer
	server  *endpoints.TwitterServer
	stat    stats.StatsReceiver
}

// New builds the cluster and HostManager described by cfg. Nothing runs
// until Start.
func New(cfg config.ServiceConfig, stat stats.StatsReceiver) (*Service, error) {
	log.Infof("Creating host selection service with %s", cfg)
	cl, err := cfg.Cluster.Create(stat)
	if err != nil {
		return nil, err
	}
	manager, err := host.NewHostManager(cfg.HostManager, cl, cl, stat)
	if err != nil {
		cl.Close()
		return nil, err
	}
	return NewWithManager(manager, cl, cfg.HTTPAddr, stat), nil
}

// NewWithManager serves manager on addr. closer, if not nil, is closed
// after manager stops.
func NewWithManager(manager host.HostManager, closer io.Closer, addr string, stat stats.StatsReceiver) *Service {
	s := &Service{
		manager: manager,
		closer:  closer,
		server:  endpoints.NewTwitterServer(addr, stat),
		stat:    stat,
	}
	s.server.Handle("/hosts", http.HandlerFunc(s.hostsHandler))
	s.server.Handle("/select", http.HandlerFunc(s.selectHandler))
	return s
}

func (s *Service) Start() error {
	if err := s.manager.Start(); err != nil {
		return errors.Wrap(err, "starting host manager")
	}
	return nil
}

// Serve blocks serving the admin endpoints.
func (s *Service) Serve() error {
	return s.server.Serve()
}

func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

func (s *Service) Select(workerGroup string) (host.Host, bool) {
	return s.manager.Select(workerGroup)
}

func (s *Service) Close() {
	s.manager.Stop()
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			log.Warnf("Closing cluster: %v", err)
		}
	}
}

// HostJSON is one host as served by /select and /hosts.
type HostJSON struct {
	Address     string  `json:"address"`
	WorkerGroup string  `json:"workerGroup"`
	Weight      float64 `json:"weight,omitempty"`
	CPUUsage    float64 `json:"cpuUsage,omitempty"`
	MemoryUsage float64 `json:"memoryUsage,omitempty"`
	LoadAverage float64 `json:"loadAverage,omitempty"`
}

// HostsJSON is the weight table served by /hosts.
type HostsJSON struct {
	Generation uint64                `json:"generation"`
	Groups     map[string][]HostJSON `json:"groups"`
}

func (s *Service) hostsHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.manager.(snapshotter)
	if !ok {
		http.Error(w, "host manager keeps no weights", http.StatusNotImplemented)
		return
	}
	table, gen := snap.Snapshot()
	out := HostsJSON{Generation: gen, Groups: map[string][]HostJSON{}}
	for group, hosts := range table {
		for _, hw := range hosts {
			out.Groups[group] = append(out.Groups[group], HostJSON{
				Address:     hw.Worker.Address,
				WorkerGroup: hw.Worker.WorkerGroup,
				Weight:      hw.Weight,
				CPUUsage:    hw.CPUUsage,
				MemoryUsage: hw.MemoryUsage,
				LoadAverage: hw.LoadAverage,
			})
		}
		sort.Slice(out.Groups[group], func(i, j int) bool {
			return out.Groups[group][i].Address < out.Groups[group][j].Address
		})
	}
	writeJSON(w, out)
}

func (s *Service) selectHandler(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		group = cluster.DefaultWorkerGroup
	}
	h, ok := s.manager.Select(group)
	if !ok {
		http.Error(w, "no host available in worker group "+group, http.StatusNotFound)
		return
	}
	writeJSON(w, HostJSON{Address: h.Address, WorkerGroup: h.WorkerGroup})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
