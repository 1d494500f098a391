package endpoints

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/dispatch/common/stats"
)

func NewTwitterServer(addr string, stats stats.StatsReceiver) *TwitterServer {
	s := &TwitterServer{
		Addr:  addr,
		Stats: stats,
		mux:   http.NewServeMux(),
	}
	s.mux.HandleFunc("/", s.helpHandler)
	s.Handle("/health", http.HandlerFunc(healthHandler))
	s.Handle("/admin/metrics.json", http.HandlerFunc(s.statsHandler))
	return s
}

// TwitterServer serves health, stats and any handlers added with Handle.
type TwitterServer struct {
	Addr  string
	Stats stats.StatsReceiver

	mux   *http.ServeMux
	paths []string
}

// Handle adds a handler. It must be called before Serve.
func (s *TwitterServer) Handle(path string, h http.Handler) {
	s.mux.Handle(path, h)
	s.paths = append(s.paths, path)
}

// Handler is the server's full routing table.
func (s *TwitterServer) Handler() http.Handler {
	return s.mux
}

func (s *TwitterServer) Serve() error {
	log.Infof("Serving http & stats on %s", s.Addr)
	return http.ListenAndServe(s.Addr, s.mux)
}

func (s *TwitterServer) helpHandler(w http.ResponseWriter, r *http.Request) {
	paths := append([]string(nil), s.paths...)
	sort.Strings(paths)
	http.Error(w, fmt.Sprintf("Common paths: '%s'", strings.Join(paths, "', '")), http.StatusNotImplemented)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

func (s *TwitterServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	const contentTypeHdr = "Content-Type"
	const contentTypeVal = "application/json; charset=utf-8"
	w.Header().Set(contentTypeHdr, contentTypeVal)

	pretty := r.URL.Query().Get("pretty") == "true"
	str := s.Stats.Render(pretty)
	if _, err := io.Copy(w, bytes.NewBuffer(str)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

type StatScope string

func MakeStatsReceiver(scope StatScope) stats.StatsReceiver {
	s := stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry)
	return s.Scope(string(scope)).Precision(time.Millisecond)
}
