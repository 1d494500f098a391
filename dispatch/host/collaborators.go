package host

//go:generate mockgen -source=collaborators.go -package=host -destination=collaborators_mock.go

import (
	"github.com/twitter/dispatch/heartbeat"
)

// Membership reports which workers serve each worker group. Calls are
// expected to read a locally cached cluster view.
type Membership interface {
	WorkerGroupMembers() (map[string][]string, error)
}

// HeartbeatSource returns the latest raw heartbeat of the worker at addr,
// false if there is none.
type HeartbeatSource interface {
	LatestHeartbeat(addr string) (string, bool)
}

// DecodeFunc turns a raw heartbeat into a Reading.
type DecodeFunc func(raw string) (heartbeat.Reading, error)
