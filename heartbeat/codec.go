package heartbeat

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	fieldSeparator = ","
	numFields      = 14
)

// ErrEmptyHeartbeat is returned by Decode for an empty blob.
var ErrEmptyHeartbeat = errors.New("empty heartbeat")

// Encode renders r as 14 comma separated fields:
//
//   startupTimeMillis,reportTimeMillis,cpuUsage,memoryUsage,loadAverage,
//   availableMemoryGB,maxCpuLoadAvg,reservedMemoryGB,diskAvailableGB,
//   serverStatus,processId,declaredWeight,waitingTaskCount,execThreadCount
func Encode(r Reading) string {
	fields := []string{
		strconv.FormatInt(toMillis(r.StartupTime), 10),
		strconv.FormatInt(toMillis(r.ReportTime), 10),
		formatFloat(r.CPUUsage),
		formatFloat(r.MemoryUsage),
		formatFloat(r.LoadAverage),
		formatFloat(r.AvailableMemoryGB),
		formatFloat(r.MaxCPULoadAvg),
		formatFloat(r.ReservedMemoryGB),
		formatFloat(r.DiskAvailableGB),
		strconv.Itoa(int(r.ServerStatus)),
		strconv.Itoa(r.ProcessID),
		strconv.Itoa(r.DeclaredWeight),
		strconv.Itoa(r.WaitingTaskCount),
		strconv.Itoa(r.ExecThreadCount),
	}
	return strings.Join(fields, fieldSeparator)
}

// Decode parses a blob produced by Encode. Trailing fields beyond the known
// ones are ignored so newer workers can add fields.
func Decode(raw string) (Reading, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reading{}, ErrEmptyHeartbeat
	}
	parts := strings.Split(raw, fieldSeparator)
	if len(parts) < numFields {
		return Reading{}, errors.Errorf("heartbeat has %d fields, want at least %d: %q", len(parts), numFields, raw)
	}

	p := &fieldParser{parts: parts}
	r := Reading{
		StartupTime:       fromMillis(p.parseInt64(0, "startupTime")),
		ReportTime:        fromMillis(p.parseInt64(1, "reportTime")),
		CPUUsage:          p.parseFloat(2, "cpuUsage"),
		MemoryUsage:       p.parseFloat(3, "memoryUsage"),
		LoadAverage:       p.parseFloat(4, "loadAverage"),
		AvailableMemoryGB: p.parseFloat(5, "availableMemoryGB"),
		MaxCPULoadAvg:     p.parseFloat(6, "maxCpuLoadAvg"),
		ReservedMemoryGB:  p.parseFloat(7, "reservedMemoryGB"),
		DiskAvailableGB:   p.parseFloat(8, "diskAvailableGB"),
		ServerStatus:      ServerStatus(p.parseInt(9, "serverStatus")),
		ProcessID:         p.parseInt(10, "processId"),
		DeclaredWeight:    p.parseInt(11, "declaredWeight"),
		WaitingTaskCount:  p.parseInt(12, "waitingTaskCount"),
		ExecThreadCount:   p.parseInt(13, "execThreadCount"),
	}
	if p.err != nil {
		return Reading{}, p.err
	}
	if !r.ServerStatus.valid() {
		return Reading{}, errors.Errorf("heartbeat has unknown server status %d", int(r.ServerStatus))
	}
	return r, nil
}

// fieldParser remembers the first parse error so Decode reads linearly.
type fieldParser struct {
	parts []string
	err   error
}

func (p *fieldParser) field(i int) string {
	return strings.TrimSpace(p.parts[i])
}

func (p *fieldParser) parseInt64(i int, name string) int64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(p.field(i), 10, 64)
	if err != nil {
		p.err = errors.Wrapf(err, "heartbeat field %s", name)
	}
	return v
}

func (p *fieldParser) parseInt(i int, name string) int {
	return int(p.parseInt64(i, name))
}

func (p *fieldParser) parseFloat(i int, name string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.field(i), 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = errors.Errorf("%q is not a finite number", p.field(i))
	}
	if err != nil {
		p.err = errors.Wrapf(err, "heartbeat field %s", name)
		return 0
	}
	return v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano() / int64(time.Millisecond)
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond))
}
