package heartbeat

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/dispatch/common/stats"
)

const bytesPerGB = float64(1 << 30)

// TaskCountsFn reports the worker's queued task count and executor thread count.
type TaskCountsFn func() (waiting, execThreads int)

// Collector samples the local machine and builds the Reading a worker
// publishes as its heartbeat.
type Collector struct {
	declaredWeight int
	thresholds     Thresholds
	startupTime    time.Time
	taskCounts     TaskCountsFn
	diskPath       string
	stat           stats.StatsReceiver

	// sampling hooks, replaced in tests
	cpuPercent    func() ([]float64, error)
	virtualMemory func() (*mem.VirtualMemoryStat, error)
	loadAvg       func() (*load.AvgStat, error)
	diskUsage     func(path string) (*disk.UsageStat, error)
	now           func() time.Time
	pid           int
}

// NewCollector creates a Collector for a worker that started now. A nil
// taskCounts reports an idle worker with one executor thread.
func NewCollector(declaredWeight int, thresholds Thresholds, taskCounts TaskCountsFn, stat stats.StatsReceiver) *Collector {
	if taskCounts == nil {
		taskCounts = func() (int, int) { return 0, 1 }
	}
	return &Collector{
		declaredWeight: declaredWeight,
		thresholds:     thresholds,
		startupTime:    time.Now(),
		taskCounts:     taskCounts,
		diskPath:       "/",
		stat:           stat,
		cpuPercent:     func() ([]float64, error) { return cpu.Percent(0, false) },
		virtualMemory:  mem.VirtualMemory,
		loadAvg:        load.Avg,
		diskUsage:      disk.Usage,
		now:            time.Now,
		pid:            os.Getpid(),
	}
}

// Collect samples cpu, memory, load and disk. Disk is best effort; any other
// sampling failure is returned.
func (c *Collector) Collect() (Reading, error) {
	cpuPct, err := c.cpuPercent()
	if err != nil {
		return Reading{}, c.failed(err, "cpu")
	}
	vm, err := c.virtualMemory()
	if err != nil {
		return Reading{}, c.failed(err, "memory")
	}
	avg, err := c.loadAvg()
	if err != nil {
		return Reading{}, c.failed(err, "load")
	}

	diskGB := 0.0
	if du, err := c.diskUsage(c.diskPath); err != nil {
		log.Debugf("heartbeat: disk usage of %s unavailable: %v", c.diskPath, err)
	} else {
		diskGB = float64(du.Free) / bytesPerGB
	}

	waiting, threads := c.taskCounts()
	r := Reading{
		StartupTime:       c.startupTime,
		ReportTime:        c.now(),
		LoadAverage:       avg.Load1,
		MemoryUsage:       vm.UsedPercent / 100,
		AvailableMemoryGB: float64(vm.Available) / bytesPerGB,
		MaxCPULoadAvg:     c.thresholds.MaxLoadAverage,
		ReservedMemoryGB:  c.thresholds.MinAvailableMemoryGB,
		DiskAvailableGB:   diskGB,
		ProcessID:         c.pid,
		DeclaredWeight:    c.declaredWeight,
		WaitingTaskCount:  waiting,
		ExecThreadCount:   threads,
	}
	if len(cpuPct) > 0 {
		r.CPUUsage = cpuPct[0] / 100
	}
	r.ServerStatus = c.thresholds.Status(r)
	return r, nil
}

// CollectEncoded is Collect followed by Encode.
func (c *Collector) CollectEncoded() (string, error) {
	r, err := c.Collect()
	if err != nil {
		return "", err
	}
	return Encode(r), nil
}

func (c *Collector) failed(err error, what string) error {
	c.stat.Counter(stats.HeartbeatCollectErrCounter).Inc(1)
	return errors.Wrapf(err, "sampling %s", what)
}
