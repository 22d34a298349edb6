package health

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// StoreChecker pings a key-value store
type StoreChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewStoreChecker creates a store checker; name distinguishes the local and synced scopes.
func NewStoreChecker(name string, ping func(ctx context.Context) error) *StoreChecker {
	return &StoreChecker{name: name, ping: ping}
}

func (c *StoreChecker) Name() string { return c.name }

// Check pings the store and reports the round trip.
func (c *StoreChecker) Check(ctx context.Context) *Component {
	start := time.Now()
	if err := c.ping(ctx); err != nil {
		return report(c.name, StatusUnhealthy, fmt.Sprintf("ping failed: %v", err), nil)
	}
	return report(c.name, StatusHealthy, "reachable",
		map[string]any{"latency_ms": time.Since(start).Milliseconds()})
}

// BreakerChecker reports the platform client's circuit breaker
type BreakerChecker struct {
	state func() string
}

// NewBreakerChecker creates a breaker checker from a state reader
// returning "closed", "half-open" or "open".
func NewBreakerChecker(state func() string) *BreakerChecker {
	return &BreakerChecker{state: state}
}

func (c *BreakerChecker) Name() string { return "shopee" }

func (c *BreakerChecker) Check(ctx context.Context) *Component {
	state := c.state()
	details := map[string]any{"breaker": state}

	switch state {
	case "open":
		return report(c.Name(), StatusUnhealthy, "circuit breaker open, platform calls rejected", details)
	case "half-open":
		return report(c.Name(), StatusDegraded, "circuit breaker probing", details)
	}
	return report(c.Name(), StatusHealthy, "platform reachable", details)
}

// SchedulerChecker reports whether periodic checks are running
type SchedulerChecker struct {
	enabled  func() bool
	lastTick func() time.Time
	interval time.Duration
}

// NewSchedulerChecker creates a scheduler checker
func NewSchedulerChecker(enabled func() bool, lastTick func() time.Time, interval time.Duration) *SchedulerChecker {
	return &SchedulerChecker{enabled: enabled, lastTick: lastTick, interval: interval}
}

func (c *SchedulerChecker) Name() string { return "scheduler" }

// Check reports degraded while paused or when ticks have stalled.
func (c *SchedulerChecker) Check(ctx context.Context) *Component {
	details := map[string]any{"interval": c.interval.String()}
	if !c.enabled() {
		return report(c.Name(), StatusDegraded, "periodic checks paused", details)
	}

	if last := c.lastTick(); !last.IsZero() {
		details["last_tick"] = last
		// Three missed ticks means the loop is stuck behind a slow cycle.
		if time.Since(last) > 3*c.interval {
			return report(c.Name(), StatusDegraded, "no tick in the last three intervals", details)
		}
	}
	return report(c.Name(), StatusHealthy, "periodic checks running", details)
}

// DiskChecker checks that the data directory holding the store is writable
// and has room to grow.
type DiskChecker struct {
	dataDir string
	minFree uint64
}

// NewDiskChecker creates a disk checker; minFree is in bytes.
func NewDiskChecker(dataDir string, minFree uint64) *DiskChecker {
	return &DiskChecker{dataDir: dataDir, minFree: minFree}
}

func (c *DiskChecker) Name() string { return "disk" }

func (c *DiskChecker) Check(ctx context.Context) *Component {
	details := map[string]any{"path": c.dataDir}
	if err := probeWritable(c.dataDir); err != nil {
		return report(c.Name(), StatusUnhealthy, fmt.Sprintf("data directory not writable: %v", err), details)
	}

	free, total, err := diskSpace(c.dataDir)
	if err != nil {
		return report(c.Name(), StatusDegraded, fmt.Sprintf("cannot read disk usage: %v", err), details)
	}
	details["free_mb"] = free >> 20
	if total > 0 {
		details["used_pct"] = 100 - float64(free)/float64(total)*100
	}

	if free < c.minFree {
		return report(c.Name(), StatusDegraded, fmt.Sprintf("%d MB free, want %d MB", free>>20, c.minFree>>20), details)
	}
	return report(c.Name(), StatusHealthy, "data directory writable", details)
}

func probeWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// diskSpace returns free and total bytes on the filesystem holding path.
func diskSpace(path string) (free, total uint64, err error) {
	var fs unix.Statfs_t
	if err = unix.Statfs(path, &fs); err != nil {
		return 0, 0, err
	}
	bsize := uint64(fs.Bsize)
	return fs.Bavail * bsize, fs.Blocks * bsize, nil
}

// ProcessChecker reports on the agent process itself. It is always healthy
// while the process can answer.
type ProcessChecker struct {
	startTime time.Time
}

// NewProcessChecker creates a process checker
func NewProcessChecker() *ProcessChecker {
	return &ProcessChecker{startTime: time.Now()}
}

func (c *ProcessChecker) Name() string { return "process" }

func (c *ProcessChecker) Check(ctx context.Context) *Component {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return report(c.Name(), StatusHealthy, "running", map[string]any{
		"pid":        os.Getpid(),
		"uptime":     time.Since(c.startTime).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"heap_mb":    mem.HeapAlloc >> 20,
	})
}

func report(name string, status ComponentStatus, msg string, details map[string]any) *Component {
	return &Component{
		Name:        name,
		Status:      status,
		Message:     msg,
		LastChecked: time.Now(),
		Details:     details,
	}
}
