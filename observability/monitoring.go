// Package observability exposes process-level stats for the health
// endpoint and the storage inspector page.
package observability

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"
)

// Monitor samples the running process on demand. Failures degrade to
// partial snapshots; monitoring must never take the service down.
type Monitor struct {
	log     *slog.Logger
	proc    *process.Process
	started time.Time
}

func NewMonitor(log *slog.Logger) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
		proc = nil
	}
	return &Monitor{log: log, proc: proc, started: time.Now().UTC()}
}

// Snapshot returns the current process stats as a flat map, ready for
// JSON encoding or the inspector template.
func (m *Monitor) Snapshot() map[string]any {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := map[string]any{
		"uptime":       time.Since(m.started).Round(time.Second).String(),
		"goroutines":   runtime.NumGoroutine(),
		"alloc_mem_mb": ms.Alloc / 1024 / 1024,
		"num_gc":       ms.NumGC,
	}

	if m.proc != nil {
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats["cpu_percent"] = cpu
		} else {
			m.log.Debug("CPU stat unavailable", "error", err)
		}
		if ram, err := m.proc.MemoryPercent(); err == nil {
			stats["ram_percent"] = ram
		} else {
			m.log.Debug("RAM stat unavailable", "error", err)
		}
	}
	return stats
}
