package daemon

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is a lightweight snapshot of one process's resource usage.
// The daemon's STATS control command reports it for the daemon process
// itself, so a user can check on a daemon without attaching to it.
type ProcessStats struct {
	PID          int32
	CPUPercent   float64
	MemoryRSSKiB uint64
	NumThreads   int32
	Status       string
}

// CollectStats reads current stats for pid via gopsutil.
func CollectStats(pid int32) (ProcessStats, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("daemon: lookup process %d: %w", pid, err)
	}

	cpuPct, err := proc.CPUPercent()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("daemon: read cpu percent: %w", err)
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("daemon: read memory info: %w", err)
	}
	numThreads, err := proc.NumThreads()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("daemon: read thread count: %w", err)
	}
	statuses, err := proc.Status()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("daemon: read status: %w", err)
	}
	status := ""
	if len(statuses) > 0 {
		status = statuses[0]
	}

	return ProcessStats{
		PID:          pid,
		CPUPercent:   cpuPct,
		MemoryRSSKiB: memInfo.RSS / 1024,
		NumThreads:   numThreads,
		Status:       status,
	}, nil
}
