// Package procstats samples resource usage for a running child process,
// used by the Manager to log diagnostics when it terminates a child and to
// answer Manager.Stats queries; it never affects an outcome decision.
package procstats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Stats is a single resource-usage sample for one PID.
type Stats struct {
	CPUPercent  float64
	MemoryBytes uint64
}

// Provider samples resource usage for a running process by PID.
type Provider interface {
	GetStats(ctx context.Context, pid int) Stats
}

type provider struct{}

// NewProvider creates a gopsutil-backed Provider.
func NewProvider() Provider {
	return &provider{}
}

// GetStats samples CPU/memory for pid, returning a zero Stats if the process
// has already exited or the platform sampler fails.
func (p *provider) GetStats(ctx context.Context, pid int) Stats {
	if pid <= 0 || pid > math.MaxInt32 {
		return Stats{}
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid)) // #nosec G115 -- PID range checked above
	if err != nil {
		return Stats{}
	}

	var stats Stats

	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = cpu
	}

	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		stats.MemoryBytes = mem.RSS
	}

	return stats
}

// FormatMemory formats bytes into a human-readable fixed-width form (B, Kb,
// Mb, Gb; larger values stay in Gb), for use in diagnostic log lines.
func FormatMemory(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%5dB", bytes)
	}

	suffixes := []string{"Kb", "Mb", "Gb"}
	value := float64(bytes)

	for i, suffix := range suffixes {
		value /= float64(unit)
		if value < float64(unit) || i == len(suffixes)-1 {
			switch {
			case value >= 100:
				return fmt.Sprintf("%4.0f %s", value, suffix)
			case value >= 10:
				return fmt.Sprintf("%4.1f %s", value, suffix)
			default:
				return fmt.Sprintf("%4.2f %s", value, suffix)
			}
		}
	}

	return fmt.Sprintf("%4.0f Tb", value)
}

// FormatUptime formats a duration into human-readable uptime (Xh Ym, Xm Ys,
// or Xs), for use alongside a running child's diagnostics.
func FormatUptime(d time.Duration) string {
	d = d.Round(time.Second)

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%2dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%2dm%02ds", m, s)
	default:
		return fmt.Sprintf("  %2ds", s)
	}
}
