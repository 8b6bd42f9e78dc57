package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/darkepoch/mubot/internal/client"
	"github.com/darkepoch/mubot/internal/event"
)

// Processes is the view of the process manager the monitor polls.
type Processes interface {
	Check() []int
	Info() []client.ProcessInfo
}

// ProcessMonitor watches managed client processes. It reports processes that
// exited on their own and processes whose CPU usage stays high.
type ProcessMonitor struct {
	processes         Processes
	CheckInterval     time.Duration
	HighCPUPercent    float64       // 0 disables the CPU check
	HighCPUSustained  time.Duration // how long CPU must stay high before OnHighCPU fires
	Logger            *slog.Logger
	OnProcessExited   func(pid int)
	OnHighCPUDetected func(pid int)

	highCPUSince map[int]time.Time
}

// NewProcessMonitor creates a monitor polling at the given interval.
// Default: flag processes above 90% CPU for a minute.
func NewProcessMonitor(processes Processes, interval time.Duration, logger *slog.Logger) *ProcessMonitor {
	return &ProcessMonitor{
		processes:        processes,
		CheckInterval:    interval,
		HighCPUPercent:   90,
		HighCPUSustained: time.Minute,
		Logger:           logger,
		highCPUSince:     make(map[int]time.Time),
	}
}

// Run polls until ctx is done.
func (pm *ProcessMonitor) Run(ctx context.Context) error {
	interval := pm.CheckInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			pm.Tick(now)
		}
	}
}

// Tick runs a single check and returns the pids that exited since the last one.
func (pm *ProcessMonitor) Tick(now time.Time) []int {
	gone := pm.processes.Check()
	for _, pid := range gone {
		delete(pm.highCPUSince, pid)
		event.Send(event.ProcessExited(event.Text("process", "Client process exited unexpectedly"), pid))
		if pm.OnProcessExited != nil {
			pm.OnProcessExited(pid)
		}
	}

	if pm.HighCPUPercent > 0 {
		pm.checkCPU(now)
	}

	return gone
}

func (pm *ProcessMonitor) checkCPU(now time.Time) {
	seen := make(map[int]bool)
	for _, info := range pm.processes.Info() {
		seen[info.PID] = true
		if info.CPUPercent <= pm.HighCPUPercent {
			if start, found := pm.highCPUSince[info.PID]; found {
				pm.Logger.Info("Client CPU usage returned to normal",
					slog.Int("pid", info.PID),
					slog.Float64("cpu", info.CPUPercent),
					slog.Duration("highCPUDuration", now.Sub(start)))
				delete(pm.highCPUSince, info.PID)
			}
			continue
		}

		start, found := pm.highCPUSince[info.PID]
		if !found {
			pm.highCPUSince[info.PID] = now
			pm.Logger.Warn("High client CPU usage detected",
				slog.Int("pid", info.PID),
				slog.Float64("cpu", info.CPUPercent),
				slog.Float64("threshold", pm.HighCPUPercent))
			continue
		}

		if elapsed := now.Sub(start); elapsed >= pm.HighCPUSustained {
			pm.Logger.Error("Sustained high client CPU usage",
				slog.Int("pid", info.PID),
				slog.Float64("cpu", info.CPUPercent),
				slog.Duration("duration", elapsed))
			// restart the window so the callback fires once per sustained period
			pm.highCPUSince[info.PID] = now
			if pm.OnHighCPUDetected != nil {
				pm.OnHighCPUDetected(info.PID)
			}
		}
	}

	for pid := range pm.highCPUSince {
		if !seen[pid] {
			delete(pm.highCPUSince, pid)
		}
	}
}

// Reset clears the CPU tracking state.
func (pm *ProcessMonitor) Reset() {
	pm.highCPUSince = make(map[int]time.Time)
}
