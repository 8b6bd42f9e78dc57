package client

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const terminateTimeout = 5 * time.Second

var (
	ErrProcessManagementDisabled = errors.New("process management is disabled")
	ErrTooManyProcesses          = errors.New("maximum number of client processes already running")
	ErrUnknownProcess            = errors.New("process is not managed by the bot")
)

type ProcessInfo struct {
	PID        int           `json:"pid"`
	CPUPercent float64       `json:"cpuPercent"`
	MemoryMB   float64       `json:"memoryMb"`
	Runtime    time.Duration `json:"runtime"`
	Status     string        `json:"status"`
}

type ProcessConfig struct {
	Enabled      bool
	GamePath     string
	GameArgs     []string
	MaxProcesses int
}

type managedProcess struct {
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}
}

func (m *managedProcess) exited() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// ProcessManager starts and stops game client processes.
type ProcessManager struct {
	mu     sync.Mutex
	cfg    ProcessConfig
	procs  map[int]*managedProcess
	logger *slog.Logger
}

func NewProcessManager(cfg ProcessConfig, logger *slog.Logger) *ProcessManager {
	return &ProcessManager{
		cfg:    cfg,
		procs:  make(map[int]*managedProcess),
		logger: logger,
	}
}

func (pm *ProcessManager) Enabled() bool {
	return pm.cfg.Enabled
}

// Spawn starts a new client process and returns its pid.
func (pm *ProcessManager) Spawn() (int, error) {
	if !pm.cfg.Enabled {
		return 0, ErrProcessManagementDisabled
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	running := 0
	for _, p := range pm.procs {
		if !p.exited() {
			running++
		}
	}
	if running >= pm.cfg.MaxProcesses {
		return 0, fmt.Errorf("%w (%d)", ErrTooManyProcesses, pm.cfg.MaxProcesses)
	}

	path := strings.TrimSpace(pm.cfg.GamePath)
	if path == "" {
		return 0, errors.New("game path not configured")
	}
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("game executable not found at %s: %w", path, err)
	}

	cmd := newCommand(path, pm.cfg.GameArgs...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("error starting client process: %w", err)
	}

	mp := &managedProcess{cmd: cmd, startedAt: time.Now(), done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(mp.done)
	}()

	pid := cmd.Process.Pid
	pm.procs[pid] = mp
	pm.logger.Info("Client process started", slog.Int("pid", pid), slog.String("path", path))

	return pid, nil
}

// Terminate asks the process to exit and kills it if it is still alive after
// five seconds.
func (pm *ProcessManager) Terminate(pid int) error {
	pm.mu.Lock()
	mp, found := pm.procs[pid]
	pm.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownProcess, pid)
	}

	if !mp.exited() {
		if p, err := process.NewProcess(int32(pid)); err == nil {
			if err = p.Terminate(); err != nil {
				pm.logger.Warn("Graceful terminate failed", slog.Int("pid", pid), slog.Any("error", err))
			}
		}

		select {
		case <-mp.done:
		case <-time.After(terminateTimeout):
			pm.logger.Warn("Client process did not exit in time, killing it", slog.Int("pid", pid))
			if err := mp.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return fmt.Errorf("error killing process %d: %w", pid, err)
			}
			<-mp.done
		}
	}

	pm.mu.Lock()
	delete(pm.procs, pid)
	pm.mu.Unlock()
	pm.logger.Info("Client process stopped", slog.Int("pid", pid))

	return nil
}

// TerminateAll stops every managed process.
func (pm *ProcessManager) TerminateAll() {
	for _, pid := range pm.pids() {
		if err := pm.Terminate(pid); err != nil {
			pm.logger.Error("Error stopping client process", slog.Int("pid", pid), slog.Any("error", err))
		}
	}
}

// Info returns resource usage for every managed process, ordered by pid.
func (pm *ProcessManager) Info() []ProcessInfo {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	infos := make([]ProcessInfo, 0, len(pm.procs))
	for pid, mp := range pm.procs {
		info := ProcessInfo{PID: pid, Runtime: time.Since(mp.startedAt), Status: "stopped"}
		if !mp.exited() {
			info.Status = "running"
			if p, err := process.NewProcess(int32(pid)); err == nil {
				if cpu, err := p.CPUPercent(); err == nil {
					info.CPUPercent = cpu
				}
				if mem, err := p.MemoryInfo(); err == nil && mem != nil {
					info.MemoryMB = float64(mem.RSS) / 1024 / 1024
				}
				if st, err := p.Status(); err == nil && len(st) > 0 {
					info.Status = st[0]
				}
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].PID < infos[j].PID })

	return infos
}

// Check forgets processes that exited on their own and returns their pids.
func (pm *ProcessManager) Check() []int {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var gone []int
	for pid, mp := range pm.procs {
		if mp.exited() {
			gone = append(gone, pid)
			delete(pm.procs, pid)
		}
	}
	sort.Ints(gone)
	for _, pid := range gone {
		pm.logger.Warn("Client process exited", slog.Int("pid", pid))
	}

	return gone
}

func (pm *ProcessManager) pids() []int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	out := make([]int, 0, len(pm.procs))
	for pid := range pm.procs {
		out = append(out, pid)
	}
	return out
}
