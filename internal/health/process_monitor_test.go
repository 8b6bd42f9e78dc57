package health

import (
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/darkepoch/mubot/internal/client"
)

type fakeProcesses struct {
	gone  []int
	infos []client.ProcessInfo
}

func (f *fakeProcesses) Check() []int {
	gone := f.gone
	f.gone = nil
	return gone
}

func (f *fakeProcesses) Info() []client.ProcessInfo { return f.infos }

func newMonitor(p Processes) *ProcessMonitor {
	return NewProcessMonitor(p, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTickReportsExitedProcesses(t *testing.T) {
	p := &fakeProcesses{gone: []int{12, 40}}
	m := newMonitor(p)
	var exited []int
	m.OnProcessExited = func(pid int) { exited = append(exited, pid) }

	got := m.Tick(time.Now())
	if !slices.Equal(got, []int{12, 40}) || !slices.Equal(exited, []int{12, 40}) {
		t.Fatalf("expected 12 and 40 to be reported, got %v / %v", got, exited)
	}

	if got := m.Tick(time.Now()); len(got) != 0 {
		t.Fatalf("expected nothing on the second tick, got %v", got)
	}
}

func TestSustainedHighCPU(t *testing.T) {
	p := &fakeProcesses{infos: []client.ProcessInfo{{PID: 7, CPUPercent: 99}}}
	m := newMonitor(p)
	m.HighCPUSustained = 30 * time.Second
	var flagged []int
	m.OnHighCPUDetected = func(pid int) { flagged = append(flagged, pid) }

	start := time.Now()
	m.Tick(start)
	m.Tick(start.Add(10 * time.Second))
	if len(flagged) != 0 {
		t.Fatalf("expected no action before the sustained window, got %v", flagged)
	}

	m.Tick(start.Add(31 * time.Second))
	if !slices.Equal(flagged, []int{7}) {
		t.Fatalf("expected pid 7 to be flagged once, got %v", flagged)
	}

	m.Tick(start.Add(32 * time.Second))
	if len(flagged) != 1 {
		t.Fatalf("expected the window to restart after firing, got %v", flagged)
	}
}

func TestHighCPUResetsWhenNormal(t *testing.T) {
	p := &fakeProcesses{infos: []client.ProcessInfo{{PID: 7, CPUPercent: 99}}}
	m := newMonitor(p)
	m.HighCPUSustained = 30 * time.Second
	fired := false
	m.OnHighCPUDetected = func(int) { fired = true }

	start := time.Now()
	m.Tick(start)
	p.infos[0].CPUPercent = 10
	m.Tick(start.Add(20 * time.Second))
	p.infos[0].CPUPercent = 99
	m.Tick(start.Add(40 * time.Second))

	if fired {
		t.Fatalf("expected the high CPU window to restart after usage dropped")
	}
}

func TestCPUCheckDisabled(t *testing.T) {
	p := &fakeProcesses{infos: []client.ProcessInfo{{PID: 7, CPUPercent: 99}}}
	m := newMonitor(p)
	m.HighCPUPercent = 0
	m.HighCPUSustained = 0
	fired := false
	m.OnHighCPUDetected = func(int) { fired = true }

	m.Tick(time.Now())
	m.Tick(time.Now().Add(time.Hour))
	if fired {
		t.Fatalf("expected the CPU check to be disabled")
	}
}
