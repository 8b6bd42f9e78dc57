package bot

import (
	"sync/atomic"
	"time"
)

type Phase int32

const (
	Idle Phase = iota
	Running
	Paused
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// State is shared between the scheduler, which is its only writer, and
// anything that reports status.
type State struct {
	phase      atomic.Int32
	errors     atomic.Int32
	cycles     atomic.Int64
	lastUpdate atomic.Int64
	task       atomic.Value
}

func (s *State) Phase() Phase {
	return Phase(s.phase.Load())
}

// Running is true while the loop is alive, paused or not.
func (s *State) Running() bool {
	p := s.Phase()
	return p == Running || p == Paused
}

func (s *State) Paused() bool {
	return s.Phase() == Paused
}

func (s *State) Errors() int {
	return int(s.errors.Load())
}

func (s *State) Cycles() int64 {
	return s.cycles.Load()
}

func (s *State) CurrentTask() string {
	if t, ok := s.task.Load().(string); ok {
		return t
	}
	return ""
}

func (s *State) LastUpdate() time.Time {
	ns := s.lastUpdate.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *State) transition(from, to Phase) bool {
	if s.phase.CompareAndSwap(int32(from), int32(to)) {
		s.touch()
		return true
	}
	return false
}

func (s *State) set(p Phase) {
	s.phase.Store(int32(p))
	s.touch()
}

func (s *State) failCycle() int {
	s.cycles.Add(1)
	s.touch()
	return int(s.errors.Add(1))
}

func (s *State) passCycle() {
	s.errors.Store(0)
	s.cycles.Add(1)
	s.touch()
}

func (s *State) setTask(t string) {
	s.task.Store(t)
	s.touch()
}

func (s *State) resetErrors() {
	s.errors.Store(0)
}

func (s *State) touch() {
	s.lastUpdate.Store(time.Now().UnixNano())
}
