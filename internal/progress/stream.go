package progress

import (
	"sync"
	"time"
)

// Level classifies an event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Status is the run state an event was emitted in.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Event is one progress message.
type Event struct {
	Time    time.Time `json:"timestamp"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Status  Status    `json:"status"`
}

// Stream carries events from a run to a single consumer. A full buffer
// blocks the producer, so events are never dropped or reordered.
// A nil *Stream discards everything.
type Stream struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
	now    func() time.Time
}

// NewStream creates a Stream with the given buffer size.
func NewStream(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{ch: make(chan Event, buffer), now: time.Now}
}

// Events returns the receive side. It is closed by Close.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Emit sends a running-state event.
func (s *Stream) Emit(level Level, message string) {
	s.send(level, message, StatusRunning)
}

// Info, Success and Warn are shorthands for Emit.
func (s *Stream) Info(message string)    { s.Emit(LevelInfo, message) }
func (s *Stream) Success(message string) { s.Emit(LevelSuccess, message) }
func (s *Stream) Warn(message string)    { s.Emit(LevelWarn, message) }

// Finish sends the terminal event for the run: success when err is nil,
// failure otherwise.
func (s *Stream) Finish(err error) {
	if err != nil {
		s.send(LevelError, err.Error(), StatusFailed)
		return
	}
	s.send(LevelSuccess, "run complete", StatusSuccess)
}

// Close ends the stream. Later Emits are dropped.
func (s *Stream) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *Stream) send(level Level, message string, status Status) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	s.ch <- Event{Time: s.now(), Level: level, Message: message, Status: status}
}
