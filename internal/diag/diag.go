// Package diag carries structured diagnostic events out of the scraping
// engines without tying them to a global logger.
package diag

import (
	"sync"

	"github.com/rs/zerolog"
)

// Level of an event
type Level int8

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	}
	return "unknown"
}

// Event is one structured diagnostic
type Event struct {
	Level  Level
	Name   string
	Fields map[string]any
}

// Sink receives diagnostics from the engines
type Sink interface {
	Emit(Event)
}

// F is shorthand for an event field set
type F map[string]any

// Emit sends a named event with fields to s, tolerating a nil sink
func Emit(s Sink, level Level, name string, fields F) {
	if s == nil {
		return
	}
	s.Emit(Event{Level: level, Name: name, Fields: fields})
}

type nop struct{}

func (nop) Emit(Event) {}

// Nop discards every event
var Nop Sink = nop{}

// Zerolog writes events to a zerolog logger
type Zerolog struct {
	Logger zerolog.Logger
}

// NewZerolog adapts l as a Sink
func NewZerolog(l zerolog.Logger) *Zerolog {
	return &Zerolog{Logger: l}
}

// Emit implements Sink
func (z *Zerolog) Emit(ev Event) {
	var e *zerolog.Event
	switch ev.Level {
	case Debug:
		e = z.Logger.Debug()
	case Info:
		e = z.Logger.Info()
	case Warn:
		e = z.Logger.Warn()
	default:
		e = z.Logger.Error()
	}
	if e == nil {
		return
	}
	e.Fields(map[string]any(ev.Fields)).Str("event", ev.Name).Msg(ev.Name)
}

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink
func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns recorded events with the given name
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
