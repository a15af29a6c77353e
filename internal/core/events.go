package core

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

const EventSchemaVersion = 1

type ErrorObject struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Event is a diagnostic record. Results are printed by the CLI; events carry
// progress, warnings and failures on the side channel.
type Event struct {
	V     int          `json:"version"`
	TS    string       `json:"timestamp"`
	Cmd   string       `json:"command"`
	Type  string       `json:"type"`
	Level string       `json:"level,omitempty"`
	Msg   string       `json:"message,omitempty"`
	Data  any          `json:"data,omitempty"`
	Err   *ErrorObject `json:"error,omitempty"`
}

func NowTS() string { return time.Now().UTC().Format(time.RFC3339Nano) }

type Emitter interface {
	Emit(ev Event)
}

type NDJSONEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewNDJSONEmitter(w io.Writer) *NDJSONEmitter {
	return &NDJSONEmitter{w: w}
}

func (e *NDJSONEmitter) Emit(ev Event) {
	if ev.V == 0 {
		ev.V = EventSchemaVersion
	}
	if ev.TS == "" {
		ev.TS = NowTS()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := json.Marshal(ev)
	if err != nil {
		fmt.Fprintf(e.w, "{\"version\":%d,\"timestamp\":%q,\"command\":%q,\"type\":\"error\",\"message\":%q}\n", EventSchemaVersion, NowTS(), ev.Cmd, "failed to encode event: "+err.Error())
		return
	}
	e.w.Write(append(b, '\n'))
}

// TextEmitter prints human diagnostics. Status and log events are only shown
// when Verbose is set; warnings and errors always are.
type TextEmitter struct {
	mu      sync.Mutex
	w       io.Writer
	Verbose bool
}

func NewTextEmitter(w io.Writer, verbose bool) *TextEmitter {
	return &TextEmitter{w: w, Verbose: verbose}
}

func (e *TextEmitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch ev.Type {
	case "error":
		if ev.Err != nil {
			fmt.Fprintf(e.w, "Error: %s\n", ev.Err.Message)
			if ev.Err.Detail != "" {
				fmt.Fprintf(e.w, "  %s\n", ev.Err.Detail)
			}
			if ev.Err.Suggestion != "" {
				fmt.Fprintf(e.w, "  hint: %s\n", ev.Err.Suggestion)
			}
			return
		}
		fmt.Fprintf(e.w, "Error: %s\n", ev.Msg)
	case "warning":
		fmt.Fprintf(e.w, "Warning: %s\n", ev.Msg)
	default:
		if e.Verbose && ev.Msg != "" {
			fmt.Fprintln(e.w, ev.Msg)
		}
	}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

func (r *Recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
}

// Warnings returns the messages of recorded warning events.
func (r *Recorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for _, ev := range r.Events {
		if ev.Type == "warning" {
			out = append(out, ev.Msg)
		}
	}
	return out
}

func Status(cmd, msg string, data any) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "status", Level: "info", Msg: msg, Data: data}
}

func Log(cmd, msg string) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "log", Level: "info", Msg: msg}
}

func Warn(cmd, msg string) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "warning", Level: "warn", Msg: msg}
}

func Err(cmd string, eo ErrorObject) Event {
	return Event{V: EventSchemaVersion, TS: NowTS(), Cmd: cmd, Type: "error", Level: "error", Err: &eo, Msg: eo.Message}
}

func emitMaybe(e Emitter, ev Event) {
	if e != nil {
		e.Emit(ev)
	}
}

type teeEmitter []Emitter

func (t teeEmitter) Emit(ev Event) {
	for _, e := range t {
		emitMaybe(e, ev)
	}
}

// Tee sends every event to each of emitters.
func Tee(emitters ...Emitter) Emitter { return teeEmitter(emitters) }
