// Package eventlog implements the kernel's append-only event stream:
// typed, sequence-numbered records with a replay iterator and interaction
// reconstruction.
//
// The log is strictly sequential rather than a live pub/sub fan-out: the
// kernel has no concurrent subscribers, only a sink and a later replay
// pass.
package eventlog

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/generativebots/swarm/internal/core"
)

// Sink receives each event synchronously as it is appended: every event
// is committed to the sink before control returns from the emit call, so
// the persisted stream never trails the in-memory one. A Sink that returns
// an error is treated as a StateError by the caller (eventlog itself does
// not decide fatality; see Log.Append).
type Sink interface {
	Write(core.Event) error
}

// NopSink discards events; useful for tests that only want the in-memory
// replay buffer.
type NopSink struct{}

func (NopSink) Write(core.Event) error { return nil }

// JSONLSink writes line-delimited JSON records, the kernel's default
// events.jsonl format.
type JSONLSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLSink wraps any io.Writer-like encoder target. Callers typically
// pass an *os.File; eventlog itself never opens files, consistent with the
// kernel being storage-agnostic.
func NewJSONLSink(w jsonWriter) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

// jsonWriter is the minimal surface JSONLSink needs; satisfied by
// *os.File, *bytes.Buffer, etc. Declared locally so this package does not
// force an io import surface beyond what it uses.
type jsonWriter interface {
	Write(p []byte) (n int, err error)
}

func (s *JSONLSink) Write(e core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(e)
}

// Log is the append-only event stream owned by the Orchestrator. Sequence
// numbers are strictly monotonic starting at 0.
type Log struct {
	mu     sync.Mutex
	events []core.Event
	seq    uint64
	sink   Sink
	logger *log.Logger
}

// New creates a Log writing through sink in addition to its in-memory
// buffer. Pass eventlog.NopSink{} for tests that only need Events()/replay.
func New(sink Sink) *Log {
	if sink == nil {
		sink = NopSink{}
	}
	return &Log{
		sink:   sink,
		logger: log.New(log.Writer(), "[EVENTLOG] ", log.LstdFlags),
	}
}

// Append assigns the next sequence number, commits the event to the sink,
// and buffers it for replay. TimestampLogical is derived from Seq, never
// wall-clock.
func (l *Log) Append(epoch, step int, typ core.EventType, payload map[string]interface{}) (core.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := core.Event{
		Seq:              l.seq,
		TimestampLogical: l.seq,
		Epoch:            epoch,
		Step:             step,
		Type:             typ,
		Payload:          payload,
	}

	if err := l.sink.Write(e); err != nil {
		// A sink failure mid-run is a StateError: the log cannot
		// guarantee the append took effect everywhere it must.
		l.logger.Printf("sink write failed: seq=%d type=%s err=%v", e.Seq, typ, err)
		return core.Event{}, &core.StateError{
			Invariant: "event_log_append",
			Detail:    fmt.Sprintf("sink write failed for seq %d type %s: %v", e.Seq, typ, err),
		}
	}

	l.events = append(l.events, e)
	l.seq++
	return e, nil
}

// Events returns a snapshot slice of every event appended so far, in
// sequence order.
func (l *Log) Events() []core.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events appended so far (equal to the next
// sequence number that will be assigned).
func (l *Log) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}
