package events

import (
	"sync"
	"time"

	"github.com/cuemby/foundry/pkg/log"
)

// EventType represents the type of invocation event
type EventType string

const (
	EventRequestStarted   EventType = "request.started"
	EventRequestCompleted EventType = "request.completed"
	EventRequestFailed    EventType = "request.failed"
	EventSandboxCreated   EventType = "sandbox.created"
	EventVolumeCreated    EventType = "volume.created"
	EventCommandFinished  EventType = "command.finished"
	EventCommandSpawnFail EventType = "command.spawnfail"
)

// Event is one point in the lifecycle of an invocation request.
type Event struct {
	Type      EventType
	Timestamp time.Time
	RequestID string
	Message   string
	Metadata  map[string]string
}

// Sink consumes events. Requests are short-lived and emit a handful of
// events each, so delivery is synchronous: a sink must return quickly
// and never block on the emitting request.
type Sink func(Event)

// Notifier fans invocation events out to the registered sinks. Unlike
// a subscription broker there is nothing to start, stop, or drain:
// sinks are added at construction or through Attach and never removed,
// and each request emits through its own Stream.
type Notifier struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewNotifier creates a notifier with the given sinks.
func NewNotifier(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// Attach registers an additional sink.
func (n *Notifier) Attach(s Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, s)
}

// ForRequest binds a stream to one request id. A nil notifier yields a
// stream that discards everything, so callers need no guards.
func (n *Notifier) ForRequest(requestID string) *Stream {
	if n == nil {
		return nil
	}
	return &Stream{notifier: n, requestID: requestID}
}

func (n *Notifier) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	n.mu.RLock()
	sinks := n.sinks
	n.mu.RUnlock()
	for _, s := range sinks {
		s(ev)
	}
}

// Stream emits the events of a single request.
type Stream struct {
	notifier  *Notifier
	requestID string
}

// Emit publishes one event on the stream.
func (s *Stream) Emit(eventType EventType, message string, metadata map[string]string) {
	if s == nil {
		return
	}
	s.notifier.emit(Event{
		Type:      eventType,
		RequestID: s.requestID,
		Message:   message,
		Metadata:  metadata,
	})
}

// LogSink returns a sink that writes events to the structured log.
func LogSink() Sink {
	logger := log.Component("events")
	return func(ev Event) {
		line := logger.Debug().
			Str("type", string(ev.Type)).
			Str("request_id", ev.RequestID)
		for k, v := range ev.Metadata {
			line = line.Str(k, v)
		}
		line.Msg(ev.Message)
	}
}
