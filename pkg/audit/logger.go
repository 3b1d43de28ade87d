// Package audit records operator actions taken through golive as JSON lines.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventEvidence EventType = "EVIDENCE"
	EventDecision EventType = "DECISION"
	EventFreeze   EventType = "FREEZE"
	EventNotify   EventType = "NOTIFY"
	EventSystem   EventType = "SYSTEM"
)

// Prefix starts every line written by the JSON logger.
const Prefix = "AUDIT: "

// Event represents a structured audit record.
type Event struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error
}

type actorKey struct{}

// WithActor attaches the acting operator to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor, or "system".
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return "system"
}

// logger implements Logger, writing structured JSON to a configurable Writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
	now    func() time.Time
}

// NewLogger creates a Logger writing to os.Stderr.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stderr)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &logger{writer: w, now: time.Now}
}

func (l *logger) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	event := Event{
		ID:        uuid.New().String(),
		ActorID:   ActorFrom(ctx),
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: l.now().UTC(),
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.writer.Write(append([]byte(Prefix), append(bytes, '\n')...))
	return err
}

type nopLogger struct{}

// Nop returns a Logger that discards every event.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Record(context.Context, EventType, string, string, map[string]any) error {
	return nil
}
