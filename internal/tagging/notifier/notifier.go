// Package notifier delivers tagging events to interested sinks. Delivery
// is best-effort: the service logs and counts failures and moves on, and a
// failed notification never rolls back the mutation that produced it.
package notifier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tagd/internal/tagging/models"
)

// Kind classifies tagging events.
type Kind string

const (
	// KindTagAdded fires once per newly created link, never for a skipped
	// duplicate.
	KindTagAdded Kind = "tag_added"

	// KindTagRemoved fires once per detach batch that deleted at least one
	// link. It deliberately names no slug; consumers that need the surviving
	// set re-read the subject's tags.
	KindTagRemoved Kind = "tag_removed"
)

// Event is emitted by the tagging service after a mutation commits. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	ID      uuid.UUID         `json:"id"`
	Kind    Kind              `json:"kind"`
	Subject models.SubjectRef `json:"subject"`
	Slug    string            `json:"slug,omitempty"`
	At      time.Time         `json:"at"`
}

// Notifier is a sink for tagging events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, event Event) error

func (f Func) Notify(ctx context.Context, event Event) error { return f(ctx, event) }

// Fanout delivers every event to every sink. A failing sink does not stop
// delivery to the rest; the errors are joined.
type Fanout []Notifier

var _ Notifier = (Fanout)(nil)

func (f Fanout) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes one structured line per event. It is the default sink when
// nothing else is configured.
type Log struct {
	logger *slog.Logger
}

var _ Notifier = (*Log)(nil)

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, event Event) error {
	l.logger.InfoContext(ctx, "tagging event",
		"event_id", event.ID.String(),
		"kind", string(event.Kind),
		"subject", event.Subject.Key(),
		"slug", event.Slug,
	)
	return nil
}

// Nop discards every event.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Notify(context.Context, Event) error { return nil }
