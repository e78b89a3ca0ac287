// Package service orchestrates tagging mutations. It serializes writes per
// subject, keeps catalog counts consistent with links inside one store
// transaction, and emits events only after that transaction commits.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tagd/internal/tagging/metrics"
	"tagd/internal/tagging/models"
	"tagd/internal/tagging/notifier"
	"tagd/internal/tagging/store"
	pstrings "tagd/pkg/platform/strings"
	"tagd/pkg/tagname"
)

var tracer = otel.Tracer("tagd/internal/tagging/service")

// StoreTx runs fn against a transaction-bound store, serializing calls that
// target the same subject. Both the sharded in-memory runner and the SQL
// runner satisfy it.
type StoreTx interface {
	RunInTx(ctx context.Context, subject models.SubjectRef, fn func(st store.Store) error) error
}

// Service implements the tagging operations: attach, detach, replace, the
// membership queries, and the save/delete lifecycle hooks.
type Service struct {
	store    store.Store
	tx       StoreTx
	notifier notifier.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	normalize func(string) string
	display   func(string) string
	delimiter string

	untagOnDelete bool
	deleteUnused  bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics wires Prometheus metrics. Nil is fine; recording methods are
// nil-safe.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNormalizer replaces the slug function applied to every tag name.
func WithNormalizer(fn func(string) string) Option {
	return func(s *Service) { s.normalize = fn }
}

// WithDisplayer replaces the display-name function applied at link time.
func WithDisplayer(fn func(string) string) Option {
	return func(s *Service) { s.display = fn }
}

// WithDelimiter sets the separator used by the List variants and the
// auto-tag hook when splitting raw tag lists.
func WithDelimiter(delimiter string) Option {
	return func(s *Service) { s.delimiter = delimiter }
}

// WithUntagOnDelete controls whether BeforeDelete adjusts catalog counts
// for the removed links. Default on.
func WithUntagOnDelete(enabled bool) Option {
	return func(s *Service) { s.untagOnDelete = enabled }
}

// WithDeleteUnused controls whether detach paths purge tags whose count
// drops to zero or below. Default off.
func WithDeleteUnused(enabled bool) Option {
	return func(s *Service) { s.deleteUnused = enabled }
}

// New builds a Service. The notifier may be nil; events are then discarded.
func New(st store.Store, tx StoreTx, n notifier.Notifier, opts ...Option) *Service {
	s := &Service{
		store:         st,
		tx:            tx,
		notifier:      n,
		logger:        slog.Default(),
		normalize:     tagname.Normalize,
		display:       tagname.Display,
		delimiter:     tagname.DefaultDelimiter,
		untagOnDelete: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notifier.Nop{}
	}
	return s
}

// Attach links the given tag names to the subject. Names are trimmed and
// normalized; empty results and already-linked slugs are skipped silently.
// One tag_added event fires per link actually created.
func (s *Service) Attach(ctx context.Context, subject models.SubjectRef, names []string) error {
	ctx, span := tracer.Start(ctx, "tagging.Attach",
		trace.WithAttributes(attribute.String("tagd.subject", subject.Key())))
	defer span.End()

	start := time.Now()
	events, err := s.attach(ctx, subject, names)
	s.metrics.ObserveOperation("attach", start)
	s.metrics.IncrementOperation("attach", outcome(err))
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.AddLinksCreated(len(events))
	s.emit(ctx, events)
	return nil
}

// AttachList splits list with the configured delimiter and attaches the
// result.
func (s *Service) AttachList(ctx context.Context, subject models.SubjectRef, list string) error {
	return s.Attach(ctx, subject, tagname.Split(list, s.delimiter))
}

func (s *Service) attach(ctx context.Context, subject models.SubjectRef, names []string) ([]notifier.Event, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}

	var events []notifier.Event
	err := s.tx.RunInTx(ctx, subject, func(st store.Store) error {
		events = nil
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			slug := s.normalize(name)
			if slug == "" {
				continue
			}

			link := models.Link{
				ID:        uuid.New(),
				Subject:   subject,
				Slug:      slug,
				Name:      s.display(name),
				CreatedAt: time.Now().UTC(),
			}
			created, err := st.InsertLink(ctx, link)
			if err != nil {
				return fmt.Errorf("insert link %q: %w", slug, err)
			}
			if !created {
				continue
			}
			if err := st.IncrementTagCount(ctx, slug, link.Name, 1); err != nil {
				return fmt.Errorf("increment tag %q: %w", slug, err)
			}
			events = append(events, s.newEvent(notifier.KindTagAdded, subject, slug))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Detach unlinks tags from the subject. A nil names slice means "all tags
// currently on the subject"; an empty non-nil slice is a no-op. Counts are
// decremented by the links actually deleted, and at most one tag_removed
// event fires per call.
func (s *Service) Detach(ctx context.Context, subject models.SubjectRef, names []string) error {
	ctx, span := tracer.Start(ctx, "tagging.Detach",
		trace.WithAttributes(attribute.String("tagd.subject", subject.Key())))
	defer span.End()

	start := time.Now()
	events, removed, err := s.detach(ctx, subject, names)
	s.metrics.ObserveOperation("detach", start)
	s.metrics.IncrementOperation("detach", outcome(err))
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.AddLinksRemoved(removed)
	s.emit(ctx, events)
	return nil
}

// DetachList splits list with the configured delimiter and detaches the
// result. A list that yields no names detaches nothing; use Detach with
// nil names to clear a subject.
func (s *Service) DetachList(ctx context.Context, subject models.SubjectRef, list string) error {
	names := tagname.Split(list, s.delimiter)
	if names == nil {
		names = []string{}
	}
	return s.Detach(ctx, subject, names)
}

func (s *Service) detach(ctx context.Context, subject models.SubjectRef, names []string) ([]notifier.Event, int, error) {
	if err := subject.Validate(); err != nil {
		return nil, 0, err
	}

	slugs := s.slugsOf(names)

	var events []notifier.Event
	var removed int
	err := s.tx.RunInTx(ctx, subject, func(st store.Store) error {
		events, removed = nil, 0

		deleted, err := st.DeleteLinks(ctx, subject, slugs)
		if err != nil {
			return fmt.Errorf("delete links: %w", err)
		}
		removed = len(deleted)
		if removed == 0 {
			return nil
		}
		for _, link := range deleted {
			if err := st.DecrementTagCount(ctx, link.Slug, 1); err != nil {
				return fmt.Errorf("decrement tag %q: %w", link.Slug, err)
			}
		}
		if s.deleteUnused {
			if _, err := st.DeleteUnusedTags(ctx); err != nil {
				return fmt.Errorf("purge unused tags: %w", err)
			}
		}
		events = append(events, s.newEvent(notifier.KindTagRemoved, subject, ""))
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return events, removed, nil
}

// Replace makes the subject's tag set equal the given names, touching only
// the difference: slugs present now but absent from the target are
// detached, names absent now are attached. Kept tags see no count change
// and no removal event.
func (s *Service) Replace(ctx context.Context, subject models.SubjectRef, names []string) error {
	ctx, span := tracer.Start(ctx, "tagging.Replace",
		trace.WithAttributes(attribute.String("tagd.subject", subject.Key())))
	defer span.End()

	start := time.Now()
	events, removed, added, err := s.replace(ctx, subject, names)
	s.metrics.ObserveOperation("replace", start)
	s.metrics.IncrementOperation("replace", outcome(err))
	if err != nil {
		span.RecordError(err)
		return err
	}
	s.metrics.AddLinksRemoved(removed)
	s.metrics.AddLinksCreated(added)
	s.emit(ctx, events)
	return nil
}

// ReplaceList splits list with the configured delimiter and replaces with
// the result. An empty list clears the subject's tags.
func (s *Service) ReplaceList(ctx context.Context, subject models.SubjectRef, list string) error {
	names := tagname.Split(list, s.delimiter)
	if names == nil {
		return s.Detach(ctx, subject, nil)
	}
	return s.Replace(ctx, subject, names)
}

func (s *Service) replace(ctx context.Context, subject models.SubjectRef, names []string) ([]notifier.Event, int, int, error) {
	if err := subject.Validate(); err != nil {
		return nil, 0, 0, err
	}

	// Target set: slug -> raw name, first occurrence wins, insertion order
	// kept for deterministic attach order.
	target := make(map[string]string)
	var targetOrder []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		slug := s.normalize(name)
		if slug == "" {
			continue
		}
		if _, ok := target[slug]; !ok {
			target[slug] = name
			targetOrder = append(targetOrder, slug)
		}
	}

	var events []notifier.Event
	var removed, added int
	err := s.tx.RunInTx(ctx, subject, func(st store.Store) error {
		events, removed, added = nil, 0, 0

		current, err := st.ListLinks(ctx, subject)
		if err != nil {
			return fmt.Errorf("list links: %w", err)
		}
		existing := make(map[string]bool, len(current))
		var toRemove []string
		for _, link := range current {
			existing[link.Slug] = true
			if _, keep := target[link.Slug]; !keep {
				toRemove = append(toRemove, link.Slug)
			}
		}

		if len(toRemove) > 0 {
			deleted, err := st.DeleteLinks(ctx, subject, toRemove)
			if err != nil {
				return fmt.Errorf("delete links: %w", err)
			}
			removed = len(deleted)
			for _, link := range deleted {
				if err := st.DecrementTagCount(ctx, link.Slug, 1); err != nil {
					return fmt.Errorf("decrement tag %q: %w", link.Slug, err)
				}
			}
			if s.deleteUnused && removed > 0 {
				if _, err := st.DeleteUnusedTags(ctx); err != nil {
					return fmt.Errorf("purge unused tags: %w", err)
				}
			}
			if removed > 0 {
				events = append(events, s.newEvent(notifier.KindTagRemoved, subject, ""))
			}
		}

		for _, slug := range targetOrder {
			if existing[slug] {
				continue
			}
			name := target[slug]
			link := models.Link{
				ID:        uuid.New(),
				Subject:   subject,
				Slug:      slug,
				Name:      s.display(name),
				CreatedAt: time.Now().UTC(),
			}
			created, err := st.InsertLink(ctx, link)
			if err != nil {
				return fmt.Errorf("insert link %q: %w", slug, err)
			}
			if !created {
				continue
			}
			if err := st.IncrementTagCount(ctx, slug, link.Name, 1); err != nil {
				return fmt.Errorf("increment tag %q: %w", slug, err)
			}
			added++
			events = append(events, s.newEvent(notifier.KindTagAdded, subject, slug))
		}
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}
	return events, removed, added, nil
}

// slugsOf maps names to distinct non-empty slugs. Nil input stays nil (the
// "all tags" form); non-nil input with no surviving slugs becomes an empty
// slice (the no-op form).
func (s *Service) slugsOf(names []string) []string {
	if names == nil {
		return nil
	}
	slugs := pstrings.DedupeMapped(names, func(name string) string {
		return s.normalize(strings.TrimSpace(name))
	})
	if slugs == nil {
		return []string{}
	}
	return slugs
}

func (s *Service) newEvent(kind notifier.Kind, subject models.SubjectRef, slug string) notifier.Event {
	return notifier.Event{
		ID:      uuid.New(),
		Kind:    kind,
		Subject: subject,
		Slug:    slug,
		At:      time.Now().UTC(),
	}
}

// emit delivers queued events after the transaction committed. Failures
// are logged and counted, never propagated.
func (s *Service) emit(ctx context.Context, events []notifier.Event) {
	for _, event := range events {
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.metrics.IncrementNotifyFailure(string(event.Kind))
			s.logger.WarnContext(ctx, "tagging notification failed",
				"kind", string(event.Kind),
				"subject", event.Subject.Key(),
				"error", err.Error(),
			)
		}
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
