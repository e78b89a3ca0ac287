package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tagd/internal/tagging/models"
	dErrors "tagd/pkg/domain-errors"
	"tagd/pkg/platform/sentinel"
)

// SubjectTags returns the subject's links ordered by slug.
func (s *Service) SubjectTags(ctx context.Context, subject models.SubjectRef) ([]models.Link, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer s.metrics.ObserveQuery("subject_tags", start)

	links, err := s.store.ListLinks(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

// TagNames returns the display names of the subject's tags, ordered by
// slug.
func (s *Service) TagNames(ctx context.Context, subject models.SubjectRef) ([]string, error) {
	links, err := s.SubjectTags(ctx, subject)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(links))
	for _, link := range links {
		names = append(names, link.Name)
	}
	return names, nil
}

// TagBySlug looks up one catalog entry. The given value is normalized
// first, so raw names resolve too.
func (s *Service) TagBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	slug = s.normalize(slug)
	if slug == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tag slug is required")
	}
	start := time.Now()
	defer s.metrics.ObserveQuery("tag_by_slug", start)

	tag, err := s.store.GetTag(ctx, slug)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "tag not found: "+slug)
		}
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// AllTags returns the whole catalog ordered by slug.
func (s *Service) AllTags(ctx context.Context) ([]models.Tag, error) {
	start := time.Now()
	defer s.metrics.ObserveQuery("all_tags", start)

	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// ExistingTags returns the distinct tags currently linked to subjects of
// the given type, ordered by slug.
func (s *Service) ExistingTags(ctx context.Context, subjectType string) ([]models.Tag, error) {
	if subjectType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject type is required")
	}
	start := time.Now()
	defer s.metrics.ObserveQuery("existing_tags", start)

	tags, err := s.store.ListExistingTags(ctx, subjectType)
	if err != nil {
		return nil, fmt.Errorf("list existing tags: %w", err)
	}
	return tags, nil
}

// SubjectsWithAllTags returns subjects of the given type linked to every
// one of the named tags. An empty or fully-discarded name list is the
// vacuous AND: every tagged subject of the type qualifies.
func (s *Service) SubjectsWithAllTags(ctx context.Context, subjectType string, names []string) ([]models.SubjectRef, error) {
	if subjectType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject type is required")
	}
	start := time.Now()
	defer s.metrics.ObserveQuery("subjects_all", start)

	refs, err := s.store.SubjectsWithAllTags(ctx, subjectType, s.querySlugs(names))
	if err != nil {
		return nil, fmt.Errorf("subjects with all tags: %w", err)
	}
	return refs, nil
}

// SubjectsWithAnyTag returns subjects of the given type linked to at least
// one of the named tags. An empty or fully-discarded name list is the
// vacuous OR: no subject qualifies, and no store round trip is made.
func (s *Service) SubjectsWithAnyTag(ctx context.Context, subjectType string, names []string) ([]models.SubjectRef, error) {
	if subjectType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject type is required")
	}

	slugs := s.querySlugs(names)
	if len(slugs) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer s.metrics.ObserveQuery("subjects_any", start)

	refs, err := s.store.SubjectsWithAnyTag(ctx, subjectType, slugs)
	if err != nil {
		return nil, fmt.Errorf("subjects with any tag: %w", err)
	}
	return refs, nil
}

// PurgeUnusedTags deletes every catalog entry whose count is zero or below
// and reports how many went.
func (s *Service) PurgeUnusedTags(ctx context.Context) (int64, error) {
	deleted, err := s.store.DeleteUnusedTags(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge unused tags: %w", err)
	}
	return deleted, nil
}

// querySlugs normalizes and dedupes names for the membership queries,
// discarding those that normalize away. Unlike slugsOf it never preserves
// nil: the queries treat nil and empty alike.
func (s *Service) querySlugs(names []string) []string {
	slugs := s.slugsOf(names)
	if slugs == nil {
		return []string{}
	}
	return slugs
}
