package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"tagd/internal/tagging/models"
	"tagd/pkg/platform/sentinel"
)

// Memory is the in-memory Store used by unit tests and dev mode. All state
// sits behind one RWMutex, so every call is an atomic unit on its own;
// wrap it in a ShardedTx for per-subject serialization across calls.
type Memory struct {
	mu    sync.RWMutex
	links map[models.SubjectRef]map[string]models.Link
	tags  map[string]models.Tag
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		links: make(map[models.SubjectRef]map[string]models.Link),
		tags:  make(map[string]models.Tag),
	}
}

func (s *Memory) InsertLink(_ context.Context, link models.Link) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySlug := s.links[link.Subject]
	if bySlug == nil {
		bySlug = make(map[string]models.Link)
		s.links[link.Subject] = bySlug
	}
	if _, exists := bySlug[link.Slug]; exists {
		return false, nil
	}
	bySlug[link.Slug] = link
	return true, nil
}

func (s *Memory) DeleteLinks(_ context.Context, subject models.SubjectRef, slugs []string) ([]models.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySlug := s.links[subject]
	if len(bySlug) == 0 {
		return nil, nil
	}

	targets := slugs
	if targets == nil {
		targets = make([]string, 0, len(bySlug))
		for slug := range bySlug {
			targets = append(targets, slug)
		}
		slices.Sort(targets)
	}

	var deleted []models.Link
	for _, slug := range targets {
		if link, ok := bySlug[slug]; ok {
			deleted = append(deleted, link)
			delete(bySlug, slug)
		}
	}
	if len(bySlug) == 0 {
		delete(s.links, subject)
	}
	return deleted, nil
}

func (s *Memory) ListLinks(_ context.Context, subject models.SubjectRef) ([]models.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySlug := s.links[subject]
	if len(bySlug) == 0 {
		return nil, nil
	}

	links := make([]models.Link, 0, len(bySlug))
	for _, link := range bySlug {
		links = append(links, link)
	}
	slices.SortFunc(links, func(a, b models.Link) int {
		return strings.Compare(a.Slug, b.Slug)
	})
	return links, nil
}

func (s *Memory) IncrementTagCount(_ context.Context, slug, name string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, ok := s.tags[slug]
	if !ok {
		tag = models.Tag{Slug: slug, CreatedAt: time.Now().UTC()}
	}
	tag.Name = name
	tag.UsageCount += delta
	s.tags[slug] = tag
	return nil
}

func (s *Memory) DecrementTagCount(_ context.Context, slug string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tag, ok := s.tags[slug]
	if !ok {
		return nil
	}
	tag.UsageCount -= delta
	s.tags[slug] = tag
	return nil
}

func (s *Memory) GetTag(_ context.Context, slug string) (*models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tag, ok := s.tags[slug]
	if !ok {
		return nil, fmt.Errorf("get tag %q: %w", slug, sentinel.ErrNotFound)
	}
	return &tag, nil
}

func (s *Memory) ListTags(_ context.Context) ([]models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedTags(func(models.Tag) bool { return true }), nil
}

func (s *Memory) ListExistingTags(_ context.Context, subjectType string) ([]models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	linked := make(map[string]struct{})
	for subject, bySlug := range s.links {
		if subject.Type != subjectType {
			continue
		}
		for slug := range bySlug {
			linked[slug] = struct{}{}
		}
	}

	return s.sortedTags(func(t models.Tag) bool {
		_, ok := linked[t.Slug]
		return ok
	}), nil
}

// sortedTags copies the catalog entries matching keep, ordered by slug.
// Callers must hold at least the read lock.
func (s *Memory) sortedTags(keep func(models.Tag) bool) []models.Tag {
	var tags []models.Tag
	for _, tag := range s.tags {
		if keep(tag) {
			tags = append(tags, tag)
		}
	}
	slices.SortFunc(tags, func(a, b models.Tag) int {
		return strings.Compare(a.Slug, b.Slug)
	})
	return tags
}

func (s *Memory) DeleteUnusedTags(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for slug, tag := range s.tags {
		if tag.UsageCount <= 0 {
			delete(s.tags, slug)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Memory) SubjectsWithAllTags(_ context.Context, subjectType string, slugs []string) ([]models.SubjectRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []models.SubjectRef
	for subject, bySlug := range s.links {
		if subject.Type != subjectType || len(bySlug) == 0 {
			continue
		}
		matched := true
		for _, slug := range slugs {
			if _, ok := bySlug[slug]; !ok {
				matched = false
				break
			}
		}
		if matched {
			refs = append(refs, subject)
		}
	}
	sortSubjects(refs)
	return refs, nil
}

func (s *Memory) SubjectsWithAnyTag(_ context.Context, subjectType string, slugs []string) ([]models.SubjectRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var refs []models.SubjectRef
	for subject, bySlug := range s.links {
		if subject.Type != subjectType {
			continue
		}
		for _, slug := range slugs {
			if _, ok := bySlug[slug]; ok {
				refs = append(refs, subject)
				break
			}
		}
	}
	sortSubjects(refs)
	return refs, nil
}

func (s *Memory) Ping(context.Context) error { return nil }

func sortSubjects(refs []models.SubjectRef) {
	slices.SortFunc(refs, func(a, b models.SubjectRef) int {
		return strings.Compare(a.ID, b.ID)
	})
}
