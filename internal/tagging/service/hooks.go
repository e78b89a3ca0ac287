package service

import (
	"context"
	"fmt"

	"tagd/internal/tagging/models"
	"tagd/internal/tagging/notifier"
	"tagd/internal/tagging/store"
	"tagd/pkg/tagname"
)

// PendingTags carries a tag list captured from a subject before its save.
// Staged distinguishes "an empty list was staged" (clear all tags) from
// "nothing was staged" (leave tags alone).
type PendingTags struct {
	Subject models.SubjectRef
	List    string
	Staged  bool
}

// BeforeSave captures the subject's staged tag list. TakeTagList also
// clears the list from the subject, so the raw value is never persisted as
// a column of the subject's own row. No I/O happens here; call it before
// the owning service writes the subject.
func (s *Service) BeforeSave(subject models.AutoTagSource) PendingTags {
	list, ok := subject.TakeTagList()
	return PendingTags{
		Subject: subject.TagSubject(),
		List:    list,
		Staged:  ok,
	}
}

// AfterSave applies a previously captured tag list once the subject's own
// save succeeded. Nothing staged means no-op; a staged list that splits to
// nothing clears the subject's tags.
func (s *Service) AfterSave(ctx context.Context, pending PendingTags) error {
	if !pending.Staged {
		return nil
	}
	names := tagname.Split(pending.List, s.delimiter)
	if names == nil {
		return s.Detach(ctx, pending.Subject, nil)
	}
	return s.Replace(ctx, pending.Subject, names)
}

// BeforeDelete removes all of the subject's links ahead of the subject
// itself being deleted. Catalog counts are adjusted only under the
// untag-on-delete policy; with the policy off the links still go, but the
// counts keep the deleted subject's contribution and no event fires.
func (s *Service) BeforeDelete(ctx context.Context, subject models.Taggable) error {
	ref := subject.TagSubject()
	if err := ref.Validate(); err != nil {
		return err
	}

	var removed int
	err := s.tx.RunInTx(ctx, ref, func(st store.Store) error {
		removed = 0

		deleted, err := st.DeleteLinks(ctx, ref, nil)
		if err != nil {
			return fmt.Errorf("delete links: %w", err)
		}
		removed = len(deleted)
		if removed == 0 || !s.untagOnDelete {
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
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		s.metrics.AddLinksRemoved(removed)
		if s.untagOnDelete {
			s.emit(ctx, []notifier.Event{s.newEvent(notifier.KindTagRemoved, ref, "")})
		}
	}
	return nil
}
