// Package models defines the tagging domain entities: catalog tags,
// subject-tag links, and the capabilities domain records implement to take
// part in tagging.
package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "tagd/pkg/domain-errors"
)

// SubjectRef identifies an external domain record being tagged. The tagging
// service never owns subject data, only its links; Type discriminates
// between the different record kinds sharing one link table.
type SubjectRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// TagSubject makes a bare SubjectRef usable wherever a Taggable is
// expected.
func (r SubjectRef) TagSubject() SubjectRef { return r }

// Key returns the canonical "type:id" form, used for lock shard selection
// and event partitioning.
func (r SubjectRef) Key() string { return r.Type + ":" + r.ID }

// Validate rejects refs with a missing type or id.
func (r SubjectRef) Validate() error {
	if r.Type == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject type is required")
	}
	if r.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	return nil
}

// Taggable is the capability a domain entity implements to be tagged:
// supply the (type, id) pair its links hang off.
type Taggable interface {
	TagSubject() SubjectRef
}

// AutoTagSource is the optional capability for subjects that stage a raw
// delimited tag list on themselves to be applied around their own save.
// TakeTagList returns the staged list and clears it, so the list is never
// written to the subject's own store as a literal column; ok reports
// whether anything was staged at all (an empty staged list means "clear my
// tags", no staged list means "leave them alone").
type AutoTagSource interface {
	Taggable
	TakeTagList() (list string, ok bool)
}

// Tag is a catalog entry for a distinct slug. UsageCount tracks live links
// and is maintained only through the attach/detach paths; it is not
// clamped at zero by decrements.
type Tag struct {
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	UsageCount int64     `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Link associates a subject with a tag slug. Name is the display form
// denormalized at link time; the catalog copy may move later when another
// writer re-tags with different casing.
type Link struct {
	ID        uuid.UUID  `json:"id"`
	Subject   SubjectRef `json:"subject"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}
