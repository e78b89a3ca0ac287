// Package handler exposes the tagging service over HTTP. It is an adapter
// in the strict sense: every tagging rule lives in the service, and this
// package only translates requests, responses, and error codes.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"tagd/internal/tagging/models"
	dErrors "tagd/pkg/domain-errors"
	pstrings "tagd/pkg/platform/strings"
)

// Service defines the tagging operations the HTTP surface depends on.
type Service interface {
	Attach(ctx context.Context, subject models.SubjectRef, names []string) error
	AttachList(ctx context.Context, subject models.SubjectRef, list string) error
	Detach(ctx context.Context, subject models.SubjectRef, names []string) error
	DetachList(ctx context.Context, subject models.SubjectRef, list string) error
	Replace(ctx context.Context, subject models.SubjectRef, names []string) error
	ReplaceList(ctx context.Context, subject models.SubjectRef, list string) error

	SubjectTags(ctx context.Context, subject models.SubjectRef) ([]models.Link, error)
	TagBySlug(ctx context.Context, slug string) (*models.Tag, error)
	AllTags(ctx context.Context) ([]models.Tag, error)
	ExistingTags(ctx context.Context, subjectType string) ([]models.Tag, error)
	SubjectsWithAllTags(ctx context.Context, subjectType string, names []string) ([]models.SubjectRef, error)
	SubjectsWithAnyTag(ctx context.Context, subjectType string, names []string) ([]models.SubjectRef, error)
	PurgeUnusedTags(ctx context.Context) (int64, error)
}

// Pinger reports store reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles the tagging endpoints.
type Handler struct {
	logger  *slog.Logger
	tagging Service
	store   Pinger
}

// New creates a tagging Handler.
func New(tagging Service, store Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		tagging: tagging,
		store:   store,
	}
}

// Register mounts the tagging routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/subjects/{type}", func(r chi.Router) {
		r.Get("/", h.handleQuerySubjects)
		r.Route("/{id}/tags", func(r chi.Router) {
			r.Get("/", h.handleGetSubjectTags)
			r.Post("/", h.handleAttach)
			r.Put("/", h.handleReplace)
			r.Delete("/", h.handleDetach)
		})
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", h.handleListTags)
		r.Delete("/unused", h.handlePurgeUnused)
		r.Get("/{slug}", h.handleGetTag)
	})

	r.Get("/healthz", h.handleHealth)
}

// tagsRequest is the body of the three mutation endpoints. Exactly one of
// Tags and List is expected; List is split with the service's configured
// delimiter.
type tagsRequest struct {
	Tags []string `json:"tags"`
	List string   `json:"list"`
}

// decodeTags reads a tagsRequest. A missing body is allowed and reported
// through empty, so DELETE without a body can mean "all tags".
func decodeTags(r *http.Request) (req tagsRequest, empty bool, err error) {
	decodeErr := json.NewDecoder(r.Body).Decode(&req)
	if decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) {
			return tagsRequest{}, true, nil
		}
		return tagsRequest{}, false, decodeErr
	}
	return req, false, nil
}

func subjectFromPath(r *http.Request) models.SubjectRef {
	return models.SubjectRef{
		Type: chi.URLParam(r, "type"),
		ID:   chi.URLParam(r, "id"),
	}
}

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := subjectFromPath(r)

	req, empty, err := decodeTags(r)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if empty || (len(req.Tags) == 0 && req.List == "") {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "tags or list is required"))
		return
	}

	if req.List != "" {
		err = h.tagging.AttachList(ctx, subject, req.List)
	} else {
		err = h.tagging.Attach(ctx, subject, req.Tags)
	}
	if err != nil {
		h.writeServiceError(ctx, w, "attach failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := subjectFromPath(r)

	req, empty, err := decodeTags(r)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if empty {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "request body is required"))
		return
	}

	// An explicit empty tag set clears the subject; ReplaceList handles
	// that degenerate case for the delimited form.
	if req.List != "" {
		err = h.tagging.ReplaceList(ctx, subject, req.List)
	} else {
		err = h.tagging.Replace(ctx, subject, req.Tags)
	}
	if err != nil {
		h.writeServiceError(ctx, w, "replace failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDetach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := subjectFromPath(r)

	req, empty, err := decodeTags(r)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	switch {
	case empty || (req.Tags == nil && req.List == ""):
		// No body and no tags named: remove everything on the subject.
		err = h.tagging.Detach(ctx, subject, nil)
	case req.List != "":
		err = h.tagging.DetachList(ctx, subject, req.List)
	default:
		err = h.tagging.Detach(ctx, subject, req.Tags)
	}
	if err != nil {
		h.writeServiceError(ctx, w, "detach failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetSubjectTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := subjectFromPath(r)

	links, err := h.tagging.SubjectTags(ctx, subject)
	if err != nil {
		h.writeServiceError(ctx, w, "list subject tags failed", err)
		return
	}
	writeJSON(w, http.StatusOK, subjectTagsResponse{Subject: subject, Tags: toLinkResponses(links)})
}

func (h *Handler) handleQuerySubjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectType := chi.URLParam(r, "type")
	query := r.URL.Query()

	hasAll := query.Has("all")
	hasAny := query.Has("any")
	if hasAll == hasAny {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "exactly one of all and any is required"))
		return
	}

	var (
		refs []models.SubjectRef
		err  error
	)
	if hasAll {
		refs, err = h.tagging.SubjectsWithAllTags(ctx, subjectType, splitParam(query.Get("all")))
	} else {
		refs, err = h.tagging.SubjectsWithAnyTag(ctx, subjectType, splitParam(query.Get("any")))
	}
	if err != nil {
		h.writeServiceError(ctx, w, "subject query failed", err)
		return
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	writeJSON(w, http.StatusOK, subjectsResponse{SubjectType: subjectType, Subjects: ids})
}

func (h *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		tags []models.Tag
		err  error
	)
	if subjectType := r.URL.Query().Get("subject_type"); subjectType != "" {
		tags, err = h.tagging.ExistingTags(ctx, subjectType)
	} else {
		tags, err = h.tagging.AllTags(ctx)
	}
	if err != nil {
		h.writeServiceError(ctx, w, "list tags failed", err)
		return
	}
	writeJSON(w, http.StatusOK, tagsResponse{Tags: toTagResponses(tags)})
}

func (h *Handler) handleGetTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tag, err := h.tagging.TagBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeServiceError(ctx, w, "get tag failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTagResponse(*tag))
}

func (h *Handler) handlePurgeUnused(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deleted, err := h.tagging.PurgeUnusedTags(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "purge unused tags failed", err)
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{Deleted: deleted})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "store unreachable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError passes coded errors through to the envelope and masks
// everything else as internal, logging the cause.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	var de dErrors.Error
	if errors.As(err, &de) {
		writeError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, msg, "error", err.Error())
	writeError(w, dErrors.New(dErrors.CodeInternal, msg))
}

// splitParam splits a comma-separated query parameter. The empty string
// yields no names, which the service treats under its vacuous-filter
// policies.
func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}
