package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tagd/internal/tagging/models"
	dErrors "tagd/pkg/domain-errors"
)

type tagResponse struct {
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	UsageCount int64     `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type tagsResponse struct {
	Tags []tagResponse `json:"tags"`
}

type linkResponse struct {
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	LinkedAt time.Time `json:"linked_at"`
}

type subjectTagsResponse struct {
	Subject models.SubjectRef `json:"subject"`
	Tags    []linkResponse    `json:"tags"`
}

type subjectsResponse struct {
	SubjectType string   `json:"subject_type"`
	Subjects    []string `json:"subjects"`
}

type purgeResponse struct {
	Deleted int64 `json:"deleted"`
}

func toTagResponse(tag models.Tag) tagResponse {
	return tagResponse{
		Slug:       tag.Slug,
		Name:       tag.Name,
		UsageCount: tag.UsageCount,
		CreatedAt:  tag.CreatedAt,
	}
}

func toTagResponses(tags []models.Tag) []tagResponse {
	out := make([]tagResponse, 0, len(tags))
	for _, tag := range tags {
		out = append(out, toTagResponse(tag))
	}
	return out
}

func toLinkResponses(links []models.Link) []linkResponse {
	out := make([]linkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, linkResponse{
			Slug:     link.Slug,
			Name:     link.Name,
			LinkedAt: link.CreatedAt,
		})
	}
	return out
}

// errorResponse is the flat envelope every error leaves through.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders a coded error as the envelope. Internal errors keep
// their description out of the response body.
func writeError(w http.ResponseWriter, err error) {
	var de dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.Error{Code: dErrors.CodeInternal}
	}

	resp := errorResponse{Error: string(de.Code)}
	if de.Code != dErrors.CodeInternal {
		resp.ErrorDescription = de.Message
	}
	writeJSON(w, dErrors.ToHTTPStatus(de.Code), resp)
}
