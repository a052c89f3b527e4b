package dto

import (
	"time"

	"github.com/citizenhub/complaint-service/internal/domain"
)

// AnnouncementRequest payload for creating or editing an announcement.
type AnnouncementRequest struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// ToFields converts the request into registry input.
func (r AnnouncementRequest) ToFields() domain.AnnouncementFields {
	return domain.AnnouncementFields{
		Title:    r.Title,
		Message:  r.Message,
		Priority: domain.AnnouncementPriority(r.Priority),
	}
}

// AnnouncementResponse is the REST view of an announcement.
type AnnouncementResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// NewAnnouncementResponses maps a list, never returning nil.
func NewAnnouncementResponses(list []domain.Announcement) []AnnouncementResponse {
	out := make([]AnnouncementResponse, 0, len(list))
	for _, a := range list {
		out = append(out, NewAnnouncementResponse(a))
	}
	return out
}

// NewAnnouncementResponse maps an announcement.
func NewAnnouncementResponse(a domain.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		ID:        a.ID,
		Title:     a.Title,
		Message:   a.Message,
		Priority:  string(a.Priority),
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		CreatedBy: a.CreatedBy,
	}
}
