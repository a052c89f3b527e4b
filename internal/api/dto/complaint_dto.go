package dto

import (
	"time"

	"github.com/citizenhub/complaint-service/internal/domain"
)

// CreateComplaintRequest payload for POST /complaints.
type CreateComplaintRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	ContactInfo string `json:"contact_info"`
	Priority    string `json:"priority"`
}

// ToFields converts the request into registry input.
func (r CreateComplaintRequest) ToFields() domain.ComplaintFields {
	return domain.ComplaintFields{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Location:    r.Location,
		ContactInfo: r.ContactInfo,
		Priority:    domain.ComplaintPriority(r.Priority),
	}
}

// UpdateComplaintStatusRequest payload for PATCH /admin/complaints/:id/status.
type UpdateComplaintStatusRequest struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"admin_notes"`
}

// ComplaintResponse is the REST view of a complaint.
type ComplaintResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	UserEmail   string    `json:"user_email,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	ContactInfo string    `json:"contact_info"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	AdminNotes  string    `json:"admin_notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewComplaintResponse maps a complaint.
func NewComplaintResponse(c domain.Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		UserName:    c.UserName,
		UserEmail:   c.UserEmail,
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		Location:    c.Location,
		ContactInfo: c.ContactInfo,
		Priority:    string(c.Priority),
		Status:      string(c.Status),
		AdminNotes:  c.AdminNotes,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// NewComplaintResponses maps a list, never returning nil.
func NewComplaintResponses(list []domain.Complaint) []ComplaintResponse {
	out := make([]ComplaintResponse, 0, len(list))
	for _, c := range list {
		out = append(out, NewComplaintResponse(c))
	}
	return out
}

// ComplaintPageResponse is one page of the admin query.
type ComplaintPageResponse struct {
	Items      []ComplaintResponse `json:"items"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// ComplaintStatsResponse mirrors the dashboard statistics cards.
type ComplaintStatsResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	ByCategory map[string]int `json:"by_category"`
}
