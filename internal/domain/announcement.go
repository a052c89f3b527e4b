package domain

import (
	"strings"
	"time"
)

// AnnouncementPriority enumerates announcement urgency.
type AnnouncementPriority string

const (
	AnnouncementPriorityLow    AnnouncementPriority = "low"
	AnnouncementPriorityMedium AnnouncementPriority = "medium"
	AnnouncementPriorityHigh   AnnouncementPriority = "high"
)

// Valid reports whether p is a known priority.
func (p AnnouncementPriority) Valid() bool {
	switch p {
	case AnnouncementPriorityLow, AnnouncementPriorityMedium, AnnouncementPriorityHigh:
		return true
	}
	return false
}

// Announcement is an administrator-authored notice shown to citizens while active.
type Announcement struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  AnnouncementPriority `json:"priority"`
	IsActive  bool                 `json:"isActive"`
	CreatedAt time.Time            `json:"createdAt"`
	CreatedBy string               `json:"createdBy"`
}

// AnnouncementFields are the editable parts of an announcement.
type AnnouncementFields struct {
	Title    string
	Message  string
	Priority AnnouncementPriority
}

// Normalize trims the text fields.
func (f AnnouncementFields) Normalize() AnnouncementFields {
	f.Title = strings.TrimSpace(f.Title)
	f.Message = strings.TrimSpace(f.Message)
	f.Priority = AnnouncementPriority(strings.ToLower(strings.TrimSpace(string(f.Priority))))
	return f
}

// Validate rejects malformed announcement input.
func (f AnnouncementFields) Validate() error {
	problems := map[string]any{}
	if f.Title == "" {
		problems["title"] = "required"
	}
	if f.Message == "" {
		problems["message"] = "required"
	}
	if !f.Priority.Valid() {
		problems["priority"] = "must be one of low, medium, high"
	}
	return validationResult("invalid announcement", problems)
}
