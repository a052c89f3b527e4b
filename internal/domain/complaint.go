package domain

import (
	"strings"
	"time"
)

// ComplaintStatus enumerates lifecycle states. Any state may follow any other.
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "Pending"
	ComplaintStatusInProgress ComplaintStatus = "In Progress"
	ComplaintStatusResolved   ComplaintStatus = "Resolved"
)

// ComplaintStatuses lists statuses in presentation order.
var ComplaintStatuses = []ComplaintStatus{
	ComplaintStatusPending,
	ComplaintStatusInProgress,
	ComplaintStatusResolved,
}

// Valid reports whether s is a known status.
func (s ComplaintStatus) Valid() bool {
	for _, known := range ComplaintStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ComplaintPriority enumerates triage urgency.
type ComplaintPriority string

const (
	ComplaintPriorityHigh   ComplaintPriority = "High"
	ComplaintPriorityMedium ComplaintPriority = "Medium"
	ComplaintPriorityLow    ComplaintPriority = "Low"
)

// Valid reports whether p is a known priority.
func (p ComplaintPriority) Valid() bool {
	switch p {
	case ComplaintPriorityHigh, ComplaintPriorityMedium, ComplaintPriorityLow:
		return true
	}
	return false
}

// Complaint is a citizen-submitted issue report.
type Complaint struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	UserName    string            `json:"userName,omitempty"`
	UserEmail   string            `json:"userEmail,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Location    string            `json:"location"`
	ContactInfo string            `json:"contactInfo"`
	Priority    ComplaintPriority `json:"priority"`
	Status      ComplaintStatus   `json:"status"`
	AdminNotes  string            `json:"adminNotes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ComplaintFields are the citizen-supplied parts of a complaint.
type ComplaintFields struct {
	Title       string
	Description string
	Category    string
	Location    string
	ContactInfo string
	Priority    ComplaintPriority
}

// Normalize trims the fields and defaults the priority.
func (f ComplaintFields) Normalize() ComplaintFields {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
	f.Location = strings.TrimSpace(f.Location)
	f.ContactInfo = strings.TrimSpace(f.ContactInfo)
	if f.Priority == "" {
		f.Priority = ComplaintPriorityMedium
	}
	return f
}

// Validate rejects malformed complaint input.
func (f ComplaintFields) Validate() error {
	problems := map[string]any{}
	if f.Title == "" {
		problems["title"] = "required"
	}
	if f.Description == "" {
		problems["description"] = "required"
	}
	if f.Category == "" {
		problems["category"] = "required"
	}
	if !f.Priority.Valid() {
		problems["priority"] = "must be one of High, Medium, Low"
	}
	return validationResult("invalid complaint", problems)
}
