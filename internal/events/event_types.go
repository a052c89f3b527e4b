package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/citizenhub/complaint-service/internal/domain"
)

// EventType enumerates supported event identifiers. The values double as
// wire message types on the propagation channel.
type EventType string

const (
	EventComplaintAdded      EventType = "COMPLAINT_ADDED"
	EventComplaintUpdated    EventType = "COMPLAINT_UPDATED"
	EventComplaintDeleted    EventType = "COMPLAINT_DELETED"
	EventAnnouncementAdded   EventType = "ANNOUNCEMENT_ADDED"
	EventAnnouncementUpdated EventType = "ANNOUNCEMENT_UPDATED"
	EventAnnouncementDeleted EventType = "ANNOUNCEMENT_DELETED"
)

// IsComplaint reports whether the event concerns a complaint.
func (t EventType) IsComplaint() bool {
	switch t {
	case EventComplaintAdded, EventComplaintUpdated, EventComplaintDeleted:
		return true
	}
	return false
}

// IsAnnouncement reports whether the event concerns an announcement.
func (t EventType) IsAnnouncement() bool {
	switch t {
	case EventAnnouncementAdded, EventAnnouncementUpdated, EventAnnouncementDeleted:
		return true
	}
	return false
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID  string `json:"userId,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// ActorFor builds the actor of a user, tolerating nil.
func ActorFor(u *domain.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{UserID: u.ID, IsAdmin: u.IsAdmin}
}

// Event represents a change emitted by a registry. ID is the dispatcher
// cursor, assigned on publish. OwnerID names the citizen a complaint event
// concerns so fan-out can filter by visibility.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Type      EventType       `json:"type"`
	Origin    string          `json:"origin"`
	Actor     Actor           `json:"actor"`
	OwnerID   string          `json:"ownerId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent encodes payload into a new event.
func NewEvent(eventType EventType, origin string, actor Actor, ownerID string, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		Type:      eventType,
		Origin:    origin,
		Actor:     actor,
		OwnerID:   ownerID,
		Timestamp: now.UTC(),
		Payload:   raw,
	}, nil
}

// Decode unmarshals the payload into dst.
func (e Event) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ComplaintAddedPayload is the full new complaint record.
type ComplaintAddedPayload = domain.Complaint

// ComplaintUpdatedPayload carries the fields a status update changes.
type ComplaintUpdatedPayload struct {
	ID         string                 `json:"id"`
	Status     domain.ComplaintStatus `json:"status"`
	AdminNotes *string                `json:"adminNotes,omitempty"`
	UpdatedAt  *time.Time             `json:"updatedAt,omitempty"`
}

// IDPayload identifies a deleted record.
type IDPayload struct {
	ID string `json:"id"`
}

// AnnouncementPayload is the full announcement record.
type AnnouncementPayload = domain.Announcement
