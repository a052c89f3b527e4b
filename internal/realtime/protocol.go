package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/citizenhub/complaint-service/internal/domain"
	"github.com/citizenhub/complaint-service/internal/events"
)

// MessageType names a propagation channel frame.
type MessageType string

// Control frames. Change frames reuse the event type names.
const (
	MessageAuth   MessageType = "AUTH"
	MessageResync MessageType = "RESYNC"
	MessageError  MessageType = "ERROR"

	MessageComplaintAdded      = MessageType(events.EventComplaintAdded)
	MessageComplaintUpdated    = MessageType(events.EventComplaintUpdated)
	MessageComplaintDeleted    = MessageType(events.EventComplaintDeleted)
	MessageAnnouncementAdded   = MessageType(events.EventAnnouncementAdded)
	MessageAnnouncementUpdated = MessageType(events.EventAnnouncementUpdated)
	MessageAnnouncementDeleted = MessageType(events.EventAnnouncementDeleted)
)

// Message is the envelope of every frame. ID is set on change frames sent
// by the server and is the cursor a client resumes from.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthPayload is the first frame a client sends on every connect.
type AuthPayload struct {
	UserID      string `json:"userId"`
	IsAdmin     bool   `json:"isAdmin"`
	LastEventID string `json:"lastEventId,omitempty"`
}

// ErrorPayload reports a rejected frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResyncPayload tells a client its cursor can no longer be replayed.
type ResyncPayload struct {
	Reason string `json:"reason"`
}

// ComplaintSubmission is the payload of a client-sent COMPLAINT_ADDED frame.
type ComplaintSubmission struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	ContactInfo string `json:"contactInfo"`
	Priority    string `json:"priority"`
}

// Fields converts the submission into registry input.
func (s ComplaintSubmission) Fields() domain.ComplaintFields {
	return domain.ComplaintFields{
		Title:       s.Title,
		Description: s.Description,
		Category:    s.Category,
		Location:    s.Location,
		ContactInfo: s.ContactInfo,
		Priority:    domain.ComplaintPriority(s.Priority),
	}
}

// NewMessage encodes payload into a frame.
func NewMessage(msgType MessageType, id string, payload any) (Message, error) {
	msg := Message{Type: msgType, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// MessageFromEvent converts a dispatcher event into its wire frame.
func MessageFromEvent(e events.Event) Message {
	return Message{Type: MessageType(e.Type), ID: e.ID, Payload: e.Payload}
}

// Conn is the subset of a WebSocket connection used by the hub and client.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

func writeJSON(conn Conn, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, raw)
}
