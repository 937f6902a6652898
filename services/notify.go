package services

import (
	"context"
	"encoding/json"
	"time"

	"advising/models"
)

type EventType string

const (
	EventMessageSent EventType = "message_sent"
	EventMessageRead EventType = "message_read"
)

const previewLength = 100

// Event is pushed to the participant identified by Role and UserID.
type Event struct {
	Type      EventType       `json:"event"`
	Role      models.Role     `json:"role"`
	UserID    int64           `json:"user_id"`
	MessageID int64           `json:"message_id"`
	Preview   string          `json:"preview,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notifier delivers events after the originating write has committed.
// Delivery is best effort; callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) error { return nil }

// WSNotifier pushes events straight to the recipient's open connections.
type WSNotifier struct {
	conns *WSConnManager
}

func NewWSNotifier(conns *WSConnManager) *WSNotifier {
	return &WSNotifier{conns: conns}
}

func (n *WSNotifier) Notify(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	n.conns.Send(event.Role, event.UserID, data)
	return nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "..."
	}
	return content
}

func newMessageSentEvent(msg *models.Message) Event {
	return Event{
		Type:      EventMessageSent,
		Role:      msg.ReceiverType(),
		UserID:    msg.ReceiverID,
		MessageID: msg.ID,
		Preview:   preview(msg.Content),
		Message:   msg,
		CreatedAt: msg.CreatedAt,
	}
}

func newMessageReadEvent(msg *models.Message) Event {
	return Event{
		Type:      EventMessageRead,
		Role:      msg.SenderType,
		UserID:    msg.SenderID,
		MessageID: msg.ID,
		CreatedAt: time.Now().UTC(),
	}
}
