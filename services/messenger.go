package services

import (
	"context"
	"strings"

	"advising/apperr"
	"advising/logger"
	"advising/models"
)

// Messenger applies request rules on top of MessageStore: who may read and
// mark which messages, what counts as a valid message, and notifications
// after a successful write.
type Messenger struct {
	store    *MessageStore
	index    *ConversationIndex
	profiles *ProfileService
	notifier Notifier
}

func NewMessenger(store *MessageStore, index *ConversationIndex, profiles *ProfileService, notifier Notifier) *Messenger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Messenger{store: store, index: index, profiles: profiles, notifier: notifier}
}

func (m *Messenger) notify(ctx context.Context, event Event) {
	if err := m.notifier.Notify(ctx, event); err != nil {
		logger.Warn().Err(err).
			Str("event", string(event.Type)).
			Str("role", string(event.Role)).
			Int64("user_id", event.UserID).
			Msg("failed to deliver notification")
	}
}

// Send stores a message from the caller to the counterpart with receiverID.
// A message needs text, attachments, or both.
func (m *Messenger) Send(ctx context.Context, from Caller, receiverID int64, content string, attachments []models.Attachment) (*models.Message, error) {
	if !from.Role.Valid() {
		return nil, apperr.InvalidArg("invalid sender type")
	}
	if receiverID <= 0 {
		return nil, apperr.InvalidArg("receiver_id is required")
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, apperr.InvalidArg("message must have content or attachments")
	}
	for _, att := range attachments {
		if !att.Type.Valid() {
			return nil, apperr.InvalidArg("invalid attachment type " + string(att.Type))
		}
		if att.Name == "" || att.URL == "" {
			return nil, apperr.InvalidArg("attachment name and url are required")
		}
	}

	exists, err := m.profiles.Exists(ctx, from.Role.Counterpart(), receiverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound("receiver not found")
	}

	msg, err := m.store.Append(ctx, from.Role, from.ID, receiverID, content, attachments)
	if err != nil {
		return nil, err
	}
	m.notify(ctx, newMessageSentEvent(msg))
	return msg, nil
}

// Thread returns the conversation between a student and an advisor. Only
// the two parties may read it.
func (m *Messenger) Thread(ctx context.Context, caller Caller, studentID, advisorID int64) ([]models.Message, error) {
	if studentID <= 0 || advisorID <= 0 {
		return nil, apperr.InvalidArg("student_id and advisor_id are required")
	}
	if !caller.Is(models.RoleStudent, studentID) && !caller.Is(models.RoleAdvisor, advisorID) {
		return nil, apperr.Forbidden("not a participant of this conversation")
	}
	return m.store.FetchThread(ctx, studentID, advisorID)
}

func (m *Messenger) Inbox(ctx context.Context, caller Caller, advisorID int64) ([]models.Message, error) {
	if err := m.requireAdvisor(ctx, advisorID); err != nil {
		return nil, err
	}
	if !caller.Is(models.RoleAdvisor, advisorID) {
		return nil, apperr.Forbidden("not allowed to read this inbox")
	}
	return m.store.Inbox(ctx, advisorID)
}

// MarkRead marks a message read on behalf of its receiver.
func (m *Messenger) MarkRead(ctx context.Context, caller Caller, messageID int64) error {
	msg, err := m.store.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if !caller.Is(msg.ReceiverType(), msg.ReceiverID) {
		return apperr.Forbidden("only the receiver can mark a message as read")
	}
	if msg.IsRead {
		return nil
	}
	if err = m.store.MarkRead(ctx, messageID); err != nil {
		return err
	}
	m.notify(ctx, newMessageReadEvent(msg))
	return nil
}

// Conversations returns the conversation index of the calling advisor. An
// unknown advisor is reported as not found before ownership is checked.
func (m *Messenger) Conversations(ctx context.Context, caller Caller, advisorID int64) ([]ConversationSummary, error) {
	if err := m.requireAdvisor(ctx, advisorID); err != nil {
		return nil, err
	}
	if !caller.Is(models.RoleAdvisor, advisorID) {
		return nil, apperr.Forbidden("not allowed to list these conversations")
	}
	return m.index.ForAdvisor(ctx, advisorID)
}

func (m *Messenger) requireAdvisor(ctx context.Context, advisorID int64) error {
	exists, err := m.profiles.Exists(ctx, models.RoleAdvisor, advisorID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound("advisor not found")
	}
	return nil
}
