package services

import (
	"context"
	"errors"

	"advising/apperr"
	"advising/db"
	"advising/logger"
	"advising/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const senderNameSelect = `messages.*,
	COALESCE(CASE
		WHEN messages.sender_type = 'student' THEN s.name || ' ' || s.surname
		WHEN messages.sender_type = 'advisor' THEN a.name || ' ' || a.surname
	END, '') AS sender_name`

// MessageStore persists messages together with their attachments.
type MessageStore struct {
	db *db.Manager
}

func NewMessageStore(m *db.Manager) *MessageStore {
	return &MessageStore{db: m}
}

// threadScope selects both directions of the conversation between one
// student and one advisor. Student and advisor ids come from different
// tables, so the sender type is part of the match.
func threadScope(studentID, advisorID int64) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where(
			"(messages.sender_type = ? AND messages.sender_id = ? AND messages.receiver_id = ?) OR "+
				"(messages.sender_type = ? AND messages.sender_id = ? AND messages.receiver_id = ?)",
			models.RoleStudent, studentID, advisorID,
			models.RoleAdvisor, advisorID, studentID,
		)
	}
}

func withSenderName(tx *gorm.DB) *gorm.DB {
	return tx.Model(&models.Message{}).
		Select(senderNameSelect).
		Joins("LEFT JOIN students s ON messages.sender_type = 'student' AND s.id = messages.sender_id").
		Joins("LEFT JOIN advisors a ON messages.sender_type = 'advisor' AND a.id = messages.sender_id").
		Preload("Attachments", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		})
}

func normalizeAttachments(msgs []models.Message) {
	for i := range msgs {
		if msgs[i].Attachments == nil {
			msgs[i].Attachments = []models.Attachment{}
		}
	}
}

// Append stores the message and its attachments in one transaction and
// returns the stored form. Nothing is persisted if any insert fails.
func (s *MessageStore) Append(
	ctx context.Context,
	senderType models.Role,
	senderID, receiverID int64,
	content string,
	attachments []models.Attachment,
) (*models.Message, error) {
	if !senderType.Valid() {
		return nil, apperr.InvalidArg("invalid sender type")
	}

	msg := models.Message{
		SenderType: senderType,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	err := s.db.Write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&msg).Error; err != nil {
			return err
		}
		// Inserted one by one: an association upsert would silently skip
		// conflicting ids instead of failing the transaction.
		for i, att := range attachments {
			if att.ID == "" {
				att.ID = uuid.NewString()
			}
			att.MessageID = msg.ID
			att.Position = i
			if err := tx.Create(&att).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).
			Str("sender_type", string(senderType)).
			Int64("sender_id", senderID).
			Int64("receiver_id", receiverID).
			Int("attachments", len(attachments)).
			Msg("failed to append message")
		return nil, apperr.Storage("failed to save message", err)
	}

	return s.Get(ctx, msg.ID)
}

// Get loads one message with its sender name and attachments.
func (s *MessageStore) Get(ctx context.Context, messageID int64) (*models.Message, error) {
	var msg models.Message
	err := withSenderName(s.db.Write(ctx)).
		Where("messages.id = ?", messageID).
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("message not found")
	}
	if err != nil {
		return nil, apperr.Storage("failed to load message", err)
	}
	if msg.Attachments == nil {
		msg.Attachments = []models.Attachment{}
	}
	return &msg, nil
}

// FetchThread returns every message between the student and the advisor,
// oldest first. Messages sharing a timestamp keep insertion order. Like every
// read of the store it goes to the master, so a thread always reflects the
// writes that came before it.
func (s *MessageStore) FetchThread(ctx context.Context, studentID, advisorID int64) ([]models.Message, error) {
	msgs := make([]models.Message, 0)
	err := withSenderName(s.db.Write(ctx)).
		Scopes(threadScope(studentID, advisorID)).
		Order("messages.created_at ASC, messages.id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, apperr.Storage("failed to load messages", err)
	}
	normalizeAttachments(msgs)
	return msgs, nil
}

// Inbox returns every message students sent to the advisor, oldest first.
func (s *MessageStore) Inbox(ctx context.Context, advisorID int64) ([]models.Message, error) {
	msgs := make([]models.Message, 0)
	err := withSenderName(s.db.Write(ctx)).
		Where("messages.sender_type = ? AND messages.receiver_id = ?", models.RoleStudent, advisorID).
		Order("messages.created_at ASC, messages.id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, apperr.Storage("failed to load messages", err)
	}
	normalizeAttachments(msgs)
	return msgs, nil
}

// MarkRead sets the read flag. Marking an already read message is a no-op.
func (s *MessageStore) MarkRead(ctx context.Context, messageID int64) error {
	res := s.db.Write(ctx).
		Model(&models.Message{}).
		Where("id = ? AND is_read = ?", messageID, false).
		Update("is_read", true)
	if res.Error != nil {
		return apperr.Storage("failed to update message", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	err := s.db.Write(ctx).Model(&models.Message{}).Where("id = ?", messageID).Count(&count).Error
	if err != nil {
		return apperr.Storage("failed to update message", err)
	}
	if count == 0 {
		return apperr.NotFound("message not found")
	}
	return nil
}
