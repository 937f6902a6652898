package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"advising/apperr"
	"advising/db"
	"advising/models"

	"gorm.io/gorm"
)

// ConversationSummary is one row of an advisor's conversation list.
type ConversationSummary struct {
	StudentID       int64     `json:"id"`
	StudentNumber   string    `json:"student_number"`
	Name            string    `json:"name"`
	Surname         string    `json:"surname"`
	Email           string    `json:"email"`
	PhotoURL        string    `json:"photo_url"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int64     `json:"unread_count"`
}

// ConversationIndex derives per-student summaries from the messages table
// on every call; nothing is cached. It reads from the master so unread
// counts follow MarkRead immediately.
type ConversationIndex struct {
	db *db.Manager
}

func NewConversationIndex(m *db.Manager) *ConversationIndex {
	return &ConversationIndex{db: m}
}

// ForAdvisor lists the students that have at least one message with the
// advisor, most recent conversation first.
//
// TODO: replace the per-student queries with a single grouped query once
// advisors have enough students for it to matter.
func (ci *ConversationIndex) ForAdvisor(ctx context.Context, advisorID int64) ([]ConversationSummary, error) {
	conn := ci.db.Write(ctx)

	var advisor models.Advisor
	err := conn.Select("id").Where("id = ?", advisorID).Take(&advisor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("advisor not found")
	}
	if err != nil {
		return nil, apperr.Storage("failed to load advisor", err)
	}

	var studentIDs []int64
	err = ci.db.Write(ctx).Raw(`
		SELECT DISTINCT CASE WHEN sender_type = ? THEN sender_id ELSE receiver_id END AS student_id
		FROM messages
		WHERE (sender_type = ? AND receiver_id = ?) OR (sender_type = ? AND sender_id = ?)`,
		models.RoleStudent,
		models.RoleStudent, advisorID,
		models.RoleAdvisor, advisorID,
	).Scan(&studentIDs).Error
	if err != nil {
		return nil, apperr.Storage("failed to load conversations", err)
	}

	result := make([]ConversationSummary, 0, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	var students []models.Student
	err = ci.db.Write(ctx).Where("id IN ?", studentIDs).Find(&students).Error
	if err != nil {
		return nil, apperr.Storage("failed to load students", err)
	}

	for _, student := range students {
		var last models.Message
		err = ci.db.Write(ctx).
			Scopes(threadScope(student.ID, advisorID)).
			Order("created_at DESC, id DESC").
			Take(&last).Error
		if err != nil {
			return nil, apperr.Storage("failed to load last message", err)
		}

		var unread int64
		err = ci.db.Write(ctx).Model(&models.Message{}).
			Where("sender_type = ? AND sender_id = ? AND receiver_id = ? AND is_read = ?",
				models.RoleStudent, student.ID, advisorID, false).
			Count(&unread).Error
		if err != nil {
			return nil, apperr.Storage("failed to count unread messages", err)
		}

		result = append(result, ConversationSummary{
			StudentID:       student.ID,
			StudentNumber:   student.StudentNumber,
			Name:            student.Name,
			Surname:         student.Surname,
			Email:           student.Email,
			PhotoURL:        student.PhotoURL,
			LastMessage:     last.Content,
			LastMessageTime: last.CreatedAt,
			UnreadCount:     unread,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastMessageTime.Equal(result[j].LastMessageTime) {
			return result[i].LastMessageTime.After(result[j].LastMessageTime)
		}
		return result[i].StudentID < result[j].StudentID
	})
	return result, nil
}
