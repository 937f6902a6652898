package db

import (
	"fmt"

	"gorm.io/gorm"
)

type indexDef struct {
	name    string
	table   string
	columns string
}

// Thread lookups filter on the (sender_type, sender_id, receiver_id) triple in
// both directions and sort by created_at; unread counts filter on the receiver.
var messageIndexes = []indexDef{
	{"idx_messages_thread", "messages", "sender_type, sender_id, receiver_id, created_at"},
	{"idx_messages_receiver_read", "messages", "receiver_id, is_read"},
	{"idx_message_attachments_message_position", "message_attachments", "message_id, position"},
	{"idx_students_advisor", "students", "advisor_id"},
}

// CreateMessageIndexes creates the secondary indexes if they do not exist.
// The statements are valid for both postgres and sqlite.
func CreateMessageIndexes(db *gorm.DB) error {
	for _, idx := range messageIndexes {
		createIndexSQL := fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s (%s);`,
			idx.name, idx.table, idx.columns,
		)
		if err := db.Exec(createIndexSQL).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}
