package models

import (
	"time"
)

// Message is one entry of a student-advisor thread. The receiver's role is
// always the counterpart of SenderType. Only IsRead is ever updated.
type Message struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderType  Role         `gorm:"size:16;not null" json:"sender_type"`
	SenderID    int64        `gorm:"not null" json:"sender_id"`
	ReceiverID  int64        `gorm:"not null" json:"receiver_id"`
	Content     string       `gorm:"type:text;not null" json:"content"`
	IsRead      bool         `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	SenderName  string       `gorm:"->;-:migration" json:"sender_name"`
	Attachments []Attachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"attachments"`
}

func (Message) TableName() string {
	return "messages"
}

// ReceiverType is the role of the receiving party.
func (m Message) ReceiverType() Role {
	return m.SenderType.Counterpart()
}

// StudentID and AdvisorID identify the thread regardless of direction.
func (m Message) StudentID() int64 {
	if m.SenderType == RoleStudent {
		return m.SenderID
	}
	return m.ReceiverID
}

func (m Message) AdvisorID() int64 {
	if m.SenderType == RoleAdvisor {
		return m.SenderID
	}
	return m.ReceiverID
}

type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentDocument AttachmentKind = "document"
)

func (k AttachmentKind) Valid() bool {
	switch k {
	case AttachmentImage, AttachmentVideo, AttachmentAudio, AttachmentDocument:
		return true
	}
	return false
}

type Attachment struct {
	ID        string         `gorm:"primaryKey;size:64" json:"id"`
	MessageID int64          `gorm:"not null" json:"-"`
	Position  int            `gorm:"not null" json:"-"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Type      AttachmentKind `gorm:"size:16;not null" json:"type"`
	URL       string         `gorm:"size:1024;not null" json:"url"`
}

func (Attachment) TableName() string {
	return "message_attachments"
}
