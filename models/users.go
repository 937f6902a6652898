package models

import (
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdvisor Role = "advisor"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdvisor
}

// Counterpart is the role on the other side of a conversation.
func (r Role) Counterpart() Role {
	if r == RoleStudent {
		return RoleAdvisor
	}
	return RoleStudent
}

type Advisor struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string    `gorm:"size:100;not null" json:"name"`
	Surname          string    `gorm:"size:100;not null" json:"surname"`
	Email            string    `gorm:"size:255;not null" json:"email"`
	Username         string    `gorm:"size:60;not null;uniqueIndex" json:"username"`
	Password         string    `gorm:"size:255;not null" json:"-"`
	PhotoURL         string    `gorm:"size:1024" json:"photo_url"`
	OfficeNumber     string    `gorm:"size:50" json:"office_number"`
	OfficeHoursStart string    `gorm:"size:5" json:"office_hours_start"`
	OfficeHoursEnd   string    `gorm:"size:5" json:"office_hours_end"`
	OfficeDays       string    `gorm:"size:100" json:"office_days"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Advisor) TableName() string {
	return "advisors"
}

func (a Advisor) FullName() string {
	return a.Name + " " + a.Surname
}

type Student struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentNumber string    `gorm:"size:30;not null;uniqueIndex" json:"student_number"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Surname       string    `gorm:"size:100;not null" json:"surname"`
	Email         string    `gorm:"size:255;not null" json:"email"`
	Password      string    `gorm:"size:255;not null" json:"-"`
	PhotoURL      string    `gorm:"size:1024" json:"photo_url"`
	AdvisorID     *int64    `json:"advisor_id"`
	Advisor       *Advisor  `gorm:"constraint:OnDelete:SET NULL" json:"advisor,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}

func (s Student) FullName() string {
	return s.Name + " " + s.Surname
}

type UserTokens struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Role   Role   `gorm:"size:16;not null;index:user_tokens_owner_idx" json:"role"`
	UserID int64  `gorm:"not null;index:user_tokens_owner_idx" json:"user_id"`
	Token  string `gorm:"size:255;not null;uniqueIndex" json:"token"`
}

func (UserTokens) TableName() string {
	return "user_tokens"
}
