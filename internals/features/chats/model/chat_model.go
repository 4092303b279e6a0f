package model

import (
	"time"

	"github.com/google/uuid"
)

/* ==========================
   Chat types
========================== */

const (
	ChatTypePrivate = "private"
	ChatTypeGroup   = "group"

	ParticipantRoleMember = "member"
)

// ChatModel merepresentasikan tabel chats.
// Chat grup milik sistem: created_by NULL, satu chat aktif per nama grup.
type ChatModel struct {
	ID          uuid.UUID  `gorm:"column:chat_id;type:uuid;default:gen_random_uuid();primaryKey" json:"chat_id"`
	Name        string     `gorm:"column:chat_name;size:255;not null" json:"chat_name"`
	Type        string     `gorm:"column:chat_type;type:varchar(20);not null" json:"chat_type"`
	CreatedBy   *uuid.UUID `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
	Description *string    `gorm:"size:500" json:"description,omitempty"`
	IsActive    bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChatModel) TableName() string {
	return "chats"
}

// ChatParticipantModel merepresentasikan tabel chat_participants.
//
// Per (chat, user) ini state machine 3 keadaan:
// never-joined (tidak ada row) → active (left_at NULL) → left (left_at terisi),
// dan rejoin mengembalikan ke active lewat satu upsert — bukan cek null
// yang tersebar di call site.
type ChatParticipantModel struct {
	ChatID   uuid.UUID  `gorm:"column:chat_id;type:uuid;primaryKey" json:"chat_id"`
	UserID   uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Role     string     `gorm:"column:role_in_chat;type:varchar(20);not null;default:'member'" json:"role_in_chat"`
	JoinedAt time.Time  `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
	LeftAt   *time.Time `gorm:"column:left_at" json:"left_at,omitempty"`
}

func (ChatParticipantModel) TableName() string {
	return "chat_participants"
}

// IsOpen true selama user belum keluar dari chat.
func (p *ChatParticipantModel) IsOpen() bool {
	return p.LeftAt == nil
}
