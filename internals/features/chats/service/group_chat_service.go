package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	chatModel "studentchat_backend/internals/features/chats/model"
	userModel "studentchat_backend/internals/features/users/user/model"
)

/* ==========================
   Group Chat Membership Maintainer
========================== */

// GroupChatName — nama kanonik chat grup untuk satu grup akademik.
// Prefix mengikuti data produksi lama ("Группа РИС-20-1").
func GroupChatName(groupName string) string {
	return "Группа " + groupName
}

// FindGroupChat mencari chat grup aktif untuk satu grup akademik;
// nil tanpa error kalau belum pernah dibuat.
func FindGroupChat(db *gorm.DB, groupName string) (*chatModel.ChatModel, error) {
	var chat chatModel.ChatModel
	err := db.Where("chat_name = ? AND chat_type = ? AND is_active = true", GroupChatName(groupName), chatModel.ChatTypeGroup).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreateOrUpdateGroupChat mengambil (atau membuat) chat grup singleton
// untuk satu grup akademik. Milik sistem: created_by NULL.
// Partial unique index di chats menjaga singleton-nya; kalah race → re-select.
func CreateOrUpdateGroupChat(db *gorm.DB, log *zap.Logger, groupName string) (*chatModel.ChatModel, error) {
	name := GroupChatName(groupName)

	var chat chatModel.ChatModel
	err := db.Where("chat_name = ? AND chat_type = ? AND is_active = true", name, chatModel.ChatTypeGroup).
		First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	desc := "Общегрупповой чат для группы " + groupName
	chat = chatModel.ChatModel{
		Name:        name,
		Type:        chatModel.ChatTypeGroup,
		CreatedBy:   nil,
		Description: &desc,
		IsActive:    true,
	}
	if err := db.Create(&chat).Error; err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "duplicate key") || strings.Contains(low, "unique") {
			var again chatModel.ChatModel
			if e := db.Where("chat_name = ? AND chat_type = ? AND is_active = true", name, chatModel.ChatTypeGroup).
				First(&again).Error; e != nil {
				return nil, e
			}
			return &again, nil
		}
		return nil, err
	}

	log.Info("chat grup dibuat", zap.String("group", groupName), zap.String("chat_id", chat.ID.String()))
	return &chat, nil
}

// AddUserToGroupChat — satu upsert untuk join pertama maupun rejoin:
// ON CONFLICT set left_at NULL + reset role. Tidak ada dua jalur kode.
func AddUserToGroupChat(db *gorm.DB, chatID, userID uuid.UUID) error {
	return upsertParticipant(db, chatID, userID)
}

// upsertParticipant adalah transisi join/rejoin dari state machine
// participant; dipakai chat grup maupun chat privat.
func upsertParticipant(db *gorm.DB, chatID, userID uuid.UUID) error {
	participant := chatModel.ChatParticipantModel{
		ChatID: chatID,
		UserID: userID,
		Role:   chatModel.ParticipantRoleMember,
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"left_at":      nil,
			"role_in_chat": chatModel.ParticipantRoleMember,
		}),
	}).Create(&participant).Error
}

// RemoveUserFromGroupChat menandai user keluar (soft leave, tidak hard delete).
func RemoveUserFromGroupChat(db *gorm.DB, chatID, userID uuid.UUID) error {
	now := time.Now().UTC()
	return db.Model(&chatModel.ChatParticipantModel{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("left_at", now).Error
}

// FindStudentsByGroup — semua студент aktif di satu grup akademik.
func FindStudentsByGroup(db *gorm.DB, groupName string) ([]userModel.UserModel, error) {
	var students []userModel.UserModel
	err := db.
		Where("student_group = ? AND role = ? AND is_active = true", groupName, userModel.RoleStudent).
		Order("last_name, first_name").
		Find(&students).Error
	return students, err
}
