package service

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	academicsService "studentchat_backend/internals/features/academics/service"
	chatModel "studentchat_backend/internals/features/chats/model"
	userModel "studentchat_backend/internals/features/users/user/model"
)

/* ==========================
   Contact Graph Maintainer

   Kontak bukan tabel sendiri: kontak = ada chat privat terbuka antara
   dua user (kedua sisi left_at NULL). addContact idempotent; maksimal
   satu chat privat terbuka per pasangan.
========================== */

// GetOrCreatePrivateChat mengembalikan chat privat terbuka antara dua user.
// Kalau chat lama ada tapi salah satu sisi sudah keluar, sisi itu dibuka
// lagi lewat upsert participant — tidak pernah bikin chat kedua.
func GetOrCreatePrivateChat(db *gorm.DB, log *zap.Logger, userID1, userID2 uuid.UUID) (*chatModel.ChatModel, error) {
	// 1) Chat terbuka dua sisi → selesai.
	chat, err := findPrivateChat(db, userID1, userID2, true)
	if err != nil {
		return nil, err
	}
	if chat != nil {
		return chat, nil
	}

	// 2) Chat lama (ada yang left) → buka lagi kedua sisi.
	chat, err = findPrivateChat(db, userID1, userID2, false)
	if err != nil {
		return nil, err
	}
	if chat != nil {
		if err := upsertParticipant(db, chat.ID, userID1); err != nil {
			return nil, err
		}
		if err := upsertParticipant(db, chat.ID, userID2); err != nil {
			return nil, err
		}
		return chat, nil
	}

	// 3) Belum pernah ada → buat chat + dua participant.
	var u1, u2 userModel.UserModel
	if err := db.First(&u1, "user_id = ?", userID1).Error; err != nil {
		return nil, err
	}
	if err := db.First(&u2, "user_id = ?", userID2).Error; err != nil {
		return nil, err
	}

	newChat := chatModel.ChatModel{
		Name:      u1.FullName() + " - " + u2.FullName(),
		Type:      chatModel.ChatTypePrivate,
		CreatedBy: &userID1,
		IsActive:  true,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newChat).Error; err != nil {
			return err
		}
		if err := upsertParticipant(tx, newChat.ID, userID1); err != nil {
			return err
		}
		return upsertParticipant(tx, newChat.ID, userID2)
	})
	if err != nil {
		return nil, err
	}

	log.Info("chat privat dibuat",
		zap.String("user_id", userID1.String()),
		zap.String("contact_id", userID2.String()))
	return &newChat, nil
}

// findPrivateChat mencari chat privat yang memuat kedua user.
// openOnly=true menuntut kedua sisi belum keluar.
func findPrivateChat(db *gorm.DB, userID1, userID2 uuid.UUID, openOnly bool) (*chatModel.ChatModel, error) {
	leftFilter := ""
	if openOnly {
		leftFilter = " AND cp1.left_at IS NULL AND cp2.left_at IS NULL"
	}

	var chat chatModel.ChatModel
	err := db.Raw(`
		SELECT c.* FROM chats c
		JOIN chat_participants cp1 ON c.chat_id = cp1.chat_id AND cp1.user_id = ?
		JOIN chat_participants cp2 ON c.chat_id = cp2.chat_id AND cp2.user_id = ?
		WHERE c.chat_type = 'private' AND c.is_active = true`+leftFilter+`
		ORDER BY c.created_at
		LIMIT 1`, userID1, userID2).
		Scan(&chat).Error
	if err != nil {
		return nil, err
	}
	if chat.ID == uuid.Nil {
		return nil, nil
	}
	return &chat, nil
}

// AddContact — get-or-create chat privat terbuka (idempotent).
func AddContact(db *gorm.DB, log *zap.Logger, userID, contactID uuid.UUID) error {
	if userID == contactID {
		return fiber.NewError(fiber.StatusBadRequest, "Нельзя добавить себя в контакты")
	}
	_, err := GetOrCreatePrivateChat(db, log, userID, contactID)
	return err
}

// RemoveContact — soft leave satu sisi saja (sisi actor).
// Sisi lawan tidak tersentuh: penghapusan kontak itu one-directional.
func RemoveContact(db *gorm.DB, log *zap.Logger, userID, contactID uuid.UUID) error {
	chat, err := findPrivateChat(db, userID, contactID, true)
	if err != nil {
		return err
	}
	if chat == nil {
		return nil
	}

	now := time.Now().UTC()
	err = db.Model(&chatModel.ChatParticipantModel{}).
		Where("chat_id = ? AND user_id = ?", chat.ID, userID).
		Update("left_at", now).Error
	if err != nil {
		return err
	}

	log.Info("kontak dihapus",
		zap.String("user_id", userID.String()),
		zap.String("contact_id", contactID.String()))
	return nil
}

// AddGroupmatesToContacts menambah semua teman segrup sebagai kontak user.
// One-directional dari sisi user ini; karena chat record-nya shared,
// sisi lawan otomatis ikut melihat chat yang sama.
func AddGroupmatesToContacts(db *gorm.DB, log *zap.Logger, userID uuid.UUID, groupName string) error {
	groupmates, err := FindStudentsByGroup(db, groupName)
	if err != nil {
		return err
	}
	for i := range groupmates {
		if groupmates[i].ID == userID {
			continue
		}
		if err := AddContact(db, log, userID, groupmates[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// AddTeachersToContacts menambah para pengajar дисциплин si студент.
func AddTeachersToContacts(db *gorm.DB, log *zap.Logger, studentID uuid.UUID, disciplineIDs []uuid.UUID) error {
	teacherIDs, err := academicsService.TeacherIDsByDisciplines(db, disciplineIDs)
	if err != nil {
		return err
	}
	for _, teacherID := range teacherIDs {
		if teacherID == studentID {
			continue
		}
		if err := AddContact(db, log, studentID, teacherID); err != nil {
			return err
		}
	}
	return nil
}

// AddStudentsToTeacherContacts menambah студентов дисциплин si преподаватель.
func AddStudentsToTeacherContacts(db *gorm.DB, log *zap.Logger, teacherID uuid.UUID, disciplineIDs []uuid.UUID) error {
	studentIDs, err := academicsService.StudentIDsByDisciplines(db, disciplineIDs)
	if err != nil {
		return err
	}
	for _, studentID := range studentIDs {
		if studentID == teacherID {
			continue
		}
		if err := AddContact(db, log, teacherID, studentID); err != nil {
			return err
		}
	}
	return nil
}

// FindStudentsWithCommonDisciplines — retain-set saat grup berpindah:
// студент lain yang masih berbagi дисциплину tidak boleh di-drop
// sebagai kontak walaupun grupnya sudah beda.
func FindStudentsWithCommonDisciplines(db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	ownIDs, err := academicsService.StudentDisciplineIDs(db, userID)
	if err != nil {
		return nil, err
	}
	if len(ownIDs) == 0 {
		return nil, nil
	}

	idStrs := make([]string, len(ownIDs))
	for i, id := range ownIDs {
		idStrs[i] = id.String()
	}

	var ids []uuid.UUID
	err = db.Raw(`
		SELECT DISTINCT u.user_id
		FROM users u
		JOIN student_disciplines sd ON u.user_id = sd.user_id
		WHERE sd.discipline_id = ANY(?::uuid[])
		  AND u.user_id != ?
		  AND u.role = 'student'
		  AND u.is_active = true`, pq.Array(idStrs), userID).
		Scan(&ids).Error
	return ids, err
}

// GetUserContacts — semua lawan bicara dari chat privat terbuka user.
func GetUserContacts(db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Raw(`
		SELECT DISTINCT cp2.user_id
		FROM chats c
		JOIN chat_participants cp1 ON c.chat_id = cp1.chat_id
		JOIN chat_participants cp2 ON c.chat_id = cp2.chat_id
		WHERE c.chat_type = 'private'
		  AND c.is_active = true
		  AND cp1.user_id = ?
		  AND cp2.user_id != ?
		  AND cp1.left_at IS NULL
		  AND cp2.left_at IS NULL`, userID, userID).
		Scan(&ids).Error
	return ids, err
}
