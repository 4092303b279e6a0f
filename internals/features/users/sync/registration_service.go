package sync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	academicsService "studentchat_backend/internals/features/academics/service"
	"studentchat_backend/internals/features/broadcast"
	chatService "studentchat_backend/internals/features/chats/service"
	onecClient "studentchat_backend/internals/features/onec/client"
	onecDTO "studentchat_backend/internals/features/onec/dto"
	userModel "studentchat_backend/internals/features/users/user/model"
)

/* ==========================
   Registration Reconciler

   Registrasi = klaim satu record Directory 1C oleh satu akun chat.
   Kode 1C adalah kunci klaim: satu kode, satu akun. Kalau kode sudah
   punya row placeholder (dibuat gara-gara disebut entitas lain), row
   itu diaktifkan in place — identitasnya (user_id, edges, kontak yang
   sudah nunjuk ke dia) tidak boleh berubah.
========================== */

// CheckStudentCode memverifikasi kode студент sebelum form registrasi
// lanjut: record ada di Directory, grupnya cocok, dan kodenya belum
// diklaim akun lain.
func CheckStudentCode(ctx context.Context, db *gorm.DB, oc *onecClient.Client, code, groupName string) (*onecDTO.StudentRecord, error) {
	rec, err := oc.GetStudentByCode(ctx, code)
	if err != nil {
		if errors.Is(err, onecClient.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Студент с таким кодом не найден в справочнике")
		}
		return nil, err
	}

	if groupName != "" && !strings.EqualFold(strings.TrimSpace(rec.Group.Name), strings.TrimSpace(groupName)) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Группа не совпадает с данными справочника")
	}

	if err := ensureCodeUnclaimed(db, rec.Code); err != nil {
		return nil, err
	}
	return rec, nil
}

// CheckTeacherCode — verifikasi kode преподаватель, analog CheckStudentCode.
func CheckTeacherCode(ctx context.Context, db *gorm.DB, oc *onecClient.Client, code string) (*onecDTO.TeacherRecord, error) {
	rec, err := oc.GetTeacherByCode(ctx, code)
	if err != nil {
		if errors.Is(err, onecClient.ErrNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "Преподаватель с таким кодом не найден в справочнике")
		}
		return nil, err
	}

	if err := ensureCodeUnclaimed(db, rec.Code); err != nil {
		return nil, err
	}
	return rec, nil
}

// ensureCodeUnclaimed: kode boleh nunjuk ke placeholder (akan diaktifkan),
// tapi tidak boleh ke akun yang sudah registrasi.
func ensureCodeUnclaimed(db *gorm.DB, code string) error {
	var existing userModel.UserModel
	err := db.Where("sync_1c_id = ?", code).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !existing.IsPlaceholder() {
		return fiber.NewError(fiber.StatusConflict, "Этот код уже привязан к другому аккаунту")
	}
	return nil
}

// RegisterStudent menjalankan klaim record студент dalam satu transaksi:
// aktivasi/insert user, resolve kafedra+grup+дисциплины, placeholder
// para преподаватель, edge set, dan chat grup. Chat privat 1:1 TIDAK
// dibuat di sini — kontak itu derived, user menemukannya lewat daftar
// kontak dan pass login.
func RegisterStudent(
	ctx context.Context,
	db *gorm.DB,
	log *zap.Logger,
	bc broadcast.Broadcaster,
	rec *onecDTO.StudentRecord,
	username, password string,
) (*userModel.UserModel, error) {
	if err := ensureUsernameFree(db, username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(rec)

	var user userModel.UserModel
	var disciplineIDs []uuid.UUID

	err = db.Transaction(func(tx *gorm.DB) error {
		dept, err := academicsService.ResolveDepartment(tx, rec.Department)
		if err != nil {
			return err
		}
		if _, err := academicsService.ResolveGroup(tx, rec.Group, &dept.ID); err != nil {
			return err
		}

		disciplineIDs, err = reconcileStudentDisciplines(tx, rec.Disciplines, &dept.ID)
		if err != nil {
			return err
		}

		u, err := claimUserRow(tx, rec.Code, func(u *userModel.UserModel) {
			uname := username
			u.Username = &uname
			u.PasswordHash = string(hash)
			u.FirstName = rec.FirstName
			u.LastName = rec.LastName
			u.MiddleName = optional(rec.MiddleName)
			u.Role = userModel.RoleStudent
			u.Department = optional(rec.Department.Name)
			u.StudentGroup = optional(rec.Group.Name)
			u.SyncPayload = payload
			u.IsActive = true
		})
		if err != nil {
			return err
		}
		user = *u

		if err := academicsService.ReplaceStudentDisciplines(tx, user.ID, disciplineIDs); err != nil {
			return err
		}

		chat, err := chatService.CreateOrUpdateGroupChat(tx, log, rec.Group.Name)
		if err != nil {
			return err
		}
		return chatService.AddUserToGroupChat(tx, chat.ID, user.ID)
	})
	if err != nil {
		return nil, err
	}

	emitRegistered(ctx, bc, log, &user)

	log.Info("студент terdaftar",
		zap.String("user_id", user.ID.String()),
		zap.String("code", rec.Code),
		zap.String("group", rec.Group.Name))
	return &user, nil
}

// RegisterTeacher — klaim record преподаватель. Edge assignment yang sudah
// terkumpul di placeholder (dari registrasi para студент) dipertahankan;
// дисциплина di record hanya menambah, tidak mengganti.
func RegisterTeacher(
	ctx context.Context,
	db *gorm.DB,
	log *zap.Logger,
	bc broadcast.Broadcaster,
	rec *onecDTO.TeacherRecord,
	username, password string,
) (*userModel.UserModel, error) {
	if err := ensureUsernameFree(db, username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(rec)

	var user userModel.UserModel

	err = db.Transaction(func(tx *gorm.DB) error {
		dept, err := academicsService.ResolveDepartment(tx, rec.Department)
		if err != nil {
			return err
		}

		u, err := claimUserRow(tx, rec.Code, func(u *userModel.UserModel) {
			uname := username
			u.Username = &uname
			u.PasswordHash = string(hash)
			u.FirstName = rec.FirstName
			u.LastName = rec.LastName
			u.MiddleName = optional(rec.MiddleName)
			u.Role = userModel.RoleTeacher
			u.Department = optional(rec.Department.Name)
			u.SyncPayload = payload
			u.IsActive = true
		})
		if err != nil {
			return err
		}
		user = *u

		if rec.Discipline != nil && rec.Discipline.Name != "" {
			disc, err := academicsService.ResolveDiscipline(tx, *rec.Discipline, &dept.ID)
			if err != nil {
				return err
			}
			if err := academicsService.AddTeacherDiscipline(tx, user.ID, disc.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	emitRegistered(ctx, bc, log, &user)

	log.Info("преподаватель terdaftar",
		zap.String("user_id", user.ID.String()),
		zap.String("code", rec.Code))
	return &user, nil
}

/* ==========================
   Internal helpers
========================== */

func ensureUsernameFree(db *gorm.DB, username string) error {
	var count int64
	if err := db.Model(&userModel.UserModel{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "Имя пользователя уже занято")
	}
	return nil
}

// claimUserRow mengaktifkan placeholder bila ada, atau membuat row baru.
// fill mengisi semua field identitas; sync_1c_id dan timestamp sinkron
// diset di sini supaya seragam.
func claimUserRow(tx *gorm.DB, code string, fill func(*userModel.UserModel)) (*userModel.UserModel, error) {
	now := nowUTC()

	var user userModel.UserModel
	err := tx.Where("sync_1c_id = ?", code).First(&user).Error
	switch {
	case err == nil:
		if !user.IsPlaceholder() {
			return nil, fiber.NewError(fiber.StatusConflict, "Этот код уже привязан к другому аккаунту")
		}
		fill(&user)
		user.SyncedAt = &now
		if err := tx.Save(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = userModel.UserModel{}
		fill(&user)
		codeCopy := code
		user.SyncCode = &codeCopy
		user.SyncedAt = &now
		if err := tx.Create(&user).Error; err != nil {
			return nil, err
		}
		return &user, nil
	default:
		return nil, err
	}
}

// reconcileStudentDisciplines me-resolve setiap дисциплину di record,
// membuat placeholder para преподаватель-nya, dan menautkan edge
// assignment mereka. Balikan: id дисциплин untuk edge set студент.
func reconcileStudentDisciplines(tx *gorm.DB, entries []onecDTO.DisciplineEntry, departmentID *uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		disc, err := academicsService.ResolveDiscipline(tx, entry.Ref, departmentID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, disc.ID)

		for _, teacher := range entry.Teachers {
			placeholder, err := EnsurePlaceholderTeacher(tx, teacher)
			if err != nil {
				return nil, err
			}
			if placeholder == nil {
				continue
			}
			if err := academicsService.AddTeacherDiscipline(tx, placeholder.ID, disc.ID); err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}

// EnsurePlaceholderTeacher membuat akun pasif untuk преподаватель
// yang baru dikenal lewat referensi. Tanpa Код tidak ada identitas stabil
// untuk klaim nantinya — referensi semacam itu dilewati.
func EnsurePlaceholderTeacher(tx *gorm.DB, ref onecDTO.TeacherRef) (*userModel.UserModel, error) {
	if !ref.HasCode() {
		return nil, nil
	}
	code := *ref.Code

	var user userModel.UserModel
	err := tx.Where("sync_1c_id = ?", code).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("temp_"+code), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user = userModel.UserModel{
		Username:     nil,
		PasswordHash: string(hash),
		FirstName:    ref.FirstName,
		LastName:     ref.LastName,
		MiddleName:   optional(ref.MiddleName),
		Role:         userModel.RoleTeacher,
		SyncCode:     &code,
		IsActive:     false,
	}
	if err := tx.Create(&user).Error; err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "duplicate key") || strings.Contains(low, "unique") {
			var again userModel.UserModel
			if e := tx.Where("sync_1c_id = ?", code).First(&again).Error; e != nil {
				return nil, e
			}
			return &again, nil
		}
		return nil, err
	}
	return &user, nil
}

// EnsurePlaceholderStudent — analog EnsurePlaceholderTeacher untuk студент
// yang dibuat admin lewat proxy 1C sebelum dia registrasi sendiri.
func EnsurePlaceholderStudent(tx *gorm.DB, code, lastName, firstName, middleName, department, group string) (*userModel.UserModel, error) {
	var user userModel.UserModel
	err := tx.Where("sync_1c_id = ?", code).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("temp_"+code), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	codeCopy := code
	user = userModel.UserModel{
		Username:     nil,
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
		MiddleName:   optional(middleName),
		Role:         userModel.RoleStudent,
		Department:   optional(department),
		StudentGroup: optional(group),
		SyncCode:     &codeCopy,
		IsActive:     false,
	}
	if err := tx.Create(&user).Error; err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "duplicate key") || strings.Contains(low, "unique") {
			var again userModel.UserModel
			if e := tx.Where("sync_1c_id = ?", code).First(&again).Error; e != nil {
				return nil, e
			}
			return &again, nil
		}
		return nil, err
	}
	return &user, nil
}

func emitRegistered(ctx context.Context, bc broadcast.Broadcaster, log *zap.Logger, user *userModel.UserModel) {
	err := bc.Emit(ctx, broadcast.EventUserRegistered, "", map[string]any{
		"user_id":   user.ID.String(),
		"full_name": user.FullName(),
		"role":      user.Role,
	})
	if err != nil {
		log.Warn("emit user_registered gagal", zap.Error(err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
