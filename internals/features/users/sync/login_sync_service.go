package sync

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	academicsService "studentchat_backend/internals/features/academics/service"
	"studentchat_backend/internals/features/broadcast"
	chatService "studentchat_backend/internals/features/chats/service"
	onecClient "studentchat_backend/internals/features/onec/client"
	userModel "studentchat_backend/internals/features/users/user/model"
)

/* ==========================
   Login-time Reconciler

   Tiap login sukses = satu kesempatan menyamakan potret lokal dengan
   Directory. Best effort: 1C mati / rate limited → login tetap jalan,
   potret lama dipakai. Rekonsiliasi kontak SELALU diulang walau scalar
   tidak berubah — murah, idempotent, dan menambal seed yang dulu gagal.
========================== */

// SyncOnLogin menjalankan satu pass rekonsiliasi untuk user yang baru
// login. Error fetch 1C ditelan (cuma di-log); error DB dikembalikan.
func SyncOnLogin(
	ctx context.Context,
	db *gorm.DB,
	log *zap.Logger,
	bc broadcast.Broadcaster,
	oc *onecClient.Client,
	user *userModel.UserModel,
) error {
	if user.SyncCode == nil || *user.SyncCode == "" {
		return nil // akun lokal (admin) — tidak ada counterpart 1C
	}

	switch user.Role {
	case userModel.RoleStudent:
		return syncStudentOnLogin(ctx, db, log, oc, user)
	case userModel.RoleTeacher:
		return syncTeacherOnLogin(ctx, db, log, oc, user)
	default:
		return nil
	}
}

func syncStudentOnLogin(ctx context.Context, db *gorm.DB, log *zap.Logger, oc *onecClient.Client, user *userModel.UserModel) error {
	rec, err := oc.GetStudentByCode(ctx, *user.SyncCode)
	if err != nil {
		logFetchSkipped(log, user, err)
		return nil
	}

	oldGroup := ""
	if user.StudentGroup != nil {
		oldGroup = *user.StudentGroup
	}
	// Normalisasi sebelum dibandingkan: rename grup yang cuma beda
	// kapital/spasi bukan pindah grup — jangan sampai soft-leave palsu
	// plus chat grup kedua dengan ejaan baru.
	newGroup := strings.TrimSpace(rec.Group.Name)
	groupChanged := !strings.EqualFold(strings.TrimSpace(oldGroup), newGroup)

	payload, _ := json.Marshal(rec)
	now := nowUTC()

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
		if err := academicsService.ReplaceStudentDisciplines(tx, user.ID, disciplineIDs); err != nil {
			return err
		}

		user.FirstName = rec.FirstName
		user.LastName = rec.LastName
		user.MiddleName = optional(rec.MiddleName)
		user.Department = optional(rec.Department.Name)
		user.StudentGroup = optional(newGroup)
		user.SyncPayload = payload
		user.SyncedAt = &now
		return tx.Save(user).Error
	})
	if err != nil {
		return err
	}

	if groupChanged {
		if err := migrateGroupChat(db, log, user.ID, oldGroup, newGroup); err != nil {
			log.Warn("migrasi chat grup gagal",
				zap.String("user_id", user.ID.String()),
				zap.String("old_group", oldGroup),
				zap.String("new_group", newGroup),
				zap.Error(err))
		}
		if oldGroup != "" {
			if err := pruneOldGroupContacts(db, log, user.ID, oldGroup); err != nil {
				log.Warn("prune kontak grup lama gagal",
					zap.String("user_id", user.ID.String()),
					zap.Error(err))
			}
		}
	}

	// Selalu diulang, bukan hanya saat ada perubahan.
	if err := chatService.AddGroupmatesToContacts(db, log, user.ID, newGroup); err != nil {
		log.Warn("rekonsiliasi kontak segrup gagal", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	if err := chatService.AddTeachersToContacts(db, log, user.ID, disciplineIDs); err != nil {
		log.Warn("rekonsiliasi kontak pengajar gagal", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	log.Info("sync login студент selesai",
		zap.String("user_id", user.ID.String()),
		zap.Bool("group_changed", groupChanged))
	return nil
}

func syncTeacherOnLogin(ctx context.Context, db *gorm.DB, log *zap.Logger, oc *onecClient.Client, user *userModel.UserModel) error {
	rec, err := oc.GetTeacherByCode(ctx, *user.SyncCode)
	if err != nil {
		logFetchSkipped(log, user, err)
		return nil
	}

	payload, _ := json.Marshal(rec)
	now := nowUTC()

	var disciplineIDs []uuid.UUID

	err = db.Transaction(func(tx *gorm.DB) error {
		dept, err := academicsService.ResolveDepartment(tx, rec.Department)
		if err != nil {
			return err
		}

		// Edge assignment mengikuti record apa adanya: potret lama —
		// termasuk edge yang ditanam registrasi para студент — diganti
		// wholesale, bukan ditambal. Edge yang hilang dari Directory ikut
		// hilang di sini; pass login студент yang masih menyebut
		// преподаватель ini akan menanamnya lagi.
		if rec.Discipline != nil && rec.Discipline.Name != "" {
			disc, err := academicsService.ResolveDiscipline(tx, *rec.Discipline, &dept.ID)
			if err != nil {
				return err
			}
			disciplineIDs = append(disciplineIDs, disc.ID)
		}
		if err := academicsService.ReplaceTeacherDisciplines(tx, user.ID, disciplineIDs); err != nil {
			return err
		}

		user.FirstName = rec.FirstName
		user.LastName = rec.LastName
		user.MiddleName = optional(rec.MiddleName)
		user.Department = optional(rec.Department.Name)
		user.SyncPayload = payload
		user.SyncedAt = &now
		return tx.Save(user).Error
	})
	if err != nil {
		return err
	}

	if len(disciplineIDs) > 0 {
		if err := chatService.AddStudentsToTeacherContacts(db, log, user.ID, disciplineIDs); err != nil {
			log.Warn("rekonsiliasi kontak студент gagal", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
	}

	log.Info("sync login преподаватель selesai", zap.String("user_id", user.ID.String()))
	return nil
}

// migrateGroupChat: soft leave dari chat grup lama, join (upsert) ke
// chat grup baru. Riwayat pesan di chat lama tetap ada.
func migrateGroupChat(db *gorm.DB, log *zap.Logger, userID uuid.UUID, oldGroup, newGroup string) error {
	if oldGroup != "" {
		oldChat, err := chatService.FindGroupChat(db, oldGroup)
		if err != nil {
			return err
		}
		if oldChat != nil {
			if err := chatService.RemoveUserFromGroupChat(db, oldChat.ID, userID); err != nil {
				return err
			}
		}
	}

	newChat, err := chatService.CreateOrUpdateGroupChat(db, log, newGroup)
	if err != nil {
		return err
	}
	return chatService.AddUserToGroupChat(db, newChat.ID, userID)
}

// pruneOldGroupContacts melepas kontak dengan mantan teman segrup —
// kecuali yang masih berbagi дисциплину (retain set). One-directional:
// hanya sisi user ini yang ditandai keluar.
func pruneOldGroupContacts(db *gorm.DB, log *zap.Logger, userID uuid.UUID, oldGroup string) error {
	retainIDs, err := chatService.FindStudentsWithCommonDisciplines(db, userID)
	if err != nil {
		return err
	}
	retain := make(map[uuid.UUID]struct{}, len(retainIDs))
	for _, id := range retainIDs {
		retain[id] = struct{}{}
	}

	oldMates, err := chatService.FindStudentsByGroup(db, oldGroup)
	if err != nil {
		return err
	}
	for i := range oldMates {
		mateID := oldMates[i].ID
		if mateID == userID {
			continue
		}
		if _, keep := retain[mateID]; keep {
			continue
		}
		if err := chatService.RemoveContact(db, log, userID, mateID); err != nil {
			return err
		}
	}
	return nil
}

func logFetchSkipped(log *zap.Logger, user *userModel.UserModel, err error) {
	if onecClient.IsRateLimit(err) {
		log.Warn("sync login dilewati: 1C rate limited", zap.String("user_id", user.ID.String()))
		return
	}
	log.Warn("sync login dilewati: fetch 1C gagal",
		zap.String("user_id", user.ID.String()),
		zap.Error(err))
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
