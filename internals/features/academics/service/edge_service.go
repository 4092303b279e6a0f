package service

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"studentchat_backend/internals/features/academics/model"
)

/* ==========================
   Enrollment / assignment edges
   Edge set per user selalu diganti wholesale (delete lalu insert)
   supaya persis mencerminkan potret 1C terakhir. Panggil di dalam
   transaksi supaya crash di tengah tidak meninggalkan user tanpa edge.
========================== */

// ReplaceStudentDisciplines mengganti seluruh edge студент↔дисциплина.
func ReplaceStudentDisciplines(tx *gorm.DB, userID uuid.UUID, disciplineIDs []uuid.UUID) error {
	if err := tx.Where("user_id = ?", userID).Delete(&model.StudentDisciplineModel{}).Error; err != nil {
		return err
	}
	if len(disciplineIDs) == 0 {
		return nil
	}
	edges := make([]model.StudentDisciplineModel, 0, len(disciplineIDs))
	for _, id := range dedupe(disciplineIDs) {
		edges = append(edges, model.StudentDisciplineModel{UserID: userID, DisciplineID: id})
	}
	return tx.Create(&edges).Error
}

// ReplaceTeacherDisciplines mengganti seluruh edge преподаватель↔дисциплина.
func ReplaceTeacherDisciplines(tx *gorm.DB, userID uuid.UUID, disciplineIDs []uuid.UUID) error {
	if err := tx.Where("user_id = ?", userID).Delete(&model.TeacherDisciplineModel{}).Error; err != nil {
		return err
	}
	if len(disciplineIDs) == 0 {
		return nil
	}
	edges := make([]model.TeacherDisciplineModel, 0, len(disciplineIDs))
	for _, id := range dedupe(disciplineIDs) {
		edges = append(edges, model.TeacherDisciplineModel{UserID: userID, DisciplineID: id})
	}
	return tx.Create(&edges).Error
}

// AddTeacherDiscipline menambah satu edge assignment (idempotent).
// Dipakai saat registrasi студент menyebut преподаватель placeholder.
func AddTeacherDiscipline(tx *gorm.DB, userID, disciplineID uuid.UUID) error {
	var count int64
	if err := tx.Model(&model.TeacherDisciplineModel{}).
		Where("user_id = ? AND discipline_id = ?", userID, disciplineID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&model.TeacherDisciplineModel{UserID: userID, DisciplineID: disciplineID}).Error
}

// StudentDisciplineIDs mengembalikan edge set студент saat ini.
func StudentDisciplineIDs(db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Model(&model.StudentDisciplineModel{}).
		Where("user_id = ?", userID).
		Pluck("discipline_id", &ids).Error
	return ids, err
}

// TeacherDisciplineIDs mengembalikan edge set преподаватель saat ini.
func TeacherDisciplineIDs(db *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Model(&model.TeacherDisciplineModel{}).
		Where("user_id = ?", userID).
		Pluck("discipline_id", &ids).Error
	return ids, err
}

// TeacherIDsByDisciplines mengembalikan semua преподаватель untuk daftar дисциплин.
func TeacherIDsByDisciplines(db *gorm.DB, disciplineIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(disciplineIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := db.Model(&model.TeacherDisciplineModel{}).
		Distinct("user_id").
		Where("discipline_id IN ?", disciplineIDs).
		Pluck("user_id", &ids).Error
	return ids, err
}

// StudentIDsByDisciplines mengembalikan semua студент untuk daftar дисциплин.
func StudentIDsByDisciplines(db *gorm.DB, disciplineIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(disciplineIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := db.Model(&model.StudentDisciplineModel{}).
		Distinct("user_id").
		Where("discipline_id IN ?", disciplineIDs).
		Pluck("user_id", &ids).Error
	return ids, err
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
