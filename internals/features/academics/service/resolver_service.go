package service

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"studentchat_backend/internals/features/academics/model"
	onecDTO "studentchat_backend/internals/features/onec/dto"
)

/* ==========================
   Entity Resolver
   Urutan lookup: sync_1c_code (otoritatif) → natural key → create.
   Unique violation saat create = kalah race dengan rekonsiliasi lain
   → re-select, jangan gagalkan pass.
========================== */

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "duplicate key") || strings.Contains(low, "unique")
}

// ResolveDepartment mencari atau membuat kafedra.
func ResolveDepartment(db *gorm.DB, ref onecDTO.Ref) (*model.DepartmentModel, error) {
	if strings.TrimSpace(ref.Name) == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Nama kafedra kosong")
	}

	var dept model.DepartmentModel

	if ref.HasCode() {
		err := db.Where("sync_1c_code = ?", *ref.Code).First(&dept).Error
		if err == nil {
			return &dept, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	err := db.Where("name = ?", ref.Name).First(&dept).Error
	if err == nil {
		return &dept, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	dept = model.DepartmentModel{Name: ref.Name, SyncCode: ref.Code}
	if err := db.Create(&dept).Error; err != nil {
		if isUniqueViolation(err) {
			return reselectDepartment(db, ref)
		}
		return nil, err
	}
	return &dept, nil
}

func reselectDepartment(db *gorm.DB, ref onecDTO.Ref) (*model.DepartmentModel, error) {
	var dept model.DepartmentModel
	if ref.HasCode() {
		if err := db.Where("sync_1c_code = ?", *ref.Code).First(&dept).Error; err == nil {
			return &dept, nil
		}
	}
	if err := db.Where("name = ?", ref.Name).First(&dept).Error; err != nil {
		return nil, err
	}
	return &dept, nil
}

// ResolveGroup mencari atau membuat grup akademik di bawah kafedra.
func ResolveGroup(db *gorm.DB, ref onecDTO.Ref, departmentID *uuid.UUID) (*model.GroupModel, error) {
	if strings.TrimSpace(ref.Name) == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Nama grup kosong")
	}

	var group model.GroupModel

	if ref.HasCode() {
		err := db.Where("sync_1c_code = ?", *ref.Code).First(&group).Error
		if err == nil {
			return &group, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	err := scopeNaturalKey(db, ref.Name, departmentID).First(&group).Error
	if err == nil {
		return &group, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	group = model.GroupModel{Name: ref.Name, DepartmentID: departmentID, SyncCode: ref.Code}
	if err := db.Create(&group).Error; err != nil {
		if isUniqueViolation(err) {
			var again model.GroupModel
			if ref.HasCode() {
				if e := db.Where("sync_1c_code = ?", *ref.Code).First(&again).Error; e == nil {
					return &again, nil
				}
			}
			if e := scopeNaturalKey(db, ref.Name, departmentID).First(&again).Error; e != nil {
				return nil, e
			}
			return &again, nil
		}
		return nil, err
	}
	return &group, nil
}

// ResolveDiscipline mencari atau membuat дисциплину di bawah kafedra.
func ResolveDiscipline(db *gorm.DB, ref onecDTO.Ref, departmentID *uuid.UUID) (*model.DisciplineModel, error) {
	if strings.TrimSpace(ref.Name) == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Nama disiplin kosong")
	}

	var disc model.DisciplineModel

	if ref.HasCode() {
		err := db.Where("sync_1c_code = ?", *ref.Code).First(&disc).Error
		if err == nil {
			return &disc, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	err := scopeNaturalKey(db, ref.Name, departmentID).First(&disc).Error
	if err == nil {
		return &disc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	disc = model.DisciplineModel{Name: ref.Name, DepartmentID: departmentID, SyncCode: ref.Code}
	if err := db.Create(&disc).Error; err != nil {
		if isUniqueViolation(err) {
			var again model.DisciplineModel
			if ref.HasCode() {
				if e := db.Where("sync_1c_code = ?", *ref.Code).First(&again).Error; e == nil {
					return &again, nil
				}
			}
			if e := scopeNaturalKey(db, ref.Name, departmentID).First(&again).Error; e != nil {
				return nil, e
			}
			return &again, nil
		}
		return nil, err
	}
	return &disc, nil
}

// scopeNaturalKey membangun WHERE natural key (name + department, NULL-aware).
func scopeNaturalKey(db *gorm.DB, name string, departmentID *uuid.UUID) *gorm.DB {
	q := db.Where("name = ?", name)
	if departmentID != nil {
		return q.Where("department_id = ?", *departmentID)
	}
	return q.Where("department_id IS NULL")
}
