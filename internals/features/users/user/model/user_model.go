package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/* ==========================
   Roles
========================== */

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// UserModel merepresentasikan tabel users.
//
// Akun placeholder: row dengan sync_1c_id terisi tapi username NULL —
// dibuat karena entitas lain menyebut orang ini (misal преподаватель di
// daftar дисциплин seorang студент) sebelum dia registrasi sendiri.
// Saat pemiliknya registrasi, row ini diaktifkan in place, tidak diduplikasi.
type UserModel struct {
	ID           uuid.UUID      `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey" json:"user_id"`
	Username     *string        `gorm:"size:50;uniqueIndex:uq_users_username" json:"username,omitempty"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	FirstName    string         `gorm:"size:100;not null" json:"first_name"`
	LastName     string         `gorm:"size:100;not null" json:"last_name"`
	MiddleName   *string        `gorm:"size:100" json:"middle_name,omitempty"`
	Role         string         `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	Department   *string        `gorm:"size:255" json:"department,omitempty"`
	StudentGroup *string        `gorm:"column:student_group;size:255" json:"student_group,omitempty"`
	SyncCode     *string        `gorm:"column:sync_1c_id;size:64;uniqueIndex:uq_users_sync_1c_id" json:"sync_1c_id,omitempty"`
	SyncPayload  datatypes.JSON `gorm:"column:sync_1c_payload" json:"-"`
	SyncedAt     *time.Time     `gorm:"column:sync_1c_date" json:"sync_1c_date,omitempty"`
	IsActive     bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserModel) TableName() string {
	return "users"
}

// IsPlaceholder true kalau row dibuat dari referensi 1C dan pemiliknya
// belum pernah registrasi (belum punya username).
func (u *UserModel) IsPlaceholder() bool {
	return u.Username == nil || *u.Username == ""
}

// FullName untuk nama chat privat dan payload broadcast.
func (u *UserModel) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}
