package model

import (
	"time"

	"github.com/google/uuid"
)

/* ==========================
   Academic entities (kafedra / grup / дисциплина)

   Setiap entitas punya dua identitas:
   - sync_1c_code: kode dari Directory 1C (otoritatif, bisa NULL untuk
     entitas yang dibuat lokal sebelum 1C mengenalnya)
   - natural key: name (+ department untuk grup & дисциплина)
   Unique index di kedua identitas menangkal duplikasi saat dua
   rekonsiliasi balapan find-or-create.
========================== */

type DepartmentModel struct {
	ID        uuid.UUID `gorm:"column:department_id;type:uuid;default:gen_random_uuid();primaryKey" json:"department_id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uq_departments_name" json:"name"`
	SyncCode  *string   `gorm:"column:sync_1c_code;size:64;uniqueIndex:uq_departments_sync_1c_code" json:"sync_1c_code,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DepartmentModel) TableName() string {
	return "departments"
}

type GroupModel struct {
	ID           uuid.UUID  `gorm:"column:group_id;type:uuid;default:gen_random_uuid();primaryKey" json:"group_id"`
	Name         string     `gorm:"size:255;not null;uniqueIndex:uq_groups_name_department" json:"name"`
	DepartmentID *uuid.UUID `gorm:"column:department_id;type:uuid;uniqueIndex:uq_groups_name_department" json:"department_id,omitempty"`
	SyncCode     *string    `gorm:"column:sync_1c_code;size:64;uniqueIndex:uq_groups_sync_1c_code" json:"sync_1c_code,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Department *DepartmentModel `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

func (GroupModel) TableName() string {
	return "groups"
}

type DisciplineModel struct {
	ID           uuid.UUID  `gorm:"column:discipline_id;type:uuid;default:gen_random_uuid();primaryKey" json:"discipline_id"`
	Name         string     `gorm:"size:255;not null;uniqueIndex:uq_disciplines_name_department" json:"name"`
	DepartmentID *uuid.UUID `gorm:"column:department_id;type:uuid;uniqueIndex:uq_disciplines_name_department" json:"department_id,omitempty"`
	SyncCode     *string    `gorm:"column:sync_1c_code;size:64;uniqueIndex:uq_disciplines_sync_1c_code" json:"sync_1c_code,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Department *DepartmentModel `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
}

func (DisciplineModel) TableName() string {
	return "disciplines"
}
