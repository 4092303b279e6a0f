package model

import (
	"time"

	"github.com/google/uuid"
)

/* ==========================
   Edge tables: enrollment (студент↔дисциплина) dan
   assignment (преподаватель↔дисциплина). Composite PK —
   satu edge per pasangan, tanpa surrogate id.
========================== */

type StudentDisciplineModel struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	DisciplineID uuid.UUID `gorm:"column:discipline_id;type:uuid;primaryKey" json:"discipline_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (StudentDisciplineModel) TableName() string {
	return "student_disciplines"
}

type TeacherDisciplineModel struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	DisciplineID uuid.UUID `gorm:"column:discipline_id;type:uuid;primaryKey" json:"discipline_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (TeacherDisciplineModel) TableName() string {
	return "teacher_disciplines"
}
