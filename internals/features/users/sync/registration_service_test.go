//go:build integration

package sync

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	database "studentchat_backend/internals/databases"
	academicsModel "studentchat_backend/internals/features/academics/model"
	academicsService "studentchat_backend/internals/features/academics/service"
	"studentchat_backend/internals/features/broadcast"
	chatModel "studentchat_backend/internals/features/chats/model"
	chatService "studentchat_backend/internals/features/chats/service"
	onecDTO "studentchat_backend/internals/features/onec/dto"
	userModel "studentchat_backend/internals/features/users/user/model"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN kosong — lewati test integrasi")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Skipf("DB tidak terjangkau: %v", err)
	}
	require.NoError(t, db.AutoMigrate(
		&userModel.UserModel{},
		&academicsModel.DepartmentModel{},
		&academicsModel.GroupModel{},
		&academicsModel.DisciplineModel{},
		&academicsModel.StudentDisciplineModel{},
		&academicsModel.TeacherDisciplineModel{},
		&chatModel.ChatModel{},
		&chatModel.ChatParticipantModel{},
	))
	require.NoError(t, database.EnsurePartialIndexes(db))
	return db
}

func uniqueCode() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

func strPtr(s string) *string { return &s }

func studentRecord(code, group, dept string, teacherCode string) *onecDTO.StudentRecord {
	return &onecDTO.StudentRecord{
		Code:       code,
		LastName:   "Петрова",
		FirstName:  "Анна",
		MiddleName: "Игоревна",
		Department: onecDTO.Ref{Name: dept},
		Group:      onecDTO.Ref{Name: group},
		Disciplines: []onecDTO.DisciplineEntry{
			{
				Ref: onecDTO.Ref{Name: "Базы данных " + code},
				Teachers: []onecDTO.TeacherRef{
					{Code: strPtr(teacherCode), LastName: "Иванов", FirstName: "Пётр"},
				},
			},
			{Ref: onecDTO.Ref{Name: "Философия " + code}},
		},
	}
}

func TestRegisterStudent_FullScenario(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	code := uniqueCode()
	teacherCode := "t" + code
	group := "РИС-" + code
	dept := "Кафедра ИТ " + code
	rec := studentRecord(code, group, dept, teacherCode)

	user, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, rec, "anna_"+code, "secret123")
	require.NoError(t, err)
	require.NotNil(t, user.Username)
	assert.True(t, user.IsActive)
	require.NotNil(t, user.SyncCode)
	assert.Equal(t, code, *user.SyncCode)
	assert.NotNil(t, user.SyncedAt)
	assert.NotEmpty(t, user.SyncPayload)

	// Edge set студент = dua дисциплины dari record.
	ids, err := academicsService.StudentDisciplineIDs(db, user.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	// Placeholder преподаватель dibuat pasif dengan edge assignment.
	var teacher userModel.UserModel
	require.NoError(t, db.First(&teacher, "sync_1c_id = ?", teacherCode).Error)
	assert.True(t, teacher.IsPlaceholder())
	assert.False(t, teacher.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(teacher.PasswordHash), []byte("temp_"+teacherCode)))

	tIDs, err := academicsService.TeacherDisciplineIDs(db, teacher.ID)
	require.NoError(t, err)
	assert.Len(t, tIDs, 1)

	// Member chat grup.
	chat, err := chatService.FindGroupChat(db, group)
	require.NoError(t, err)
	require.NotNil(t, chat)
	var p chatModel.ChatParticipantModel
	require.NoError(t, db.First(&p, "chat_id = ? AND user_id = ?", chat.ID, user.ID).Error)
	assert.Nil(t, p.LeftAt)
}

func TestRegisterStudent_SecondClaimRejected(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	code := uniqueCode()
	rec := studentRecord(code, "РИС-"+code, "Кафедра ИТ "+code, "t"+code)

	_, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, rec, "first_"+code, "secret123")
	require.NoError(t, err)

	err = ensureCodeUnclaimed(db, code)
	assert.Error(t, err, "kode yang sudah diklaim harus ditolak")
}

func TestRegisterTeacher_ActivatesPlaceholderInPlace(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	// Registrasi студент menanam placeholder untuk преподаватель ini.
	code := uniqueCode()
	teacherCode := "t" + code
	rec := studentRecord(code, "РИС-"+code, "Кафедра ИТ "+code, teacherCode)
	_, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, rec, "stud_"+code, "secret123")
	require.NoError(t, err)

	var placeholder userModel.UserModel
	require.NoError(t, db.First(&placeholder, "sync_1c_id = ?", teacherCode).Error)

	tRec := &onecDTO.TeacherRecord{
		Code:       teacherCode,
		LastName:   "Иванов",
		FirstName:  "Пётр",
		Department: onecDTO.Ref{Name: "Кафедра ИТ " + code},
		Discipline: &onecDTO.Ref{Name: "Базы данных " + code},
	}
	teacher, err := RegisterTeacher(ctx, db, log, broadcast.NopBroadcaster{}, tRec, "ivanov_"+code, "secret123")
	require.NoError(t, err)

	// Aktivasi in place: user_id placeholder dipertahankan.
	assert.Equal(t, placeholder.ID, teacher.ID)
	assert.True(t, teacher.IsActive)
	assert.False(t, teacher.IsPlaceholder())

	// Edge assignment yang ditanam registrasi студент tetap ada.
	tIDs, err := academicsService.TeacherDisciplineIDs(db, teacher.ID)
	require.NoError(t, err)
	assert.Len(t, tIDs, 1)

	// Row user tidak diduplikasi.
	var n int64
	require.NoError(t, db.Model(&userModel.UserModel{}).Where("sync_1c_id = ?", teacherCode).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestRegisterStudent_UsernameTaken(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	codeA := uniqueCode()
	recA := studentRecord(codeA, "РИС-"+codeA, "Кафедра ИТ "+codeA, "t"+codeA)
	_, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, recA, "taken_"+codeA, "secret123")
	require.NoError(t, err)

	codeB := uniqueCode()
	recB := studentRecord(codeB, "РИС-"+codeB, "Кафедра ИТ "+codeB, "t"+codeB)
	_, err = RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, recB, "taken_"+codeA, "secret123")
	assert.Error(t, err)
}
