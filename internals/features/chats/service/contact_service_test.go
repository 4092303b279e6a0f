//go:build integration

package service

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	database "studentchat_backend/internals/databases"
	academicsModel "studentchat_backend/internals/features/academics/model"
	chatModel "studentchat_backend/internals/features/chats/model"
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
		&chatModel.ChatModel{},
		&chatModel.ChatParticipantModel{},
	))
	require.NoError(t, database.EnsurePartialIndexes(db))
	return db
}

func makeStudent(t *testing.T, db *gorm.DB, group string) *userModel.UserModel {
	t.Helper()
	uname := fmt.Sprintf("user-%d", time.Now().UnixNano())
	u := userModel.UserModel{
		Username:     &uname,
		PasswordHash: "x",
		FirstName:    "Тест",
		LastName:     uname,
		Role:         userModel.RoleStudent,
		StudentGroup: &group,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func countOpenPrivateChats(t *testing.T, db *gorm.DB, a, b uuid.UUID) int64 {
	t.Helper()
	var n int64
	err := db.Raw(`
		SELECT COUNT(*) FROM chats c
		JOIN chat_participants cp1 ON c.chat_id = cp1.chat_id AND cp1.user_id = ? AND cp1.left_at IS NULL
		JOIN chat_participants cp2 ON c.chat_id = cp2.chat_id AND cp2.user_id = ? AND cp2.left_at IS NULL
		WHERE c.chat_type = 'private' AND c.is_active = true`, a, b).
		Scan(&n).Error
	require.NoError(t, err)
	return n
}

func TestAddContact_IdempotentSingleChat(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	group := fmt.Sprintf("ГР-%d", time.Now().UnixNano())
	u1 := makeStudent(t, db, group)
	u2 := makeStudent(t, db, group)

	for i := 0; i < 5; i++ {
		require.NoError(t, AddContact(db, log, u1.ID, u2.ID))
	}
	assert.EqualValues(t, 1, countOpenPrivateChats(t, db, u1.ID, u2.ID))
}

func TestRemoveContact_OneDirectional(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	group := fmt.Sprintf("ГР-%d", time.Now().UnixNano())
	u1 := makeStudent(t, db, group)
	u2 := makeStudent(t, db, group)

	require.NoError(t, AddContact(db, log, u1.ID, u2.ID))
	require.NoError(t, RemoveContact(db, log, u1.ID, u2.ID))

	// Sisi u1 tertutup.
	got1, err := GetUserContacts(db, u1.ID)
	require.NoError(t, err)
	assert.NotContains(t, got1, u2.ID)

	// Sisi u2 juga tidak melihat chat terbuka (syarat kontak = dua sisi open),
	// tapi row u2 belum ditandai keluar — rejoin cukup buka sisi u1 lagi.
	require.NoError(t, AddContact(db, log, u2.ID, u1.ID))
	assert.EqualValues(t, 1, countOpenPrivateChats(t, db, u1.ID, u2.ID))
}

func TestGetOrCreatePrivateChat_ReopensOldChat(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	group := fmt.Sprintf("ГР-%d", time.Now().UnixNano())
	u1 := makeStudent(t, db, group)
	u2 := makeStudent(t, db, group)

	first, err := GetOrCreatePrivateChat(db, log, u1.ID, u2.ID)
	require.NoError(t, err)

	require.NoError(t, RemoveContact(db, log, u1.ID, u2.ID))

	second, err := GetOrCreatePrivateChat(db, log, u1.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "chat lama dibuka lagi, bukan bikin baru")
}

func TestGroupChat_SingletonAndRejoin(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	group := fmt.Sprintf("РИС-%d", time.Now().UnixNano())

	chat1, err := CreateOrUpdateGroupChat(db, log, group)
	require.NoError(t, err)
	chat2, err := CreateOrUpdateGroupChat(db, log, group)
	require.NoError(t, err)
	assert.Equal(t, chat1.ID, chat2.ID)
	assert.Equal(t, "Группа "+group, chat1.Name)
	assert.Nil(t, chat1.CreatedBy, "chat grup milik sistem")

	u := makeStudent(t, db, group)
	require.NoError(t, AddUserToGroupChat(db, chat1.ID, u.ID))
	require.NoError(t, RemoveUserFromGroupChat(db, chat1.ID, u.ID))
	require.NoError(t, AddUserToGroupChat(db, chat1.ID, u.ID))

	var p chatModel.ChatParticipantModel
	require.NoError(t, db.First(&p, "chat_id = ? AND user_id = ?", chat1.ID, u.ID).Error)
	assert.Nil(t, p.LeftAt, "rejoin membuka lagi row yang sama")
	assert.Equal(t, chatModel.ParticipantRoleMember, p.Role)
}

func TestFindStudentsByGroup_OnlyActiveStudents(t *testing.T) {
	db := testDB(t)
	group := fmt.Sprintf("ГР-%d", time.Now().UnixNano())
	u1 := makeStudent(t, db, group)
	u2 := makeStudent(t, db, group)

	inactive := makeStudent(t, db, group)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	students, err := FindStudentsByGroup(db, group)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(students))
	for i := range students {
		ids = append(ids, students[i].ID)
	}
	assert.Contains(t, ids, u1.ID)
	assert.Contains(t, ids, u2.ID)
	assert.NotContains(t, ids, inactive.ID)
}
