//go:build integration

package sync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	academicsModel "studentchat_backend/internals/features/academics/model"
	academicsService "studentchat_backend/internals/features/academics/service"
	"studentchat_backend/internals/features/broadcast"
	chatModel "studentchat_backend/internals/features/chats/model"
	chatService "studentchat_backend/internals/features/chats/service"
	onecClient "studentchat_backend/internals/features/onec/client"
	onecDTO "studentchat_backend/internals/features/onec/dto"
	userModel "studentchat_backend/internals/features/users/user/model"
)

// Skenario pindah grup: студент A pindah G1 → G2.
// B segrup lama + berbagi дисциплину → kontak bertahan (retain set).
// C segrup lama tanpa дисциплину bersama → kontak dilepas.
func TestSyncOnLogin_GroupMigration(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	suffix := uniqueCode()
	g1 := "РИС-20-" + suffix
	g2 := "РИС-21-" + suffix
	dept := "Кафедра ИТ " + suffix
	sharedDisc := "Базы данных " + suffix
	otherDisc := "Философия " + suffix

	mkRec := func(code, disc string) *onecDTO.StudentRecord {
		return &onecDTO.StudentRecord{
			Code:        code,
			LastName:    "Студент",
			FirstName:   code,
			Department:  onecDTO.Ref{Name: dept},
			Group:       onecDTO.Ref{Name: g1},
			Disciplines: []onecDTO.DisciplineEntry{{Ref: onecDTO.Ref{Name: disc}}},
		}
	}

	codeA, codeB, codeC := "a"+suffix, "b"+suffix, "c"+suffix
	userA, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, mkRec(codeA, sharedDisc), "ua_"+suffix, "secret123")
	require.NoError(t, err)
	userB, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, mkRec(codeB, sharedDisc), "ub_"+suffix, "secret123")
	require.NoError(t, err)
	userC, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, mkRec(codeC, otherDisc), "uc_"+suffix, "secret123")
	require.NoError(t, err)

	// Pass rekonsiliasi kontak A (seperti yang jalan tiap login) menautkan
	// B dan C sebagai kontak segrup.
	require.NoError(t, chatService.AddGroupmatesToContacts(db, log, userA.ID, g1))
	contacts, err := chatService.GetUserContacts(db, userA.ID)
	require.NoError(t, err)
	require.Contains(t, contacts, userB.ID)
	require.Contains(t, contacts, userC.ID)

	// Fake Directory: A sekarang di G2, дисциплина tetap.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/StudentsFull/"+codeA {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"success": true, "data": {
			"Код": %q,
			"Фамилия": "Студент",
			"Имя": %q,
			"Кафедра": %q,
			"Группа": %q,
			"Дисциплины": [{"Наименование": %q}]
		}}`, codeA, codeA, dept, g2, sharedDisc)
	}))
	defer srv.Close()
	oc := onecClient.New(srv.URL, "", 5*time.Second, log)

	var freshA userModel.UserModel
	require.NoError(t, db.First(&freshA, "user_id = ?", userA.ID).Error)
	require.NoError(t, SyncOnLogin(ctx, db, log, broadcast.NopBroadcaster{}, oc, &freshA))

	// Scalar terbarui + snapshot tercatat.
	require.NotNil(t, freshA.StudentGroup)
	assert.Equal(t, g2, *freshA.StudentGroup)
	assert.NotEmpty(t, freshA.SyncPayload)

	// Keluar dari chat G1, masuk chat G2.
	oldChat, err := chatService.FindGroupChat(db, g1)
	require.NoError(t, err)
	require.NotNil(t, oldChat)
	var oldP chatModel.ChatParticipantModel
	require.NoError(t, db.First(&oldP, "chat_id = ? AND user_id = ?", oldChat.ID, userA.ID).Error)
	assert.NotNil(t, oldP.LeftAt, "harus soft leave dari chat grup lama")

	newChat, err := chatService.FindGroupChat(db, g2)
	require.NoError(t, err)
	require.NotNil(t, newChat)
	var newP chatModel.ChatParticipantModel
	require.NoError(t, db.First(&newP, "chat_id = ? AND user_id = ?", newChat.ID, userA.ID).Error)
	assert.Nil(t, newP.LeftAt)

	// Kontak: B bertahan (дисциплина bersama), C dilepas.
	contacts, err = chatService.GetUserContacts(db, userA.ID)
	require.NoError(t, err)
	assert.Contains(t, contacts, userB.ID, "retain set: дисциплина bersama")
	assert.NotContains(t, contacts, userC.ID, "mantan segrup tanpa дисциплина bersama dilepas")
}

// Login ulang dengan potret grup yang sama = no-op membership: tetap satu
// chat grup aktif, satu row partisipan, tidak ada leave/join tambahan.
func TestSyncOnLogin_RepeatSameGroupIsNoOp(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	suffix := uniqueCode()
	g1 := "РИС-30-" + suffix
	g2 := "РИС-31-" + suffix
	dept := "Кафедра ИТ " + suffix
	disc := "Базы данных " + suffix
	code := "r" + suffix

	rec := &onecDTO.StudentRecord{
		Code:        code,
		LastName:    "Студент",
		FirstName:   code,
		Department:  onecDTO.Ref{Name: dept},
		Group:       onecDTO.Ref{Name: g1},
		Disciplines: []onecDTO.DisciplineEntry{{Ref: onecDTO.Ref{Name: disc}}},
	}
	user, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, rec, "rep_"+suffix, "secret123")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success": true, "data": {
			"Код": %q,
			"Фамилия": "Студент",
			"Имя": %q,
			"Кафедра": %q,
			"Группа": %q,
			"Дисциплины": [{"Наименование": %q}]
		}}`, code, code, dept, g2, disc)
	}))
	defer srv.Close()
	oc := onecClient.New(srv.URL, "", 5*time.Second, log)

	require.NoError(t, SyncOnLogin(ctx, db, log, broadcast.NopBroadcaster{}, oc, user))
	// Pass kedua dengan potret G2 yang persis sama.
	require.NoError(t, SyncOnLogin(ctx, db, log, broadcast.NopBroadcaster{}, oc, user))

	newChat, err := chatService.FindGroupChat(db, g2)
	require.NoError(t, err)
	require.NotNil(t, newChat)

	var chats int64
	require.NoError(t, db.Model(&chatModel.ChatModel{}).
		Where("chat_name = ? AND chat_type = ? AND is_active", chatService.GroupChatName(g2), chatModel.ChatTypeGroup).
		Count(&chats).Error)
	assert.EqualValues(t, 1, chats)

	var rows int64
	require.NoError(t, db.Model(&chatModel.ChatParticipantModel{}).
		Where("chat_id = ? AND user_id = ?", newChat.ID, user.ID).
		Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	var p chatModel.ChatParticipantModel
	require.NoError(t, db.First(&p, "chat_id = ? AND user_id = ?", newChat.ID, user.ID).Error)
	assert.Nil(t, p.LeftAt)

	oldChat, err := chatService.FindGroupChat(db, g1)
	require.NoError(t, err)
	require.NotNil(t, oldChat)
	var oldP chatModel.ChatParticipantModel
	require.NoError(t, db.First(&oldP, "chat_id = ? AND user_id = ?", oldChat.ID, user.ID).Error)
	assert.NotNil(t, oldP.LeftAt)
}

// Potret преподаватель menang wholesale: edge assignment yang ditanam dari
// record para студент ikut diganti saat login преподаватель, bukan ditambal.
func TestSyncOnLogin_TeacherEdgesFollowRecordWholesale(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	suffix := uniqueCode()
	dept := "Кафедра ИТ " + suffix
	keepDisc := "Базы данных " + suffix
	dropDisc := "Философия " + suffix
	tCode := "t" + suffix

	mkRec := func(code, disc string) *onecDTO.StudentRecord {
		return &onecDTO.StudentRecord{
			Code:       code,
			LastName:   "Студент",
			FirstName:  code,
			Department: onecDTO.Ref{Name: dept},
			Group:      onecDTO.Ref{Name: "РИС-40-" + suffix},
			Disciplines: []onecDTO.DisciplineEntry{{
				Ref:      onecDTO.Ref{Name: disc},
				Teachers: []onecDTO.TeacherRef{{Code: strPtr(tCode), LastName: "Иванов", FirstName: "Пётр"}},
			}},
		}
	}
	_, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, mkRec("x"+suffix, keepDisc), "tx_"+suffix, "secret123")
	require.NoError(t, err)
	_, err = RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, mkRec("y"+suffix, dropDisc), "ty_"+suffix, "secret123")
	require.NoError(t, err)

	tRec := &onecDTO.TeacherRecord{
		Code:       tCode,
		LastName:   "Иванов",
		FirstName:  "Пётр",
		Department: onecDTO.Ref{Name: dept},
		Discipline: &onecDTO.Ref{Name: keepDisc},
	}
	teacher, err := RegisterTeacher(ctx, db, log, broadcast.NopBroadcaster{}, tRec, "iv_"+suffix, "secret123")
	require.NoError(t, err)

	// Aktivasi tidak mengurangi edge hasil tanam студент.
	ids, err := academicsService.TeacherDisciplineIDs(db, teacher.ID)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/TeachersFull/"+tCode {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"success": true, "data": {
			"Код": %q,
			"Фамилия": "Иванов",
			"Имя": "Пётр",
			"Кафедра": %q,
			"Дисциплина": {"Наименование": %q}
		}}`, tCode, dept, keepDisc)
	}))
	defer srv.Close()
	oc := onecClient.New(srv.URL, "", 5*time.Second, log)

	require.NoError(t, SyncOnLogin(ctx, db, log, broadcast.NopBroadcaster{}, oc, teacher))

	ids, err = academicsService.TeacherDisciplineIDs(db, teacher.ID)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	var remaining academicsModel.DisciplineModel
	require.NoError(t, db.First(&remaining, "discipline_id = ?", ids[0]).Error)
	assert.Equal(t, keepDisc, remaining.Name)
}

// Rename grup yang cuma beda kapital/spasi bukan pindah grup: tanpa
// soft-leave, tanpa chat grup kedua dengan ejaan baru.
func TestSyncOnLogin_GroupRenameCaseOnlyKeepsChat(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	suffix := uniqueCode()
	g1 := "РИС-50-" + suffix
	variant := " рис-50-" + suffix + " "
	dept := "Кафедра ИТ " + suffix
	disc := "Базы данных " + suffix
	code := "cs" + suffix

	rec := &onecDTO.StudentRecord{
		Code:        code,
		LastName:    "Студент",
		FirstName:   code,
		Department:  onecDTO.Ref{Name: dept},
		Group:       onecDTO.Ref{Name: g1},
		Disciplines: []onecDTO.DisciplineEntry{{Ref: onecDTO.Ref{Name: disc}}},
	}
	user, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, rec, "cs_"+suffix, "secret123")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"success": true, "data": {
			"Код": %q,
			"Фамилия": "Студент",
			"Имя": %q,
			"Кафедра": %q,
			"Группа": %q,
			"Дисциплины": [{"Наименование": %q}]
		}}`, code, code, dept, variant, disc)
	}))
	defer srv.Close()
	oc := onecClient.New(srv.URL, "", 5*time.Second, log)

	require.NoError(t, SyncOnLogin(ctx, db, log, broadcast.NopBroadcaster{}, oc, user))

	// Tetap member chat grup lama.
	oldChat, err := chatService.FindGroupChat(db, g1)
	require.NoError(t, err)
	require.NotNil(t, oldChat)
	var p chatModel.ChatParticipantModel
	require.NoError(t, db.First(&p, "chat_id = ? AND user_id = ?", oldChat.ID, user.ID).Error)
	assert.Nil(t, p.LeftAt)

	// Tidak ada chat grup baru dengan ejaan varian.
	ghost, err := chatService.FindGroupChat(db, strings.TrimSpace(variant))
	require.NoError(t, err)
	assert.Nil(t, ghost)

	// Ejaan segar (di-trim) tetap tersimpan di profil.
	require.NotNil(t, user.StudentGroup)
	assert.Equal(t, strings.TrimSpace(variant), *user.StudentGroup)
}

// 1C mati total → login sync tidak menyentuh data dan tidak error.
func TestSyncOnLogin_FetchFailureSwallowed(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()
	ctx := context.Background()

	suffix := uniqueCode()
	rec := studentRecord(suffix, "РИС-"+suffix, "Кафедра ИТ "+suffix, "t"+suffix)
	user, err := RegisterStudent(ctx, db, log, broadcast.NopBroadcaster{}, rec, "down_"+suffix, "secret123")
	require.NoError(t, err)

	oc := onecClient.New("http://127.0.0.1:1", "", 500*time.Millisecond, log)

	before := *user
	require.NoError(t, SyncOnLogin(ctx, db, log, broadcast.NopBroadcaster{}, oc, user))
	assert.Equal(t, before.StudentGroup, user.StudentGroup)
	assert.Equal(t, before.SyncedAt, user.SyncedAt)
}

// Akun tanpa kode 1C (admin lokal) dilewati tanpa request keluar.
func TestSyncOnLogin_SkipsLocalAccounts(t *testing.T) {
	db := testDB(t)
	log := zap.NewNop()

	uname := "admin_" + uniqueCode()
	admin := userModel.UserModel{
		Username:     &uname,
		PasswordHash: "x",
		FirstName:    "Админ",
		LastName:     "Локальный",
		Role:         userModel.RoleAdmin,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&admin).Error)

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	oc := onecClient.New(srv.URL, "", time.Second, log)

	require.NoError(t, SyncOnLogin(context.Background(), db, log, broadcast.NopBroadcaster{}, oc, &admin))
	assert.False(t, called)
}
