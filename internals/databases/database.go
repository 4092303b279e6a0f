package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	academicsModel "studentchat_backend/internals/features/academics/model"
	chatModel "studentchat_backend/internals/features/chats/model"
	userModel "studentchat_backend/internals/features/users/user/model"
)

var DB *gorm.DB

func ConnectDB() {
	log.Println("🔌 Koneksi ke PostgreSQL...")

	sslmode := getenv("DB_SSLMODE", "require")
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=studentchat&options=-c statement_timeout=3000",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_NAME"),
		sslmode,
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // 👍 aman untuk PgBouncer (transaction pooling)
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("❌ Gagal konek DB: %v", err)
	}
	DB = db
	log.Println("✅ DB connected.")
}

// Migrate memastikan tabel inti + unique index natural key tersedia.
// Resolver mengandalkan constraint ini untuk menangkal race find-or-create.
func Migrate() {
	err := DB.AutoMigrate(
		&userModel.UserModel{},
		&academicsModel.DepartmentModel{},
		&academicsModel.GroupModel{},
		&academicsModel.DisciplineModel{},
		&academicsModel.StudentDisciplineModel{},
		&academicsModel.TeacherDisciplineModel{},
		&chatModel.ChatModel{},
		&chatModel.ChatParticipantModel{},
	)
	if err != nil {
		log.Fatalf("❌ AutoMigrate gagal: %v", err)
	}

	if err := EnsurePartialIndexes(DB); err != nil {
		log.Fatalf("❌ Partial index gagal: %v", err)
	}

	log.Println("✅ Skema DB sinkron.")
}

// EnsurePartialIndexes membuat unique index yang AutoMigrate tidak bisa
// deklarasikan lewat tag: singleton chat grup per nama, dan natural key
// grup/дисциплина tanpa kafedra (Postgres menganggap NULL saling beda,
// jadi composite index name+department_id tidak mengikat row ber-NULL).
func EnsurePartialIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_chats_group_name
			ON chats (chat_name) WHERE chat_type = 'group' AND is_active`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_groups_name_no_department
			ON groups (name) WHERE department_id IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_disciplines_name_no_department
			ON disciplines (name) WHERE department_id IS NULL`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func TunePool() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("pool tune err: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func WarmUpQueries() {
	// ping ringan supaya pool keisi sebelum traffic masuk
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := ping(); err != nil {
			log.Printf("warm-up ping err: %v", err)
		}
	}()
}

func ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
