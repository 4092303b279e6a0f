package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	JWTSecret string

	// 1C Directory API
	OneCAPIURL  string
	OneCAPIKey  string
	OneCTimeout time.Duration

	// Redis (broadcaster pub/sub)
	RedisAddr     string
	RedisPassword string
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env tidak ditemukan, pakai ENV dari sistem")
	} else {
		log.Println("✅ .env berhasil dimuat")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	OneCAPIURL = GetEnv("ONE_C_API_URL", "http://localhost:8080/api")
	OneCAPIKey = GetEnv("ONE_C_API_KEY")
	OneCTimeout = time.Duration(GetEnvInt("ONE_C_TIMEOUT_SECONDS", 30)) * time.Second
	RedisAddr = GetEnv("REDIS_ADDR")
	RedisPassword = GetEnv("REDIS_PASSWORD")

	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET belum diset!")
	}
	if OneCAPIKey == "" {
		log.Println("⚠️ ONE_C_API_KEY kosong — request ke 1C tanpa Authorization")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
