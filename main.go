package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"studentchat_backend/internals/configs"
	database "studentchat_backend/internals/databases"
	"studentchat_backend/internals/features/broadcast"
	onecClient "studentchat_backend/internals/features/onec/client"
	helper "studentchat_backend/internals/helpers"
	middlewares "studentchat_backend/internals/middlewares"
	routes "studentchat_backend/internals/route"
)

func main() {
	configs.LoadEnv()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("zap init: %v", err)
	}
	defer logger.Sync()

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return helper.FromFiberError(c, err)
		},
	})

	// ⚙️ middleware dasar + performa
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault})) // gzip
	app.Use(etag.New())                                                 // 304 caching

	// 🔎 Request-ID + timing (observability ringan)
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()
		// HTTP timeout guard — lebih longgar dari statement_timeout DB
		// karena jalur registrasi menunggu retry 1C.
		ctx, cancel := context.WithTimeout(c.Context(), 45*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		err := c.Next()
		logger.Info("request",
			zap.String("reqid", id),
			zap.String("method", c.Method()),
			zap.String("path", c.OriginalURL()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("dur", time.Since(start)))
		return err
	})

	middlewares.SetupMiddlewares(app)

	// 🔌 DB connect + pool + warm-up
	database.ConnectDB()
	database.Migrate()
	database.TunePool()
	database.WarmUpQueries()

	// 📞 Directory 1C client
	oneC := onecClient.New(configs.OneCAPIURL, configs.OneCAPIKey, configs.OneCTimeout, logger)

	// 📡 Broadcaster (Redis pub/sub untuk layer realtime; opsional)
	var bc broadcast.Broadcaster = broadcast.NopBroadcaster{}
	var redisBC *broadcast.RedisBroadcaster
	if configs.RedisAddr != "" {
		redisBC = broadcast.NewRedisBroadcaster(configs.RedisAddr, configs.RedisPassword, logger)
		bc = redisBC
		logger.Info("redis broadcaster aktif", zap.String("addr", configs.RedisAddr))
	}

	// ❤️ Health check (anti-cold start)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	// ✅ Routes
	routes.SetupRoutes(app, database.DB, logger, oneC, bc)

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 60 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// Start server non-blocking
	go func() {
		logger.Info("listening", zap.String("port", port))
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown + tutup pool DB & Redis
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	if redisBC != nil {
		_ = redisBC.Close()
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
