package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-callcenter/internal/config"
	"wisefido-callcenter/internal/database"
	httpapi "wisefido-callcenter/internal/http"
	"wisefido-callcenter/internal/logger"
	"wisefido-callcenter/internal/repository"
	"wisefido-callcenter/internal/service"
	"wisefido-callcenter/internal/store"
	"wisefido-callcenter/internal/ws"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-callcenter")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Redis：token 校验结果缓存（不可用时禁用缓存，认证请求直达认证服务）
	var kv store.KV
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, token cache disabled", zap.Error(err))
	} else {
		kv = store.NewRedisKV(redisClient)
	}

	verifier := service.NewAuthClient(cfg.Auth.BaseURL, cfg.Auth.Timeout, kv, cfg.Auth.CacheTTL, log)

	// 存储：DB 不可用时回落内存 repo 支持本地联测
	var (
		db        *sql.DB
		callsRepo repository.CallsRepository
		notifRepo repository.NotificationsRepository
		usersRepo repository.UsersRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for wisefido-callcenter")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		callsRepo = repository.NewPostgresCallsRepository(db)
		notifRepo = repository.NewPostgresNotificationsRepository(db)
		usersRepo = repository.NewPostgresUsersRepository(db)
		defer database.Close(db)
	} else {
		callsRepo = repository.NewMemoryCallsRepo()
		notifRepo = repository.NewMemoryNotificationsRepo()
		usersRepo = repository.NewMemoryUsersRepo()
	}

	bus := service.NewEventBus(256, log)
	hub := ws.NewHub(log)

	notificationService := service.NewNotificationService(notifRepo, bus, cfg.Notify.Retention, cfg.Notify.SweepInterval, log)
	callService := service.NewCallService(callsRepo, usersRepo, notificationService, bus, log)

	// 后台循环：事件分发 + 通知周期清理
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx, hub)
	go notificationService.Run(ctx)

	router := httpapi.NewRouter(log)
	router.RegisterCallRoutes(httpapi.NewCallHandler(callService, verifier, log))
	router.RegisterNotificationRoutes(httpapi.NewNotificationHandler(notificationService, verifier, log))
	router.RegisterInternalRoutes(httpapi.NewInternalHandler(callService, hub, log))
	router.RegisterWSRoute(ws.NewHandler(hub, verifier, log))

	server := service.NewServer(cfg.HTTP.Addr, router, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
