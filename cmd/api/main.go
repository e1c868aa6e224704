package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damoang/angple-collab/internal/common"
	"github.com/damoang/angple-collab/internal/config"
	"github.com/damoang/angple-collab/internal/database"
	"github.com/damoang/angple-collab/internal/handler"
	"github.com/damoang/angple-collab/internal/middleware"
	"github.com/damoang/angple-collab/internal/migration"
	"github.com/damoang/angple-collab/internal/repository"
	"github.com/damoang/angple-collab/internal/routes"
	"github.com/damoang/angple-collab/internal/scheduler"
	"github.com/damoang/angple-collab/internal/service"
	"github.com/damoang/angple-collab/internal/ws"
	"github.com/damoang/angple-collab/pkg/cache"
	"github.com/damoang/angple-collab/pkg/jwt"
	pkglogger "github.com/damoang/angple-collab/pkg/logger"
	pkgredis "github.com/damoang/angple-collab/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// @title           Angple Collab API
// @version         1.0
// @description     Collaborative content editing: edit locks, version history and conflict-aware saves
//
// @host            localhost:8082
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

func main() {
	dotenvFiles := config.LoadDotEnv()

	// 로거 초기화
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	// 설정 로드
	configPath := config.ConfigPath(env)
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	pkglogger.SetLevel(cfg.LogLevel)
	config.LogResolved(cfg)

	// DB 연결 (락과 버전의 유일한 조정 지점이라 필수)
	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to %s", cfg.Database.Driver)
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	// Redis 연결 (lock.backend=redis 일 때만 필수)
	redisClient, err := pkgredis.NewClient(context.Background(), pkgredis.Options{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		if cfg.Lock.Backend == "redis" {
			log.Fatalf("lock.backend=redis but Redis is unreachable: %v", err)
		}
		pkglogger.Warn("Failed to connect to Redis: %v (continuing without rate limiting)", err)
		redisClient = nil
	} else {
		pkglogger.Info("Connected to Redis")
	}

	clock := common.SystemClock{}

	// Repositories
	contentRepo := repository.NewContentRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	if redisClient != nil && cfg.Versions.CacheTTL > 0 {
		versionRepo = repository.NewCachedVersionRepository(versionRepo, cache.NewService(redisClient), cfg.Versions.CacheTTL)
	}
	lockRepo := newLockRepository(cfg, db, redisClient)

	// Edit events (Redis가 있으면 인스턴스 간 전파)
	hub := ws.NewHub(redisClient)
	go hub.Run()

	// Services
	contentService := service.NewContentService(contentRepo, clock)
	lockService := service.NewLockService(lockRepo, contentRepo, clock, service.LockOptions{
		DefaultTTL: cfg.Lock.DefaultTTL,
		MaxTTL:     cfg.Lock.MaxTTL,
	}, hub)
	versionOpts := service.DefaultVersionOptions()
	versionOpts.RetryAttempts = cfg.Versions.RetryAttempts
	versionOpts.DefaultLimit = cfg.Versions.DefaultLimit
	versionOpts.MaxLimit = cfg.Versions.MaxLimit
	versionService := service.NewVersionService(versionRepo, clock, versionOpts)
	conflictDetector := service.NewConflictDetector(versionRepo)
	saveCoordinator := service.NewSaveCoordinator(lockService, versionService, conflictDetector, hub)

	// JWT Manager
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.JWT.RefreshIn)

	// Gin 라우터 생성
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.CORS.AllowOrigins)))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	router.GET("/health", healthHandler(db, redisClient))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.Setup(router, routes.Handlers{
		Content:  handler.NewContentHandler(contentService),
		Versions: handler.NewVersionHandler(versionService, saveCoordinator),
		Locks:    handler.NewLockHandler(lockService),
		Edit:     handler.NewEditHandler(conflictDetector, saveCoordinator),
		Events:   handler.NewEventHandler(hub, contentService, splitAndTrim(cfg.CORS.AllowOrigins, ",")),
	}, routes.Deps{
		JWT:         jwtManager,
		Permissions: middleware.AllowAuthenticated,
		Redis:       redisClient,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.WritesPerMinute,
			KeyPrefix:         middleware.DefaultRateLimitConfig().KeyPrefix,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Housekeeping (저장소 정리용, 정확성과 무관)
	var sched *scheduler.Scheduler
	if cfg.Housekeeping.Enabled {
		sched = scheduler.NewScheduler(0)
		scheduler.RegisterHousekeeping(sched, lockService, versionService, scheduler.HousekeepingConfig{
			Interval:       cfg.Housekeeping.Interval,
			RetainVersions: cfg.Housekeeping.RetainVersions,
			BatchSize:      cfg.Housekeeping.BatchSize,
		})
		sched.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	pkglogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		pkglogger.Error("Server shutdown: %v", err)
	}
	if sched != nil {
		sched.Stop()
	}
	hub.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newLockRepository picks the store behind edit locks
func newLockRepository(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) repository.LockRepository {
	if cfg.Lock.Backend == "redis" {
		pkglogger.Info("Edit locks backed by Redis")
		return repository.NewRedisLockRepository(redisClient)
	}
	return repository.NewLockRepository(db)
}

func corsConfig(allowOrigins string) cors.Config {
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	return cors.Config{
		AllowOrigins:     splitAndTrim(allowOrigins, ","),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           12 * time.Hour,
	}
}

// healthHandler reports store reachability
func healthHandler(db *gorm.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "database": "ok"}
		code := http.StatusOK

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status["redis"] = err.Error()
			} else {
				status["redis"] = "ok"
			}
		}

		c.JSON(code, status)
	}
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
