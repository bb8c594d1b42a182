package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitfantasy/nimo-bom/internal/config"
	"github.com/bitfantasy/nimo-bom/internal/middleware"
	"github.com/bitfantasy/nimo-bom/internal/plm/handler"
	"github.com/bitfantasy/nimo-bom/internal/plm/repository"
	"github.com/bitfantasy/nimo-bom/internal/plm/service"
	"github.com/bitfantasy/nimo-bom/internal/plm/sse"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// readiness 就绪检查依赖
type readiness struct {
	db  *gorm.DB
	rdb *redis.Client
}

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting nimo-bom service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("storage", cfg.Storage.Driver),
	)

	// 初始化存储
	var (
		repos *repository.Repositories
		ready readiness
	)
	if cfg.Storage.Driver == "memory" {
		repos = repository.NewMemoryRepositories()
		zapLogger.Warn("Using in-memory storage, documents are lost on restart")
	} else {
		db, err := initDatabase(cfg.Database)
		if err != nil {
			zapLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := repository.AutoMigrate(db); err != nil {
			zapLogger.Fatal("AutoMigrate bom tables failed", zap.Error(err))
		}
		repos = repository.NewRepositories(db)
		ready.db = db
	}

	// 汇总缓存
	var cache repository.SummaryCache
	if cfg.Redis.Enabled {
		rdb := initRedis(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("Redis not reachable, summary cache disabled", zap.Error(err))
		} else {
			cache = repository.NewRedisSummaryCache(rdb, cfg.Redis.TTL)
			ready.rdb = rdb
		}
		cancel()
	}

	// 导出归档
	var archiver service.ExportArchiver
	if cfg.MinIO.Enabled {
		a, err := service.NewMinIOArchiver(cfg.MinIO)
		if err != nil {
			zapLogger.Warn("MinIO archiver disabled", zap.Error(err))
		} else {
			archiver = a
			zapLogger.Info("Export archive enabled", zap.String("bucket", cfg.MinIO.Bucket))
		}
	}

	hub := sse.NewHub(zapLogger)
	services := service.NewServices(repos, cache, archiver, hub, zapLogger)

	// 模板目录
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := services.LoadSeedFile(seedCtx, cfg.Catalog.SeedFile); err != nil {
		zapLogger.Error("Failed to seed template catalog", zap.Error(err))
	}
	seedCancel()

	handlers := handler.NewHandlers(services, hub, cfg.Server.MaxUploadSize, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/sse"})))

	// 注册路由
	registerRoutes(router, handlers, cfg, ready)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // SSE 长连接不设写超时
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if ready.rdb != nil {
		ready.rdb.Close()
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func (r readiness) check(ctx context.Context) map[string]string {
	status := map[string]string{}
	if r.db != nil {
		status["database"] = "ok"
		if sqlDB, err := r.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			status["database"] = "down"
		}
	}
	if r.rdb != nil {
		status["redis"] = "ok"
		if err := r.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		}
	}
	return status
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config, ready readiness) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := ready.check(ctx)
		for _, s := range deps {
			if s != "ok" {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "dependencies": deps})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dependencies": deps})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// SSE 实时推送（支持 query param token）
		v1.GET("/sse/events", h.SSE.Stream)

		// BOM模板
		templates := v1.Group("/bom-templates")
		{
			templates.GET("", h.Template.List)
			templates.GET("/:id", h.Template.Get)
			templates.GET("/:id/flat", h.Template.Flat)
		}

		// BOM树文档
		boms := v1.Group("/boms")
		{
			boms.POST("", h.BOM.Create)
			boms.POST("/import", h.BOM.Import)
			boms.GET("", h.BOM.List)
			boms.GET("/:id", h.BOM.Get)
			boms.DELETE("/:id", h.BOM.Delete)
			boms.GET("/:id/rows", h.BOM.Rows)
			boms.GET("/:id/cost", h.BOM.Cost)
			boms.GET("/:id/compliance", h.BOM.Compliance)
			boms.GET("/:id/export", h.BOM.Export)

			// 节点操作
			boms.POST("/:id/nodes/:key/toggle", h.BOM.Toggle)
			boms.POST("/:id/nodes/:key/replace", h.BOM.Replace)
			boms.PUT("/:id/nodes/:key", h.BOM.EditPrimary)
			boms.DELETE("/:id/nodes/:key", h.BOM.DeleteSubstitute)
		}
	}
}
