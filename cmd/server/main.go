// Package main runs the Zoom recordings and room video HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/amelidiaz19/zoom-api/config"
	"github.com/amelidiaz19/zoom-api/internal/duplicates"
	"github.com/amelidiaz19/zoom-api/internal/meetings"
	"github.com/amelidiaz19/zoom-api/internal/middleware"
	"github.com/amelidiaz19/zoom-api/internal/probe"
	"github.com/amelidiaz19/zoom-api/internal/recordings"
	"github.com/amelidiaz19/zoom-api/internal/salas"
	"github.com/amelidiaz19/zoom-api/internal/uploads"
	"github.com/amelidiaz19/zoom-api/internal/zoomapi"
	"github.com/amelidiaz19/zoom-api/pkg/database"
	"github.com/amelidiaz19/zoom-api/pkg/metrics"
	"github.com/amelidiaz19/zoom-api/pkg/redis"
	"github.com/amelidiaz19/zoom-api/pkg/response"
	"github.com/amelidiaz19/zoom-api/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.NewMySQL(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("primary database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Courses.DSN(), logger)
	if err != nil {
		logger.Fatal("courses database", zap.Error(err))
	}
	defer pool.Close()

	objects, err := storage.NewS3(ctx, storage.S3Config{
		Endpoint:        cfg.R2.Endpoint,
		Region:          cfg.R2.Region,
		AccessKeyID:     cfg.R2.AccessKeyID,
		SecretAccessKey: cfg.R2.SecretKey,
		Bucket:          cfg.R2.Bucket,
		PublicBaseURL:   cfg.R2.PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Fatal("object store", zap.Error(err))
	}

	var locker recordings.Locker = redis.NopLocker{}
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		locker = rdb.Locker(cfg.Redis.LockTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, recording name allocation is not locked across instances")
	}

	m := metrics.New()
	loc := cfg.Locale.Location()

	zoom := zoomapi.NewClient(zoomapi.Config{
		AccountID:    cfg.Zoom.AccountID,
		ClientID:     cfg.Zoom.ClientID,
		ClientSecret: cfg.Zoom.ClientSecret,
		BaseURL:      cfg.Zoom.APIURL,
		AuthURL:      cfg.Zoom.AuthURL,
	}, logger)

	// Meetings
	meetingRepo := meetings.NewRepository(db)
	meetingHandler := meetings.NewHandler(meetingRepo, zoom, meetings.NewSDKSigner(cfg.Zoom.SDKKey, cfg.Zoom.SDKSecret), loc, logger)

	// Rooms
	salaRepo := salas.NewRepository(pool)
	salaHandler := salas.NewHandler(salaRepo, logger)

	// Recordings
	recordingRepo := recordings.NewRepository(db)
	pipeline := recordings.NewPipeline(meetingRepo, recordingRepo, salaRepo, zoom, objects, locker, cfg.Folders.Media, m, logger)
	recordingHandler := recordings.NewHandler(pipeline, recordingRepo, logger)
	webhookHandler := recordings.NewWebhookHandler(recordings.NewSignatureValidator(cfg.Zoom.WebhookSecret), pipeline, logger)

	// Duplicate reconciliation
	reports := duplicates.NewReports(objects, cfg.Folders.ReportsWrite, cfg.Folders.ReportsRead)
	prober := probe.NewProber(cfg.Probe.FFprobePath, cfg.Probe.Timeout, m, logger)
	engine := duplicates.NewEngine(salaRepo, prober, objects, reports, duplicates.Config{
		MediaFolder:  cfg.Folders.Media,
		Location:     loc,
		DownloadBase: cfg.Server.APIPrefix + "/sala/reportes",
	}, m, logger)
	duplicateHandler := duplicates.NewHandler(engine, reports, logger)

	// Uploads
	uploadHandler := uploads.NewHandler(objects, cfg.Folders.Media, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(m.Middleware())

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", m.Handler())

	api := router.Group(cfg.Server.APIPrefix)
	{
		// Zoom
		api.GET("/zoom/token", meetingHandler.Token)
		api.POST("/zoom/create", meetingHandler.Create)
		api.GET("/zoom/list", meetingHandler.List)
		api.POST("/zoom/unirse", meetingHandler.Join)
		api.POST("/zoom/webhook", webhookHandler.Handle)
		api.POST("/zoom/process-recording", recordingHandler.Process)
		api.GET("/zoom/recordings/:id", recordingHandler.ListByMeeting)

		// Rooms
		api.GET("/sala/:id/videos", salaHandler.ListVideos)
		api.POST("/sala/asignar", salaHandler.Assign)
		api.POST("/sala/asignar-multiple", salaHandler.AssignMultiple)
		api.PUT("/sala/:id/zoom", salaHandler.PatchZoom)
		api.DELETE("/sala/adjunto/:id", salaHandler.DeleteAttachment)
		api.POST("/sala/duplicados/eliminar", duplicateHandler.DeleteDuplicates)
		api.GET("/sala/reportes", duplicateHandler.ListReports)
		api.GET("/sala/reportes/:nombre", duplicateHandler.DownloadReport)

		// Uploads
		api.POST("/upload/mp4", uploadHandler.Upload)
		api.DELETE("/upload/mp4/:nombreArchivo", uploadHandler.Delete)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("prefix", cfg.Server.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
