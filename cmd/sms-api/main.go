package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sms-storage/api/swagger"
	"github.com/noah-isme/sms-storage/internal/app"
	"github.com/noah-isme/sms-storage/internal/handler"
	"github.com/noah-isme/sms-storage/internal/middleware"
	"github.com/noah-isme/sms-storage/internal/service"
	"github.com/noah-isme/sms-storage/pkg/config"
	"github.com/noah-isme/sms-storage/pkg/logger"
	corsmiddleware "github.com/noah-isme/sms-storage/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sms-storage/pkg/middleware/requestid"
)

// @title Student Management Storage API
// @version 1.0.0
// @description Student, attendance and storage-mode endpoints over the local and cloud backends
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := app.Build(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build storage", "error", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logr.Sugar().Warnw("shutdown", "error", err)
		}
	}()

	if err := stack.Adapter.Init(ctx); err != nil {
		logr.Sugar().Fatalw("failed to initialize storage", "error", err)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(stack.Metrics))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	students := service.NewStudentService(stack.Adapter, nil, logr)
	auth := service.NewAuthService(stack.Adapter, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Auth:       handler.NewAuthHandler(auth),
		Students:   handler.NewStudentHandler(students, service.NewRosterService(students, logr)),
		Attendance: handler.NewAttendanceHandler(stack.Adapter, service.NewExportService(stack.Adapter, logr, nil, nil)),
		Storage:    handler.NewStorageHandler(stack.Adapter),
		Settings:   handler.NewSettingsHandler(stack.Adapter),
		Metrics:    handler.NewMetricsHandler(stack.Metrics, stack.Adapter),
	}, auth, cfg.Metrics.Enabled)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "mode", stack.Adapter.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
