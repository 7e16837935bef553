package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"eventbridge/internal/address"
	"eventbridge/internal/catalog"
	"eventbridge/internal/client/icsfeed"
	"eventbridge/internal/client/mobilizon"
	"eventbridge/internal/client/nominatim"
	"eventbridge/internal/config"
	cronrunner "eventbridge/internal/cron"
	"eventbridge/internal/db"
	"eventbridge/internal/handler"
	"eventbridge/internal/ingest"
	"eventbridge/internal/logger"
	"eventbridge/internal/models"
	gormrepository "eventbridge/internal/repository/gorm"
	"eventbridge/internal/source"
)

func main() {
	cfgPath := os.Getenv("EB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("EB_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	// Kernel catalogs are fatal when malformed: nothing is uploaded from a
	// run that cannot read its configuration.
	calendars, err := catalog.Load(cfg.Ingest.CalendarKernels, models.SourceTypeCalendar)
	if err != nil {
		logger.Fatal("calendar kernel load failed", zap.Error(err))
	}
	statics, err := catalog.Load(cfg.Ingest.StaticKernels, models.SourceTypeStatic)
	if err != nil {
		logger.Fatal("static kernel load failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	geoHTTP := &http.Client{Timeout: cfg.Geocoder.Timeout}
	geocoder := nominatim.NewClient(geoHTTP, cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent)
	resolver := &address.Resolver{Geocoder: geocoder, Logger: logger}

	feedHTTP := &http.Client{Timeout: cfg.Calendar.Timeout}
	feedClient := icsfeed.NewClient(feedHTTP, cfg.Calendar.URLTemplate)

	var publisher ingest.Publisher
	if cfg.Publisher.DryRun {
		logger.Info("dry run: events will not reach the platform")
		publisher = &ingest.DryRunPublisher{}
	} else {
		client := &mobilizon.Client{
			BaseURL:  cfg.Publisher.BaseURL,
			Email:    cfg.Publisher.Email,
			Password: cfg.Publisher.Password,
			HTTP:     &http.Client{Timeout: cfg.Publisher.Timeout},
		}
		publisher = client
	}

	runner := &ingest.Runner{
		Calendars: calendars,
		Statics:   statics,
		Repo:      store,
		Publisher: publisher,
		Calendar: &source.CalendarAdapter{
			Calendar: feedClient,
			Repo:     store,
			Resolver: resolver,
			Logger:   logger,
			Horizon:  cfg.Ingest.Horizon,
		},
		Static: &source.StaticAdapter{
			Logger:  logger,
			Horizon: cfg.Ingest.StaticHorizon,
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runIngest := func(ctx context.Context) {
		if runner.Running() {
			logger.Warn("ingestion run skipped: previous run still in progress")
			return
		}
		if client, ok := publisher.(*mobilizon.Client); ok {
			if err := client.Login(ctx); err != nil {
				logger.Error("publisher login failed", zap.Error(err))
				return
			}
		}
		if err := runner.Run(ctx); err != nil {
			if errors.Is(err, ingest.ErrRunInProgress) {
				logger.Warn("ingestion run skipped: previous run still in progress")
				return
			}
			logger.Error("ingestion run failed", zap.Error(err))
			return
		}
		logger.Info("ingestion run complete")
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add("ingest", cfg.Cron.Ingest, runIngest); err != nil {
			logger.Warn("cron register ingest failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	recordsHandler := &handler.RecordsHandler{Repo: store}
	recordsHandler.Register(engine)
	runsHandler := &handler.RunsHandler{Runner: runner, Logger: logger, BaseCtx: ctx}
	runsHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if cfg.Ingest.RunOnStart {
		runIngest(ctx)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
