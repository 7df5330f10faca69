package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/seu-repo/voz-visible/internal/adapter/cache"
	"github.com/seu-repo/voz-visible/internal/adapter/detector"
	"github.com/seu-repo/voz-visible/internal/adapter/grpc/server"
	"github.com/seu-repo/voz-visible/internal/adapter/http/fiber/handlers"
	"github.com/seu-repo/voz-visible/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/voz-visible/internal/adapter/onnx"
	"github.com/seu-repo/voz-visible/internal/adapter/queue"
	"github.com/seu-repo/voz-visible/internal/adapter/storage/flatfile"
	"github.com/seu-repo/voz-visible/internal/adapter/storage/postgres"
	"github.com/seu-repo/voz-visible/internal/adapter/tts"
	"github.com/seu-repo/voz-visible/internal/adapter/vault"
	wsAdapter "github.com/seu-repo/voz-visible/internal/adapter/websocket"
	"github.com/seu-repo/voz-visible/internal/observability/telemetry"
	"github.com/seu-repo/voz-visible/internal/ports"
	"github.com/seu-repo/voz-visible/internal/service/audiocache"
	"github.com/seu-repo/voz-visible/internal/service/auth"
	"github.com/seu-repo/voz-visible/internal/service/classifier"
	"github.com/seu-repo/voz-visible/internal/service/features"
	"github.com/seu-repo/voz-visible/internal/service/health"
	"github.com/seu-repo/voz-visible/internal/service/ledger"
	"github.com/seu-repo/voz-visible/internal/service/prediction"
	"github.com/seu-repo/voz-visible/pkg/config"
)

const serviceName = "voz-visible"

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// 2. Initialize Logger
	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting Voz Visible",
		zap.String("service", serviceName),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// 3. Secrets from Vault
	if cfg.Vault.Enabled {
		sm, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token, cfg.Vault.SecretPath, logger)
		if err != nil {
			logger.Fatal("Failed to create vault client", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = sm.Apply(ctx, cfg)
		cancel()
		if err != nil {
			logger.Fatal("Failed to load secrets from vault", zap.Error(err))
		}
	}

	// 4. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(cfg.OpenTelemetry.ServiceName, cfg.App.Version, cfg.OpenTelemetry.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 5. PostgreSQL (structured translation ledger)
	var (
		db        *gorm.DB
		repo      ports.TranslationRepository
		healthCfg = &health.Config{Version: cfg.App.Version}
	)
	if cfg.Database.URL != "" {
		db, err = postgres.NewConnection(cfg.Database.URL, postgres.PoolConfig{
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			// the ledger degrades instead of blocking predictions
			logger.Error("Database unavailable, structured ledger disabled", zap.Error(err))
		} else {
			defer postgres.Close(db)
			if cfg.Database.AutoMigrate {
				if err := postgres.RunMigrations(db); err != nil {
					logger.Fatal("Failed to run migrations", zap.Error(err))
				}
			}
			repo = postgres.NewTranslationRepository(db, logger)
			if sqlDB, err := db.DB(); err == nil {
				healthCfg.DB = sqlDB
			}
		}
	} else {
		logger.Warn("database.url not set, structured ledger disabled")
	}

	// 6. Redis
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = cache.NewRedisClient(cfg.Redis.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer rdb.Close()
		healthCfg.Redis = rdb
	}

	// 7. Message Queue (translation events)
	messageQueue, err := queue.New(cfg.Queue.Driver, cfg.Queue.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	if messageQueue != nil {
		defer messageQueue.Close()
	}

	// 8. Sign classifier
	var model ports.Classifier
	if desc, err := onnx.LoadDescriptor(cfg.Model.DescriptorPath); err != nil {
		logger.Error("Failed to load model descriptor", zap.String("path", cfg.Model.DescriptorPath), zap.Error(err))
	} else if m, err := onnx.NewClassifier(desc, cfg.Model.RuntimeLibrary, logger); err != nil {
		logger.Error("Failed to load model", zap.String("model", desc.ModelPath), zap.Error(err))
	} else {
		defer m.Close()
		model = m
	}

	var throttle classifier.Throttle = classifier.NewGlobalThrottle(cfg.Prediction.Interval)
	var onSessionEnd func(string)
	if cfg.Prediction.ThrottleMode == "session" {
		st := classifier.NewSessionThrottle(cfg.Prediction.Interval)
		throttle = st
		onSessionEnd = st.Forget
	}
	throttled := classifier.NewThrottled(model, throttle, cfg.Prediction.ClassifyTimeout, logger)

	// 9. Detector, speech synthesis and audio cache
	detectorClient := detector.NewClient(cfg.Detector.URL, cfg.Detector.MaxWidth, cfg.Detector.Timeout, logger)
	ttsClient := tts.NewClient(cfg.TTS.URL, cfg.TTS.Timeout, logger)

	probes := []ports.HealthChecker{ttsClient}
	var audioCache *audiocache.Cache
	store, err := cache.NewStore(cfg.TTS.CacheBackend, cfg.TTS.CachePath, rdb, cfg.TTS.MemoryMaxAge, logger)
	if err != nil {
		logger.Error("Audio cache unavailable, speech output disabled", zap.Error(err))
	} else {
		audioCache = audiocache.New(store, cfg.TTS.Timeout, logger)
		if hc, ok := store.(ports.HealthChecker); ok {
			probes = append(probes, hc)
		}
	}

	// 10. Translation ledger
	var flat ports.TranslationSink
	if csvSink, err := flatfile.NewCSVSink(filepath.Join(cfg.Ledger.Dir, cfg.Ledger.CSVFile), logger); err != nil {
		logger.Error("CSV ledger unavailable", zap.Error(err))
	} else {
		flat = csvSink
	}
	translationLedger := ledger.New(flat, repo, messageQueue, logger)

	// 11. Prediction orchestrator
	predictionService := prediction.NewService(prediction.Dependencies{
		Builder:     features.NewBuilder(),
		Classifier:  throttled,
		Detector:    detectorClient,
		Synthesizer: ttsClient,
		Cache:       audioCache,
		Ledger:      translationLedger,
		Probes:      probes,
	}, prediction.Config{
		Locale:        cfg.TTS.Language,
		Slow:          cfg.TTS.Slow,
		DetectTimeout: cfg.Detector.Timeout,
	}, logger)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if !predictionService.Initialize(initCtx) {
		logger.Error("Prediction service not serving, API stays up for status and history")
	}
	cancelInit()

	// 12. Auth (optional bearer identity)
	var tokens ports.TokenValidator
	if cfg.JWT.Secret != "" {
		tokens = auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, 0, logger)
	}

	// 13. Health
	healthCfg.Orchestrator = predictionService
	healthService := health.NewService(healthCfg, logger)
	healthService.RegisterProbe("tts", ttsClient, false)
	if hc, ok := store.(ports.HealthChecker); ok {
		healthService.RegisterProbe("audio_cache", hc, false)
	}

	// 14. Live translation feed
	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()
	feedHub := wsAdapter.NewHub(logger)
	go feedHub.Run(appCtx)
	if messageQueue != nil {
		if err := feedHub.Relay(messageQueue, ledger.SubjectRecorded); err != nil {
			logger.Error("Failed to subscribe translation feed", zap.Error(err))
		}
	}

	// 15. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.CORS))

	health.NewFiberHandler(healthService).RegisterRoutes(app)

	// Metrics endpoint for Prometheus
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	limits := handlers.Limits{
		MinImageBytes: cfg.Limits.MinImageBytes,
		MaxImageBytes: cfg.Limits.MaxImageBytes,
		MaxTextLength: cfg.Limits.MaxTextLength,
	}
	api := app.Group("/api", middleware.OptionalAuth(tokens))
	handlers.NewPredictionHandler(predictionService, limits, logger).
		Register(api, middleware.CircuitBreaker("predict", logger))

	// WebSocket routes
	app.Use("/ws", wsAdapter.UpgradeRequired, middleware.OptionalAuth(tokens))
	cameraHandler := wsAdapter.NewCameraHandler(predictionService, wsAdapter.CameraConfig{
		Limits:  limits,
		MaxFPS:  cfg.Camera.MaxFPS,
		OnClose: onSessionEnd,
	}, logger)
	app.Get("/ws/camera", websocket.New(cameraHandler.HandleCamera))
	app.Get("/ws/translations", websocket.New(feedHub.Serve))

	// 16. gRPC health mirroring readiness
	grpcServer := server.NewGRPCServer(predictionService, logger)
	go grpcServer.Watch(appCtx, 5*time.Second)
	go func() {
		logger.Info("Starting gRPC Server", zap.Int("port", cfg.GRPC.Port))
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.Error(err))
		}
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("gRPC Server failed", zap.Error(err))
		}
	}()

	// 17. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 18. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopApp()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	grpcServer.Stop()

	logger.Info("Server exited gracefully")
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid logging.level %q: %w", level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}
