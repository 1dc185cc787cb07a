package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/client"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/client/messageservice"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/client/userservice"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/database"
	pushHandler "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/handler/http/push"
	videoHandler "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/handler/http/video"
	wsHandler "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/handler/ws"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/middleware"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/repository/cockroach"
	redisRepo "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/repository/redis"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/callid"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/callurl"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/notification"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/room"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/statistics"
	videoService "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/video"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/config"
	appctx "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/context"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/jwt"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/metrics"
)

const (
	dbConnectAttempts   = 5
	redisHealthInterval = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.InitDefault()
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		logger.InitDefault()
		logger.Warn("Falling back to default logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	appMetrics := metrics.NewMetrics(cfg.Server.ServiceName)

	// 1. CockroachDB for video rooms
	db := connectDB(ctx, cfg)
	defer db.Close()

	roomRepo := cockroach.NewVideoRoomRepository(db.Pool)
	if err := roomRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to prepare video room schema", zap.Error(err))
	}

	// 2. Redis with degraded mode support
	redisDB := database.NewRedisDB(&database.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	}, appMetrics)
	defer func() { _ = redisDB.Close() }()

	if err := redisDB.HealthCheck(ctx); err != nil {
		logger.Warn("Redis unavailable at startup, running degraded", zap.Error(err))
	}
	redisDB.StartHealthCheck(ctx, redisHealthInterval)

	// 3. Call identifiers and URLs
	var registry videoService.IdentifierRegistry
	var memoryRegistry *callid.MemoryRegistry
	switch cfg.Video.IDStore {
	case "memory":
		memoryRegistry = callid.NewMemoryRegistry(nil, appMetrics)
		registry = memoryRegistry
	default:
		registry = callid.NewRedisRegistry(redisDB, cfg.Video.IDTTL, nil, appMetrics)
	}

	urlGenerator, err := callurl.NewGenerator(callurl.Config{
		ServerURL: cfg.Video.ServerURL,
		Secret:    cfg.Video.JWTSecret,
		Audience:  cfg.Video.JWTAudience,
		Issuer:    cfg.Video.JWTIssuer,
	})
	if err != nil {
		logger.Fatal("Failed to create call URL generator", zap.Error(err))
	}

	// 4. Rooms, provisioned on LiveKit when configured
	var provisioner room.Provisioner
	var webhooks videoHandler.WebhookReceiver
	if cfg.LiveKit.URL != "" {
		provisioner = room.NewLiveKitProvisioner(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.EmptyTimeout)
		webhooks = videoHandler.NewLiveKitReceiver(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
		logger.Info("Using LiveKit room provider", zap.String("url", cfg.LiveKit.URL))
	}
	roomManager := room.NewManager(roomRepo, provisioner)

	// 5. Notifications: live channel plus optional FCM push
	pushTokens := redisRepo.NewPushTokenRepository(redisDB)
	var pusher notification.Pusher
	if cfg.Push.Provider == "fcm" {
		fcm, err := notification.NewFCMPusher(ctx, cfg.Push.CredentialsPath, pushTokens)
		if err != nil {
			if cfg.IsProduction() {
				logger.Fatal("Failed to initialize FCM", zap.Error(err))
			}
			logger.Warn("FCM unavailable, push delivery disabled", zap.Error(err))
		} else {
			pusher = fcm
		}
	}
	dispatcher := notification.NewDispatcher(notification.NewRedisPublisher(redisDB), pusher, appMetrics)

	// 6. Statistics
	sink, closeSink := statisticsSink(cfg, redisDB)
	defer closeSink()
	emitter := statistics.NewEmitter(sink, cfg.Statistics.BufferSize, appMetrics)

	// 7. Collaborating services
	users := userservice.NewClient(client.Config{
		BaseURL:        cfg.Services.UserServiceURL,
		Timeout:        cfg.Services.Timeout,
		TechnicalToken: cfg.Services.TechnicalToken,
	})
	messages := messageservice.NewClient(client.Config{
		BaseURL:        cfg.Services.MessageServiceURL,
		Timeout:        cfg.Services.Timeout,
		TechnicalToken: cfg.Services.TechnicalToken,
	})

	videoSvc := videoService.NewService(videoService.Dependencies{
		Registry:   registry,
		URLs:       urlGenerator,
		Sessions:   users,
		Rooms:      roomManager,
		Notifier:   dispatcher,
		Statistics: emitter,
		Messages:   messages,
		Metrics:    appMetrics,
	})

	// 8. Housekeeping
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Housekeeping.Schedule, func() {
		runHousekeeping(ctx, cfg, roomManager, memoryRegistry)
	}); err != nil {
		logger.Fatal("Invalid housekeeping schedule",
			zap.String("schedule", cfg.Housekeeping.Schedule),
			zap.Error(err))
	}
	scheduler.Start()

	// 9. Router
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Audience, 0)
	authn := middleware.AuthMiddleware(jwtManager)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.NewPrometheusMiddleware(appMetrics).Handler())

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if redisDB.IsDegraded() {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"service": cfg.Server.ServiceName,
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	videoHandler.NewHandler(videoSvc, webhooks).
		RegisterRoutes(router, authn, middleware.RequireRole(jwt.RoleConsultant))
	pushHandler.NewHandler(pushTokens).RegisterRoutes(router, authn)

	liveHub := wsHandler.NewLiveHub(redisDB, cfg.Server.AllowedOrigins, cfg.Server.MaxLiveConnections, appMetrics)
	router.GET("/live/ws", authn, liveHub.ServeWS)

	// 10. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Video service starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 11. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	dispatcher.Wait()
	emitter.Close()
	stop()

	logger.Info("Server exited")
}

// connectDB retries with exponential backoff; rooms cannot be served without it.
func connectDB(ctx context.Context, cfg *config.Config) *database.DB {
	dbConfig := database.DefaultDBConfig()
	dbConfig.MaxConns = cfg.Database.MaxConns
	dbConfig.MinConns = cfg.Database.MinConns

	connString := database.ConnString(cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Database, cfg.Database.SSLMode)

	delay := time.Second
	for attempt := 1; ; attempt++ {
		db, err := database.NewDB(ctx, connString, dbConfig)
		if err == nil {
			logger.Info("Connected to CockroachDB", zap.Int("attempt", attempt))
			return db
		}
		if attempt == dbConnectAttempts {
			logger.Fatal("Failed to connect to CockroachDB",
				zap.Int("attempts", attempt),
				zap.Error(err))
		}

		logger.Warn("CockroachDB connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		time.Sleep(delay)
		delay = min(delay*2, 30*time.Second)
	}
}

func statisticsSink(cfg *config.Config, redisDB *database.RedisClient) (statistics.Sink, func()) {
	switch cfg.Statistics.Sink {
	case "cassandra":
		cassandraDB, err := database.NewCassandraDB(&database.CassandraConfig{
			Hosts:    cfg.Cassandra.Hosts,
			Keyspace: cfg.Cassandra.Keyspace,
			Username: cfg.Cassandra.Username,
			Password: cfg.Cassandra.Password,
			Timeout:  cfg.Cassandra.Timeout,
		})
		if err != nil {
			logger.Fatal("Failed to connect to Cassandra", zap.Error(err))
		}
		return statistics.NewCassandraSink(cassandraDB), cassandraDB.Close
	case "redis":
		return statistics.NewRedisStreamSink(redisDB, cfg.Statistics.Stream), func() {}
	default:
		return statistics.NopSink{}, func() {}
	}
}

func runHousekeeping(ctx context.Context, cfg *config.Config, rooms *room.Manager, registry *callid.MemoryRegistry) {
	if registry != nil {
		if purged := registry.Purge(cfg.Video.IDTTL); purged > 0 {
			logger.Info("Purged expired call identifiers", zap.Int("count", purged))
		}
	}

	purgeCtx, cancel := appctx.WithMediumTimeout(ctx)
	defer cancel()
	if _, err := rooms.PurgeClosed(purgeCtx, time.Now().Add(-cfg.Housekeeping.RoomRetention)); err != nil {
		logger.Error("Failed to purge closed video rooms", zap.Error(err))
	}
}
