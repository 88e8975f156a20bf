package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	httpHandler "ephemeral-chat/internal/handler/http"
	wsHandler "ephemeral-chat/internal/handler/websocket"
	"ephemeral-chat/internal/hub"
	"ephemeral-chat/internal/infra/notify"
	gormpersistence "ephemeral-chat/internal/infra/persistence/gorm"
	"ephemeral-chat/internal/infra/setup"
	redisstate "ephemeral-chat/internal/infra/state/redis"
	"ephemeral-chat/internal/middleware"
	"ephemeral-chat/internal/repository"
	"ephemeral-chat/internal/service"
	"ephemeral-chat/internal/tasks"
	"ephemeral-chat/internal/telemetry"
	"ephemeral-chat/internal/worker"
)

const serviceName = "ephemeral-chat"

// App 包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB // 未配置持久化存储时为 nil
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Scheduler   *asynq.Scheduler
	Hub         *hub.Hub
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	kafka          *notify.KafkaNotifier
	shutdownTracer telemetry.ShutdownFunc
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger。服务层使用 logrus 包级 logger，这里直接配置标准 logger。
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)

	// 3. 初始化基础设施
	shutdownTracer, err := telemetry.InitTracer(context.Background(), cfg.OTLPEndpoint, serviceName, cfg.AppEnv, cfg.TraceSampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracer: %w", err)
	}

	var db *gorm.DB
	if cfg.DBDriver != "" {
		db, err = setup.InitDB(cfg.DBOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		log.WithField("driver", cfg.DBDriver).Info("Database initialized and migrated")
	} else {
		log.Info("No DB_DRIVER configured, running with Redis only")
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// 4. 初始化 Repositories。持久化存储未配置时接口保持为 nil。
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	var (
		roomRepo    repository.RoomRepository
		messageRepo repository.MessageRepository
		archiveSvc  *service.ArchiveService
		archiver    service.Archiver
	)
	if db != nil {
		roomRepo = gormpersistence.NewGormRoomRepository(db)
		messageRepo = gormpersistence.NewGormMessageRepository(db)
		archiveSvc = service.NewArchiveService(roomRepo, messageRepo)
		if cfg.AsyncArchive {
			archiver = tasks.NewEnqueuer(asynqClient)
			log.Info("Durable writes are queued through asynq")
		} else {
			archiver = service.NewInlineArchiver(archiveSvc)
		}
	}

	// 5. 广播
	notifiers := notify.Multi{notify.NewRedisNotifier(redisClient)}
	var kafkaNotifier *notify.KafkaNotifier
	if cfg.KafkaBrokers != "" {
		kafkaNotifier = notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifiers = append(notifiers, kafkaNotifier)
		log.WithField("topic", cfg.KafkaTopic).Info("Kafka notifier enabled")
	}

	// 6. 初始化 Services
	presenceService := service.NewPresenceService(stateRepo)
	messageService := service.NewMessageService(stateRepo, service.MessageServiceDeps{
		Rooms:    roomRepo,
		Messages: messageRepo,
		Archiver: archiver,
		Notifier: notifiers,
	})
	roomService := service.NewRoomService(stateRepo, roomRepo, presenceService, messageService, archiver, service.RoomOptions{
		MaxExtendMinutes:       cfg.MaxExtendMinutes,
		MaxRoomLifetimeMinutes: cfg.MaxRoomLifetimeMinutes,
		StrictJoin:             cfg.StrictJoin,
	})
	sweepService := service.NewSweepService(roomRepo, stateRepo, nil)
	log.Info("Services initialized")

	// 7. Hub 和 Handlers
	hubInstance := hub.NewHub(messageService, redisClient)
	roomHandler := httpHandler.NewRoomHandler(roomService, presenceService)
	messageHandler := httpHandler.NewMessageHandler(messageService)
	cleanupHandler := httpHandler.NewCleanupHandler(sweepService)
	websocketHandler := wsHandler.NewWebSocketHandler(hubInstance, roomService, cfg.CORSAllowedOrigin)

	// 8. Worker Server
	workerServer := worker.NewWorkerServer(redisClientOpt, cfg.WorkerConcurrency, archiveSvc, sweepService, log)

	// 9. Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(middleware.Metrics())
	router.Use(corsMiddleware(cfg.CORSAllowedOrigin))

	api := router.Group("/api")
	api.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow()))
	roomRoutes := api.Group("/rooms")
	{
		roomRoutes.POST("", roomHandler.CreateRoom)
		roomRoutes.POST("/join", roomHandler.JoinRoom)
		roomRoutes.POST("/leave", roomHandler.LeaveRoom)
		roomRoutes.POST("/extend", roomHandler.ExtendRoom)
		roomRoutes.GET("/:code", roomHandler.GetRoomInfo)
		roomRoutes.GET("/:code/exists", roomHandler.RoomExists)
		roomRoutes.GET("/:code/online", roomHandler.OnlineUsers)
	}
	messageRoutes := api.Group("/messages")
	{
		messageRoutes.POST("/send", messageHandler.SendMessage)
		messageRoutes.GET("/:code", messageHandler.GetMessages)
	}
	if cfg.CronSecret != "" {
		api.POST("/cron/cleanup", middleware.CronAuth(cfg.CronSecret), cleanupHandler.Cleanup)
	} else {
		log.Warn("CRON_SECRET is empty, /api/cron/cleanup is disabled")
	}
	router.GET("/ws/rooms/:code", websocketHandler.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 10. HTTP Server
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	app := &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
		kafka:          kafkaNotifier,
		shutdownTracer: shutdownTracer,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

// Start 启动后台 goroutine 和 HTTP 服务器
func (a *App) Start() error {
	go a.Hub.Run()

	subCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Hub.Subscribe(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe hub to room channels: %w", err)
	}

	if err := a.AsynqServer.Start(); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	if err := a.registerPeriodicTasks(); err != nil {
		return err
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
	return nil
}

func (a *App) registerPeriodicTasks() error {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   a.Log.WithField("component", "scheduler"),
	})

	schedule := a.Config.SweepSchedule
	entryID, err := scheduler.Register(schedule, tasks.NewRoomSweepTask())
	if err != nil {
		return fmt.Errorf("could not register room sweep task with schedule %q: %w", schedule, err)
	}
	a.Log.Infof("Room sweep task registered with schedule '%s' (EntryID: %s)", schedule, entryID)

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.Scheduler = scheduler
	return nil
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止 Hub 的订阅
	if a.Hub != nil {
		a.Hub.StopAllSubscriptions()
	}

	// 2. 停止 Scheduler 和 Worker
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 3. 关闭 HTTP 服务器
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 4. 关闭客户端连接
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.Log.Errorf("Error closing Kafka writer: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	// 5. 刷新 trace
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.Log.Errorf("Error shutting down tracer provider: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// corsMiddleware allowedOrigin 为 "*" 时不发送 Allow-Credentials，浏览器不接受两者同时出现
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		if allowedOrigin != "*" {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 记录请求日志，按状态码区分日志级别
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
