package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"estatechat/internal/audit"
	"estatechat/internal/config"
	"estatechat/internal/handler"
	"estatechat/internal/history"
	"estatechat/internal/logger"
	"estatechat/internal/repository"
	"estatechat/internal/schema"
	"estatechat/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(logger.Options{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		Production: cfg.Server.GinMode == gin.ReleaseMode,
	})
	defer zlog.Sync()

	zlog.Info("estatechat starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Connect the document store
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := repository.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.MaxPool)
	cancel()
	if err != nil {
		zlog.Fatal("failed to connect to document store", zap.Error(err))
	}
	defer store.Close(context.Background())
	zlog.Info("connected to document store", zap.String("database", cfg.Mongo.Database))

	// Completion client
	if !cfg.OpenAI.Enabled {
		zlog.Warn("OPENAI_API_KEY is not set; classification will fail until it is configured")
	}
	completer := service.NewOpenAIClient(&cfg.OpenAI, zlog)

	// Classification audit trail
	var auditSink service.AuditSink
	if cfg.Audit.Enabled {
		auditLog := audit.NewLogger(cfg.Audit.FilePath)
		defer auditLog.Close()
		auditSink = auditLog
	}

	// Core services
	catalog := schema.NewCatalog()
	deps := service.ConversationDeps{
		Log:              zlog,
		Completer:        completer,
		Intents:          service.NewIntentParser(zlog),
		Builder:          service.NewQueryBuilder(catalog, zlog),
		Executor:         service.NewQueryExecutor(store, cfg.Chat.DefaultCollection, zlog),
		Audit:            auditSink,
		IterationCeiling: cfg.Chat.IterationCeiling,
	}

	newHistory, cleanup, err := historyFactory(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize history backend", zap.Error(err))
	}
	if cleanup != nil {
		defer cleanup()
	}

	sessions := service.NewSessionManager(deps, newHistory)

	chatHandler, err := handler.NewChatHandler(sessions, cfg.Chat.PromptPath, zlog)
	if err != nil {
		zlog.Fatal("failed to load prompt template",
			zap.String("path", cfg.Chat.PromptPath),
			zap.Error(err))
	}

	// Setup Gin router
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := 200
		if !store.Healthy(c.Request.Context()) {
			status = "degraded"
			code = 503
		}
		c.JSON(code, gin.H{
			"status":   status,
			"service":  "estatechat",
			"version":  Version,
			"sessions": sessions.Count(),
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.GET("/sessions/:id/history", chatHandler.History)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	zlog.Info("server listening", zap.String("addr", addr))

	go func() {
		if err := router.Run(addr); err != nil {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
}

// historyFactory builds the per-session history constructor for the
// configured backend. The returned cleanup closes any shared connection.
func historyFactory(cfg *config.Config, zlog *zap.Logger) (service.HistoryFactory, func(), error) {
	switch cfg.History.Backend {
	case "", "memory":
		return func(string) (history.Store, error) {
			return history.NewMemoryStore(), nil
		}, nil, nil

	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		client, err := history.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.MaxPool)
		if err != nil {
			return nil, nil, err
		}
		zlog.Info("history backend: mongo", zap.String("database", cfg.Mongo.Database))
		db := client.Database(cfg.Mongo.Database)
		return func(sessionID string) (history.Store, error) {
				return history.NewMongoStore(db, sessionID), nil
			}, func() {
				_ = client.Disconnect(context.Background())
			}, nil

	case "postgres":
		db, err := history.ConnectPostgres(
			cfg.GetPostgresDSN(),
			cfg.Postgres.MaxConnections,
			cfg.Postgres.MaxIdleConnections,
		)
		if err != nil {
			return nil, nil, err
		}
		zlog.Info("history backend: postgres", zap.String("database", cfg.Postgres.Database))
		return func(sessionID string) (history.Store, error) {
				return history.NewPostgresStore(db, sessionID), nil
			}, func() {
				_ = db.Close()
			}, nil

	default:
		return nil, nil, fmt.Errorf("unknown history backend: %q", cfg.History.Backend)
	}
}
