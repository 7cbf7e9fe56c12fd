package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/lectern-app/lectern/internal/ai"
	"github.com/lectern-app/lectern/internal/config"
	"github.com/lectern-app/lectern/internal/filestore"
	"github.com/lectern-app/lectern/internal/handler"
	"github.com/lectern-app/lectern/internal/job"
	"github.com/lectern-app/lectern/internal/middleware"
	"github.com/lectern-app/lectern/internal/repo"
	"github.com/lectern-app/lectern/internal/schedule"
	"github.com/lectern-app/lectern/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "lectern",
		Short: "lectern backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run lectern server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DSN)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	userRepo := repo.NewUserRepo(db)
	projectRepo := repo.NewProjectRepo(db)
	docRepo := repo.NewDocumentRepo(db)
	pageRepo := repo.NewPageRepo(db)
	messageRepo := repo.NewMessageRepo(db)
	quizRepo := repo.NewQuizRepo(db)
	indexRepo := repo.NewIndexRepo(db)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(db)

	providerArgs := cfg.AI.Data
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	aiManager := ai.NewManager(
		ai.NewGenerator(aiProvider, cfg.AI.Model),
		ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel),
		ai.ManagerConfig{
			Timeout:       time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
			MaxInputChars: cfg.AI.MaxInputChars,
			Language:      cfg.AI.TranslateTo,
		},
	)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	embedder := service.NewCachingEmbedder(aiManager, embedCacheRepo)
	indexService := service.NewIndexService(pageRepo, indexRepo, embedder)
	ingestService := service.NewIngestService(docRepo, pageRepo, indexService, aiManager)

	jwtSecret := []byte(cfg.JWTSecret)
	jwtTTL := time.Hour * time.Duration(cfg.JWTTTLHours)
	authService := service.NewAuthService(userRepo, jwtSecret, jwtTTL)
	projectService := service.NewProjectService(projectRepo)
	documentService := service.NewDocumentService(docRepo, pageRepo, projectRepo, store, ingestService)
	chatService := service.NewChatService(messageRepo, indexService, aiManager, docRepo, cfg.Retrieval.ChatTopK, cfg.Retrieval.SuggestTopK)
	quizService := service.NewQuizService(quizRepo, indexService, aiManager, docRepo, cfg.Retrieval.QuizTopK)

	deps := handler.RouterDeps{
		Auth:         handler.NewAuthHandler(authService),
		Projects:     handler.NewProjectHandler(projectService),
		Documents:    handler.NewDocumentHandler(documentService),
		Chat:         handler.NewChatHandler(chatService, projectService),
		Quizzes:      handler.NewQuizHandler(quizService, projectService),
		JWTSecret:    jwtSecret,
		AIRateWindow: time.Duration(cfg.AIRateSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewIndexJanitorJob(docRepo, indexService), cfg.Jobs.IndexJanitorSpec); err != nil {
		return fmt.Errorf("schedule index janitor: %w", err)
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embedCacheRepo, cfg.Jobs.EmbeddingCacheTTLDays), cfg.Jobs.CacheCleanupSpec); err != nil {
		return fmt.Errorf("schedule cache cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
