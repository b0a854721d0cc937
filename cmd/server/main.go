package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"practice_mentor/internal/api"
	"practice_mentor/internal/app/guardrail"
	"practice_mentor/internal/app/service"
	"practice_mentor/internal/app/worker"
	"practice_mentor/internal/common/security"
	"practice_mentor/internal/domain/repository"
	"practice_mentor/internal/platform/config"
	"practice_mentor/internal/platform/database"
	"practice_mentor/internal/platform/llm"
	"practice_mentor/internal/platform/logger"
	"practice_mentor/internal/platform/queue"
	"practice_mentor/internal/platform/sandbox"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration and logger
	config.Load()
	cfg := config.AppConfig
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info(ctx, "configuration loaded")

	// 2. Initialize JWT
	security.InitJWT()

	// 3. Initialize Database
	if err := database.Connect(ctx); err != nil {
		logger.Fatal(ctx, "database connection failed", zap.Error(err))
	}
	defer database.Close()
	logger.Info(ctx, "database connected")

	// 4. Initialize Redis
	if err := queue.ConnectRedis(ctx); err != nil {
		logger.Fatal(ctx, "redis connection failed", zap.Error(err))
	}
	defer queue.CloseRedis()
	logger.Info(ctx, "redis connected")

	// 5. Initialize Repositories
	problemRepo := repository.NewPgProblemRepository(database.DB)
	lessonRepo := repository.NewPgLessonRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)

	// 6. Initialize Services
	sandboxClient := sandbox.NewClient(sandbox.Config{
		BaseURL:          cfg.SandboxURL,
		MaxConcurrency:   cfg.SandboxMaxConcurrency,
		DefaultTimeLimit: time.Duration(cfg.SandboxDefaultLimitMs) * time.Millisecond,
		RetryBackoff:     time.Duration(cfg.SandboxRetryBackoffMs) * time.Millisecond,
	})
	limiter := service.NewRateLimitService(queue.RDB, time.Minute, time.Second)
	notifier := service.NewProgressNotifier(queue.RDB, cfg.ProgressQueueName, time.Duration(cfg.ProgressDedupeTTLHours)*time.Hour)
	evaluator := service.NewEvaluator(sandboxClient, cfg.RunStopOnFirstFailure)

	problemService := service.NewProblemService(problemRepo)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, evaluator, notifier, limiter,
		service.SubmissionServiceConfig{
			MaxSourceBytes:      cfg.MaxSourceBytes,
			SubmitRatePerMinute: cfg.SubmitRatePerMinute,
		})

	llmClient := llm.NewClient(llm.Config{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	})
	engine := guardrail.NewEngine(llmClient, guardrail.Config{
		MaxCodeLines: cfg.GuardrailMaxCodeLines,
		HistoryTurns: cfg.HintHistoryTurns,
		Timeout:      cfg.HintTimeout,
	})
	historyStore := service.NewHistoryStore(queue.RDB, cfg.HintHistoryTurns, time.Duration(cfg.HintHistoryTTLHours)*time.Hour)
	mentorService := service.NewMentorService(engine, problemRepo, lessonRepo, historyStore, limiter,
		service.MentorServiceConfig{
			MaxSourceBytes:    cfg.MaxSourceBytes,
			HintRatePerMinute: cfg.HintRatePerMinute,
		})

	// 7. Initialize Progress Worker (as a goroutine)
	progressWorker := worker.NewProgressWorker(queue.RDB, worker.ProgressWorkerConfig{
		QueueName:     cfg.ProgressQueueName,
		AggregatorURL: cfg.ProgressAggregatorURL,
		MaxAttempts:   cfg.ProgressMaxAttempts,
	})
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		progressWorker.Start(workerCtx)
	}()

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(api.Services{
		Problems:       problemService,
		Submissions:    submissionService,
		Mentor:         mentorService,
		MaxSourceBytes: cfg.MaxSourceBytes,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // a submit runs every case sequentially
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info(ctx, "server starting", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "could not listen", zap.String("port", cfg.APIPort), zap.Error(err))
		}
	}()

	<-stop

	logger.Info(ctx, "shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server shutdown failed", zap.Error(err))
	}
	workerCancel()
	<-workerDone

	logger.Info(ctx, "server and worker stopped gracefully")
}
