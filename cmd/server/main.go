// Mito 实验室排班引擎服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/mito/internal/config"
	"github.com/paiban/mito/internal/database"
	"github.com/paiban/mito/internal/handler"
	"github.com/paiban/mito/internal/metrics"
	"github.com/paiban/mito/internal/middleware"
	"github.com/paiban/mito/internal/repository"
	"github.com/paiban/mito/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	format := "json"
	if cfg.IsDevelopment() {
		format = "console"
	}
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: format,
	})

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Msg("配置校验失败")
		os.Exit(1)
	}

	fmt.Printf("Mito 实验室排班引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	scheduleHandler := handler.NewScheduleHandler(cfg.Solver.SchedulerConfig(), m).
		WithLimits(cfg.API.MaxBodySize, cfg.API.Timeout)

	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.WithError(err).Msg("数据库连接失败")
			os.Exit(1)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.WithError(err).Msg("数据库迁移失败")
			os.Exit(1)
		}
		scheduleHandler.WithRepositories(repository.NewFactRepository(db), repository.NewRunRepository(db))
	}

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, `{"status":"degraded","service":"%s","database":"down"}`, cfg.App.Name)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","service":"%s"}`, cfg.App.Name)
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API v1 端点
	// ========================================

	mux.HandleFunc("GET /api/v1/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "Mito 实验室排班引擎 API v1",
			"endpoints": {
				"solve": "POST /api/v1/solve",
				"constraints": "GET /api/v1/constraints",
				"stats": "POST /api/v1/stats",
				"validate": "POST /api/v1/validate",
				"export": "POST /api/v1/export/{csv|pdf}",
				"runs": {
					"list": "GET /api/v1/runs",
					"get": "GET /api/v1/runs/{id}",
					"delete": "DELETE /api/v1/runs/{id}",
					"export": "GET /api/v1/runs/{id}/export/{csv|pdf}"
				}
			}
		}`))
	})

	scheduleHandler.Register(mux)

	// ========================================
	// 监控端点
	// ========================================

	if m != nil {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}

	// 中间件执行顺序：requestID -> logging -> recovery -> rateLimit -> cors -> apiKey -> handler
	var limiter *middleware.RateLimiter
	if cfg.API.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.API.RateLimit)
	}
	root := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging(m),
		middleware.Recovery,
		middleware.RateLimit(limiter),
		middleware.CORS,
		middleware.SecurityHeaders,
		middleware.APIKey(cfg.API.APIKeys, "/health", "/version", cfg.Metrics.Path),
	)

	port := fmt.Sprintf("%d", cfg.App.Port)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("database", db != nil).
			Str("url", fmt.Sprintf("http://localhost:%s", port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}
