package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhiban/zhiban/internal/config"
	"github.com/zhiban/zhiban/internal/database"
	"github.com/zhiban/zhiban/internal/handler"
	"github.com/zhiban/zhiban/internal/middleware"
	"github.com/zhiban/zhiban/internal/security"
	"github.com/zhiban/zhiban/internal/workspace"
	"github.com/zhiban/zhiban/pkg/collab"
	"github.com/zhiban/zhiban/pkg/logger"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "启动HTTP服务",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "监听端口，0 取环境配置")
	return cmd
}

func runServe(portOverride int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if portOverride > 0 {
		cfg.App.Port = portOverride
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	// 打印版本信息
	fmt.Printf("zhiban 值班排班服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 工作区注册表，每个工作区持有独立的协作管理器
	workspaces := workspace.NewManager(collab.Config{
		LockTimeout:       cfg.Collab.LockTimeout,
		SessionTimeout:    cfg.Collab.SessionTimeout,
		ConflictRetention: cfg.Collab.ConflictRetention,
		CleanupInterval:   cfg.Collab.CleanupInterval,
	})
	workspaces.CreateDefault()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	workspaces.StartSweep(sweepCtx, cfg.Collab.SweepInterval)

	// 数据库可选：连接失败时归档功能停用，排班与协作不受影响
	var db *database.DB
	if d, derr := database.New(&cfg.Database); derr != nil {
		logger.Warn().Err(derr).Msg("数据库不可用，归档功能停用")
	} else {
		db = d
		defer db.Close()
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(migrateCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("初始化数据库失败: %w", err)
		}
	}

	h := handler.New(cfg, workspaces, db, handler.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	})

	// 中间件执行顺序：recovery -> requestID -> rateLimit -> cors -> securityHeaders -> auth -> logging -> handler
	var chain http.Handler = middleware.LoggingMiddleware(h.Router())
	if cfg.API.AuthEnabled {
		chain = middleware.AuthMiddleware(newAuthConfig(cfg, workspaces))(chain)
	}
	chain = middleware.SecurityHeadersMiddleware(chain)
	if cfg.API.CORS.Enabled {
		chain = corsMiddleware(cfg.API.CORS.Origins)(chain)
	}
	chain = rateLimitMiddleware(NewRateLimiter(float64(cfg.API.RateLimit)))(chain)
	chain = middleware.RequestIDMiddleware(chain)
	chain = middleware.RecoveryMiddleware(chain)

	// 生成接口同步等待引擎完成，写超时要给足生成超时的余量
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      chain,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Engine.GenerateTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Bool("database", db != nil).
			Bool("auth", cfg.API.AuthEnabled).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.App.Port)).
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
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}

	logger.Info().Msg("服务器已关闭")
	return nil
}

// newAuthConfig 构建认证中间件配置。
// 密钥管理器仅驻留内存，进程重启后清空，启动时签发一把默认工作区的
// 全权密钥并打印到日志，供首次接入后换发正式密钥。
func newAuthConfig(cfg *config.Config, workspaces *workspace.Manager) *middleware.AuthConfig {
	keys := security.NewAPIKeyManager()
	if bootstrap, err := keys.GenerateKey("default", "bootstrap", []string{"*"}, nil); err != nil {
		logger.Error().Err(err).Msg("签发启动密钥失败")
	} else {
		logger.Info().Str("api_key", bootstrap.Key).Msg("启动密钥已签发")
	}
	return &middleware.AuthConfig{
		APIKeyManager:   keys,
		Workspaces:      workspaces,
		RateLimiter:     security.NewRateLimiter(cfg.API.RateLimit, time.Second),
		SkipPaths:       []string{"/health", "/version", "/metrics"},
		EnableRateLimit: true,
	}
}

// RateLimiter 简单的令牌桶限流器
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // 每秒添加的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter 创建限流器
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     requestsPerSecond,
		maxTokens:  requestsPerSecond * 2, // 允许突发流量
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// rateLimitMiddleware 限流中间件
func rateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":   true,
					"code":    "RATE_LIMITED",
					"message": "请求过于频繁，请稍后重试",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware CORS中间件
// origins 含 "*" 时对所有来源放行，否则仅回显配置内的来源
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
