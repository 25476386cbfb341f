// Package middleware 提供HTTP中间件
package middleware

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zhiban/zhiban/internal/metrics"
	"github.com/zhiban/zhiban/internal/security"
	"github.com/zhiban/zhiban/internal/workspace"
	"github.com/zhiban/zhiban/pkg/logger"
)

// AuthConfig 认证配置
type AuthConfig struct {
	APIKeyManager   *security.APIKeyManager
	Workspaces      *workspace.Manager
	RateLimiter     *security.RateLimiter
	SkipPaths       []string // 跳过认证的路径
	EnableRateLimit bool
}

// AuthMiddleware 认证中间件
// API密钥绑定工作区，认证通过后工作区注入上下文
func AuthMiddleware(config *AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 检查是否跳过认证
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// 提取API密钥
			apiKey := security.ExtractAPIKey(r)
			if apiKey == "" {
				http.Error(w, `{"error":"missing_api_key","message":"API密钥未提供"}`, http.StatusUnauthorized)
				return
			}

			// 验证API密钥
			key, err := config.APIKeyManager.Validate(apiKey)
			if err != nil {
				logger.Get().Warn().Err(err).Str("key", truncateKey(apiKey)).Msg("API密钥验证失败")
				http.Error(w, `{"error":"invalid_api_key","message":"无效的API密钥"}`, http.StatusUnauthorized)
				return
			}

			// 获取密钥绑定的工作区
			ws, err := config.Workspaces.Get(key.Workspace)
			if err != nil {
				http.Error(w, `{"error":"workspace_error","message":"工作区不可用"}`, http.StatusForbidden)
				return
			}

			// 检查频率限制
			if config.EnableRateLimit && config.RateLimiter != nil {
				if !config.RateLimiter.Allow(key.Workspace) {
					http.Error(w, `{"error":"rate_limit","message":"请求频率超限"}`, http.StatusTooManyRequests)
					return
				}
			}

			// 将工作区信息添加到上下文
			ctx := workspace.WithWorkspace(r.Context(), ws)
			ctx = context.WithValue(ctx, "workspace_id", ws.Code)
			r = r.WithContext(ctx)

			// 添加工作区信息到响应头
			w.Header().Set("X-Workspace", ws.Code)

			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope 权限范围检查中间件
func RequireScope(scope string, keyManager *security.APIKeyManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := security.ExtractAPIKey(r)
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			key, err := keyManager.Validate(apiKey)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			if !key.HasScope(scope) {
				http.Error(w, `{"error":"forbidden","message":"权限不足"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter 捕获状态码的响应包装
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware 日志中间件，记录请求并上报指标
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		event := logger.WithContext(r.Context()).Info()
		if wrapped.statusCode >= http.StatusInternalServerError {
			event = logger.WithContext(r.Context()).Error()
		}
		if ws, ok := workspace.FromContext(r.Context()); ok {
			event = event.Str("workspace", ws.Code)
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", wrapped.statusCode).
			Dur("duration", duration).
			Msg("请求处理完成")

		metrics.RecordRequestMetrics(r.Method, r.URL.Path, wrapped.statusCode, duration)
	})
}

// SecurityHeadersMiddleware 安全头中间件
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 安全相关响应头
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")

		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware 恢复中间件（捕获panic）
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Get().Error().
					Interface("panic", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("请求处理崩溃")
				http.Error(w, `{"error":"internal_error","message":"服务器内部错误"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := context.WithValue(r.Context(), "request_id", requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("req_%x", b[:8])
}

func truncateKey(key string) string {
	if len(key) <= 10 {
		return key
	}
	return key[:10] + "..."
}
