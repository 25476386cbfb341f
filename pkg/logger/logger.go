// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	// 添加工作区ID
	if wsID, ok := ctx.Value("workspace_id").(string); ok {
		l = l.With().Str("workspace_id", wsID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// EngineLogger 值班引擎专用日志器
type EngineLogger struct {
	base *zerolog.Logger
}

// NewEngineLogger 创建值班引擎日志器
func NewEngineLogger() *EngineLogger {
	l := Get().With().Str("component", "engine").Logger()
	return &EngineLogger{base: &l}
}

// StartGeneration 记录排班生成开始
func (l *EngineLogger) StartGeneration(workers, days, attempts int) {
	l.base.Info().
		Int("workers", workers).
		Int("days", days).
		Int("attempts", attempts).
		Msg("开始生成值班表")
}

// AttemptFinished 记录单次尝试结果
func (l *EngineLogger) AttemptFinished(attempt, filled, total int, equity int) {
	l.base.Debug().
		Int("attempt", attempt).
		Int("filled", filled).
		Int("total", total).
		Int("equity", equity).
		Msg("初始分配尝试完成")
}

// ImprovementPass 记录改进轮次
func (l *EngineLogger) ImprovementPass(pass, accepted int, objective float64) {
	l.base.Debug().
		Int("pass", pass).
		Int("accepted", accepted).
		Float64("objective", objective).
		Msg("迭代改进轮次完成")
}

// ConstraintViolation 记录约束违反
func (l *EngineLogger) ConstraintViolation(kind, details string) {
	l.base.Warn().
		Str("kind", kind).
		Str("details", details).
		Msg("约束违反")
}

// GenerationComplete 记录排班生成完成
func (l *EngineLogger) GenerationComplete(filled, total int, duration time.Duration, cancelled bool) {
	l.base.Info().
		Int("filled", filled).
		Int("total", total).
		Dur("duration", duration).
		Bool("cancelled", cancelled).
		Msg("值班表生成完成")
}

// CollabLogger 协作核心专用日志器
type CollabLogger struct {
	base *zerolog.Logger
}

// NewCollabLogger 创建协作核心日志器
func NewCollabLogger() *CollabLogger {
	l := Get().With().Str("component", "collab").Logger()
	return &CollabLogger{base: &l}
}

// LockAcquired 记录锁获取
func (l *CollabLogger) LockAcquired(lockID, userID, lockType, resource string) {
	l.base.Debug().
		Str("lock_id", lockID).
		Str("user_id", userID).
		Str("lock_type", lockType).
		Str("resource", resource).
		Msg("锁已获取")
}

// LockRefused 记录锁拒绝
func (l *CollabLogger) LockRefused(userID, lockType, resource, holder string) {
	l.base.Debug().
		Str("user_id", userID).
		Str("lock_type", lockType).
		Str("resource", resource).
		Str("holder", holder).
		Msg("锁请求被拒绝")
}

// CleanupDone 记录清理结果
func (l *CollabLogger) CleanupDone(locks, sessions, conflicts int) {
	if locks == 0 && sessions == 0 && conflicts == 0 {
		return
	}
	l.base.Debug().
		Int("expired_locks", locks).
		Int("expired_sessions", sessions).
		Int("purged_conflicts", conflicts).
		Msg("后台清理完成")
}
