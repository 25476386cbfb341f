// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Engine   EngineConfig   `yaml:"engine"`
	Collab   CollabConfig   `yaml:"collab"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit   int           `yaml:"rate_limit"`
	Timeout     time.Duration `yaml:"timeout"`
	AuthEnabled bool          `yaml:"auth_enabled"` // 启用后所有业务接口要求API密钥
	CORS        CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// EngineConfig 排班引擎配置
type EngineConfig struct {
	GenerateTimeout time.Duration `yaml:"generate_timeout"` // 单次生成的超时
	Parallelism     int           `yaml:"parallelism"`      // 第一阶段并行度，0 取 CPU 核数
}

// CollabConfig 协作核心配置
type CollabConfig struct {
	LockTimeout       time.Duration `yaml:"lock_timeout"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	ConflictRetention time.Duration `yaml:"conflict_retention"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	SweepInterval     time.Duration `yaml:"sweep_interval"` // 工作区过期巡检周期
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置
// 当前目录存在 .env 时先行载入，环境中已有的值不被覆盖
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "zhiban"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7021),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "zhiban"),
			User:            getEnv("DB_USER", "zhiban"),
			Password:        getEnv("DB_PASSWORD", "zhiban123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			RateLimit:   getEnvInt("API_RATE_LIMIT", 100),
			Timeout:     getEnvDuration("API_TIMEOUT", 30*time.Second),
			AuthEnabled: getEnvBool("API_AUTH_ENABLED", false),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: getEnvList("API_CORS_ORIGINS", []string{"*"}),
			},
		},
		Engine: EngineConfig{
			GenerateTimeout: getEnvDuration("ENGINE_GENERATE_TIMEOUT", 60*time.Second),
			Parallelism:     getEnvInt("ENGINE_PARALLELISM", 0),
		},
		Collab: CollabConfig{
			LockTimeout:       getEnvDuration("COLLAB_LOCK_TIMEOUT", 300*time.Second),
			SessionTimeout:    getEnvDuration("COLLAB_SESSION_TIMEOUT", 1800*time.Second),
			ConflictRetention: getEnvDuration("COLLAB_CONFLICT_RETENTION", 24*time.Hour),
			CleanupInterval:   getEnvDuration("COLLAB_CLEANUP_INTERVAL", 60*time.Second),
			SweepInterval:     getEnvDuration("COLLAB_SWEEP_INTERVAL", time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
