package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Config wisefido-callcenter（工单协调服务）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     struct {
		Addr     string
		Password string
		DB       int
	}
	// Auth 外部认证子系统（token 校验）
	Auth struct {
		BaseURL  string
		Timeout  time.Duration
		CacheTTL time.Duration // token 校验结果缓存（Redis）
	}
	// Notify 通知保留策略
	Notify struct {
		Retention     time.Duration // 超过该时长的通知被清理（默认 24h）
		SweepInterval time.Duration // 周期清理兜底间隔
	}
	Log struct {
		Level  string
		Format string
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// Default to true for local dev: if DB is unavailable, the service falls
	// back to in-memory repositories (see cmd/wisefido-callcenter).
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "callcenter")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	// 外部认证子系统配置
	cfg.Auth.BaseURL = getEnv("AUTH_BASE_URL", "http://localhost:8081")
	cfg.Auth.Timeout = parseDuration(getEnv("AUTH_TIMEOUT", "5s"), 5*time.Second)
	cfg.Auth.CacheTTL = parseDuration(getEnv("AUTH_CACHE_TTL", "60s"), 60*time.Second)

	// 通知保留策略（默认 24 小时）
	retentionHours := parseInt(getEnv("NOTIFY_RETENTION_HOURS", "24"), 24)
	cfg.Notify.Retention = time.Duration(retentionHours) * time.Hour
	cfg.Notify.SweepInterval = parseDuration(getEnv("NOTIFY_SWEEP_INTERVAL", "1h"), time.Hour)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
