package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Akshare  AkshareConfig  `mapstructure:"akshare"`
	Pinyin   PinyinConfig   `mapstructure:"pinyin"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Mode            string   `mapstructure:"mode"`
	AllowOrigins    []string `mapstructure:"allow_origins"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // 秒
	DefaultDays     int      `mapstructure:"default_days"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type            string `mapstructure:"type"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	Path            string `mapstructure:"path"` // sqlite 文件路径
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

// AkshareConfig 行情数据网关配置（AKTools HTTP 接口）
type AkshareConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // 秒，不重试
}

// PinyinConfig 拼音索引配置
type PinyinConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SyncConfig 同步配置
type SyncConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	BatchSize   int `mapstructure:"batch_size"`
}

// RedisConfig 跨实例同步租约
type RedisConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Password  string   `mapstructure:"password"`
	DB        int      `mapstructure:"db"`
	LeaseTTL  int      `mapstructure:"lease_ttl"` // 秒
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("STOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("database.type", "mysql")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("akshare.base_url", "http://127.0.0.1:8080")
	v.SetDefault("pinyin.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("log.level", "info")
}

// validateConfig 验证配置并填充默认值
func validateConfig(config *Config) error {
	switch config.Database.Type {
	case "mysql", "postgres":
	case "sqlite":
		if config.Database.Path == "" {
			config.Database.Path = "./data/stock.db"
		}
	default:
		return fmt.Errorf("数据库类型必须是 mysql、postgres 或 sqlite: %q", config.Database.Type)
	}

	if config.Database.MaxOpenConns <= 0 {
		config.Database.MaxOpenConns = 10
	}
	if config.Database.MaxIdleConns <= 0 {
		config.Database.MaxIdleConns = 5
	}
	if config.Database.MaxIdleConns > config.Database.MaxOpenConns {
		config.Database.MaxIdleConns = config.Database.MaxOpenConns
	}

	if config.Akshare.BaseURL == "" {
		return fmt.Errorf("请配置 akshare.base_url")
	}
	if config.Akshare.Timeout <= 0 {
		config.Akshare.Timeout = 30
	}

	if config.Sync.Concurrency <= 0 {
		config.Sync.Concurrency = 8
	}
	if config.Sync.BatchSize <= 0 {
		config.Sync.BatchSize = 1000
	}

	if config.Redis.Enabled && len(config.Redis.Addresses) == 0 {
		return fmt.Errorf("启用 redis 时必须配置 redis.addresses")
	}
	if config.Redis.LeaseTTL <= 0 {
		config.Redis.LeaseTTL = 60
	}

	if config.Server.Port <= 0 {
		config.Server.Port = 8000
	}
	if config.Server.ShutdownTimeout <= 0 {
		config.Server.ShutdownTimeout = 5
	}
	if config.Server.DefaultDays <= 0 {
		config.Server.DefaultDays = 100
	}

	return nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=Asia/Shanghai",
			c.Host, c.Port, c.User, c.Password, c.DBName)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		return c.Path
	default:
		return ""
	}
}

// UpstreamTimeout 上游请求超时
func (c *AkshareConfig) UpstreamTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// LeaseDuration 同步租约有效期
func (c *RedisConfig) LeaseDuration() time.Duration {
	return time.Duration(c.LeaseTTL) * time.Second
}
