package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Reminder ReminderConfig `mapstructure:"reminder"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// MailConfig 邮件通知配置（SendGrid）
// APIKey 为空时降级为仅写日志
type MailConfig struct {
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	FromName       string `mapstructure:"from_name"`
	FromAddress    string `mapstructure:"from_address"`
	AppName        string `mapstructure:"app_name"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig 附件存储配置
type StorageConfig struct {
	Driver        string    `mapstructure:"driver"` // local | b2 | oss
	LocalDir      string    `mapstructure:"local_dir"`
	PublicBaseURL string    `mapstructure:"public_base_url"`
	B2            B2Config  `mapstructure:"b2"`
	OSS           OSSConfig `mapstructure:"oss"`
}

// B2Config Backblaze B2 配置
type B2Config struct {
	AccountID string `mapstructure:"account_id"`
	AppKey    string `mapstructure:"app_key"`
	Bucket    string `mapstructure:"bucket"`
}

// OSSConfig 阿里云 OSS 配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// UploadConfig 上传限制
type UploadConfig struct {
	MaxFiles    int      `mapstructure:"max_files"`
	MaxFileSize int64    `mapstructure:"max_file_size"`
	AllowedExts []string `mapstructure:"allowed_exts"`
}

// ReminderConfig 截止日期提醒任务配置
type ReminderConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

// Location 解析提醒任务所用时区
func (c *ReminderConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.base_url", "http://localhost:5000")
	v.SetDefault("server.max_body_bytes", 60<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "classhub")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "2h")
	v.SetDefault("auth.refresh_token_ttl", "168h")

	v.SetDefault("mail.from_name", "ClassHub")
	v.SetDefault("mail.from_address", "no-reply@classhub.local")
	v.SetDefault("mail.app_name", "ClassHub")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("storage.public_base_url", "http://localhost:5000")

	v.SetDefault("upload.max_files", 5)
	v.SetDefault("upload.max_file_size", 10<<20)
	v.SetDefault("upload.allowed_exts", []string{"pdf", "zip", "doc", "docx", "png", "jpg", "jpeg"})

	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.cron", "0 8 * * *")
	v.SetDefault("reminder.timezone", "UTC")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("CLASSHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("invalid config: auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("invalid config: auth.jwt_secret must be at least 16 characters")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be within 1-65535")
	}
	switch c.Storage.Driver {
	case "local", "b2", "oss":
	default:
		return fmt.Errorf("invalid config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Upload.MaxFiles <= 0 || c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("invalid config: upload limits must be positive")
	}
	if _, err := c.Reminder.Location(); err != nil {
		return fmt.Errorf("invalid config: reminder.timezone: %w", err)
	}
	return nil
}
