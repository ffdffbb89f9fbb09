package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iseevalue/chat/internal/logger"
)

// PipelineConfig — задержки конвейера статусов, отсчитываются от момента отправки.
type PipelineConfig struct {
	SentDelay      time.Duration `yaml:"sent_delay" env:"SENT_DELAY"`
	DeliveredDelay time.Duration `yaml:"delivered_delay" env:"DELIVERED_DELAY"`
	ReplyDelay     time.Duration `yaml:"reply_delay" env:"REPLY_DELAY"`
	EventBuffer    int           `yaml:"event_buffer" env:"EVENT_BUFFER"`
	QueueSize      int           `yaml:"queue_size" env:"QUEUE_SIZE"`
}

// WSConfig — лимиты WebSocket.
type WSConfig struct {
	MaxConnections int           `yaml:"max_connections" env:"MAX_CONNECTIONS"`
	SendBufferSize int           `yaml:"send_buffer_size" env:"SEND_BUFFER_SIZE"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	PongTimeout    time.Duration `yaml:"pong_timeout" env:"PONG_TIMEOUT"`
	MaxMessageSize int64         `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
}

// AttachmentConfig — загрузка файлов в чат.
type AttachmentConfig struct {
	MaxUploadSizeMB int           `yaml:"max_upload_size_mb" env:"MAX_UPLOAD_SIZE_MB"`
	TTL             time.Duration `yaml:"ttl" env:"TTL"`
}

// RedisConfig — Redis для вложений. Пустой URL — вложения в памяти процесса.
type RedisConfig struct {
	URL string `yaml:"url" env:"URL"`
}

// RateLimitConfig — токен-бакет на IP.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RPS"`
	Burst int     `yaml:"burst" env:"BURST"`
}

// Config содержит настройки сервиса чата.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	AppEnv string `yaml:"-" env:"APP_ENV"`

	// Сервер
	ServerAddr   string        `yaml:"server_addr" env:"SERVER_ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`

	CORSAllowedOrigins string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	LogLevel           string `yaml:"log_level" env:"LOG_LEVEL"`

	// MetricsSecret — заголовок X-Internal-Secret для /metrics не из приватной сети.
	MetricsSecret string `yaml:"-" env:"METRICS_SECRET"`

	// SeedConversations — загрузить стартовые беседы при запуске.
	SeedConversations bool `yaml:"seed_conversations" env:"SEED_CONVERSATIONS"`

	Pipeline    PipelineConfig   `yaml:"pipeline" envPrefix:"PIPELINE_"`
	WS          WSConfig         `yaml:"ws" envPrefix:"WS_"`
	Attachments AttachmentConfig `yaml:"attachments" envPrefix:"ATTACHMENT_"`
	Redis       RedisConfig      `yaml:"redis" envPrefix:"REDIS_"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

// Default возвращает значения по умолчанию.
func Default() *Config {
	return &Config{
		ServerAddr:         ":8080",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		CORSAllowedOrigins: "*",
		LogLevel:           "info",
		SeedConversations:  true,
		Pipeline: PipelineConfig{
			SentDelay:      1 * time.Second,
			DeliveredDelay: 2 * time.Second,
			ReplyDelay:     3 * time.Second,
			EventBuffer:    64,
			QueueSize:      256,
		},
		WS: WSConfig{
			MaxConnections: 1000,
			SendBufferSize: 256,
			WriteTimeout:   10 * time.Second,
			PongTimeout:    60 * time.Second,
			MaxMessageSize: 64 << 10,
		},
		Attachments: AttachmentConfig{
			MaxUploadSizeMB: 20,
			TTL:             24 * time.Hour,
		},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
	}
}

// MaxUploadSize — лимит загрузки в байтах.
func (c *Config) MaxUploadSize() int64 { return int64(c.Attachments.MaxUploadSizeMB) << 20 }

// IsProduction — APP_ENV=production.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// Load загружает конфигурацию: .env (вне production), затем YAML
// (CONFIG_PATH → config/chat.yaml), затем переменные окружения.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env не перезаписывает уже заданные переменные
		if err := godotenv.Load(); err == nil {
			logger.Info("config: загружен .env")
		}
	}
	return load(os.Getenv("CONFIG_PATH"), "config/chat.yaml")
}

func load(paths ...string) (*Config, error) {
	cfg := Default()
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
			cfg = Default()
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.IsProduction() && (cfg.CORSAllowedOrigins == "" || cfg.CORSAllowedOrigins == "*") {
		logger.Warnf("config: в production задайте CORS_ALLOWED_ORIGINS (явный список origins, не *)")
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	var errs []error
	p := c.Pipeline
	if p.SentDelay <= 0 || !(p.SentDelay < p.DeliveredDelay && p.DeliveredDelay < p.ReplyDelay) {
		errs = append(errs, fmt.Errorf("pipeline delays must be positive and increasing: sent=%v delivered=%v reply=%v",
			p.SentDelay, p.DeliveredDelay, p.ReplyDelay))
	}
	if c.Attachments.MaxUploadSizeMB <= 0 {
		errs = append(errs, errors.New("attachments.max_upload_size_mb must be positive"))
	}
	if strings.TrimSpace(c.ServerAddr) == "" {
		errs = append(errs, errors.New("server_addr is empty"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
