package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	Mail         MailConfig         `mapstructure:"mail"`
	Alerts       AlertsConfig       `mapstructure:"alerts"`
	Graph        GraphConfig        `mapstructure:"graph"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Reservoirs   []ReservoirConfig  `mapstructure:"reservoirs" validate:"dive"`
	Distilleries []DistilleryConfig `mapstructure:"distilleries" validate:"dive"`
	Schedules    []ScheduleConfig   `mapstructure:"schedules" validate:"dive"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env" validate:"oneof=dev test prod"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding" validate:"oneof=json console"`
	Development bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret" validate:"required,min=16"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// AlertsConfig 告警扇出 worker 参数
type AlertsConfig struct {
	Workers      int           `mapstructure:"workers"`
	BatchSize    int           `mapstructure:"batch_size"`
	ClaimLimit   int           `mapstructure:"claim_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type GraphConfig struct {
	ReplicatorWorkers int `mapstructure:"replicator_workers"`
	ReplicatorQueue   int `mapstructure:"replicator_queue"`
}

// AdminConfig 首次启动时创建的管理员账号
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// ReservoirConfig 第三方平台（水库）配置
type ReservoirConfig struct {
	Name         string        `mapstructure:"name" validate:"required"`
	Platform     string        `mapstructure:"platform" validate:"oneof=virustotal elasticsearch splunk"`
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url" validate:"required,url"`
	APIKey       string        `mapstructure:"api_key"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	Index        string        `mapstructure:"index"`
	AccountField string        `mapstructure:"account_field"`
	RatePerSec   float64       `mapstructure:"rate_per_sec" validate:"gte=0"`
	Burst        int           `mapstructure:"burst" validate:"gte=0"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PageSize     int           `mapstructure:"page_size"`
}

type DistilleryConfig struct {
	Name      string        `mapstructure:"name" validate:"required"`
	Reservoir string        `mapstructure:"reservoir" validate:"required"`
	Fields    []FieldConfig `mapstructure:"fields" validate:"required,min=1,dive"`
}

type FieldConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Path string `mapstructure:"path" validate:"required"`
	Type string `mapstructure:"type" validate:"omitempty,oneof=string int float bool time"`
}

// ScheduleConfig 定时采集任务
type ScheduleConfig struct {
	Name        string        `mapstructure:"name" validate:"required"`
	Spec        string        `mapstructure:"spec" validate:"required"`
	Accounts    []string      `mapstructure:"accounts"`
	SearchTerms []string      `mapstructure:"search_terms"`
	Lookback    time.Duration `mapstructure:"lookback"`
}

// IsDev 是否开发环境
func (c *Config) IsDev() bool { return c.App.Env == "dev" }

// Load 加载配置：默认值 < 配置文件 < 环境变量（PUMPROOM_ 前缀）
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PUMPROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := os.Getenv("PUMPROOM_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置结构
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(cfg.Reservoirs))
	for _, r := range cfg.Reservoirs {
		if _, ok := seen[r.Name]; ok {
			return fmt.Errorf("invalid config: duplicate reservoir %q", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	for _, d := range cfg.Distilleries {
		if _, ok := seen[d.Reservoir]; !ok {
			return fmt.Errorf("invalid config: distillery %q references unknown reservoir %q", d.Name, d.Reservoir)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pumproom")
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=pumproom port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("jwt.secret", "change-me-please-0123456789")
	v.SetDefault("jwt.ttl", "12h")
	v.SetDefault("jwt.issuer", "pumproom")
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("mail.port", 587)
	v.SetDefault("alerts.workers", 2)
	v.SetDefault("alerts.batch_size", 500)
	v.SetDefault("alerts.claim_limit", 128)
	v.SetDefault("alerts.poll_interval", "500ms")
	v.SetDefault("graph.replicator_workers", 4)
	v.SetDefault("graph.replicator_queue", 10000)
}
