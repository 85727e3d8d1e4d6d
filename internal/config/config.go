package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ORACLE_MODE_LOCAL    = "local"
	ORACLE_MODE_EXTERNAL = "external"

	ENV_PREFIX = "SECRET_GAME"
)

type AppConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`
	// 为空时不记录历史
	DatabaseURL string `mapstructure:"database_url"`

	Oracle    OracleConfig    `mapstructure:"oracle"`
	Purge     PurgeConfig     `mapstructure:"purge"`
	Commit    CommitConfig    `mapstructure:"commit"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type OracleConfig struct {
	Mode          string `mapstructure:"mode"`
	MinDelayMs    int    `mapstructure:"min_delay_ms"`
	MaxDelayMs    int    `mapstructure:"max_delay_ms"`
	CallbackToken string `mapstructure:"callback_token"`
}

type PurgeConfig struct {
	IntervalSec  int `mapstructure:"interval_sec"`
	RetentionSec int `mapstructure:"retention_sec"`
}

type CommitConfig struct {
	TickMs int `mapstructure:"tick_ms"`
}

type RateLimitConfig struct {
	// 每个身份每秒允许的请求数，0 表示不限制
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

func (c OracleConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMs) * time.Millisecond
}

func (c OracleConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

func (c PurgeConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

func (c PurgeConfig) Retention() time.Duration {
	return time.Duration(c.RetentionSec) * time.Second
}

func (c CommitConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		cfg = InitConfig()
	}

	return cfg
}

// InitConfig 读取当前目录的 app_config.json，失败时直接退出
func InitConfig() *AppConfig {
	// .env 是可选的
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Errorf("加载 .env 失败: %w", err))
	}

	config, err := LoadConfig(".")
	if err != nil {
		panic(err)
	}

	return config
}

// LoadConfig 从 dir 下的 app_config.json 读取配置，文件不存在时使用默认值。
// 环境变量 SECRET_GAME_<KEY> 优先，嵌套键用下划线连接，例如 SECRET_GAME_ORACLE_MODE。
func LoadConfig(dir string) (*AppConfig, error) {
	v := viper.New()

	v.SetConfigName("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	setDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("加载配置失败: %w", err)
		}
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", true)
	v.SetDefault("database_url", "")

	v.SetDefault("oracle.mode", ORACLE_MODE_LOCAL)
	v.SetDefault("oracle.min_delay_ms", 500)
	v.SetDefault("oracle.max_delay_ms", 3000)
	v.SetDefault("oracle.callback_token", "")

	v.SetDefault("purge.interval_sec", 60)
	v.SetDefault("purge.retention_sec", 3600)

	v.SetDefault("commit.tick_ms", 1000)

	v.SetDefault("rate_limit.per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)
}

func (c *AppConfig) Validate() error {
	switch c.Oracle.Mode {
	case ORACLE_MODE_LOCAL:
	case ORACLE_MODE_EXTERNAL:
		if c.Oracle.CallbackToken == "" {
			return errors.New("外部预言机模式必须配置 oracle.callback_token")
		}
	default:
		return fmt.Errorf("未知的预言机模式: %q", c.Oracle.Mode)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("端口无效: %d", c.Port)
	}

	if c.Oracle.MinDelayMs < 0 || c.Oracle.MaxDelayMs < c.Oracle.MinDelayMs {
		return errors.New("预言机延迟配置无效")
	}

	if c.Purge.IntervalSec <= 0 || c.Purge.RetentionSec <= 0 || c.Commit.TickMs <= 0 {
		return errors.New("定时任务周期必须为正数")
	}

	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("限流配置无效")
	}

	return nil
}
