package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Recipient RecipientConfig `mapstructure:"recipient"`
	Transport TransportConfig `mapstructure:"transport"`
	Session   SessionConfig   `mapstructure:"session"`
	Audit     DatabaseConfig  `mapstructure:"audit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // page | json
	UploadDir       string        `mapstructure:"upload_dir"`
	MaxUploadMB     int           `mapstructure:"max_upload_mb"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DispatchConfig struct {
	Delay         time.Duration `mapstructure:"delay"`
	FailurePolicy string        `mapstructure:"failure_policy"` // isolate | abort
}

type RecipientConfig struct {
	CountryCode   string `mapstructure:"country_code"`
	StrictNumbers bool   `mapstructure:"strict_numbers"`
	Template      string `mapstructure:"template"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type TransportConfig struct {
	Driver        string        `mapstructure:"driver"` // http | dryrun
	BaseURL       string        `mapstructure:"base_url"`
	SendPath      string        `mapstructure:"send_path"`
	AddressSuffix string        `mapstructure:"address_suffix"`
	Token         string        `mapstructure:"token"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Breaker       BreakerConfig `mapstructure:"breaker"`
}

type SessionConfig struct {
	ConsoleQR bool `mapstructure:"console_qr"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // none | mysql | clickhouse
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RateLimitConfig struct {
	UploadsPerMinute int `mapstructure:"uploads_per_minute"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (WANOTIFY_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (WANOTIFY_DISPATCH_DELAY, ...)
	v.SetEnvPrefix("WANOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
