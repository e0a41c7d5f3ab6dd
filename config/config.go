package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	AES          AESConfig          `mapstructure:"aes"`
	Log          LogConfig          `mapstructure:"log"`
	Store        StoreConfig        `mapstructure:"store"`
	Sequence     SequenceConfig     `mapstructure:"sequence"`
	Verification VerificationConfig `mapstructure:"verification"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Staff        StaffConfig        `mapstructure:"staff"`
	Notifier     NotifierConfig     `mapstructure:"notifier"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// DSN returns the PostgreSQL connection URL with credentials escaped.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type AESConfig struct {
	Key string `mapstructure:"key"` // 32-byte hex-encoded key for AES-256
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// StoreConfig selects the durable backend behind the local record store.
type StoreConfig struct {
	Backend  string        `mapstructure:"backend"` // file, redis, postgres
	Dir      string        `mapstructure:"dir"`     // file backend only
	Debounce time.Duration `mapstructure:"debounce"`
	Encrypt  bool          `mapstructure:"encrypt"` // seal payloads with the AES key
}

// SequenceConfig controls reference number prefixes per artifact kind.
type SequenceConfig struct {
	QRTPrefix         string `mapstructure:"qrt_prefix"`
	CertificatePrefix string `mapstructure:"certificate_prefix"`
	BlotterPrefix     string `mapstructure:"blotter_prefix"`
	ResetYearly       bool   `mapstructure:"reset_yearly"`
}

// VerificationConfig controls the authoritative source used by the verification gateway.
type VerificationConfig struct {
	RemoteURL    string        `mapstructure:"remote_url"` // empty = postgres document index
	Timeout      time.Duration `mapstructure:"timeout"`
	SyncSchedule string        `mapstructure:"sync_schedule"`
	PublishRPS   int           `mapstructure:"publish_rps"`
	IndexSecret  string        `mapstructure:"index_secret"` // HMAC secret for index writes
	LogBackend   string        `mapstructure:"log_backend"`  // postgres, redis
}

type PaymentConfig struct {
	ProviderSecret string        `mapstructure:"provider_secret"`
	MaxDrift       time.Duration `mapstructure:"max_drift"`
}

// StaffConfig maps staff usernames to argon2id password hashes.
type StaffConfig struct {
	Accounts map[string]string `mapstructure:"accounts"`
}

type NotifierConfig struct {
	WebhookURL string `mapstructure:"webhook_url"` // empty = notifications disabled
	Secret     string `mapstructure:"secret"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CDS_ (Civic Document Service).
// Nested keys use underscore: CDS_DATABASE_HOST, CDS_STORE_BACKEND, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "civic_documents")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "8h")
	v.SetDefault("jwt.issuer", "civic-document-service")
	v.SetDefault("aes.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", "./data")
	v.SetDefault("store.debounce", "750ms")
	v.SetDefault("store.encrypt", false)
	v.SetDefault("sequence.qrt_prefix", "QRT")
	v.SetDefault("sequence.certificate_prefix", "CERT")
	v.SetDefault("sequence.blotter_prefix", "BLT")
	v.SetDefault("sequence.reset_yearly", false)
	v.SetDefault("verification.remote_url", "")
	v.SetDefault("verification.timeout", "3s")
	v.SetDefault("verification.sync_schedule", "@every 1m")
	v.SetDefault("verification.publish_rps", 50)
	v.SetDefault("verification.index_secret", "")
	v.SetDefault("verification.log_backend", "postgres")
	v.SetDefault("payment.provider_secret", "")
	v.SetDefault("payment.max_drift", "60s")
	v.SetDefault("notifier.webhook_url", "")
	v.SetDefault("notifier.secret", "")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CDS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "file", "redis", "postgres":
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}
	if c.Store.Encrypt && c.AES.Key == "" {
		return fmt.Errorf("store.encrypt requires aes.key")
	}
	switch c.Verification.LogBackend {
	case "postgres", "redis":
	default:
		return fmt.Errorf("unsupported verification log backend %q", c.Verification.LogBackend)
	}
	if c.Verification.PublishRPS <= 0 {
		return fmt.Errorf("verification.publish_rps must be positive")
	}
	return nil
}
