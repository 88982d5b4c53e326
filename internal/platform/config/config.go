package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config captures process level configuration. It is read once at startup
// and never mutated afterwards.
type Config struct {
	Addr          string
	Environment   string
	LogLevel      string
	JWTSigningKey string
	TokenTTL      time.Duration
	MasterKey     string
	AdminAPIToken string
	BcryptCost    int
	PolicyFile    string

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Provider ProviderConfig
	ESign    ProviderConfig

	Policy Policy
}

// RedisConfig configures the shared Redis client. An empty URL disables Redis
// and the in-memory stores are used instead.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the database pool. An empty DSN disables Postgres.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the security event forwarder.
type KafkaConfig struct {
	Brokers       []string
	SecurityTopic string
	Partitions    int32
}

// ProviderConfig describes an outbound HTTP provider.
type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// Policy is the static rule configuration optionally loaded from a TOML file.
type Policy struct {
	RateLimits map[string]RouteLimit `toml:"rate_limits"`
	Documents  map[string][]string   `toml:"documents"`
	KYC        KYCPolicy             `toml:"kyc"`
}

// RouteLimit overrides a rate limiter route default.
type RouteLimit struct {
	Max            int           `toml:"max"`
	Window         time.Duration `toml:"window"`
	SkipSuccessful bool          `toml:"skip_successful"`
}

// KYCPolicy overrides tier and score thresholds. Zero values keep defaults.
type KYCPolicy struct {
	EnhancedThreshold float64 `toml:"enhanced_threshold"`
	StandardThreshold float64 `toml:"standard_threshold"`
	LowMinScore       int     `toml:"low_min_score"`
	MediumMinScore    int     `toml:"medium_min_score"`
	HighMinScore      int     `toml:"high_min_score"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads an optional .env file, then the environment, then the optional
// TOML policy file named by BASTION_POLICY_FILE.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := FromEnv()
	if cfg.PolicyFile != "" {
		policy, err := LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Policy = policy
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          getEnv("BASTION_ADDR", ":8080"),
		Environment:   getEnv("BASTION_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", devSigningKey),
		TokenTTL:      getDuration("TOKEN_TTL", time.Hour),
		MasterKey:     getEnv("ENCRYPTION_MASTER_KEY", ""),
		AdminAPIToken: os.Getenv("ADMIN_API_TOKEN"),
		BcryptCost:    getInt("BCRYPT_COST", 12),
		PolicyFile:    os.Getenv("BASTION_POLICY_FILE"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			SecurityTopic: getEnv("KAFKA_SECURITY_TOPIC", "bastion.security-events"),
			Partitions:    int32(getInt("KAFKA_PARTITIONS", 3)),
		},
		Provider: ProviderConfig{
			BaseURL:    os.Getenv("KYC_PROVIDER_URL"),
			APIKey:     os.Getenv("KYC_PROVIDER_API_KEY"),
			Timeout:    getDuration("KYC_PROVIDER_TIMEOUT", 10*time.Second),
			RatePerSec: getFloat("KYC_PROVIDER_RPS", 5),
			Burst:      getInt("KYC_PROVIDER_BURST", 5),
		},
		ESign: ProviderConfig{
			BaseURL:    os.Getenv("ESIGN_PROVIDER_URL"),
			APIKey:     os.Getenv("ESIGN_PROVIDER_API_KEY"),
			Timeout:    getDuration("ESIGN_PROVIDER_TIMEOUT", 10*time.Second),
			RatePerSec: getFloat("ESIGN_PROVIDER_RPS", 5),
			Burst:      getInt("ESIGN_PROVIDER_BURST", 5),
		},
	}
}

// LoadPolicy decodes a TOML policy file.
func LoadPolicy(path string) (Policy, error) {
	var p Policy
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Policy{}, fmt.Errorf("decode policy file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Policy{}, fmt.Errorf("policy file %s: unknown keys %v", path, undecoded)
	}
	return p, nil
}

// Validate rejects configurations that must never reach production.
func (c Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSigningKey == devSigningKey {
			return errors.New("JWT_SIGNING_KEY must be set in production")
		}
		if c.MasterKey == "" {
			return errors.New("ENCRYPTION_MASTER_KEY must be set in production")
		}
	}
	if c.BcryptCost < 10 || c.BcryptCost > 16 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 16, got %d", c.BcryptCost)
	}
	for name, rl := range c.Policy.RateLimits {
		if rl.Max <= 0 || rl.Window <= 0 {
			return fmt.Errorf("rate limit %q requires positive max and window", name)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
