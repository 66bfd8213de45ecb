package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/DoyleJ11/pug-queue-backend/internal/engine"
)

type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Store     StoreConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	OTel      OTelConfig
	JWT       JWTConfig
	Queue     QueueConfig
	Veto      VetoConfig
	Allocator AllocatorConfig
}

type AppConfig struct {
	Name        string
	Environment string
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StoreConfig picks where queue records live: "redis" or "memory".
type StoreConfig struct {
	Backend string
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	MaxRetries    int
	RetryInterval time.Duration
	KeyPrefix     string
}

// DatabaseConfig is optional. An empty URL runs without match persistence.
type DatabaseConfig struct {
	URL           string
	SlowThreshold time.Duration
}

type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

type OTelConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
}

type JWTConfig struct {
	Secret string
}

type QueueConfig struct {
	MaxPerOwner     int
	MinCapacity     int
	DefaultCapacity int
	TTL             time.Duration
	DefaultMode     engine.Mode
	SlugRetries     int
	FlipProbability float64
}

type VetoConfig struct {
	MapPool   []string
	BanOrder  []engine.BanStage
	AutoStart bool
}

type AllocatorConfig struct {
	ProvisionerURL string
	Timeout        time.Duration
}

// Load reads configuration from the environment. Call godotenv.Load first to
// pick up a local .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "pug-queue")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("STORE_BACKEND", "memory")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 50)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_RETRY_INTERVAL", "1s")
	v.SetDefault("REDIS_KEY_PREFIX", "pug")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_SLOW_THRESHOLD", "200ms")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "pug.queue-events")
	v.SetDefault("KAFKA_CLIENT_ID", "pug-queue")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "pug-queue")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")

	v.SetDefault("JWT_SECRET", "")

	v.SetDefault("QUEUE_MAX_PER_OWNER", 1)
	v.SetDefault("QUEUE_MIN_CAPACITY", 2)
	v.SetDefault("QUEUE_DEFAULT_CAPACITY", 10)
	v.SetDefault("QUEUE_TTL", "1h")
	v.SetDefault("QUEUE_DEFAULT_MODE", string(engine.ModeDraft))
	v.SetDefault("QUEUE_SLUG_RETRIES", 5)
	v.SetDefault("BALANCE_FLIP_PROBABILITY", 0.10)

	v.SetDefault("VETO_MAP_POOL", "de_dust2,de_mirage,de_inferno,de_nuke,de_overpass,de_ancient,de_anubis")
	v.SetDefault("VETO_BAN_ORDER", "")
	v.SetDefault("VETO_AUTO_START", false)

	v.SetDefault("PROVISIONER_URL", "")
	v.SetDefault("ALLOCATION_TIMEOUT", "20s")
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENV")

	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")
	cfg.HTTP.ShutdownTimeout = v.GetDuration("HTTP_SHUTDOWN_TIMEOUT")

	cfg.Store.Backend = strings.ToLower(v.GetString("STORE_BACKEND"))

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MaxRetries = v.GetInt("REDIS_MAX_RETRIES")
	cfg.Redis.RetryInterval = v.GetDuration("REDIS_RETRY_INTERVAL")
	cfg.Redis.KeyPrefix = v.GetString("REDIS_KEY_PREFIX")

	cfg.Database.URL = v.GetString("DATABASE_URL")
	cfg.Database.SlowThreshold = v.GetDuration("DATABASE_SLOW_THRESHOLD")

	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")

	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")

	cfg.JWT.Secret = v.GetString("JWT_SECRET")

	cfg.Queue.MaxPerOwner = v.GetInt("QUEUE_MAX_PER_OWNER")
	cfg.Queue.MinCapacity = v.GetInt("QUEUE_MIN_CAPACITY")
	cfg.Queue.DefaultCapacity = v.GetInt("QUEUE_DEFAULT_CAPACITY")
	cfg.Queue.TTL = v.GetDuration("QUEUE_TTL")
	cfg.Queue.DefaultMode = engine.Mode(strings.ToLower(v.GetString("QUEUE_DEFAULT_MODE")))
	cfg.Queue.SlugRetries = v.GetInt("QUEUE_SLUG_RETRIES")
	cfg.Queue.FlipProbability = v.GetFloat64("BALANCE_FLIP_PROBABILITY")

	cfg.Veto.MapPool = splitList(v.GetString("VETO_MAP_POOL"))
	order, err := engine.ParseBanOrder(v.GetString("VETO_BAN_ORDER"))
	if err != nil {
		return fmt.Errorf("VETO_BAN_ORDER: %w", err)
	}
	cfg.Veto.BanOrder = order
	cfg.Veto.AutoStart = v.GetBool("VETO_AUTO_START")

	cfg.Allocator.ProvisionerURL = v.GetString("PROVISIONER_URL")
	cfg.Allocator.Timeout = v.GetDuration("ALLOCATION_TIMEOUT")
	return nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required for the redis store")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q: want redis or memory", c.Store.Backend)
	}
	if c.Queue.MinCapacity < 2 {
		return errors.New("QUEUE_MIN_CAPACITY must be at least 2")
	}
	if c.Queue.DefaultCapacity < c.Queue.MinCapacity {
		return errors.New("QUEUE_DEFAULT_CAPACITY must not be below QUEUE_MIN_CAPACITY")
	}
	if c.Queue.MaxPerOwner < 1 {
		return errors.New("QUEUE_MAX_PER_OWNER must be positive")
	}
	if c.Queue.TTL <= 0 {
		return errors.New("QUEUE_TTL must be positive")
	}
	if !c.Queue.DefaultMode.Valid() {
		return fmt.Errorf("QUEUE_DEFAULT_MODE %q: want draft or balance", c.Queue.DefaultMode)
	}
	if c.Queue.FlipProbability < 0 || c.Queue.FlipProbability > 1 {
		return errors.New("BALANCE_FLIP_PROBABILITY must be within [0, 1]")
	}
	if len(c.Veto.MapPool) == 0 {
		return errors.New("VETO_MAP_POOL must list at least one map")
	}
	if err := engine.ValidateBanOrder(c.Veto.BanOrder); err != nil {
		return fmt.Errorf("VETO_BAN_ORDER: %w", err)
	}
	return nil
}

// Rules is the per-queue rule set new queues are stamped with.
func (c *Config) Rules() engine.Rules {
	return engine.Rules{
		MapPool:         c.Veto.MapPool,
		BanOrder:        c.Veto.BanOrder,
		FlipProbability: c.Queue.FlipProbability,
		AutoStartVeto:   c.Veto.AutoStart,
	}
}

func (c *Config) IsDevelopment() bool { return c.App.Environment == "development" }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
