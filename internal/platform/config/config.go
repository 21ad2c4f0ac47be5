package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"brick/pkg/domain"
	"brick/pkg/platform/strings"
)

// Prefix is prepended to every variable name.
const Prefix = "BRICK_"

// Config is the full process configuration, loaded from BRICK_* variables.
type Config struct {
	Server     Server     `envPrefix:"SERVER_"`
	Log        Log        `envPrefix:"LOG_"`
	State      State      `envPrefix:"STATE_"`
	Redis      Redis      `envPrefix:"REDIS_"`
	Audit      Audit      `envPrefix:"AUDIT_"`
	Auth       Auth       `envPrefix:"AUTH_"`
	Market     Market     `envPrefix:"MARKET_"`
	Settlement Settlement `envPrefix:"SETTLEMENT_"`
	Otel       Otel       `envPrefix:"OTEL_"`

	BootstrapAdmin string `env:"BOOTSTRAP_ADMIN"`
}

// Server captures ops HTTP server configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// State selects where committed state is persisted.
type State struct {
	Backend    string `env:"BACKEND" envDefault:"memory"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"brick.db"`
	KeyPrefix  string `env:"KEY_PREFIX" envDefault:"brick:state"`
}

// Redis configures the client used by the redis state backend.
type Redis struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// Audit selects the audit sinks. Sinks listed are all written to.
type Audit struct {
	Sinks        []string `env:"SINKS" envSeparator:"," envDefault:"memory"`
	PostgresDSN  string   `env:"POSTGRES_DSN"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"brick.audit"`
	AsyncBuffer  int      `env:"ASYNC_BUFFER" envDefault:"1024"`
}

// Auth selects how callers are identified.
type Auth struct {
	Mode          string `env:"MODE" envDefault:"context"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"brick"`
	JWTAudience   string `env:"JWT_AUDIENCE" envDefault:"brick"`
}

type Market struct {
	FeeRateBps      uint32   `env:"FEE_RATE_BPS" envDefault:"250"`
	FeeCollector    string   `env:"FEE_COLLECTOR"`
	SupportedAssets []string `env:"SUPPORTED_ASSETS" envSeparator:"," envDefault:"USDC"`
}

type Settlement struct {
	Treasury              string `env:"TREASURY"`
	FeeCollector          string `env:"FEE_COLLECTOR"`
	PlatformFeeBps        uint32 `env:"PLATFORM_FEE_BPS" envDefault:"500"`
	MaintenanceFeeBps     uint32 `env:"MAINTENANCE_FEE_BPS" envDefault:"0"`
	DistributionThreshold uint64 `env:"DISTRIBUTION_THRESHOLD" envDefault:"100"`
	RewardAsset           string `env:"REWARD_ASSET" envDefault:"USDC"`
}

// Otel enables span export. Tracing stays a no-op without an endpoint.
type Otel struct {
	Endpoint    string `env:"ENDPOINT"`
	Enabled     bool   `env:"ENABLED" envDefault:"true"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"brick"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return load(env.Options{Prefix: Prefix})
}

// FromMap reads configuration from vars instead of the environment.
func FromMap(vars map[string]string) (Config, error) {
	return load(env.Options{Prefix: Prefix, Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Market.SupportedAssets = strings.DedupeAndTrimUpper(cfg.Market.SupportedAssets)
	cfg.Audit.Sinks = strings.DedupeAndTrimLower(cfg.Audit.Sinks)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	switch c.State.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}
	if c.State.Backend == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("redis state backend needs %sREDIS_URL", Prefix)
	}
	for _, sink := range c.Audit.Sinks {
		switch sink {
		case "memory":
		case "postgres":
			if c.Audit.PostgresDSN == "" {
				return fmt.Errorf("postgres audit sink needs %sAUDIT_POSTGRES_DSN", Prefix)
			}
		case "kafka":
			if len(c.Audit.KafkaBrokers) == 0 {
				return fmt.Errorf("kafka audit sink needs %sAUDIT_KAFKA_BROKERS", Prefix)
			}
		default:
			return fmt.Errorf("unknown audit sink %q", sink)
		}
	}
	switch c.Auth.Mode {
	case "context":
	case "jwt":
		if len(c.Auth.JWTSigningKey) < 32 {
			return fmt.Errorf("jwt auth needs a signing key of at least 32 bytes")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if domain.BasisPoints(c.Market.FeeRateBps) > 1_000 {
		return fmt.Errorf("market fee rate %d exceeds 1000 bps", c.Market.FeeRateBps)
	}
	if !domain.BasisPoints(c.Settlement.PlatformFeeBps + c.Settlement.MaintenanceFeeBps).Valid() {
		return fmt.Errorf("settlement fees exceed 10000 bps")
	}
	for _, a := range c.Market.SupportedAssets {
		if _, err := domain.ParseAsset(a); err != nil {
			return fmt.Errorf("supported asset: %w", err)
		}
	}
	if _, err := domain.ParseAsset(c.Settlement.RewardAsset); err != nil {
		return fmt.Errorf("reward asset: %w", err)
	}
	for name, p := range map[string]string{
		"bootstrap admin":          c.BootstrapAdmin,
		"market fee collector":     c.Market.FeeCollector,
		"settlement treasury":      c.Settlement.Treasury,
		"settlement fee collector": c.Settlement.FeeCollector,
	} {
		if p == "" {
			continue
		}
		if _, err := domain.ParsePrincipal(p); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
