// Package config loads the service configuration from flags, environment
// variables prefixed with HUB_, and an optional .env file.
package config

import (
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff"
	"github.com/shopspring/decimal"

	"transfer-hub/internal/fee"
	"transfer-hub/internal/query"
)

const EnvVarPrefix = "HUB"

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort  string
	StoreDriver string
	APIKey      string

	DefaultCurrency string
	ReferencePrefix string

	FeeRate decimal.Decimal
	FeeMin  int64
	FeeMax  int64

	PageDefaultLimit int
	PageMaxLimit     int

	ProviderLatency     time.Duration
	ProviderTimeout     time.Duration
	ProviderSuccessRate float64

	Logging LoggingConfig
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		DBHost:              "localhost",
		DBPort:              "5432",
		DBUser:              "postgres",
		DBPassword:          "postgres",
		DBName:              "transfer_hub",
		DBSSLMode:           "disable",
		ServerPort:          "8080",
		StoreDriver:         StoreDriverPostgres,
		DefaultCurrency:     "XOF",
		ReferencePrefix:     "DEXC_TX",
		FeeRate:             fee.DefaultPolicy().Rate,
		FeeMin:              fee.DefaultPolicy().Min,
		FeeMax:              fee.DefaultPolicy().Max,
		PageDefaultLimit:    query.DefaultLimit,
		PageMaxLimit:        query.MaxLimit,
		ProviderLatency:     2 * time.Second,
		ProviderTimeout:     30 * time.Second,
		ProviderSuccessRate: 0.85,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env when present, then parses args. Flags win over
// environment variables, which win over defaults.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	def := Default()
	fs := flag.NewFlagSet("transfer-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		dbHost      = fs.String("db_host", def.DBHost, "postgres host")
		dbPort      = fs.String("db_port", def.DBPort, "postgres port")
		dbUser      = fs.String("db_user", def.DBUser, "postgres user")
		dbPassword  = fs.String("db_password", def.DBPassword, "postgres password")
		dbName      = fs.String("db_name", def.DBName, "postgres database name")
		dbSSLMode   = fs.String("db_sslmode", def.DBSSLMode, "postgres sslmode")
		serverPort  = fs.String("server_port", def.ServerPort, "HTTP listen port, 0 picks a free one")
		storeDriver = fs.String("store_driver", def.StoreDriver, "postgres or memory")
		apiKey      = fs.String("api_key", "", "shared secret expected in the x-api-key header")
		currency    = fs.String("default_currency", def.DefaultCurrency, "currency applied when a request names none")
		refPrefix   = fs.String("reference_prefix", def.ReferencePrefix, "transaction reference prefix")
		feeRate     = fs.String("fee_rate", def.FeeRate.String(), "fee rate applied to the requested amount")
		feeMin      = fs.Int64("fee_min", def.FeeMin, "minimum fee in minor units")
		feeMax      = fs.Int64("fee_max", def.FeeMax, "maximum fee in minor units")
		pageDefault = fs.Int("page_default_limit", def.PageDefaultLimit, "default page size")
		pageMax     = fs.Int("page_max_limit", def.PageMaxLimit, "maximum page size")
		latency     = fs.Duration("provider_latency", def.ProviderLatency, "simulated provider latency")
		timeout     = fs.Duration("provider_timeout", def.ProviderTimeout, "upper bound on one provider call")
		successRate = fs.Float64("provider_success_rate", def.ProviderSuccessRate, "simulated provider success probability")
		logLevel    = fs.String("log_level", def.Logging.Level, "debug, info, warn or error")
		logFormat   = fs.String("log_format", def.Logging.Format, "json or text")
		_           = fs.String("test.v", "", "") // passed by some IDE test runners
	)

	err := ff.Parse(fs, args,
		ff.WithIgnoreUndefined(true),
		ff.WithEnvVarPrefix(EnvVarPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	rate, err := decimal.NewFromString(*feeRate)
	if err != nil {
		return nil, fmt.Errorf("invalid fee_rate %q: %w", *feeRate, err)
	}

	cfg := &Config{
		DBHost:              *dbHost,
		DBPort:              *dbPort,
		DBUser:              *dbUser,
		DBPassword:          *dbPassword,
		DBName:              *dbName,
		DBSSLMode:           *dbSSLMode,
		ServerPort:          *serverPort,
		StoreDriver:         *storeDriver,
		APIKey:              *apiKey,
		DefaultCurrency:     *currency,
		ReferencePrefix:     *refPrefix,
		FeeRate:             rate,
		FeeMin:              *feeMin,
		FeeMax:              *feeMax,
		PageDefaultLimit:    *pageDefault,
		PageMaxLimit:        *pageMax,
		ProviderLatency:     *latency,
		ProviderTimeout:     *timeout,
		ProviderSuccessRate: *successRate,
		Logging: LoggingConfig{
			Level:  *logLevel,
			Format: *logFormat,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("store_driver must be %s or %s, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.FeeRate.IsNegative() {
		return fmt.Errorf("fee_rate must not be negative")
	}
	if c.FeeMin < 0 || c.FeeMax < c.FeeMin {
		return fmt.Errorf("fee bounds must satisfy 0 <= fee_min <= fee_max, got %d and %d", c.FeeMin, c.FeeMax)
	}
	// The simulated providers read zero as "use the default rate".
	if c.ProviderSuccessRate <= 0 || c.ProviderSuccessRate > 1 {
		return fmt.Errorf("provider_success_rate must be within (0, 1], got %v", c.ProviderSuccessRate)
	}
	return nil
}

// GetDBConnectionString returns the lib/pq key/value connection string.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func (c *Config) FeePolicy() fee.Policy {
	return fee.Policy{Rate: c.FeeRate, Min: c.FeeMin, Max: c.FeeMax}
}

func (c *Config) Paginator() query.Paginator {
	return query.NewPaginator(c.PageDefaultLimit, c.PageMaxLimit)
}
