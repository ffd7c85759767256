package configloader

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config/config.yml"

// ErrMissingExplorerKey is returned by Validate when the primary chain explorer has no API key.
var ErrMissingExplorerKey = errors.New("etherscan api key is required (etherscan.apiKey or ETHERSCAN_API_KEY)")

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port                   string   `yaml:"port"`
	ShutdownTimeoutSeconds int      `yaml:"shutdownTimeoutSeconds"`
	CORSAllowedOrigins     []string `yaml:"corsAllowedOrigins"`
	GinMode                string   `yaml:"ginMode"`
}

// DBConfig holds storage configuration. Driver is "memory" or "postgres".
type DBConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// CacheConfig holds the response cache configuration. Backend is "memory" or "postgres".
type CacheConfig struct {
	Backend                string `yaml:"backend"`
	CleanupIntervalMinutes int    `yaml:"cleanupIntervalMinutes"`
	SweepSchedule          string `yaml:"sweepSchedule"`
	SpotTTLSeconds         int    `yaml:"spotTTLSeconds"`
	HistoryTTLSeconds      int    `yaml:"historyTTLSeconds"`
	AdapterTTLSeconds      int    `yaml:"adapterTTLSeconds"`
}

// UpstreamConfig is shared by every HTTP upstream.
type UpstreamConfig struct {
	BaseURL              string  `yaml:"baseURL"`
	APIKey               string  `yaml:"apiKey"`
	RequestTimeoutMillis int64   `yaml:"requestTimeoutMillis"`
	RateLimitPerSecond   float64 `yaml:"rateLimitPerSecond"`
	Burst                int     `yaml:"burst"`
}

// RequestTimeout returns the configured timeout as a duration.
func (u UpstreamConfig) RequestTimeout() time.Duration {
	return time.Duration(u.RequestTimeoutMillis) * time.Millisecond
}

// EVMRPCConfig controls the optional go-ethereum client used for native balances.
type EVMRPCConfig struct {
	UseForNativeBalance      bool `yaml:"useForNativeBalance"`
	ConnectionTimeoutSeconds int  `yaml:"connectionTimeoutSeconds"`
	RPCCallTimeoutSeconds    int  `yaml:"rpcCallTimeoutSeconds"`
}

// SolanaConfig holds Solana JSON-RPC settings.
type SolanaConfig struct {
	UpstreamConfig `yaml:",inline"`
	MaxSignatures  int `yaml:"maxSignatures"`
}

// TONConfig holds toncenter settings.
type TONConfig struct {
	UpstreamConfig `yaml:",inline"`
	Limit          int `yaml:"limit"`
}

// CoinGeckoConfig holds CoinGecko API specific configurations.
type CoinGeckoConfig struct {
	UpstreamConfig `yaml:",inline"`
	VsCurrency     string `yaml:"vsCurrency"`
}

// DEXScreenerConfig holds DEXScreener API specific configurations.
type DEXScreenerConfig struct {
	UpstreamConfig           `yaml:",inline"`
	Enabled                  bool `yaml:"enabled"`
	MaxTokensPerBatchRequest int  `yaml:"maxTokensPerBatchRequest"`
}

// NetworkNodeConfig overrides RPC endpoints of a built-in network.
type NetworkNodeConfig struct {
	Identifier      string   `yaml:"identifier"`      // e.g., "ethereum"
	RPCURL          string   `yaml:"rpcURL"`          // e.g., "https://eth.llamarpc.com"
	FallbackRPCURLs []string `yaml:"fallbackRpcURLs"` // tried in order after RPCURL
}

// PerformanceConfig holds performance-related configurations.
type PerformanceConfig struct {
	MaxConcurrentRoutines int `yaml:"max_concurrent_routines"`
	DefaultPageLimit      int `yaml:"default_page_limit"`
	MaxPageLimit          int `yaml:"max_page_limit"`
}

// FilesConfig points at optional data files.
type FilesConfig struct {
	Wallets   string `yaml:"wallets"`
	TokensDir string `yaml:"tokensDir"`
}

// SwaggerConfig holds configuration for Swagger UI.
type SwaggerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SpecPath string `yaml:"specPath"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DBConfig            `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Cache         CacheConfig         `yaml:"cache"`
	Etherscan     UpstreamConfig      `yaml:"etherscan"`
	EVMRPC        EVMRPCConfig        `yaml:"evmRpc"`
	Solana        SolanaConfig        `yaml:"solana"`
	Bitcoin       UpstreamConfig      `yaml:"bitcoin"`
	TON           TONConfig           `yaml:"ton"`
	CoinGecko     CoinGeckoConfig     `yaml:"coingecko"`
	CoinMarketCap UpstreamConfig      `yaml:"coinmarketcap"`
	DEXScreener   DEXScreenerConfig   `yaml:"dexScreener"`
	Performance   PerformanceConfig   `yaml:"performance"`
	Files         FilesConfig         `yaml:"files"`
	Swagger       SwaggerConfig       `yaml:"swagger"`
	Networks      []NetworkNodeConfig `yaml:"networks"`
}

// PathFromEnv returns CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML configuration file from the given path, applies .env and
// environment overrides, and fills defaults. A missing file yields a default config.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		logrus.Infof("Loading configuration from path: %s", path)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logrus.Warnf("Config file %s not found, using defaults and environment", path)
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Validate reports configuration errors that must stop startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Etherscan.APIKey) == "" {
		return ErrMissingExplorerKey
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "memory":
	case "postgres":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("postgres cache backend requires the postgres database driver")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"ETHERSCAN_API_KEY", &cfg.Etherscan.APIKey},
		{"COINGECKO_API_KEY", &cfg.CoinGecko.APIKey},
		{"CMC_API_KEY", &cfg.CoinMarketCap.APIKey},
		{"SOLANA_API_KEY", &cfg.Solana.APIKey},
		{"SOLANA_RPC_URL", &cfg.Solana.BaseURL},
		{"TON_API_KEY", &cfg.TON.APIKey},
		{"DATABASE_URL", &cfg.Database.DSN},
		{"PORT", &cfg.Server.Port},
		{"LOG_LEVEL", &cfg.Logging.Level},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			*o.target = v
			logrus.Debugf("Config value overridden from environment: %s", o.env)
		}
	}
	if cfg.Database.DSN != "" && cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
}

func upstreamDefaults(u *UpstreamConfig, name, baseURL string, rate float64) {
	if u.BaseURL == "" {
		u.BaseURL = baseURL
	}
	u.BaseURL = strings.TrimRight(u.BaseURL, "/")
	if u.RequestTimeoutMillis <= 0 {
		u.RequestTimeoutMillis = 10000 // 10 seconds
		logrus.Debugf("%s request timeout defaulted to %dms", name, u.RequestTimeoutMillis)
	}
	if u.RateLimitPerSecond <= 0 {
		u.RateLimitPerSecond = rate
	}
	if u.Burst <= 0 {
		u.Burst = int(rate)
		if u.Burst < 1 {
			u.Burst = 1
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "3001"
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 5
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.CleanupIntervalMinutes <= 0 {
		cfg.Cache.CleanupIntervalMinutes = 10
	}
	if cfg.Cache.SweepSchedule == "" {
		cfg.Cache.SweepSchedule = "@every 15m"
	}
	if cfg.Cache.SpotTTLSeconds <= 0 {
		cfg.Cache.SpotTTLSeconds = 300 // 5 minutes
	}
	if cfg.Cache.HistoryTTLSeconds <= 0 {
		cfg.Cache.HistoryTTLSeconds = 3600 // 1 hour
	}
	if cfg.Cache.AdapterTTLSeconds <= 0 {
		cfg.Cache.AdapterTTLSeconds = 60
	}

	upstreamDefaults(&cfg.Etherscan, "etherscan", "https://api.etherscan.io/v2/api", 5)
	upstreamDefaults(&cfg.Solana.UpstreamConfig, "solana", "https://api.mainnet-beta.solana.com", 5)
	upstreamDefaults(&cfg.Bitcoin, "bitcoin", "https://blockstream.info/api", 5)
	upstreamDefaults(&cfg.TON.UpstreamConfig, "ton", "https://toncenter.com/api/v2", 1)
	upstreamDefaults(&cfg.CoinGecko.UpstreamConfig, "coingecko", "https://api.coingecko.com/api/v3", 0.5)
	upstreamDefaults(&cfg.CoinMarketCap, "coinmarketcap", "https://pro-api.coinmarketcap.com", 0.5)
	upstreamDefaults(&cfg.DEXScreener.UpstreamConfig, "dexscreener", "https://api.dexscreener.com", 5)

	if cfg.Solana.MaxSignatures <= 0 {
		cfg.Solana.MaxSignatures = 50
	}
	if cfg.TON.Limit <= 0 {
		cfg.TON.Limit = 100
	}
	if cfg.CoinGecko.VsCurrency == "" {
		cfg.CoinGecko.VsCurrency = "usd"
	}
	if cfg.DEXScreener.MaxTokensPerBatchRequest <= 0 {
		cfg.DEXScreener.MaxTokensPerBatchRequest = 30 // DEXScreener limit
	}

	if cfg.EVMRPC.ConnectionTimeoutSeconds <= 0 {
		cfg.EVMRPC.ConnectionTimeoutSeconds = 10
	}
	if cfg.EVMRPC.RPCCallTimeoutSeconds <= 0 {
		cfg.EVMRPC.RPCCallTimeoutSeconds = 10
	}

	if cfg.Performance.MaxConcurrentRoutines <= 0 {
		cfg.Performance.MaxConcurrentRoutines = 10 // Default to 10 if not specified or invalid
	}
	if cfg.Performance.DefaultPageLimit <= 0 {
		cfg.Performance.DefaultPageLimit = 100
	}
	if cfg.Performance.MaxPageLimit <= 0 {
		cfg.Performance.MaxPageLimit = 1000
	}

	if cfg.Swagger.SpecPath == "" {
		cfg.Swagger.SpecPath = "./docs/swagger.yaml"
	}

	for _, network := range cfg.Networks {
		if network.Identifier == "" {
			logrus.Warn("Network override without identifier is ignored")
		}
	}
}
