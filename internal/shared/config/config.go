package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"aquasim-server/internal/shared/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Frontend   FrontendConfig
	Logging    LoggingConfig
	RateLimit  RateLimitConfig
	Simulation SimulationConfig
	Seed       SeedConfig
}

type RedisConfig struct {
	Enabled       bool
	URL           string
	Host          string
	Port          string
	Password      string
	DB            int
	ChannelPrefix string
}

type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	TokenExpiration time.Duration
}

type FrontendConfig struct {
	URL       string
	CORSDebug bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	JSONFormat bool
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	TrustProxy        bool
}

// SimulationConfig drives the tick scheduler and the growth generators
type SimulationConfig struct {
	Enabled       bool
	Seed          uint64
	Interval      time.Duration
	StartDelay    time.Duration
	AnomalyPeriod int64
}

// SeedConfig controls historical backfill of an empty store
type SeedConfig struct {
	OnStartup bool
	Days      int
	BatchSize int
}

var GlobalConfig *Config

func Init() error {
	config, err := Load()
	if err != nil {
		return err
	}

	GlobalConfig = config
	return nil
}

// Load reads the environment (and .env if present) without touching GlobalConfig
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using system environment variables")
	}

	config, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func load() (*Config, error) {
	simulation, err := loadSimulationConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server:     loadServerConfig(),
		Database:   loadDatabaseConfig(),
		Redis:      loadRedisConfig(),
		Auth:       loadAuthConfig(),
		Frontend:   loadFrontendConfig(),
		Logging:    loadLoggingConfig(),
		RateLimit:  loadRateLimitConfig(),
		Simulation: simulation,
		Seed:       loadSeedConfig(),
	}

	return config, nil
}

func loadRedisConfig() RedisConfig {
	enabled := utils.GetEnv("REDIS_ENABLED", "false") == "true"
	redisURL := utils.GetEnv("REDIS_URL", "")

	db, _ := strconv.Atoi(utils.GetEnv("REDIS_DB", "0"))

	return RedisConfig{
		Enabled:       enabled,
		URL:           redisURL,
		Host:          utils.GetEnv("REDIS_HOST", "localhost"),
		Port:          utils.GetEnv("REDIS_PORT", "6379"),
		Password:      utils.GetEnv("REDIS_PASSWORD", ""),
		DB:            db,
		ChannelPrefix: utils.GetEnv("REDIS_CHANNEL_PREFIX", "aquasim:"),
	}
}

func loadServerConfig() ServerConfig {
	readTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_READ_TIMEOUT_SECONDS", "15"))
	// SSE streams stay open, so writes are unbounded unless configured
	writeTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_WRITE_TIMEOUT_SECONDS", "0"))
	idleTimeout, _ := strconv.Atoi(utils.GetEnv("SERVER_IDLE_TIMEOUT_SECONDS", "60"))

	return ServerConfig{
		Port:         utils.GetEnv("SERVER_PORT", "5100"),
		Environment:  utils.GetEnv("ENVIRONMENT", "development"),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
		IdleTimeout:  time.Duration(idleTimeout) * time.Second,
	}
}

func loadDatabaseConfig() DatabaseConfig {
	maxOpenConns, _ := strconv.Atoi(utils.GetEnv("DB_MAX_OPEN_CONNS", "25"))
	maxIdleConns, _ := strconv.Atoi(utils.GetEnv("DB_MAX_IDLE_CONNS", "5"))
	connMaxLifetime, _ := strconv.Atoi(utils.GetEnv("DB_CONN_MAX_LIFETIME_MINUTES", "5"))

	return DatabaseConfig{
		Driver:          utils.GetEnv("DB_DRIVER", "postgres"),
		Host:            utils.GetEnv("DB_HOST", "localhost"),
		Port:            utils.GetEnv("DB_PORT", "5432"),
		User:            utils.GetEnv("DB_USER", "postgres"),
		Password:        utils.GetEnv("DB_PASSWORD", "postgres"),
		Name:            utils.GetEnv("DB_NAME", "aquaculture"),
		SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
		SQLitePath:      utils.GetEnv("DB_SQLITE_PATH", "aquaculture.db"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: time.Duration(connMaxLifetime) * time.Minute,
	}
}

func loadAuthConfig() AuthConfig {
	tokenExpiration, _ := strconv.Atoi(utils.GetEnv("JWT_EXPIRATION_HOURS", "24"))

	return AuthConfig{
		JWTSecret:       utils.GetEnv("JWT_SECRET", ""),
		TokenExpiration: time.Duration(tokenExpiration) * time.Hour,
	}
}

func loadFrontendConfig() FrontendConfig {
	corsDebug := utils.GetEnv("CORS_DEBUG", "") == "true"

	return FrontendConfig{
		URL:       utils.GetEnv("FRONTEND_URL", "*"),
		CORSDebug: corsDebug,
	}
}

func loadLoggingConfig() LoggingConfig {
	environment := utils.GetEnv("ENVIRONMENT", "development")
	jsonFormat := environment == "production" || utils.GetEnv("LOG_FORMAT", "text") == "json"

	return LoggingConfig{
		Level:      utils.GetEnv("LOG_LEVEL", "info"),
		Format:     utils.GetEnv("LOG_FORMAT", "text"),
		JSONFormat: jsonFormat,
	}
}

func loadRateLimitConfig() RateLimitConfig {
	enabled := utils.GetEnv("RATE_LIMIT_ENABLED", "true") == "true"
	requestsPerSecond, _ := strconv.ParseFloat(utils.GetEnv("RATE_LIMIT_REQUESTS_PER_SECOND", "10"), 64)
	burstSize, _ := strconv.Atoi(utils.GetEnv("RATE_LIMIT_BURST_SIZE", "20"))

	return RateLimitConfig{
		Enabled:           enabled,
		RequestsPerSecond: requestsPerSecond,
		BurstSize:         burstSize,
		TrustProxy:        utils.GetEnv("RATE_LIMIT_TRUST_PROXY", "false") == "true",
	}
}

func loadSimulationConfig() (SimulationConfig, error) {
	seed, err := strconv.ParseUint(utils.GetEnv("SIMULATION_SEED", "42"), 10, 64)
	if err != nil {
		return SimulationConfig{}, fmt.Errorf("SIMULATION_SEED: %w", err)
	}
	interval, err := time.ParseDuration(utils.GetEnv("SIMULATION_INTERVAL", "15s"))
	if err != nil {
		return SimulationConfig{}, fmt.Errorf("SIMULATION_INTERVAL: %w", err)
	}
	startDelay, err := time.ParseDuration(utils.GetEnv("SIMULATION_START_DELAY", "2s"))
	if err != nil {
		return SimulationConfig{}, fmt.Errorf("SIMULATION_START_DELAY: %w", err)
	}
	anomalyPeriod, err := strconv.ParseInt(utils.GetEnv("SIMULATION_ANOMALY_PERIOD", "500"), 10, 64)
	if err != nil {
		return SimulationConfig{}, fmt.Errorf("SIMULATION_ANOMALY_PERIOD: %w", err)
	}

	return SimulationConfig{
		Enabled:       utils.GetEnv("SIMULATION_ENABLED", "true") == "true",
		Seed:          seed,
		Interval:      interval,
		StartDelay:    startDelay,
		AnomalyPeriod: anomalyPeriod,
	}, nil
}

func loadSeedConfig() SeedConfig {
	days, _ := strconv.Atoi(utils.GetEnv("SEED_DAYS", "60"))
	batchSize, _ := strconv.Atoi(utils.GetEnv("SEED_BATCH_SIZE", "500"))

	return SeedConfig{
		OnStartup: utils.GetEnv("SEED_ON_STARTUP", "false") == "true",
		Days:      days,
		BatchSize: batchSize,
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("DB_SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver)
	}

	if c.Simulation.Interval <= 0 {
		return fmt.Errorf("SIMULATION_INTERVAL must be positive")
	}

	if c.Simulation.AnomalyPeriod <= 0 {
		return fmt.Errorf("SIMULATION_ANOMALY_PERIOD must be positive")
	}

	if c.Seed.BatchSize <= 0 {
		return fmt.Errorf("SEED_BATCH_SIZE must be positive")
	}

	return nil
}

// AuthConfigured reports whether the admin reset endpoint can validate tokens
func (c *Config) AuthConfigured() bool {
	return c.Auth.JWTSecret != ""
}

func (c *Config) ConnectionString() string {
	if c.Database.Driver == "sqlite" {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", c.Database.SQLitePath)
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
