package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	JWT          JWTConfig          `yaml:"jwt"`
	Log          LogConfig          `yaml:"log"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Hierarchy    HierarchyConfig    `yaml:"hierarchy"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Email        EmailConfig        `yaml:"email"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Subscription SubscriptionConfig `yaml:"subscription"`
}

// ServerConfig contains HTTP and gRPC listener settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Database      string `yaml:"database"`
	SSLMode       string `yaml:"ssl_mode"`
	RunMigrations bool   `yaml:"run_migrations"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// GatewayConfig contains NOWPayments settings
type GatewayConfig struct {
	BaseURL              string `yaml:"base_url"`
	APIKey               string `yaml:"api_key"`
	IPNSecret            string `yaml:"ipn_secret"`
	IPNCallbackURL       string `yaml:"ipn_callback_url"`
	SuccessURL           string `yaml:"success_url"`
	CancelURL            string `yaml:"cancel_url"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
	CurrencyCacheSeconds int    `yaml:"currency_cache_ttl_seconds"`
}

// HierarchyConfig bounds downline traversal
type HierarchyConfig struct {
	MaxDepth     int `yaml:"max_depth"`
	DefaultDepth int `yaml:"default_depth"`
}

// RedisConfig contains cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig contains event publishing settings. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// EmailConfig contains SendGrid settings. An empty API key disables email.
type EmailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	RefreshPendingPayments string `yaml:"refresh_pending_payments"`
	ExpireSubscriptions    string `yaml:"expire_subscriptions"`
	SendExpiryReminders    string `yaml:"send_expiry_reminders"`
	RefreshMinAgeMinutes   int    `yaml:"refresh_min_age_minutes"`
	BatchSize              int    `yaml:"batch_size"`
}

// SubscriptionConfig contains entitlement lifecycle settings
type SubscriptionConfig struct {
	ReminderWindowHours int `yaml:"reminder_window_hours"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("HTTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.HTTPPort)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.GRPCPort)
	}

	// Gateway
	if val := os.Getenv("NOWPAYMENTS_API_KEY"); val != "" {
		c.Gateway.APIKey = val
	}
	if val := os.Getenv("NOWPAYMENTS_IPN_SECRET"); val != "" {
		c.Gateway.IPNSecret = val
	}
	if val := os.Getenv("NOWPAYMENTS_BASE_URL"); val != "" {
		c.Gateway.BaseURL = val
	}
	if val := os.Getenv("NOWPAYMENTS_IPN_CALLBACK_URL"); val != "" {
		c.Gateway.IPNCallbackURL = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// Kafka
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
	}

	// Email
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Email.SendGridAPIKey = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = c.Server.HTTPPort + 1
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 || c.Server.GRPCPort == c.Server.HTTPPort {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Gateway validation
	if c.Gateway.APIKey == "" {
		return fmt.Errorf("gateway API key is required")
	}
	if c.Gateway.IPNSecret == "" {
		return fmt.Errorf("gateway IPN secret is required")
	}
	if c.Gateway.BaseURL == "" {
		c.Gateway.BaseURL = "https://api.nowpayments.io/v1"
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 10
	}
	if c.Gateway.CurrencyCacheSeconds <= 0 {
		c.Gateway.CurrencyCacheSeconds = 600
	}

	// Hierarchy defaults
	if c.Hierarchy.MaxDepth <= 0 {
		c.Hierarchy.MaxDepth = 50
	}
	if c.Hierarchy.DefaultDepth <= 0 {
		c.Hierarchy.DefaultDepth = 10
	}
	if c.Hierarchy.DefaultDepth > c.Hierarchy.MaxDepth {
		return fmt.Errorf("hierarchy default depth %d exceeds max depth %d", c.Hierarchy.DefaultDepth, c.Hierarchy.MaxDepth)
	}

	// Kafka defaults
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "teamnet.payments"
	}

	// Email defaults
	if c.Email.FromName == "" {
		c.Email.FromName = "TeamNet"
	}
	if c.Email.SendGridAPIKey != "" && c.Email.FromEmail == "" {
		return fmt.Errorf("email from address is required when SendGrid is enabled")
	}

	// Scheduler defaults
	if c.Scheduler.RefreshPendingPayments == "" {
		c.Scheduler.RefreshPendingPayments = "0 */5 * * * *" // every 5 minutes
	}
	if c.Scheduler.ExpireSubscriptions == "" {
		c.Scheduler.ExpireSubscriptions = "0 0 * * * *" // hourly
	}
	if c.Scheduler.SendExpiryReminders == "" {
		c.Scheduler.SendExpiryReminders = "0 30 * * * *" // hourly at :30
	}
	if c.Scheduler.RefreshMinAgeMinutes <= 0 {
		c.Scheduler.RefreshMinAgeMinutes = 5
	}
	if c.Scheduler.BatchSize <= 0 {
		c.Scheduler.BatchSize = 100
	}

	// Subscription defaults
	if c.Subscription.ReminderWindowHours <= 0 {
		c.Subscription.ReminderWindowHours = 24
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetHTTPAddress returns the HTTP server address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// GetGRPCAddress returns the gRPC health server address
func (c *Config) GetGRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func (g GatewayConfig) CurrencyCacheTTL() time.Duration {
	return time.Duration(g.CurrencyCacheSeconds) * time.Second
}

func (s SchedulerConfig) RefreshMinAge() time.Duration {
	return time.Duration(s.RefreshMinAgeMinutes) * time.Minute
}

func (s SubscriptionConfig) ReminderWindow() time.Duration {
	return time.Duration(s.ReminderWindowHours) * time.Hour
}
