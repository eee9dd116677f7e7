package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auction        AuctionConfig        `yaml:"auction"`
	Notify         NotifyConfig         `yaml:"notify"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	AdminToken      string   `yaml:"admin_token"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds persistence settings for the configured driver.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "redis"

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// Redis settings, used when Driver is "redis".
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// IncrementTier defines the bid increment for players whose base price is
// strictly below Below. Tiers are evaluated in order; the first match wins.
type IncrementTier struct {
	Below int64 `yaml:"below"`
	Step  int64 `yaml:"step"`
}

// AuctionConfig holds engine timing and bidding parameters.
type AuctionConfig struct {
	// OpeningWindow is the bidding window armed when a player first goes
	// up and after resume.
	OpeningWindow Duration `yaml:"opening_window"`
	// ContinuationWindow is the shorter window re-armed after each bid.
	ContinuationWindow Duration `yaml:"continuation_window"`
	// ExpiryGrace is how early an expiry claim may arrive and still be
	// honoured, tolerating client and network jitter.
	ExpiryGrace Duration `yaml:"expiry_grace"`
	// BidLockWait bounds how long a bid request waits for its turn.
	BidLockWait Duration `yaml:"bid_lock_wait"`
	// BidLockHold bounds how long a single bid may hold the critical
	// section before it is force-released.
	BidLockHold Duration `yaml:"bid_lock_hold"`
	// IncrementTiers maps base-price bands to bid increments. A base
	// price above every tier uses the final tier's step.
	IncrementTiers []IncrementTier `yaml:"increment_tiers"`
}

// NotifyConfig holds Discord announcement settings.
type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool     `yaml:"enabled"`
	LeaseName      string   `yaml:"lease_name"`
	LeaseNamespace string   `yaml:"lease_namespace"`
	LeaseDuration  Duration `yaml:"lease_duration"`
	RenewDeadline  Duration `yaml:"renew_deadline"`
	RetryPeriod    Duration `yaml:"retry_period"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Driver:    "postgres",
			Host:      "localhost",
			Port:      5432,
			SSLMode:   "disable",
			RedisAddr: "localhost:6379",
		},
		Auction: AuctionConfig{
			OpeningWindow:      Duration(60 * time.Second),
			ContinuationWindow: Duration(15 * time.Second),
			ExpiryGrace:        Duration(500 * time.Millisecond),
			BidLockWait:        Duration(250 * time.Millisecond),
			BidLockHold:        Duration(2 * time.Second),
			IncrementTiers: []IncrementTier{
				{Below: 1_000_000, Step: 0}, // step 0 means "base price"
				{Below: 5_000_000, Step: 500_000},
				{Below: 10_000_000, Step: 1_000_000},
				{Below: 0, Step: 2_500_000},
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctiond-leader",
			LeaseNamespace: "default",
			LeaseDuration:  Duration(15 * time.Second),
			RenewDeadline:  Duration(10 * time.Second),
			RetryPeriod:    Duration(2 * time.Second),
		},
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "redis":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"postgres\" or \"redis\"", c.Database.Driver)
	}

	a := c.Auction
	if a.OpeningWindow <= 0 || a.ContinuationWindow <= 0 {
		return fmt.Errorf("auction windows must be positive (opening=%v continuation=%v)", a.OpeningWindow, a.ContinuationWindow)
	}
	if a.ContinuationWindow > a.OpeningWindow {
		return fmt.Errorf("continuation window %v must not exceed opening window %v", a.ContinuationWindow, a.OpeningWindow)
	}
	if a.ExpiryGrace < 0 {
		return fmt.Errorf("expiry grace must not be negative")
	}
	if a.BidLockWait <= 0 || a.BidLockHold <= 0 {
		return fmt.Errorf("bid lock wait and hold must be positive")
	}
	if len(a.IncrementTiers) == 0 {
		return fmt.Errorf("at least one increment tier is required")
	}
	if last := a.IncrementTiers[len(a.IncrementTiers)-1]; last.Below != 0 {
		return fmt.Errorf("final increment tier must be open-ended (below: 0)")
	}
	if c.Notify.Enabled && (c.Notify.Token == "" || c.Notify.ChannelID == "") {
		return fmt.Errorf("notify requires token and channel_id when enabled")
	}
	return nil
}
