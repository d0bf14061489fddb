package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultPortalURL is the crime trend explorer page holding the agency selector.
const DefaultPortalURL = "https://cde.ucr.cjis.gov/LATEST/webapp/#/pages/explorer/crime/crime-trend"

type Config struct {
	Portal   PortalConfig   `mapstructure:"portal"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Export   ExportConfig   `mapstructure:"export"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Database DatabaseConfig `mapstructure:"database"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
}

type PortalConfig struct {
	URL              string        `mapstructure:"url"`
	Preflight        bool          `mapstructure:"preflight"`
	PreflightTimeout time.Duration `mapstructure:"preflight_timeout"`
}

type BrowserConfig struct {
	Headless    bool          `mapstructure:"headless"`
	ExecPath    string        `mapstructure:"exec_path"`
	NoSandbox   bool          `mapstructure:"no_sandbox"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// ExportConfig holds the sweep's naming inputs and its fixed waits.
type ExportConfig struct {
	FileType      string `mapstructure:"file_type"`
	ExamplePrefix string `mapstructure:"example_prefix"`
	StagingDir    string `mapstructure:"staging_dir"`

	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	ReloadDelay  time.Duration `mapstructure:"reload_delay"`

	ReadyMode              string        `mapstructure:"ready_mode"` // manual, auto
	ReadyTimeout           time.Duration `mapstructure:"ready_timeout"`
	MaxEnumerationRestarts int           `mapstructure:"max_enumeration_restarts"`
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ORISWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("archive.access_key", "ORISWEEP_ARCHIVE_ACCESS_KEY", "AWS_ACCESS_KEY_ID")
	v.BindEnv("archive.secret_key", "ORISWEEP_ARCHIVE_SECRET_KEY", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("database.password", "ORISWEEP_DATABASE_PASSWORD", "PGPASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portal.url", DefaultPortalURL)
	v.SetDefault("portal.preflight", false)
	v.SetDefault("portal.preflight_timeout", 15*time.Second)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.wait_timeout", 20*time.Second)
	v.SetDefault("export.file_type", "")
	v.SetDefault("export.example_prefix", "")
	v.SetDefault("export.staging_dir", "./downloads")
	v.SetDefault("export.poll_timeout", 1500*time.Millisecond)
	v.SetDefault("export.poll_interval", 500*time.Millisecond)
	v.SetDefault("export.settle_delay", time.Second)
	v.SetDefault("export.reload_delay", 5*time.Second)
	v.SetDefault("export.ready_mode", "manual")
	v.SetDefault("export.ready_timeout", 2*time.Minute)
	v.SetDefault("export.max_enumeration_restarts", 5)
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_backoff", 2*time.Second)
	v.SetDefault("retry.max_backoff", 30*time.Second)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/orisweep.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "orisweep")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "orisweep")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.bucket", "ori-exports")
	v.SetDefault("archive.prefix", "exports")
}

// Validate rejects values the sweep cannot run with.
func (c *Config) Validate() error {
	if c.Export.PollInterval <= 0 {
		return fmt.Errorf("export.poll_interval must be positive, got %s", c.Export.PollInterval)
	}
	if c.Export.PollTimeout < 0 {
		return fmt.Errorf("export.poll_timeout must not be negative, got %s", c.Export.PollTimeout)
	}
	switch c.Export.ReadyMode {
	case "manual", "auto":
	default:
		return fmt.Errorf("export.ready_mode must be manual or auto, got %q", c.Export.ReadyMode)
	}
	if c.Export.StagingDir == "" {
		return fmt.Errorf("export.staging_dir must be set")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket must be set when archive is enabled")
	}
	return nil
}
