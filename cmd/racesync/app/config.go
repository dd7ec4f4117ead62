package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/racesync/pkg/authority"
	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/sources"
	"github.com/agentstation/racesync/pkg/store"
)

// envPrefix namespaces every environment variable, e.g. RACESYNC_STORE_DRIVER.
const envPrefix = "RACESYNC"

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Persistence
	Store store.Config

	// Sync settings
	Concurrency   int
	SourceTimeout time.Duration
	Tolerance     float64
	Inference     bool

	// Source authority
	Weights   map[string]float64
	Overrides []authority.Field

	// MetricsTextfile, when set, receives the metrics after every command
	MetricsTextfile string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra, see UpdateFromFlags)
// 2. Environment variables (RACESYNC_*)
// 3. .env files
// 4. Config file (--config or ~/.racesync.yaml, ./.racesync.yaml)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Search for config in standard locations
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".racesync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit file must exist, the search locations are optional
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "reading config file", err)
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		Store: store.Config{
			Driver: v.GetString("store.driver"),
			DSN:    v.GetString("store.dsn"),
			Dir:    v.GetString("store.dir"),
		},

		Concurrency:   v.GetInt("sync.concurrency"),
		SourceTimeout: v.GetDuration("sync.source_timeout"),
		Tolerance:     v.GetFloat64("consensus.tolerance"),
		Inference:     v.GetBool("sync.inference"),

		MetricsTextfile: v.GetString("metrics.textfile"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	if err := v.UnmarshalKey("sources.weights", &config.Weights); err != nil {
		return nil, errors.NewConfigError("sources.weights", "decoding weights", err)
	}
	if err := v.UnmarshalKey("sources.overrides", &config.Overrides); err != nil {
		return nil, errors.NewConfigError("sources.overrides", "decoding overrides", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.dsn", "racesync.db")
	v.SetDefault("sync.concurrency", sources.DefaultConcurrency)
	v.SetDefault("sync.source_timeout", sources.DefaultTimeout)
	v.SetDefault("sync.inference", true)
	v.SetDefault("consensus.tolerance", consensus.DefaultTolerance)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// Authority builds the source weight table from the default table, the
// configured weights and the field overrides.
func (c *Config) Authority() (authority.Authority, error) {
	a, err := authority.New(
		authority.WithWeights(c.Weights),
		authority.WithOverrides(c.Overrides...),
	)
	if err != nil {
		return nil, errors.NewConfigError("sources", "invalid source weights", err)
	}
	return a, nil
}

// loadEnvFiles loads environment variables from .env files.
func loadEnvFiles() {
	// .env.local overrides .env
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, envFile := range envFiles {
		// godotenv.Load never overrides variables that are already set
		_ = godotenv.Load(envFile)
	}
}
