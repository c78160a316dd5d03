package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/stagehand/pkg/constants"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/staging"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Draft storage
	DataDir string

	// Submit defaults
	Endpoint   string
	Token      string
	AuthScheme string
	Timeout    time.Duration

	// Engine behavior
	UpdateMode    string
	AddedPosition string
	IDs           string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (applied later with UpdateFromFlags)
//  2. STAGEHAND_* environment variables
//  3. .env and .env.local files
//  4. Config file (configFile, or .stagehand.yaml in $HOME or the working directory)
//  5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", constants.DefaultDataDir)
	v.SetDefault("auth_scheme", "bearer")
	v.SetDefault("timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("update_mode", string(staging.UpdatePartial))
	v.SetDefault("added_position", string(staging.Prepend))
	v.SetDefault("ids", "counter")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "cannot read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(constants.ConfigName)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config", "cannot read config file", err)
			}
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color") || os.Getenv("NO_COLOR") != "",
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		DataDir: v.GetString("data_dir"),

		Endpoint:   v.GetString("endpoint"),
		Token:      v.GetString("token"),
		AuthScheme: v.GetString("auth_scheme"),
		Timeout:    v.GetDuration("timeout"),

		UpdateMode:    v.GetString("update_mode"),
		AddedPosition: v.GetString("added_position"),
		IDs:           v.GetString("ids"),

		LogLevel:  firstNonEmpty(v.GetString("log_level"), os.Getenv("LOG_LEVEL")),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}
	return config, nil
}

// UpdateFromFlags updates config values from parsed command flags.
// Flag values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(f *rootFlags) {
	c.Verbose = c.Verbose || f.verbose
	c.Quiet = c.Quiet || f.quiet
	c.NoColor = c.NoColor || f.noColor
	if f.format != "" {
		c.Format = f.format
	}
	if f.logLevel != "" {
		c.LogLevel = f.logLevel
	}
	if f.dataDir != "" {
		c.DataDir = f.dataDir
	}
}

// Validate checks the engine settings.
func (c *Config) Validate() error {
	if _, ok := staging.ParseUpdateMode(c.UpdateMode); !ok {
		return errors.NewValidationError("update_mode", c.UpdateMode, "must be partial or full")
	}
	if _, ok := staging.ParsePosition(c.AddedPosition); !ok {
		return errors.NewValidationError("added_position", c.AddedPosition, "must be prepend or append")
	}
	switch c.IDs {
	case "counter", "uuid":
	default:
		return errors.NewValidationError("ids", c.IDs, "must be counter or uuid")
	}
	return nil
}

// EngineOptions translates the engine settings into staging options.
func (c *Config) EngineOptions() []staging.Option {
	mode, _ := staging.ParseUpdateMode(c.UpdateMode)
	position, _ := staging.ParsePosition(c.AddedPosition)
	opts := []staging.Option{
		staging.WithUpdateMode(mode),
		staging.WithAddedPosition(position),
	}
	if c.IDs == "uuid" {
		opts = append(opts, staging.WithIDGenerator[string](staging.UUIDs()))
	}
	return opts
}

// DraftDir returns DataDir with a leading ~ expanded.
func (c *Config) DraftDir() string {
	dir := c.DataDir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	return dir
}

// loadEnvFiles loads environment variables from .env files.
// Variables already set win; .env.local is read before .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
