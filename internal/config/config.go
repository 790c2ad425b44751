package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

// Login protocols
const (
	AuthV2 = "v2" // CST and X-SECURITY-TOKEN headers
	AuthV3 = "v3" // OAuth bearer token with refresh
)

// Config holds all configuration for a client
type Config struct {
	// Authentication
	APIKey    string `mapstructure:"api-key"`
	AccountID string `mapstructure:"account-id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Auth      string `mapstructure:"auth"`

	// Transport
	APIURL  string        `mapstructure:"api-url"`
	Live    bool          `mapstructure:"live"`
	Timeout time.Duration `mapstructure:"timeout"`

	// Logging
	Verbose bool   `mapstructure:"verbose"`
	LogFile string `mapstructure:"log-file"`
}

// SetupFlags configures persistent CLI flags for the root command
func SetupFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()

	// Authentication flags
	flags.String("api-key", "", "IG API key (or set IG_API_KEY env var)")
	flags.String("account-id", "", "Account to operate on (or set IG_ACCOUNT_ID env var)")
	flags.String("username", "", "REST API username (or set IG_USERNAME env var)")
	flags.String("password", "", "REST API password (or set IG_PASSWORD env var)")
	flags.String("auth", AuthV2, "Login protocol: v2 (CST tokens) or v3 (OAuth)")

	// Transport flags
	flags.String("api-url", "", "REST API base URL (defaults to the demo gateway)")
	flags.Bool("live", false, "Use the live gateway instead of demo when api-url is not set")
	flags.Duration("timeout", transport.DefaultTimeout, "Timeout applied to every request")

	// Other flags
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.String("log-file", "", "Write log messages to this file")
	flags.String("env-file", ".env", "Load environment variables from this file if it exists")

	// Bind flags to viper
	v.BindPFlags(flags)

	// Bind environment variables
	v.SetEnvPrefix("IG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load loads configuration from the env file, flags and environment, and validates it
func Load(v *viper.Viper) (*Config, error) {
	if err := loadEnvFile(v.GetString("env-file")); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile sets variables from path that are not already in the environment.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Auth = strings.ToLower(strings.TrimSpace(c.Auth))
	if c.Auth == "" {
		c.Auth = AuthV2
	}
	if c.APIURL == "" {
		c.APIURL = transport.DemoURL
		if c.Live {
			c.APIURL = transport.LiveURL
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = transport.DefaultTimeout
	}
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api-key is required")
	}
	if c.AccountID == "" {
		return fmt.Errorf("account-id is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("authentication required: set --username and --password (IG_USERNAME, IG_PASSWORD)")
	}
	if c.Auth != AuthV2 && c.Auth != AuthV3 {
		return fmt.Errorf("auth must be %q or %q, got %q", AuthV2, AuthV3, c.Auth)
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api-url %q", c.APIURL)
	}

	return nil
}

// UseOAuth returns true if the version 3 (OAuth) login should be used
func (c *Config) UseOAuth() bool {
	return c.Auth == AuthV3
}
