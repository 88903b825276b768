package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the uploader service.
type Config struct {
	Port int
	DSN  string

	JWTSecret string
	JWTTTL    time.Duration

	// OpenSRP authentication service the login flow proxies credentials to.
	OpenSRPIP   string
	OpenSRPPort int

	// Dedup registry endpoints.
	CTCNumbersEndpoint         string
	ElicitationNumbersEndpoint string
	DedupTimeout               time.Duration

	// Directory the accepted CSV subsets are written under.
	PublicDir string

	// Reserved development login, checked before proxying to OpenSRP.
	DevUsername string
	DevPassword string

	// Basic-auth users for the dashboard routes, username -> password.
	DashboardUsers map[string]string

	LogFormat string // "text" or "json"
	LogLevel  string
}

const (
	defaultPort         = 3000
	defaultDedupTimeout = 10 * time.Second
	defaultJWTTTL       = 24 * time.Hour
	defaultPublicDir    = "public"
)

// yamlConfig is the on-disk YAML structure for the optional config file.
type yamlConfig struct {
	DashboardUsers []struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"dashboard_users"`
}

// Load reads configuration from environment variables, falling back to defaults.
func Load() *Config {
	cfg := &Config{
		Port:                       parseInt("PORT", defaultPort),
		DSN:                        os.Getenv("DATABASE_URL"),
		JWTSecret:                  os.Getenv("JWT_SECRET"),
		JWTTTL:                     parseDuration("JWT_TTL", defaultJWTTTL),
		OpenSRPIP:                  os.Getenv("OPENSRP_IP"),
		OpenSRPPort:                parseInt("OPENSRP_PORT", 8080),
		CTCNumbersEndpoint:         os.Getenv("CTC_NUMBERS_ENDPOINT"),
		ElicitationNumbersEndpoint: os.Getenv("ELICITATION_NUMBERS_ENDPOINT"),
		DedupTimeout:               parseDuration("DEDUP_TIMEOUT", defaultDedupTimeout),
		PublicDir:                  readEnv("PUBLIC_DIR", defaultPublicDir),
		DevUsername:                os.Getenv("DEV_USERNAME"),
		DevPassword:                os.Getenv("DEV_PASSWORD"),
		LogFormat:                  readEnv("LOG_FORMAT", "text"),
		LogLevel:                   readEnv("LOG_LEVEL", "info"),
		DashboardUsers:             map[string]string{},
	}

	for _, n := range []string{"1", "2"} {
		u := os.Getenv("DASHBOARD_USERNAME" + n)
		p := os.Getenv("DASHBOARD_PASSWORD" + n)
		if u != "" && p != "" {
			cfg.DashboardUsers[u] = p
		}
	}

	return cfg
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Currently the file only supplies additional dashboard basic-auth users.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if c.DashboardUsers == nil {
		c.DashboardUsers = map[string]string{}
	}
	for _, u := range yc.DashboardUsers {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("dashboard user entry missing username or password")
		}
		c.DashboardUsers[u.Username] = u.Password
	}
	return nil
}

// OpenSRPBaseURL builds the base URL of the OpenSRP authentication service.
func (c *Config) OpenSRPBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.OpenSRPIP, c.OpenSRPPort)
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	for name, v := range map[string]string{
		"CTC_NUMBERS_ENDPOINT":         c.CTCNumbersEndpoint,
		"ELICITATION_NUMBERS_ENDPOINT": c.ElicitationNumbersEndpoint,
	} {
		if v == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(v); err != nil {
			return fmt.Errorf("%s is not a valid URL: %w", name, err)
		}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.DedupTimeout <= 0 {
		return fmt.Errorf("DEDUP_TIMEOUT must be positive")
	}
	return nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
