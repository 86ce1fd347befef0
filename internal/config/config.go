package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// App block (optional in YAML). Empty when absent.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// BaseURL is the externally reachable address advertised to the wallet
		// provider as the pass web service. Loopback/private addresses disable
		// the callback entirely (the provider cannot reach them).
		BaseURL            string   `yaml:"base_url"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// AdminAPIKey protects the employee/admin API (X-Admin-API-Key header).
		AdminAPIKey string `yaml:"admin_api_key"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`

	// Wallet holds pass issuing/signing configuration. The signing material is
	// required for every pass build; its absence is a configuration error, not a
	// per-request condition.
	Wallet struct {
		PassTypeID         string `yaml:"pass_type_id"`
		GiftCardPassTypeID string `yaml:"giftcard_pass_type_id"`
		TeamID             string `yaml:"team_id"`
		OrganizationName   string `yaml:"organization_name"`
		Description        string `yaml:"description"`

		// Base64-encoded PEM blocks.
		SigningCert    string `yaml:"signing_cert"`
		SigningKey     string `yaml:"signing_key"`
		SigningKeyPass string `yaml:"signing_key_pass"`
		WWDRCert       string `yaml:"wwdr_cert"`

		// AuthSecret seeds the per-serial authentication token derivation.
		AuthSecret string `yaml:"auth_secret"`

		AssetsDir string `yaml:"assets_dir"`
	} `yaml:"wallet"`

	// Push holds APNs provider-token credentials. Absence degrades notification
	// to a no-op instead of failing business operations.
	Push struct {
		KeyID      string `yaml:"key_id"`
		TeamID     string `yaml:"team_id"`
		PrivateKey string `yaml:"private_key"` // base64 PEM, ES256
		Production bool   `yaml:"production"`
	} `yaml:"push"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

// LoadFromEnv builds a config purely from environment variables, for
// deployments without a YAML file.
func LoadFromEnv() *Config {
	var c Config
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c
}

func (c *Config) applyDefaults() {
	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 120
	}
	if c.Wallet.Description == "" {
		c.Wallet.Description = "Coffee loyalty card"
	}
	if c.Wallet.AssetsDir == "" {
		c.Wallet.AssetsDir = "assets/pass"
	}
}

// ---- Env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides lets environment variables win over config.yaml.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("BREWPASS_APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("BREWPASS_SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("BREWPASS_SERVER_BASE_URL"); ok {
		c.Server.BaseURL = v
	}
	if v, ok := getEnvCSV("BREWPASS_SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvStr("BREWPASS_ADMIN_API_KEY"); ok {
		c.Server.AdminAPIKey = v
	}

	// STORAGE
	if v, ok := getEnvStr("BREWPASS_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("BREWPASS_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("BREWPASS_STORAGE_PG_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}

	// CACHE
	if v, ok := getEnvStr("BREWPASS_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("BREWPASS_CACHE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("BREWPASS_CACHE_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	// RATE
	if v, ok := getEnvBool("BREWPASS_RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("BREWPASS_RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("BREWPASS_RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}

	// WALLET
	if v, ok := getEnvStr("BREWPASS_WALLET_PASS_TYPE_ID"); ok {
		c.Wallet.PassTypeID = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_GIFTCARD_PASS_TYPE_ID"); ok {
		c.Wallet.GiftCardPassTypeID = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_TEAM_ID"); ok {
		c.Wallet.TeamID = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_ORGANIZATION_NAME"); ok {
		c.Wallet.OrganizationName = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_SIGNING_CERT"); ok {
		c.Wallet.SigningCert = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_SIGNING_KEY"); ok {
		c.Wallet.SigningKey = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_SIGNING_KEY_PASS"); ok {
		c.Wallet.SigningKeyPass = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_WWDR_CERT"); ok {
		c.Wallet.WWDRCert = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_AUTH_SECRET"); ok {
		c.Wallet.AuthSecret = v
	}
	if v, ok := getEnvStr("BREWPASS_WALLET_ASSETS_DIR"); ok {
		c.Wallet.AssetsDir = v
	}

	// PUSH
	if v, ok := getEnvStr("BREWPASS_PUSH_KEY_ID"); ok {
		c.Push.KeyID = v
	}
	if v, ok := getEnvStr("BREWPASS_PUSH_TEAM_ID"); ok {
		c.Push.TeamID = v
	}
	if v, ok := getEnvStr("BREWPASS_PUSH_PRIVATE_KEY"); ok {
		c.Push.PrivateKey = v
	}
	if v, ok := getEnvBool("BREWPASS_PUSH_PRODUCTION"); ok {
		c.Push.Production = v
	}
}

// RateWindow parses the configured rate window.
func (c *Config) RateWindow() time.Duration {
	d, err := time.ParseDuration(c.Rate.Window)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// MemoryCacheTTL parses the configured memory-cache default TTL.
func (c *Config) MemoryCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// PushConfigured reports whether APNs credentials are present. When they are
// not, notification degrades to a no-op instead of failing.
func (c *Config) PushConfigured() bool {
	return c.Push.KeyID != "" && c.Push.TeamID != "" && c.Push.PrivateKey != ""
}

// Validate checks the values the server cannot run without.
func (c *Config) Validate() error {
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn is required for the postgres driver")
	}
	if c.Wallet.PassTypeID == "" {
		return fmt.Errorf("config: wallet.pass_type_id is required")
	}
	if c.Wallet.AuthSecret == "" {
		return fmt.Errorf("config: wallet.auth_secret is required")
	}
	return nil
}
