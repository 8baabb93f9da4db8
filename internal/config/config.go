package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	AuthMode      string   `mapstructure:"AUTH_MODE"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	AuthSecret    string   `mapstructure:"AUTH_SECRET"`
	AuthIssuer    string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string   `mapstructure:"AUTH_AUDIENCE"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	// StoreBackend selects the document store: "postgres" or "memory".
	// The memory store is for development and tests only.
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// MaxPackFileBytes bounds a single ingested rule-pack file. Oversized
	// uploads are rejected before any bytes are parsed or stored.
	MaxPackFileBytes int64 `mapstructure:"MAX_PACK_FILE_BYTES"`
	// AgencyState is the default jurisdiction for chart validation and
	// export when an agency profile does not carry its own.
	AgencyState string `mapstructure:"AGENCY_STATE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MAX_PACK_FILE_BYTES", 25*1024*1024)
	v.SetDefault("AGENCY_STATE", "WI")
	v.SetDefault("STORE_BACKEND", "postgres")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MAX_PACK_FILE_BYTES")
	v.BindEnv("AGENCY_STATE")
	v.BindEnv("STORE_BACKEND")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is postgres")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Dev auth is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise the mode is inferred:
//   - ENV=development → "development" (no auth, all requests get admin)
//   - otherwise       → "jwt" (bearer tokens signed with AUTH_SECRET)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Validate checks that the configuration is safe to run. In non-development
// modes AUTH_SECRET must be set so that real JWT authentication is enforced.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.AuthSecret == "" {
		return fmt.Errorf(
			"AUTH_SECRET must be set when AUTH_MODE is \"jwt\" (current ENV=%q). "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.MaxPackFileBytes <= 0 {
		return fmt.Errorf("MAX_PACK_FILE_BYTES must be positive, got %d", c.MaxPackFileBytes)
	}
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be \"postgres\" or \"memory\", got %q", c.StoreBackend)
	}
	if c.StoreBackend == "memory" && c.IsProduction() {
		return fmt.Errorf("STORE_BACKEND=memory is not allowed in production")
	}
	return nil
}
