package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"

	"github.com/clinika/clinika/internal/platform/rollout"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer  string   `mapstructure:"AUTH_ISSUER"`
	AuthSecret  string   `mapstructure:"AUTH_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Federation rollout flags. Each capability is switched independently
	// so reads and writes can be moved to the federated shape in stages.
	FederatedAppointmentWrite bool `mapstructure:"FEDERATED_APPOINTMENT_WRITE"`
	FederatedAppointmentRead  bool `mapstructure:"FEDERATED_APPOINTMENT_READ"`
	FederatedDoctorLookup     bool `mapstructure:"FEDERATED_DOCTOR_LOOKUP"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("FEDERATED_APPOINTMENT_WRITE", true)
	v.SetDefault("FEDERATED_APPOINTMENT_READ", false)
	v.SetDefault("FEDERATED_DOCTOR_LOOKUP", false)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("FEDERATED_APPOINTMENT_WRITE")
	v.BindEnv("FEDERATED_APPOINTMENT_READ")
	v.BindEnv("FEDERATED_DOCTOR_LOOKUP")

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

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware trusts the X-Account-ID header.")
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

// Rollout converts the federation flags into the explicit configuration
// object the rollout gate is constructed from.
func (c *Config) Rollout() rollout.Flags {
	return rollout.Flags{
		AppointmentWrite: c.FederatedAppointmentWrite,
		AppointmentRead:  c.FederatedAppointmentRead,
		DoctorLookup:     c.FederatedDoctorLookup,
	}
}

// Validate checks that the configuration is safe to run. Outside
// development a signing secret is required so real authentication is
// enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when ENV is not development")
	}
	if c.FederatedAppointmentRead && !c.FederatedAppointmentWrite {
		return fmt.Errorf("FEDERATED_APPOINTMENT_READ requires FEDERATED_APPOINTMENT_WRITE; " +
			"reads cannot move to the federated shape while writes no longer populate it")
	}
	return nil
}
