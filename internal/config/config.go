package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/fare"
	"github.com/spf13/viper"
)

const envPrefix = "FARE"

// UpstreamConfig holds the endpoint and credentials for one external API.
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
}

// KafkaConfig holds the comparison event publisher settings. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ServiceConfig holds all configuration for the fare service.
type ServiceConfig struct {
	Port            string
	AppEnv          string
	Geocoder        UpstreamConfig
	Router          UpstreamConfig
	RouterProfile   string
	UpstreamTimeout time.Duration
	SessionIdleTTL  time.Duration
	KafkaConfig     KafkaConfig
	CORSOrigins     []string
	Tiers           []fare.PriceTier
}

// Load reads configuration from FARE_* environment variables and, if
// FARE_CONFIG_FILE is set, from that YAML file.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		Geocoder: UpstreamConfig{
			BaseURL: v.GetString("GEOCODER_BASE_URL"),
			APIKey:  v.GetString("GEOCODER_API_KEY"),
		},
		Router: UpstreamConfig{
			BaseURL: v.GetString("ROUTER_BASE_URL"),
			APIKey:  v.GetString("ROUTER_API_KEY"),
		},
		RouterProfile:   v.GetString("ROUTER_PROFILE"),
		UpstreamTimeout: v.GetDuration("UPSTREAM_TIMEOUT"),
		SessionIdleTTL:  v.GetDuration("SESSION_IDLE_TTL"),
		KafkaConfig: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		Tiers:       fare.DefaultTiers(),
	}

	if v.IsSet("tiers") {
		var tiers []fare.PriceTier
		if err := v.UnmarshalKey("tiers", &tiers); err != nil {
			return nil, fmt.Errorf("failed to parse tiers: %w", err)
		}
		cfg.Tiers = tiers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and usable.
func (c *ServiceConfig) Validate() error {
	if c.Geocoder.APIKey == "" {
		return fmt.Errorf("%s_GEOCODER_API_KEY is required", envPrefix)
	}
	if c.Router.APIKey == "" {
		return fmt.Errorf("%s_ROUTER_API_KEY is required", envPrefix)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("%s_UPSTREAM_TIMEOUT must be positive", envPrefix)
	}
	if c.SessionIdleTTL > 0 && c.SessionIdleTTL < time.Second {
		return fmt.Errorf("%s_SESSION_IDLE_TTL must be at least 1s, or 0 to disable expiry", envPrefix)
	}
	if err := fare.ValidateTiers(c.Tiers); err != nil {
		return fmt.Errorf("invalid tiers: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("GEOCODER_BASE_URL", "https://api.opencagedata.com")
	v.SetDefault("ROUTER_BASE_URL", "https://api.openrouteservice.org")
	v.SetDefault("ROUTER_PROFILE", "driving-car")
	v.SetDefault("UPSTREAM_TIMEOUT", 15*time.Second)
	v.SetDefault("SESSION_IDLE_TTL", 30*time.Minute)
	v.SetDefault("KAFKA_TOPIC", "fare.events")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
