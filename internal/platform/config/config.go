package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	dErrors "fides/pkg/domain-errors"
)

// Adapter configures one outbound registry client.
type Adapter struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// ScrapeInterval is the minimum spacing between requests for
	// scraping-based sources. Zero for official APIs.
	ScrapeInterval time.Duration
}

// Config captures everything the server needs from the environment so main
// stays lean.
type Config struct {
	Addr        string
	PostgresDSN string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSigningKey    string
	ServiceTokenHash string

	CacheTTL time.Duration

	KVK             Adapter
	Handelsregister Adapter
	KBO             Adapter
	VIES            Adapter
	GLEIF           Adapter
	Peppol          Adapter
}

// FromEnv builds a Config from FIDES_* environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("FIDES_ADDR", ":8080"),
		PostgresDSN:      os.Getenv("FIDES_POSTGRES_DSN"),
		RedisURL:         os.Getenv("FIDES_REDIS_URL"),
		KafkaTopic:       envOr("FIDES_KAFKA_TOPIC", "fides.audit"),
		JWTSigningKey:    os.Getenv("FIDES_JWT_SIGNING_KEY"),
		ServiceTokenHash: os.Getenv("FIDES_SERVICE_TOKEN_HASH"),
		CacheTTL:         envDuration("FIDES_REGISTRY_CACHE_TTL", 24*time.Hour),

		KVK: Adapter{
			BaseURL: envOr("FIDES_KVK_BASE_URL", "https://api.kvk.nl/api/v1"),
			APIKey:  os.Getenv("FIDES_KVK_API_KEY"),
			Timeout: envDuration("FIDES_KVK_TIMEOUT", 10*time.Second),
		},
		Handelsregister: Adapter{
			BaseURL:        envOr("FIDES_HANDELSREGISTER_BASE_URL", "https://www.handelsregister.de"),
			Timeout:        envDuration("FIDES_HANDELSREGISTER_TIMEOUT", 20*time.Second),
			ScrapeInterval: envDuration("FIDES_HANDELSREGISTER_SCRAPE_INTERVAL", 3*time.Second),
		},
		KBO: Adapter{
			BaseURL:        envOr("FIDES_KBO_BASE_URL", "https://kbopub.economie.fgov.be"),
			Timeout:        envDuration("FIDES_KBO_TIMEOUT", 20*time.Second),
			ScrapeInterval: envDuration("FIDES_KBO_SCRAPE_INTERVAL", 2*time.Second),
		},
		VIES: Adapter{
			BaseURL: envOr("FIDES_VIES_BASE_URL", "https://ec.europa.eu/taxation_customs/vies/rest-api"),
			Timeout: envDuration("FIDES_VIES_TIMEOUT", 10*time.Second),
		},
		GLEIF: Adapter{
			BaseURL: envOr("FIDES_GLEIF_BASE_URL", "https://api.gleif.org/api/v1"),
			Timeout: envDuration("FIDES_GLEIF_TIMEOUT", 10*time.Second),
		},
		Peppol: Adapter{
			BaseURL: envOr("FIDES_PEPPOL_BASE_URL", "https://directory.peppol.eu"),
			Timeout: envDuration("FIDES_PEPPOL_TIMEOUT", 10*time.Second),
		},
	}
	for _, b := range strings.Split(os.Getenv("FIDES_KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}
	return cfg
}

// Validate reports configuration-class failures. Missing credentials for a
// required adapter fail every enrichment run, so they are surfaced once here
// rather than as per-identifier errors.
func (c Config) Validate() error {
	if c.KVK.APIKey == "" {
		return dErrors.New(dErrors.CodeConfiguration, "FIDES_KVK_API_KEY is required")
	}
	if c.JWTSigningKey == "" && c.ServiceTokenHash == "" {
		return dErrors.New(dErrors.CodeConfiguration, "either FIDES_JWT_SIGNING_KEY or FIDES_SERVICE_TOKEN_HASH must be set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare integers are treated as seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
