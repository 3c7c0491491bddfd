package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process configuration
type Config struct {
	Port   string
	AppURL string

	APIKey               string
	SessionSigningSecret string
	EncryptionKey        string

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ShopifyAPIKey     string
	ShopifyAPISecret  string
	ShopifyAPIVersion string
	ShopifyScopes     []string

	FacebookClientID     string
	FacebookClientSecret string
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleAdsDevToken    string

	ThrottleSafetyMargin  float64
	ThrottleMaxWait       time.Duration
	TransportRetryBackoff time.Duration
	OAuthStateTTL         time.Duration
}

// LoadDotEnv loads a .env file if present. It reports whether one was found.
func LoadDotEnv(filenames ...string) bool {
	return godotenv.Load(filenames...) == nil
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppURL: strings.TrimRight(os.Getenv("APP_URL"), "/"),

		APIKey:               os.Getenv("API_KEY"),
		SessionSigningSecret: os.Getenv("SESSION_SIGNING_SECRET"),
		EncryptionKey:        os.Getenv("ENCRYPTION_KEY"),

		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "archie_integrations"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		ShopifyAPIKey:     os.Getenv("SHOPIFY_API_KEY"),
		ShopifyAPISecret:  os.Getenv("SHOPIFY_API_SECRET"),
		ShopifyAPIVersion: getEnv("SHOPIFY_API_VERSION", "2024-10"),
		ShopifyScopes:     splitList(getEnv("SHOPIFY_SCOPES", "read_customer_events,write_pixels")),

		FacebookClientID:     os.Getenv("FACEBOOK_CLIENT_ID"),
		FacebookClientSecret: os.Getenv("FACEBOOK_CLIENT_SECRET"),
		GoogleClientID:       os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleAdsDevToken:    os.Getenv("GOOGLE_ADS_DEVELOPER_TOKEN"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.ThrottleSafetyMargin, err = getFloat("THROTTLE_SAFETY_MARGIN", 50); err != nil {
		errs = append(errs, err)
	}
	if cfg.ThrottleMaxWait, err = getDuration("THROTTLE_MAX_WAIT", 20*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.TransportRetryBackoff, err = getDuration("TRANSPORT_RETRY_BACKOFF", time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.OAuthStateTTL, err = getDuration("OAUTH_STATE_TTL", 10*time.Minute); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(append(errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every required value is present and well formed
func (c *Config) Validate() error {
	var errs []error

	if len(c.APIKey) < 16 {
		errs = append(errs, errors.New("API_KEY is required and must be at least 16 characters"))
	}
	if len(c.SessionSigningSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SIGNING_SECRET is required and must be at least 32 characters"))
	}
	if key, err := hex.DecodeString(c.EncryptionKey); err != nil || len(key) != 32 {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required and must be 64 hex characters"))
	}
	if !strings.HasPrefix(c.MongoURI, "mongodb://") && !strings.HasPrefix(c.MongoURI, "mongodb+srv://") {
		errs = append(errs, errors.New("MONGODB_URI is required and must start with mongodb:// or mongodb+srv://"))
	}
	if u, err := url.Parse(c.AppURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, errors.New("APP_URL is required and must be an absolute http(s) URL"))
	}
	if (c.ShopifyAPIKey == "") != (c.ShopifyAPISecret == "") {
		errs = append(errs, errors.New("SHOPIFY_API_KEY and SHOPIFY_API_SECRET must be set together"))
	}
	if (c.FacebookClientID == "") != (c.FacebookClientSecret == "") {
		errs = append(errs, errors.New("FACEBOOK_CLIENT_ID and FACEBOOK_CLIENT_SECRET must be set together"))
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together"))
	}
	if c.ThrottleSafetyMargin < 0 {
		errs = append(errs, errors.New("THROTTLE_SAFETY_MARGIN must not be negative"))
	}
	if c.ThrottleMaxWait <= 0 {
		errs = append(errs, errors.New("THROTTLE_MAX_WAIT must be positive"))
	}

	return errors.Join(errs...)
}

// OAuthRedirectURI is the callback every platform redirects to
func (c *Config) OAuthRedirectURI() string {
	return c.AppURL + "/integrations/oauth/callback"
}

// ShopifyEnabled reports whether Shopify app credentials are configured
func (c *Config) ShopifyEnabled() bool {
	return c.ShopifyAPIKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
