package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "LOYALTY_"

	envListen           = envPrefix + "LISTEN"
	envIssuerID         = envPrefix + "ISSUER_ID"
	envClassSuffix      = envPrefix + "CLASS_SUFFIX"
	envBaseURL          = envPrefix + "WALLET_BASE_URL"
	envCredentialsPath  = envPrefix + "CREDENTIALS"
	envErrorStatusCodes = envPrefix + "ERROR_STATUS_CODES"
	envAuthEnabled      = envPrefix + "AUTH_ENABLED"
	envAuthSecret       = envPrefix + "AUTH_HMAC_SECRET"
	envRequestTimeout   = envPrefix + "REQUEST_TIMEOUT"
	envLogFile          = envPrefix + "LOG_FILE"
)

type StyleConfig struct {
	HexBackgroundColor string `yaml:"hexBackgroundColor" toml:"hexBackgroundColor"`
	LogoURI            string `yaml:"logoUri" toml:"logoUri"`
	BackgroundImageURI string `yaml:"backgroundImageUri" toml:"backgroundImageUri"`
	BackgroundImageAlt string `yaml:"backgroundImageAlt" toml:"backgroundImageAlt"`
	Language           string `yaml:"language" toml:"language"`
}

type WalletConfig struct {
	IssuerID       string        `yaml:"issuerId" toml:"issuerId"`
	ClassSuffix    string        `yaml:"classSuffix" toml:"classSuffix"`
	BaseURL        string        `yaml:"baseURL" toml:"baseURL"`
	SaveURLPrefix  string        `yaml:"saveURLPrefix" toml:"saveURLPrefix"`
	Audience       string        `yaml:"audience" toml:"audience"`
	Origins        []string      `yaml:"origins" toml:"origins"`
	RequestTimeout time.Duration `yaml:"requestTimeout" toml:"requestTimeout"`
	Style          StyleConfig   `yaml:"style" toml:"style"`
}

type CredentialsConfig struct {
	Path string `yaml:"path" toml:"path"`
}

type HTTPConfig struct {
	// ErrorStatusCodes switches failures from "200 + error field" to 4xx/5xx.
	ErrorStatusCodes bool     `yaml:"errorStatusCodes" toml:"errorStatusCodes"`
	AllowedOrigins   []string `yaml:"allowedOrigins" toml:"allowedOrigins"`
}

type AuthConfig struct {
	Enabled    bool          `yaml:"enabled" toml:"enabled"`
	HMACSecret string        `yaml:"hmacSecret" toml:"hmacSecret"`
	Issuer     string        `yaml:"issuer" toml:"issuer"`
	Audience   string        `yaml:"audience" toml:"audience"`
	ClockSkew  time.Duration `yaml:"clockSkew" toml:"clockSkew"`
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName" toml:"serviceName"`
	Metrics       bool   `yaml:"metrics" toml:"metrics"`
	Tracing       bool   `yaml:"tracing" toml:"tracing"`
	LogRequests   bool   `yaml:"logRequests" toml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix" toml:"metricsPrefix"`
}

type LoggingConfig struct {
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" toml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups" toml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays" toml:"maxAgeDays"`
}

type Config struct {
	ListenAddress string              `yaml:"listen" toml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout" toml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout" toml:"idleTimeout"`
	Wallet        WalletConfig        `yaml:"wallet" toml:"wallet"`
	Credentials   CredentialsConfig   `yaml:"credentials" toml:"credentials"`
	HTTP          HTTPConfig          `yaml:"http" toml:"http"`
	Auth          AuthConfig          `yaml:"auth" toml:"auth"`
	Observability ObservabilityConfig `yaml:"observability" toml:"observability"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// Default returns the settings of the single-issuer Weberia deployment.
func Default() Config {
	return Config{
		ListenAddress: ":3000",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  60 * time.Second,
		IdleTimeout:   120 * time.Second,
		Wallet: WalletConfig{
			IssuerID:       "3388000000022859545",
			ClassSuffix:    "weberia_bonus_loyalty",
			BaseURL:        "https://walletobjects.googleapis.com/",
			SaveURLPrefix:  "https://pay.google.com/gp/v/save/",
			Audience:       "google",
			RequestTimeout: 30 * time.Second,
			Style: StyleConfig{
				HexBackgroundColor: "#0000FF",
				LogoURI:            "https://i.ibb.co/QjhJ1hBz/larins-logo-removebg-preview-2-1.png",
				BackgroundImageURI: "https://i.ibb.co/vxty4cVb/loyality-card-clean-1.png",
				BackgroundImageAlt: "Background Image",
				Language:           "en-US",
			},
		},
		Credentials: CredentialsConfig{Path: "service-account.json"},
		Auth: AuthConfig{
			ClockSkew: 2 * time.Minute,
		},
		Observability: ObservabilityConfig{
			ServiceName:   "loyalty-gateway",
			Metrics:       true,
			Tracing:       false,
			LogRequests:   true,
			MetricsPrefix: "loyalty",
		},
		Logging: LoggingConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load resolves configuration from defaults, an optional YAML or TOML file and
// LOYALTY_* environment variables, in that order. A .env file next to the
// working directory is loaded into the environment first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func (cfg *Config) applyEnv() error {
	setString(&cfg.ListenAddress, envListen)
	setString(&cfg.Wallet.IssuerID, envIssuerID)
	setString(&cfg.Wallet.ClassSuffix, envClassSuffix)
	setString(&cfg.Wallet.BaseURL, envBaseURL)
	setString(&cfg.Credentials.Path, envCredentialsPath)
	setString(&cfg.Auth.HMACSecret, envAuthSecret)
	setString(&cfg.Logging.File, envLogFile)
	if err := setBool(&cfg.HTTP.ErrorStatusCodes, envErrorStatusCodes); err != nil {
		return err
	}
	if err := setBool(&cfg.Auth.Enabled, envAuthEnabled); err != nil {
		return err
	}
	if raw := strings.TrimSpace(os.Getenv(envRequestTimeout)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envRequestTimeout, err)
		}
		cfg.Wallet.RequestTimeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		*dst = val
	}
}

func setBool(dst *bool, key string) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func (cfg *Config) normalize() {
	cfg.Wallet.IssuerID = strings.TrimSpace(cfg.Wallet.IssuerID)
	cfg.Wallet.ClassSuffix = strings.TrimSpace(cfg.Wallet.ClassSuffix)
	cfg.Wallet.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Wallet.BaseURL), "/")
	if cfg.Wallet.RequestTimeout <= 0 {
		cfg.Wallet.RequestTimeout = 30 * time.Second
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "loyalty-gateway"
	}
	origins := cfg.Wallet.Origins[:0]
	for _, origin := range cfg.Wallet.Origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.Wallet.Origins = origins
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("listen address is required")
	}
	if cfg.Wallet.IssuerID == "" {
		return fmt.Errorf("wallet.issuerId is required")
	}
	if strings.ContainsAny(cfg.Wallet.IssuerID, "./ ") {
		return fmt.Errorf("wallet.issuerId %q must not contain '.', '/' or spaces", cfg.Wallet.IssuerID)
	}
	if cfg.Wallet.ClassSuffix == "" {
		return fmt.Errorf("wallet.classSuffix is required")
	}
	if strings.TrimSpace(cfg.Credentials.Path) == "" {
		return fmt.Errorf("credentials.path is required")
	}
	if err := requireHTTPS("wallet.baseURL", cfg.Wallet.BaseURL); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Wallet.SaveURLPrefix) != "" {
		if err := requireHTTPS("wallet.saveURLPrefix", cfg.Wallet.SaveURLPrefix); err != nil {
			return err
		}
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth.hmacSecret is required when auth.enabled is true")
	}
	return nil
}

// requireHTTPS accepts plain HTTP only for loopback hosts so local emulators work.
func requireHTTPS(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "https":
		return nil
	case "http":
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return fmt.Errorf("%s must use https", field)
	case "":
		return fmt.Errorf("%s: URL scheme is required", field)
	default:
		return fmt.Errorf("%s: unsupported URL scheme %q", field, parsed.Scheme)
	}
}
