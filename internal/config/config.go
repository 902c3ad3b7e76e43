package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
// Values are loaded from environment variables (and an optional .env file)
// with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Persistence
	StoreBackend string // memory | postgres
	DatabaseURL  string
	OTPBackend   string // memory | redis
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	// Notifications
	NotifyBackend        string // log | sms | kafka
	SMSGatewayURL        string
	SMSAPIKey            string
	KafkaBrokers         []string
	KafkaNotifyTopic     string
	NotifyMaxConcurrency int
	NotifyTimeout        time.Duration

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Collaborator deadlines
	AuthTimeout   time.Duration
	LookupTimeout time.Duration
	SettleTimeout time.Duration

	// Blacklist
	BlacklistCacheTTL time.Duration
	CheckUPIBlacklist bool

	// Ledger
	LedgerMaxAttempts     int
	LedgerBackoff         time.Duration
	EnforceFrozenAccounts bool

	// OTP
	OTPTTL    time.Duration
	ExposeOTP bool

	// Dev tools (seed-fraud)
	DevTools bool

	// JWT / Auth
	JWTSecret    string
	JWTAccessTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Reconciliation
	ReconcileInterval time.Duration
	ReconcileWindow   time.Duration
}

var defaults = map[string]any{
	"PORT":                        8080,
	"LOG_LEVEL":                   "info",
	"STORE_BACKEND":               "memory",
	"DATABASE_URL":                "",
	"OTP_BACKEND":                 "memory",
	"REDIS_ADDR":                  "localhost:6379",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    0,
	"NOTIFY_BACKEND":              "log",
	"SMS_GATEWAY_URL":             "",
	"SMS_API_KEY":                 "",
	"KAFKA_BROKERS":               "localhost:9092",
	"KAFKA_NOTIFY_TOPIC":          "grambank.notifications",
	"NOTIFY_MAX_CONCURRENCY":      32,
	"NOTIFY_TIMEOUT":              "5s",
	"HTTP_TIMEOUT":                "10s",
	"MAX_RETRIES":                 3,
	"INITIAL_BACKOFF":             "100ms",
	"AUTH_TIMEOUT":                "2s",
	"LOOKUP_TIMEOUT":              "2s",
	"SETTLE_TIMEOUT":              "10s",
	"BLACKLIST_CACHE_TTL":         "1m",
	"CHECK_UPI_BLACKLIST":         false,
	"LEDGER_MAX_ATTEMPTS":         5,
	"LEDGER_BACKOFF":              "10ms",
	"ENFORCE_FROZEN_ACCOUNTS":     false,
	"OTP_TTL":                     "5m",
	"EXPOSE_OTP":                  false,
	"DEV_TOOLS":                   false,
	"JWT_SECRET":                  "grambank-default-dev-secret-change-me",
	"JWT_ACCESS_TTL":              "1h",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"RECONCILE_INTERVAL":          "1m",
	"RECONCILE_WINDOW":            "24h",
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		StoreBackend: strings.ToLower(v.GetString("STORE_BACKEND")),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		OTPBackend:   strings.ToLower(v.GetString("OTP_BACKEND")),
		RedisAddr:    v.GetString("REDIS_ADDR"),
		RedisPass:    v.GetString("REDIS_PASSWORD"),
		RedisDB:      v.GetInt("REDIS_DB"),

		NotifyBackend:        strings.ToLower(v.GetString("NOTIFY_BACKEND")),
		SMSGatewayURL:        v.GetString("SMS_GATEWAY_URL"),
		SMSAPIKey:            v.GetString("SMS_API_KEY"),
		KafkaBrokers:         splitList(v.GetString("KAFKA_BROKERS")),
		KafkaNotifyTopic:     v.GetString("KAFKA_NOTIFY_TOPIC"),
		NotifyMaxConcurrency: v.GetInt("NOTIFY_MAX_CONCURRENCY"),
		NotifyTimeout:        v.GetDuration("NOTIFY_TIMEOUT"),

		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),

		MaxRetries:     v.GetInt("MAX_RETRIES"),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),

		AuthTimeout:   v.GetDuration("AUTH_TIMEOUT"),
		LookupTimeout: v.GetDuration("LOOKUP_TIMEOUT"),
		SettleTimeout: v.GetDuration("SETTLE_TIMEOUT"),

		BlacklistCacheTTL: v.GetDuration("BLACKLIST_CACHE_TTL"),
		CheckUPIBlacklist: v.GetBool("CHECK_UPI_BLACKLIST"),

		LedgerMaxAttempts:     v.GetInt("LEDGER_MAX_ATTEMPTS"),
		LedgerBackoff:         v.GetDuration("LEDGER_BACKOFF"),
		EnforceFrozenAccounts: v.GetBool("ENFORCE_FROZEN_ACCOUNTS"),

		OTPTTL:    v.GetDuration("OTP_TTL"),
		ExposeOTP: v.GetBool("EXPOSE_OTP"),

		DevTools: v.GetBool("DEV_TOOLS"),

		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTAccessTTL: v.GetDuration("JWT_ACCESS_TTL"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		ReconcileInterval: v.GetDuration("RECONCILE_INTERVAL"),
		ReconcileWindow:   v.GetDuration("RECONCILE_WINDOW"),
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.OTPBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown OTP_BACKEND %q", c.OTPBackend)
	}

	switch c.NotifyBackend {
	case "log":
	case "sms":
		if c.SMSGatewayURL == "" {
			return fmt.Errorf("config: SMS_GATEWAY_URL is required when NOTIFY_BACKEND=sms")
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("config: KAFKA_BROKERS is required when NOTIFY_BACKEND=kafka")
		}
	default:
		return fmt.Errorf("config: unknown NOTIFY_BACKEND %q", c.NotifyBackend)
	}

	if c.LedgerMaxAttempts < 1 {
		return fmt.Errorf("config: LEDGER_MAX_ATTEMPTS must be at least 1")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET must not be empty")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
