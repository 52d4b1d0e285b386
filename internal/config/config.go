package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

// Store modes. In "fallback" mode a missing or unreachable shared table
// degrades to an in-process store; in "required" mode it refuses to start.
const (
	StoreModeFallback = "fallback"
	StoreModeRequired = "required"
)

// Config is the full environment-driven configuration of the bot process.
type Config struct {
	Port      int    `validate:"required,min=1,max=65535"`
	LogFormat string `validate:"oneof=text json"`

	WorkerCount int `validate:"required,min=1"`
	MaxInFlight int `validate:"required,min=1"`

	SessionTTL time.Duration `validate:"required"`
	DedupTTL   time.Duration `validate:"required"`

	SessionsTable    string
	DedupTable       string
	SessionStoreMode string `validate:"oneof=fallback required"`
	DedupStoreMode   string `validate:"oneof=fallback required"`

	BackendBaseURL     string
	BackendTimeout     time.Duration `validate:"required"`
	BackendBearerToken string
	DefaultEventName   string `validate:"required"`

	MetaAPIVersion       string `validate:"required"`
	MetaAccessToken      string
	MetaPhoneNumberID    string
	MetaVerifyToken      string
	MetaAppSecret        string
	VerifyMetaSignatures bool
	GatewayTimeout       time.Duration `validate:"required"`

	MetricsNamespace string
	MetricsInterval  time.Duration
}

// Load reads configuration from the environment, applies defaults and
// validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:      envInt("PORT", 8080),
		LogFormat: envStr("LOG_FORMAT", "text"),

		WorkerCount: envInt("WORKER_COUNT", 4),
		MaxInFlight: envInt("MAX_IN_FLIGHT", 64),

		SessionTTL: envSeconds("SESSION_TTL_SECONDS", 25*60),
		DedupTTL:   envSeconds("DEDUP_TTL_SECONDS", 24*60*60),

		SessionsTable:    envStr("SESSIONS_TABLE", ""),
		DedupTable:       envStr("DEDUP_TABLE", ""),
		SessionStoreMode: envStr("SESSION_STORE_MODE", StoreModeFallback),
		DedupStoreMode:   envStr("DEDUP_STORE_MODE", StoreModeFallback),

		BackendBaseURL:     envStr("BACKEND_BASE_URL", ""),
		BackendTimeout:     envSeconds("BACKEND_TIMEOUT_SECONDS", 15),
		BackendBearerToken: envStr("BACKEND_AUTH_BEARER_TOKEN", ""),
		DefaultEventName:   envStr("DEFAULT_EVENT_NAME", "Yala Event"),

		MetaAPIVersion:       envStr("META_API_VERSION", "v20.0"),
		MetaAccessToken:      envStr("META_WA_ACCESS_TOKEN", ""),
		MetaPhoneNumberID:    envStr("META_WA_PHONE_NUMBER_ID", ""),
		MetaVerifyToken:      envStr("META_WEBHOOK_VERIFY_TOKEN", ""),
		MetaAppSecret:        envStr("META_APP_SECRET", ""),
		VerifyMetaSignatures: envBool("VERIFY_META_SIGNATURES", true),
		GatewayTimeout:       envSeconds("GATEWAY_TIMEOUT_SECONDS", 20),

		MetricsNamespace: envStr("METRICS_NAMESPACE", ""),
		MetricsInterval:  envSeconds("METRICS_INTERVAL_SECONDS", 60),
	}

	if err := newValidator().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newValidator returns a configured validator with the struct-level rules
// registered.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(storeModeStructValidation, Config{})
	return v
}

// storeModeStructValidation enforces that a "required" store mode names its
// DynamoDB table. Without a table there is nothing shared to require.
func storeModeStructValidation(sl validatorv10.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	if cfg.SessionStoreMode == StoreModeRequired && cfg.SessionsTable == "" {
		sl.ReportError(cfg.SessionsTable, "SessionsTable", "SessionsTable", "required_with_store_mode", "")
	}
	if cfg.DedupStoreMode == StoreModeRequired && cfg.DedupTable == "" {
		sl.ReportError(cfg.DedupTable, "DedupTable", "DedupTable", "required_with_store_mode", "")
	}
	if cfg.VerifyMetaSignatures && cfg.MetaAppSecret == "" {
		sl.ReportError(cfg.MetaAppSecret, "MetaAppSecret", "MetaAppSecret", "required_with_signature_verification", "")
	}
}

func envStr(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envInt(name string, fallback int) int {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(name string, fallbackSeconds int) time.Duration {
	return time.Duration(envInt(name, fallbackSeconds)) * time.Second
}

func envBool(name string, fallback bool) bool {
	value := os.Getenv(name)
	if value == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
