// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides connection settings for the task queue broker.
type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

// SMTPConfig provides settings for transactional email delivery.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSAPIURL() string
	GetSMSAPIKey() string
	GetSMSPartnerID() string
	GetSMSShortcode() string
	IsSMSEnabled() bool
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppBaseURL() string
	GetWhatsAppUser() string
	GetWhatsAppPassword() string
	IsWhatsAppEnabled() bool
}

// AdvisorConfig provides settings for the AI decision advisor.
type AdvisorConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	GetAdvisorTimeout() time.Duration
	IsAdvisorEnabled() bool
}

// SchedulerConfig provides settings for the background task scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetPursueInterval() time.Duration
	GetReminderInterval() time.Duration
	GetWorkerConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	JWTAccessSecret   string
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	EmailFromName     string
	EmailFromAddress  string
	EmailEnabled      bool
	SMSAPIURL         string
	SMSAPIKey         string
	SMSPartnerID      string
	SMSShortcode      string
	WhatsAppBaseURL   string
	WhatsAppUser      string
	WhatsAppPassword  string
	GeminiAPIKey      string
	GeminiModel       string
	AdvisorTimeout    time.Duration
	PursueInterval    time.Duration
	ReminderInterval  time.Duration
	WorkerConcurrency int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig implementation
func (c *Config) GetRedisAddr() string     { return c.RedisAddr }
func (c *Config) GetRedisPassword() string { return c.RedisPassword }
func (c *Config) GetRedisDB() int          { return c.RedisDB }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.EmailEnabled && c.SMTPHost != "" }

// SMSConfig implementation
func (c *Config) GetSMSAPIURL() string    { return c.SMSAPIURL }
func (c *Config) GetSMSAPIKey() string    { return c.SMSAPIKey }
func (c *Config) GetSMSPartnerID() string { return c.SMSPartnerID }
func (c *Config) GetSMSShortcode() string { return c.SMSShortcode }
func (c *Config) IsSMSEnabled() bool      { return c.SMSAPIKey != "" }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppBaseURL() string  { return c.WhatsAppBaseURL }
func (c *Config) GetWhatsAppUser() string     { return c.WhatsAppUser }
func (c *Config) GetWhatsAppPassword() string { return c.WhatsAppPassword }
func (c *Config) IsWhatsAppEnabled() bool     { return c.WhatsAppBaseURL != "" }

// AdvisorConfig implementation
func (c *Config) GetGeminiAPIKey() string          { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string           { return c.GeminiModel }
func (c *Config) GetAdvisorTimeout() time.Duration { return c.AdvisorTimeout }
func (c *Config) IsAdvisorEnabled() bool           { return c.GeminiAPIKey != "" }

// SchedulerConfig implementation
func (c *Config) GetPursueInterval() time.Duration   { return c.PursueInterval }
func (c *Config) GetReminderInterval() time.Duration { return c.ReminderInterval }
func (c *Config) GetWorkerConcurrency() int          { return c.WorkerConcurrency }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTAccessSecret:   getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisAddr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           mustInt(getEnv("REDIS_DB", "0")),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		EmailFromName:     getEnv("EMAIL_FROM_NAME", "Genesis Fortune"),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailEnabled:      strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true"),
		SMSAPIURL:         getEnv("SMS_API_URL", "https://isms.celcomafrica.com/api/services/sendsms"),
		SMSAPIKey:         getEnv("SMS_API_KEY", ""),
		SMSPartnerID:      getEnv("SMS_PARTNER_ID", ""),
		SMSShortcode:      getEnv("SMS_SHORTCODE", ""),
		WhatsAppBaseURL:   getEnv("WHATSAPP_BASE_URL", ""),
		WhatsAppUser:      getEnv("WHATSAPP_BASIC_AUTH_USER", ""),
		WhatsAppPassword:  getEnv("WHATSAPP_BASIC_AUTH_PASSWORD", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		AdvisorTimeout:    mustDuration(getEnv("ADVISOR_TIMEOUT", "12s")),
		PursueInterval:    mustDuration(getEnv("FUNNEL_PURSUE_INTERVAL", "1h")),
		ReminderInterval:  mustDuration(getEnv("VIEWING_REMINDER_INTERVAL", "30m")),
		WorkerConcurrency: mustInt(getEnv("WORKER_CONCURRENCY", "10")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled && cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
