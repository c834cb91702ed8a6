package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/slotter-org/gemini-chat/internal/errs"
	"github.com/slotter-org/gemini-chat/internal/logger"
	"github.com/slotter-org/gemini-chat/internal/utils"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"

	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

var DefaultModels = []string{"gemini-2.0-flash"}

type Config struct {
	LogMode string
	Port    string

	Gemini   GeminiConfig
	Database DatabaseConfig
	Session  SessionConfig
	Redis    RedisConfig
	Export   ExportConfig

	CORSOrigins []string
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Models  []string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	Path     string
	Pooled   bool
}

type SessionConfig struct {
	Secret  string
	TTL     time.Duration
	Backend string
}

type RedisConfig struct {
	Address  string
	Password string
	Channel  string
}

type ExportConfig struct {
	DefaultLimit    int
	Bucket          string
	CredentialsFile string
	SendGridAPIKey  string
	FromEmail       string
}

// LoadDotEnv reads a .env file into the process environment if one exists.
// Variables already set win over the file.
func LoadDotEnv(log *logger.Logger, paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debug("No dotenv file found, skipping", "path", p)
				continue
			}
			return err
		}
		log.Info("Loaded dotenv file :)", "path", p)
	}
	return nil
}

// Load reads the whole configuration surface from the environment. Required
// keys are only checked for presence; every absent one is reported together in
// an *errs.ConfigError.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Read(log)
	if err := cfg.Validate(); err != nil {
		log.Error("Configuration is incomplete :(", "error", err)
		return nil, err
	}
	log.Info("Configuration loaded :)", "dbDriver", cfg.Database.Driver, "sessionBackend", cfg.Session.Backend, "models", cfg.Gemini.Models)
	return cfg, nil
}

// Read fills a Config from the environment without validating it.
func Read(log *logger.Logger) *Config {
	log.Info("Attempting to load configuration from environment now...")
	return &Config{
		LogMode: utils.GetEnv("LOG_MODE", "development", log),
		Port:    utils.GetEnv("PORT", "8080", log),
		Gemini: GeminiConfig{
			APIKey:  utils.GetEnv("GEMINI_API_KEY", "", log),
			BaseURL: utils.GetEnv("GEMINI_BASE_URL", DefaultGeminiBaseURL, log),
			Models:  utils.GetEnvAsList("GEMINI_MODELS", DefaultModels, log),
			Timeout: time.Duration(utils.GetEnvAsInt("GEMINI_TIMEOUT_SECONDS", 0, log)) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(utils.GetEnv("DB_DRIVER", DriverPostgres, log)),
			Host:     utils.GetEnv("DB_HOST", "", log),
			Port:     utils.GetEnv("DB_PORT", "", log),
			User:     utils.GetEnv("DB_USER", "", log),
			Password: utils.GetEnv("DB_PASSWORD", "", log),
			Name:     utils.GetEnv("DB_NAME", "", log),
			Path:     utils.GetEnv("DB_PATH", "", log),
			Pooled:   utils.GetEnvAsBool("DB_POOLED", false, log),
		},
		Session: SessionConfig{
			Secret:  utils.GetEnv("SESSION_SECRET", "defaultsecret", log),
			TTL:     time.Duration(utils.GetEnvAsInt("SESSION_TTL", 86400, log)) * time.Second,
			Backend: strings.ToLower(utils.GetEnv("SESSION_BACKEND", SessionBackendMemory, log)),
		},
		Redis: RedisConfig{
			Address:  utils.GetEnv("REDIS_ADDRESS", "", log),
			Password: utils.GetEnv("REDIS_PASSWORD", "", log),
			Channel:  utils.GetEnv("REDIS_CHANNEL", "gemini_chat_broadcast", log),
		},
		Export: ExportConfig{
			DefaultLimit:    utils.GetEnvAsInt("EXPORT_DEFAULT_LIMIT", 5, log),
			Bucket:          utils.GetEnv("EXPORT_BUCKET", "", log),
			CredentialsFile: utils.GetEnv("GCS_CREDENTIALS_FILE", "", log),
			SendGridAPIKey:  utils.GetEnv("SENDGRID_API_KEY", "", log),
			FromEmail:       utils.GetEnv("SENDGRID_EXPORT_EMAIL", "no-reply@gemini-chat.local", log),
		},
		CORSOrigins: utils.GetEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:8080"}, log),
	}
}

// RequireDatabase checks only the store settings. The history CLI commands
// use it since they never call the model.
func (c *Config) RequireDatabase() error {
	var missing []string
	missing = c.Database.missing(missing)
	if len(missing) > 0 {
		return &errs.ConfigError{Missing: missing}
	}
	return nil
}

func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	missing = c.Database.missing(missing)
	if c.Session.Backend == SessionBackendRedis && strings.TrimSpace(c.Redis.Address) == "" {
		missing = append(missing, "REDIS_ADDRESS")
	}
	if len(missing) > 0 {
		return &errs.ConfigError{Missing: missing}
	}
	return nil
}

func (d DatabaseConfig) missing(missing []string) []string {
	if d.Driver == DriverSQLite {
		if strings.TrimSpace(d.Path) == "" {
			missing = append(missing, "DB_PATH")
		}
		return missing
	}
	required := []struct {
		key string
		val string
	}{
		{"DB_HOST", d.Host},
		{"DB_NAME", d.Name},
		{"DB_USER", d.User},
		{"DB_PASSWORD", d.Password},
		{"DB_PORT", d.Port},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			missing = append(missing, r.key)
		}
	}
	return missing
}
