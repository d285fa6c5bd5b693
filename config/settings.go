package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Settings is the resolved runtime configuration. Values come from the
// environment (optionally seeded from .env) with the defaults below.
type Settings struct {
	Environment string
	ServerPort  string
	GinMode     string

	StorageDriver string

	DBHost     string
	DBPort     string
	DBDatabase string
	DBUsername string
	DBPassword string
	DebugSQL   bool

	MongoURI      string
	MongoDatabase string

	JWTSecret      string
	JWTExpireHours int

	MailProvider      string
	MailFrom          string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPass          string
	SMTPSkipTLSVerify bool
	SendGridAPIKey    string

	AppName           string
	AppBaseURL        string
	DefaultReviewDays int
	CORSOrigins       []string
}

const (
	DriverMySQL  = "mysql"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("STORAGE_DRIVER", DriverMySQL)
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_DATABASE", "peer_review")
	v.SetDefault("DB_USERNAME", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DEBUG_SQL", false)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "peer_review")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRE_HOURS", 24)
	v.SetDefault("MAIL_PROVIDER", "smtp")
	v.SetDefault("SMTP_FROM", "Peer Review <no-reply@localhost>")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_SKIP_TLS_VERIFY", false)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("APP_NAME", "Peer Review")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("DEFAULT_REVIEW_DAYS", 15)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	v.AutomaticEnv()
	return v
}

// Load reads settings from the process environment.
func Load() *Settings {
	v := newViper()
	return &Settings{
		Environment:       strings.ToLower(v.GetString("ENVIRONMENT")),
		ServerPort:        v.GetString("SERVER_PORT"),
		GinMode:           v.GetString("GIN_MODE"),
		StorageDriver:     strings.ToLower(v.GetString("STORAGE_DRIVER")),
		DBHost:            v.GetString("DB_HOST"),
		DBPort:            v.GetString("DB_PORT"),
		DBDatabase:        v.GetString("DB_DATABASE"),
		DBUsername:        v.GetString("DB_USERNAME"),
		DBPassword:        v.GetString("DB_PASSWORD"),
		DebugSQL:          v.GetBool("DEBUG_SQL"),
		MongoURI:          v.GetString("MONGO_URI"),
		MongoDatabase:     v.GetString("MONGO_DATABASE"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTExpireHours:    v.GetInt("JWT_EXPIRE_HOURS"),
		MailProvider:      strings.ToLower(v.GetString("MAIL_PROVIDER")),
		MailFrom:          v.GetString("SMTP_FROM"),
		SMTPHost:          v.GetString("SMTP_HOST"),
		SMTPPort:          v.GetInt("SMTP_PORT"),
		SMTPUser:          v.GetString("SMTP_USER"),
		SMTPPass:          v.GetString("SMTP_PASS"),
		SMTPSkipTLSVerify: v.GetBool("SMTP_SKIP_TLS_VERIFY"),
		SendGridAPIKey:    v.GetString("SENDGRID_API_KEY"),
		AppName:           v.GetString("APP_NAME"),
		AppBaseURL:        strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		DefaultReviewDays: v.GetInt("DEFAULT_REVIEW_DAYS"),
		CORSOrigins:       splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}
}

func (s *Settings) IsProduction() bool {
	return s.Environment == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
