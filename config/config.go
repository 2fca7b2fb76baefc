package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/farellandr/ticketgate/internal/auth"
	"github.com/farellandr/ticketgate/internal/models"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type HTTPConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Mode           string   `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

type GatewayConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	KeyID       string        `mapstructure:"key_id"`
	KeySecret   string        `mapstructure:"key_secret"`
	Currency    string        `mapstructure:"currency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ReceiptNode int64         `mapstructure:"receipt_node"`
}

type StorageConfig struct {
	Driver        string        `mapstructure:"driver"`
	Root          string        `mapstructure:"root"`
	BoltPath      string        `mapstructure:"bolt_path"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	SigningKey    string        `mapstructure:"signing_key"`
	SignedURLTTL  time.Duration `mapstructure:"signed_url_ttl"`
}

type MailConfig struct {
	SendGridKey  string `mapstructure:"sendgrid_key"`
	SendGridHost string `mapstructure:"sendgrid_host"`
	SMTPAddr     string `mapstructure:"smtp_addr"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	From         string `mapstructure:"from"`
	FromName     string `mapstructure:"from_name"`
	ReplyTo      string `mapstructure:"reply_to"`
}

type TicketConfig struct {
	VerifyBaseURL    string `mapstructure:"verify_base_url"`
	PayloadForm      string `mapstructure:"payload_form"`
	SiteTicketURL    string `mapstructure:"site_ticket_url"`
	CodePrefix       string `mapstructure:"code_prefix"`
	QRSize           int    `mapstructure:"qr_size"`
	DefaultEventSlug string `mapstructure:"default_event_slug"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminEmails   string        `mapstructure:"admin_emails"`
	ManagerEmails string        `mapstructure:"manager_emails"`

	Admins   auth.AllowList `mapstructure:"-"`
	Managers auth.AllowList `mapstructure:"-"`
}

type QueueConfig struct {
	RabbitURL   string `mapstructure:"rabbit_url"`
	Exchange    string `mapstructure:"exchange"`
	Queue       string `mapstructure:"queue"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type SweeperConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Grace       time.Duration `mapstructure:"grace"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BatchSize   int           `mapstructure:"batch_size"`
}

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"db"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Mail     MailConfig     `mapstructure:"mail"`
	Ticket   TicketConfig   `mapstructure:"ticket"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Release  string         `mapstructure:"release"`
	LogLevel string         `mapstructure:"log_level"`
}

var defaults = map[string]any{
	"http.port":                 "8080",
	"http.mode":                 "release",
	"http.allowed_origins":      []string{},
	"db.driver":                 "postgres",
	"db.host":                   "localhost",
	"db.port":                   "5432",
	"db.user":                   "",
	"db.password":               "",
	"db.name":                   "ticketgate",
	"db.sslmode":                "disable",
	"db.path":                   "ticketgate.db",
	"gateway.base_url":          "https://api.razorpay.com",
	"gateway.key_id":            "",
	"gateway.key_secret":        "",
	"gateway.currency":          "INR",
	"gateway.timeout":           "10s",
	"gateway.receipt_node":      1,
	"storage.driver":            "disk",
	"storage.root":              "./uploads",
	"storage.bolt_path":         "",
	"storage.public_base_url":   "http://localhost:8080",
	"storage.signing_key":       "",
	"storage.signed_url_ttl":    "168h",
	"mail.sendgrid_key":         "",
	"mail.sendgrid_host":        "https://api.sendgrid.com",
	"mail.smtp_addr":            "",
	"mail.smtp_user":            "",
	"mail.smtp_password":        "",
	"mail.from":                 "",
	"mail.from_name":            "Incubator Events",
	"mail.reply_to":             "",
	"ticket.verify_base_url":    "",
	"ticket.payload_form":       "json",
	"ticket.site_ticket_url":    "",
	"ticket.code_prefix":        "SEM",
	"ticket.qr_size":            512,
	"ticket.default_event_slug": "friday-seminar",
	"auth.jwt_secret":           "",
	"auth.token_ttl":            "12h",
	"auth.admin_emails":         "",
	"auth.manager_emails":       "",
	"queue.rabbit_url":          "",
	"queue.exchange":            "ticketgate",
	"queue.queue":               "ticket-fulfillment",
	"queue.max_attempts":        3,
	"sweeper.interval":          "1m",
	"sweeper.grace":             "2m",
	"sweeper.max_attempts":      5,
	"sweeper.batch_size":        50,
	"release":                   "dev",
	"log_level":                 "info",
}

// aliases keeps the deployment's older variable names working.
var aliases = map[string][]string{
	"http.port":          {"PORT"},
	"gateway.key_id":     {"RAZORPAY_KEY_ID"},
	"gateway.key_secret": {"RAZORPAY_KEY_SECRET"},
	"auth.jwt_secret":    {"JWT_SECRET"},
}

// Load reads .env (optional), the environment and an optional YAML file. Keys map to
// variables by upper-casing and replacing dots, e.g. db.host is DB_HOST.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range aliases {
		args := append([]string{key, strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Auth.Admins = auth.ParseAllowList(cfg.Auth.AdminEmails)
	cfg.Auth.Managers = auth.ParseAllowList(cfg.Auth.ManagerEmails)
	return cfg, nil
}

// Validate checks what the HTTP service needs before it can take traffic.
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
		errs = append(errs, errors.New("gateway.key_id and gateway.key_secret are required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	switch c.Ticket.PayloadForm {
	case "url":
		if c.Ticket.VerifyBaseURL == "" {
			errs = append(errs, errors.New("ticket.verify_base_url is required for the url payload form"))
		}
	case "json":
	default:
		errs = append(errs, fmt.Errorf("unknown ticket.payload_form %q", c.Ticket.PayloadForm))
	}
	switch c.Storage.Driver {
	case "disk", "bolt":
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

func openDialector(cfg DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.Path + "?_busy_timeout=5000&_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("unknown db.driver %q", cfg.Driver)
	}
}

// InitDatabase connects and migrates the schema.
func InitDatabase(cfg *Config, log zerolog.Logger) (*gorm.DB, error) {
	dialector, err := openDialector(cfg.Database)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if dialector.Name() == "postgres" {
		if err := enableUUIDExtension(db); err != nil {
			return nil, err
		}
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := models.AutoMigrate(db); err != nil {
		return nil, err
	}

	log.Info().Str("driver", dialector.Name()).Msg("database ready")
	return db, nil
}
