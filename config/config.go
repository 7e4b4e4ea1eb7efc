/*
config.go - Runtime configuration

SOURCES (later wins):
  1. Defaults
  2. YAML file (optional, -config flag)
  3. .env file in the working directory (optional)
  4. Process environment
  5. Command-line flags (applied by cmd/server)

ENVIRONMENT:
  PORT, DB_PATH, LOG_LEVEL, TIMEZONE, SEND_MODE, SEND_DELAY,
  DESTINATIONS (comma-separated), CORS_ORIGINS (comma-separated),
  SHEET_BACKEND, SPREADSHEET_ID, SHEET_RANGE, GOOGLE_CREDENTIALS_FILE,
  XLSX_PATH, CHANNEL_BACKEND, WHATSAPP_SESSION_DB, RESEND_API_KEY,
  EMAIL_FROM, EMAIL_SUBJECT

SEND_DELAY:
  Seconds between consecutive sends as a decimal string ("1.5").
  Parsed with shopspring/decimal so "0.1" is exactly 100ms.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Backends
const (
	SheetGoogle = "google"
	SheetXLSX   = "xlsx"
	SheetMemory = "memory"

	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// Config is the full runtime configuration.
type Config struct {
	Port         int      `yaml:"port"`
	DBPath       string   `yaml:"db_path"`
	LogLevel     string   `yaml:"log_level"`
	Timezone     string   `yaml:"timezone"`
	SendMode     string   `yaml:"send_mode"`
	SendDelay    string   `yaml:"send_delay"`
	Destinations []string `yaml:"destinations"`
	CORSOrigins  []string `yaml:"cors_origins"`

	Sheet   SheetConfig   `yaml:"sheet"`
	Channel ChannelConfig `yaml:"channel"`
}

// SheetConfig selects and configures the spreadsheet backend.
type SheetConfig struct {
	Backend         string `yaml:"backend"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Range           string `yaml:"range"`
	CredentialsFile string `yaml:"credentials_file"`
	XLSXPath        string `yaml:"xlsx_path"`
}

// ChannelConfig selects and configures the messaging backend.
type ChannelConfig struct {
	Backend      string `yaml:"backend"`
	SessionDB    string `yaml:"session_db"`
	ResendAPIKey string `yaml:"resend_api_key"`
	EmailFrom    string `yaml:"email_from"`
	EmailSubject string `yaml:"email_subject"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Port:        8080,
		DBPath:      "reminders.db",
		LogLevel:    "info",
		Timezone:    "UTC",
		SendMode:    "today",
		SendDelay:   "1.5",
		CORSOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		Sheet: SheetConfig{
			Backend: SheetGoogle,
			Range:   "Hoja1!A1:D",
		},
		Channel: ChannelConfig{
			Backend:      ChannelWhatsApp,
			SessionDB:    "whatsapp-session.db",
			EmailSubject: "Recordatorio",
		},
	}
}

// Load reads path (may be empty), then .env, then the environment. Callers
// apply their flag overrides and then call Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setList := func(key string, dst *[]string) {
		if v := getenv(key); strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	setString("DB_PATH", &c.DBPath)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("TIMEZONE", &c.Timezone)
	setString("SEND_MODE", &c.SendMode)
	setString("SEND_DELAY", &c.SendDelay)
	setList("DESTINATIONS", &c.Destinations)
	setList("CORS_ORIGINS", &c.CORSOrigins)

	setString("SHEET_BACKEND", &c.Sheet.Backend)
	setString("SPREADSHEET_ID", &c.Sheet.SpreadsheetID)
	setString("SHEET_RANGE", &c.Sheet.Range)
	setString("GOOGLE_CREDENTIALS_FILE", &c.Sheet.CredentialsFile)
	setString("XLSX_PATH", &c.Sheet.XLSXPath)

	setString("CHANNEL_BACKEND", &c.Channel.Backend)
	setString("WHATSAPP_SESSION_DB", &c.Channel.SessionDB)
	setString("RESEND_API_KEY", &c.Channel.ResendAPIKey)
	setString("EMAIL_FROM", &c.Channel.EmailFrom)
	setString("EMAIL_SUBJECT", &c.Channel.EmailSubject)
	return nil
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

// Validate checks backend names, the delay and the time zone.
func (c Config) Validate() error {
	switch c.Sheet.Backend {
	case SheetGoogle:
		if c.Sheet.SpreadsheetID == "" {
			return fmt.Errorf("sheet.spreadsheet_id is required for the google backend")
		}
	case SheetXLSX:
		if c.Sheet.XLSXPath == "" {
			return fmt.Errorf("sheet.xlsx_path is required for the xlsx backend")
		}
	case SheetMemory:
	default:
		return fmt.Errorf("unknown sheet backend %q", c.Sheet.Backend)
	}

	switch c.Channel.Backend {
	case ChannelWhatsApp, ChannelEmail:
	default:
		return fmt.Errorf("unknown channel backend %q", c.Channel.Backend)
	}

	if _, err := c.Delay(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Delay returns SendDelay as a duration.
func (c Config) Delay() (time.Duration, error) {
	if strings.TrimSpace(c.SendDelay) == "" {
		return 0, nil
	}
	secs, err := decimal.NewFromString(strings.TrimSpace(c.SendDelay))
	if err != nil {
		return 0, fmt.Errorf("invalid send_delay %q: %w", c.SendDelay, err)
	}
	if secs.IsNegative() {
		return 0, fmt.Errorf("invalid send_delay %q: must not be negative", c.SendDelay)
	}
	return time.Duration(secs.Mul(decimal.NewFromInt(int64(time.Second))).IntPart()), nil
}

// Location returns the time zone used to compute "today".
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
