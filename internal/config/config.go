package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"participants-bot/internal/util"
)

// Storage backends.
const (
	BackendSheets   = "sheets"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// minSecretLen is the shortest EXPORT_SECRET accepted.
const minSecretLen = 16

type Config struct {
	TelegramToken string

	StorageBackend string

	SpreadsheetID            string
	GoogleServiceAccountJSON string

	DatabaseURL string
	RedisURL    string

	AdminTGIDs       map[int64]bool
	CoordinatorTGIDs map[int64]bool

	HTTPAddr      string
	BasePublicURL string
	ExportSecret  string

	ReferenceDataPath string
	EditTimeout       time.Duration

	LogLevel string
	LogJSON  bool

	SendRatePerSec float64
}

// FromEnv reads the configuration from the environment and validates it.
func FromEnv() (Config, error) {
	c, err := Parse(os.Getenv)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Parse reads every variable through getenv and fills in defaults. It only
// fails on malformed values; required values are checked by Validate.
func Parse(getenv func(string) string) (Config, error) {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }

	var c Config
	c.TelegramToken = get("TELEGRAM_BOT_TOKEN")

	c.StorageBackend = strings.ToLower(get("STORAGE_BACKEND"))
	if c.StorageBackend == "" {
		c.StorageBackend = BackendSheets
	}
	c.SpreadsheetID = get("GOOGLE_SHEETS_SPREADSHEET_ID")
	c.GoogleServiceAccountJSON = get("GOOGLE_SERVICE_ACCOUNT_JSON")
	c.DatabaseURL = get("DATABASE_URL")
	c.RedisURL = get("REDIS_URL")

	c.AdminTGIDs = parseIDs(get("ADMIN_TG_IDS"))
	c.CoordinatorTGIDs = parseIDs(get("COORDINATOR_TG_IDS"))

	c.HTTPAddr = get("HTTP_ADDR")
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	c.BasePublicURL = strings.TrimRight(get("BASE_PUBLIC_URL"), "/")
	c.ExportSecret = get("EXPORT_SECRET")

	c.ReferenceDataPath = get("REFERENCE_DATA_PATH")

	c.EditTimeout = 300 * time.Second
	if v := get("EDIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("EDIT_TIMEOUT: %w", err)
		}
		c.EditTimeout = d
	}

	c.LogLevel = get("LOG_LEVEL")
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogJSON = util.NormalizeBoolRU(get("LOG_JSON"))

	c.SendRatePerSec = 25
	if v := get("SEND_RATE_PER_SEC"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c, fmt.Errorf("SEND_RATE_PER_SEC: %w", err)
		}
		c.SendRatePerSec = f
	}
	return c, nil
}

// Validate checks the values the bot cannot run without.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	switch c.StorageBackend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID is empty")
		}
		if c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND %q is not one of sheets, postgres, memory", c.StorageBackend)
	}
	if c.ExportSecret != "" && (len(c.ExportSecret) < minSecretLen || c.ExportSecret == "change-me") {
		return fmt.Errorf("EXPORT_SECRET must be at least %d characters and not a placeholder", minSecretLen)
	}
	if c.BasePublicURL != "" && c.ExportSecret == "" {
		return fmt.Errorf("EXPORT_SECRET is required when BASE_PUBLIC_URL is set")
	}
	if c.EditTimeout <= 0 {
		return fmt.Errorf("EDIT_TIMEOUT must be positive")
	}
	if c.SendRatePerSec <= 0 {
		return fmt.Errorf("SEND_RATE_PER_SEC must be positive")
	}
	return nil
}

func parseIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	if raw == "" {
		return m
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
