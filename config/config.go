package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds the mock server configuration.
type Config struct {
	Addr       string
	CertFile   string
	KeyFile    string
	HTTPMode   bool
	Store      string
	SQLitePath string
	Metrics    bool
	WebhookURL string
	LogRecords bool
}

// Load builds the configuration from defaults, an optional .env file, the
// environment, and finally the command-line args, in increasing priority.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[Config] Failed to load .env: %v", err)
	}

	cfg := Config{
		Addr:       getEnv("MOCKFCM_ADDR", ":8443"),
		CertFile:   getEnv("MOCKFCM_CERT", "certs/cert.pem"),
		KeyFile:    getEnv("MOCKFCM_KEY", "certs/key.pem"),
		HTTPMode:   getEnvAsBool("MOCKFCM_HTTP", false),
		Store:      getEnv("MOCKFCM_STORE", StoreMemory),
		SQLitePath: getEnv("MOCKFCM_SQLITE_PATH", "mock-fcm.db"),
		Metrics:    getEnvAsBool("MOCKFCM_METRICS", true),
		WebhookURL: getEnv("MOCKFCM_WEBHOOK_URL", ""),
		LogRecords: getEnvAsBool("MOCKFCM_LOG_RECORDS", false),
	}

	fs := flag.NewFlagSet("mock-fcm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Address to listen on")
	fs.StringVar(&cfg.CertFile, "cert", cfg.CertFile, "Path to TLS certificate file")
	fs.StringVar(&cfg.KeyFile, "key", cfg.KeyFile, "Path to TLS key file")
	fs.BoolVar(&cfg.HTTPMode, "http", cfg.HTTPMode, "Run in HTTP mode (disable TLS, HTTP/2 via h2c)")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "State backend: memory or sqlite")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path (wiped on start)")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "Serve Prometheus metrics on /metrics")
	fs.StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "Mirror every activity record to this URL")
	fs.BoolVar(&cfg.LogRecords, "log-records", cfg.LogRecords, "Log every activity record")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}

	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite-path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("invalid store %q: must be %s or %s", c.Store, StoreMemory, StoreSQLite)
	}

	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil {
			return fmt.Errorf("invalid webhook-url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid webhook-url: scheme must be http or https")
		}
		if u.Host == "" {
			return fmt.Errorf("invalid webhook-url: host is required")
		}
	}

	if !c.HTTPMode && (c.CertFile == "" || c.KeyFile == "") {
		return errors.New("cert and key are required unless running in HTTP mode")
	}
	return nil
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsBool(key string, def bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		log.Printf("[Config] invalid bool for %s, using default %t: %v", key, def, err)
		return def
	}
	return b
}
