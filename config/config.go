package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceChromedp = "chromedp"
	SourceColly    = "colly"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL string

	MaxPages           int
	MaxListingsPerPage int
	MaxTotalListings   int

	ListingDelayMin time.Duration
	ListingDelayMax time.Duration
	PageDelayMin    time.Duration
	PageDelayMax    time.Duration

	NavRetryAttempts   int
	NavRetryDelay      time.Duration
	StoreRetryAttempts int
	StoreRetryDelay    time.Duration
	BackoffMultiplier  float64

	LogFilePath  string
	LogLevel     string
	FluentEnable bool
	FluentHost   string
	FluentPort   int

	PageSource  string
	ChromeBin   string
	Headless    bool
	PageTimeout time.Duration

	StoreDriver      string
	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	RawCSVPath string
	Timezone   string
}

// Load reads the .env file (or the given files) and returns a populated Config struct.
func Load(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BaseURL: getEnv("BASE_URL", "https://www.subito.it/annunci-piemonte/vendita/moto-e-scooter/"),

		MaxPages:           getEnvInt("MAX_PAGES", 2),
		MaxListingsPerPage: getEnvInt("MAX_LISTINGS_PER_PAGE", 999),
		MaxTotalListings:   getEnvInt("MAX_TOTAL_LISTINGS", 50),

		ListingDelayMin: getEnvMillis("LISTING_DELAY_MIN_MS", 500),
		ListingDelayMax: getEnvMillis("LISTING_DELAY_MAX_MS", 2000),
		PageDelayMin:    getEnvMillis("PAGE_DELAY_MIN_MS", 2000),
		PageDelayMax:    getEnvMillis("PAGE_DELAY_MAX_MS", 5000),

		NavRetryAttempts:   getEnvInt("NAV_RETRY_ATTEMPTS", 3),
		NavRetryDelay:      getEnvMillis("NAV_RETRY_DELAY_MS", 5000),
		StoreRetryAttempts: getEnvInt("STORE_RETRY_ATTEMPTS", 5),
		StoreRetryDelay:    getEnvMillis("STORE_RETRY_DELAY_MS", 2000),
		BackoffMultiplier:  getEnvFloat("RETRY_BACKOFF_MULTIPLIER", 2),

		LogFilePath:  getEnv("LOG_FILE_PATH", "scraper.log"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		FluentEnable: getEnvBool("FLUENT_ENABLED", false),
		FluentHost:   getEnv("FLUENT_HOST", "127.0.0.1"),
		FluentPort:   getEnvInt("FLUENT_PORT", 24224),

		PageSource:  strings.ToLower(getEnv("PAGE_SOURCE", SourceChromedp)),
		ChromeBin:   getEnv("CHROME_BIN", ""),
		Headless:    getEnvBool("HEADLESS", true),
		PageTimeout: time.Duration(getEnvInt("PAGE_TIMEOUT_SEC", 60)) * time.Second,

		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "moto_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./moto_listings.db"),

		RawCSVPath: getEnv("RAW_CSV_PATH", ""),
		Timezone:   getEnv("TIMEZONE", "Europe/Rome"),
	}
}

// Validate reports the first setting that would make a run meaningless.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("BASE_URL is required"))
	}
	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGES must be >= 1, got %d", c.MaxPages))
	}
	if c.MaxListingsPerPage < 1 {
		errs = append(errs, fmt.Errorf("MAX_LISTINGS_PER_PAGE must be >= 1, got %d", c.MaxListingsPerPage))
	}
	if c.MaxTotalListings < 1 {
		errs = append(errs, fmt.Errorf("MAX_TOTAL_LISTINGS must be >= 1, got %d", c.MaxTotalListings))
	}
	if c.ListingDelayMin < 0 || c.ListingDelayMax < c.ListingDelayMin {
		errs = append(errs, fmt.Errorf("listing delay bounds invalid: %v..%v", c.ListingDelayMin, c.ListingDelayMax))
	}
	if c.PageDelayMin < 0 || c.PageDelayMax < c.PageDelayMin {
		errs = append(errs, fmt.Errorf("page delay bounds invalid: %v..%v", c.PageDelayMin, c.PageDelayMax))
	}
	if c.NavRetryAttempts < 1 || c.StoreRetryAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be >= 1"))
	}
	if c.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("RETRY_BACKOFF_MULTIPLIER must be >= 1, got %v", c.BackoffMultiplier))
	}
	switch c.PageSource {
	case SourceChromedp, SourceColly:
	default:
		errs = append(errs, fmt.Errorf("unknown PAGE_SOURCE %q", c.PageSource))
	}
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	return errors.Join(errs...)
}

// DSN returns the connection string for the configured store driver.
func (c *Config) DSN() string {
	if c.StoreDriver == DriverSQLite {
		return c.SQLitePath
	}
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[config] Unknown TIMEZONE %q, using local time: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Printf("[config] %s=%q is not an integer, using %d", key, val, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
		log.Printf("[config] %s=%q is not a number, using %v", key, val, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
		log.Printf("[config] %s=%q is not a bool, using %t", key, val, fallback)
	}
	return fallback
}

func getEnvMillis(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMs)) * time.Millisecond
}
