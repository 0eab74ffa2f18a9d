package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	BaseURL  string
	Location string
	Pages    int // 0 = auto-detect from the result count
	MinPrice int
	MaxPrice int
	MinBeds  int

	MaxConcurrency     int
	RateLimitMs        int
	MaxRetries         int
	FetchTimeoutSec    int
	BlacklistThreshold int

	SchedulerEnabled   bool
	RunIntervalMinutes int
	StartupPopulate    bool

	UseBrowser bool
	ChromeBin  string

	CSVOutputPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "housemarket_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		BaseURL:  getEnv("SCRAPE_BASE_URL", "https://www.onthemarket.com"),
		Location: getEnv("SCRAPE_LOCATION", "worcester"),
		Pages:    getEnvInt("SCRAPE_PAGES", 0),
		MinPrice: getEnvInt("MIN_PRICE", 0),
		MaxPrice: getEnvInt("MAX_PRICE", 0),
		MinBeds:  getEnvInt("MIN_BEDS", 0),

		MaxConcurrency:     getEnvInt("MAX_CONCURRENCY", 7),
		RateLimitMs:        getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		FetchTimeoutSec:    getEnvInt("FETCH_TIMEOUT_SEC", 10),
		BlacklistThreshold: getEnvInt("BLACKLIST_THRESHOLD", 3),

		SchedulerEnabled:   getEnvBool("SCHEDULER_ENABLED", false),
		RunIntervalMinutes: getEnvInt("RUN_INTERVAL_MINUTES", 60),
		StartupPopulate:    getEnvBool("STARTUP_POPULATE", true),

		UseBrowser: getEnvBool("USE_BROWSER", false),
		ChromeBin:  getEnv("CHROME_BIN", ""),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
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
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
