package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the paths and store settings shared by the loader and exporter.
// It is resolved once at startup and passed by value; nothing mutates it afterwards.
type Config struct {
	ProjectRoot string

	DBDriver    string
	DBPath      string
	DatabaseURL string

	ListingsCSV string
	ReviewsCSV  string
	SchemaSQL   string
	QuerySQL    string
	OutputCSV   string

	LogLevel string
}

// Load reads an optional .env file and returns a Config with every path
// anchored at the project root.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	root := getEnv("ETL_PROJECT_ROOT", "")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		root = wd
	}
	return New(root)
}

// New builds a Config rooted at root. Paths are fixed relative to the root;
// only the store driver, its URL and the log level come from the environment.
func New(root string) Config {
	return Config{
		ProjectRoot: root,

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
		DBPath:      filepath.Join(root, "data", "airbnb.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		ListingsCSV: filepath.Join(root, "data", "raw", "listings.csv"),
		ReviewsCSV:  filepath.Join(root, "data", "raw", "reviews.csv"),
		SchemaSQL:   filepath.Join(root, "sql", "schema", "create_tables.sql"),
		QuerySQL:    filepath.Join(root, "sql", "queries", "neighbourhood_summary.sql"),
		OutputCSV:   filepath.Join(root, "data", "processed", "neighbourhood_summary.csv"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the data source name for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == DriverPostgres {
		return c.DatabaseURL
	}
	return c.DBPath
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
