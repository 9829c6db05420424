package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	LogLevel           string
	DatabasePath       string
	MappingStorePath   string
	ShareListPath      string
	SECTickerURL       string
	FetchTimeout       time.Duration
	MaxUploadSizeBytes int64

	// Fuzzy-match cutoffs. The share list carries shorter, more abbreviated
	// names than the SEC feed, so it gets a looser cutoff.
	BulkFuzzyCutoff     float64
	DocumentFuzzyCutoff float64

	// Upper bound on concurrent similarity workers inside one fuzzy stage.
	MatcherWorkers int
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	fetchTimeoutStr := getEnv("FETCH_TIMEOUT", "30s")
	fetchTimeout, err := time.ParseDuration(fetchTimeoutStr)
	if err != nil {
		log.Printf("WARNING: Invalid FETCH_TIMEOUT format '%s'. Using default 30s. Error: %v", fetchTimeoutStr, err)
		fetchTimeout = 30 * time.Second
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabasePath:       getEnv("DATABASE_PATH", "./stmyinvestment.db"),
		MappingStorePath:   getEnv("MAPPING_STORE_PATH", "data/company_name_to_ticker.json"),
		ShareListPath:      getEnv("SHARE_LIST_PATH", "data/stockbroking_share_list.pdf"),
		SECTickerURL:       getEnv("SEC_TICKER_URL", "https://www.sec.gov/files/company_tickers.json"),
		FetchTimeout:       fetchTimeout,
		MaxUploadSizeBytes: maxUploadSizeBytes,

		BulkFuzzyCutoff:     getEnvAsFloat("BULK_FUZZY_CUTOFF", 0.801),
		DocumentFuzzyCutoff: getEnvAsFloat("DOCUMENT_FUZZY_CUTOFF", 0.667),

		MatcherWorkers: getEnvAsInt("MATCHER_WORKERS", 8),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, MappingStore=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.MappingStorePath)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Float value for %s not set or empty, using default: %g", key, fallback)
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}
