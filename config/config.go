// Package config loads the application configuration from environment variables
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment the process runs in
type Environment int

const (
	EnvDevelopment Environment = iota
	EnvStaging
	EnvProduction
	EnvTest
)

// ParseEnvironment maps an ENV value to an Environment
func ParseEnvironment(env string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", env)
	}
}

func (e Environment) String() string {
	switch e {
	case EnvStaging:
		return "staging"
	case EnvProduction:
		return "prod"
	case EnvTest:
		return "test"
	default:
		return "dev"
	}
}

// Config holds all application configuration
type Config struct {
	Env      Environment
	LogLevel string

	// Logging
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	LogColor          bool

	// HTTP server
	Port           string
	Address        string
	MaxRequestBody int64 // Maximum request body size in bytes
	MaxHeaderSize  int64 // Maximum header size in bytes

	// Release fetcher
	ListingURL      string
	Referer         string
	ListingKeyword  string
	TargetDir       string
	HistoryFile     string
	RequestTimeout  time.Duration
	MaxDownloadSize int64

	// Classifier
	SourceGlob       string
	OutputFile       string
	UnclassifiedFile string
	RulesFile        string

	// Service
	UpdateTimes    string
	PushgatewayURL string
	DatabaseURL    string
}

const (
	defaultListingURL = "https://www.nhi.gov.tw/ch/cp-15138-b2fee-3669-1.html"
	defaultReferer    = "https://www.nhi.gov.tw/"
	defaultKeyword    = "各醫院三班護病比"
	defaultTargetDir  = "nurse-to-patient-ratios-by-shift"
)

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	targetDir := getEnvWithDefault("TARGET_DIR", defaultTargetDir)

	historyFile := getEnvWithDefault("HISTORY_FILE", "download_history.json")
	if !filepath.IsAbs(historyFile) && filepath.Dir(historyFile) == "." {
		historyFile = filepath.Join(targetDir, historyFile)
	}

	cfg := &Config{
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		LogColor:          getBoolEnvWithDefault("LOG_COLOR", true),
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576), // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),  // 1MB default
		ListingURL:        getEnvWithDefault("LISTING_URL", defaultListingURL),
		Referer:           getEnvWithDefault("REFERER", defaultReferer),
		ListingKeyword:    getEnvWithDefault("LISTING_KEYWORD", defaultKeyword),
		TargetDir:         targetDir,
		HistoryFile:       historyFile,
		RequestTimeout:    getDurationEnvWithDefault("REQUEST_TIMEOUT", 30*time.Second),
		MaxDownloadSize:   getInt64EnvWithDefault("MAX_DOWNLOAD_SIZE", 64*1024*1024), // 64MB default
		SourceGlob:        getEnvWithDefault("SOURCE_GLOB", filepath.Join(targetDir, "*.ods")),
		OutputFile:        getEnvWithDefault("OUTPUT_FILE", "hospitals_by_region.json"),
		UnclassifiedFile:  getEnvWithDefault("UNCLASSIFIED_FILE", "unclassified_hospitals.txt"),
		RulesFile:         os.Getenv("RULES_FILE"),
		UpdateTimes:       getEnvWithDefault("UPDATE_TIMES", "06:00;18:00"),
		PushgatewayURL:    os.Getenv("PUSHGATEWAY_URL"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateHTTPURL(cfg.ListingURL); err != nil {
		return fmt.Errorf("invalid LISTING_URL: %w", err)
	}

	if err := validateHTTPURL(cfg.Referer); err != nil {
		return fmt.Errorf("invalid REFERER: %w", err)
	}

	if cfg.PushgatewayURL != "" {
		if err := validateHTTPURL(cfg.PushgatewayURL); err != nil {
			return fmt.Errorf("invalid PUSHGATEWAY_URL: %w", err)
		}
	}

	if cfg.TargetDir == "" {
		return fmt.Errorf("invalid TARGET_DIR: cannot be empty")
	}

	if cfg.RequestTimeout <= 0 || cfg.RequestTimeout > 10*time.Minute {
		return fmt.Errorf("invalid REQUEST_TIMEOUT: must be between 0 and 10m, got: %s", cfg.RequestTimeout)
	}

	if cfg.MaxDownloadSize < 1024 || cfg.MaxDownloadSize > 1024*1024*1024 {
		return fmt.Errorf("invalid MAX_DOWNLOAD_SIZE: must be between 1KB and 1GB, got: %d bytes", cfg.MaxDownloadSize)
	}

	if _, err := filepath.Match(cfg.SourceGlob, ""); err != nil {
		return fmt.Errorf("invalid SOURCE_GLOB: %w", err)
	}

	if err := validateUpdateTimes(cfg.UpdateTimes); err != nil {
		return fmt.Errorf("invalid UPDATE_TIMES: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Only loopback and private ranges (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateHTTPURL requires an absolute http or https URL
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("host cannot be empty, got: %q", raw)
	}
	return nil
}

// validateUpdateTimes checks a semicolon separated list of HH:MM times
func validateUpdateTimes(times string) error {
	if strings.TrimSpace(times) == "" {
		return fmt.Errorf("UPDATE_TIMES cannot be empty")
	}
	for _, at := range strings.Split(times, ";") {
		if _, err := time.Parse("15:04", strings.TrimSpace(at)); err != nil {
			return fmt.Errorf("time %q is not HH:MM", at)
		}
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"LOG_COLOR",
		"PORT",
		"ADDRESS",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"LISTING_URL",
		"REFERER",
		"LISTING_KEYWORD",
		"TARGET_DIR",
		"HISTORY_FILE",
		"REQUEST_TIMEOUT",
		"MAX_DOWNLOAD_SIZE",
		"SOURCE_GLOB",
		"OUTPUT_FILE",
		"UNCLASSIFIED_FILE",
		"RULES_FILE",
		"UPDATE_TIMES",
		"PUSHGATEWAY_URL",
		"DATABASE_URL",
	}
}
