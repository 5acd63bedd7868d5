package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"telecalc/internal/logger"
	"telecalc/pkg/models"
)

type Config struct {
	// HTTP Server Configuration
	HTTPAddr           string        `yaml:"http_addr"`
	HTTPRequestTimeout time.Duration `yaml:"http_request_timeout"`

	// Billing Configuration
	AnchorDay int     `yaml:"anchor_day"`
	VATRate   float64 `yaml:"vat_rate"`
	DateStyle string  `yaml:"date_style"` // iso or dmy

	// OpenAI Configuration
	OpenAIAPIKey      string  `yaml:"-"`
	OpenAIBaseURL     string  `yaml:"openai_base_url"`
	OpenAIModel       string  `yaml:"openai_model"`
	ChatMaxTokens     int     `yaml:"chat_max_tokens"`
	ChatRatePerMinute float64 `yaml:"chat_rate_per_minute"`
	ChatRateBurst     int     `yaml:"chat_rate_burst"`

	// Document Store Configuration
	DocumentsPath string            `yaml:"documents_path"`
	Documents     []models.Document `yaml:"documents"` // seed list, file only

	// Google Cloud Configuration
	GoogleCloudProject         string `yaml:"google_cloud_project"`
	GoogleCloudLocation        string `yaml:"google_cloud_location"`
	DocumentAIProcessorID      string `yaml:"document_ai_processor_id"`
	DocumentAIProcessorVersion string `yaml:"document_ai_processor_version"`
	GoogleServiceAccountKey    string `yaml:"-"`

	// Google Sheets Configuration
	GoogleSheetURL       string `yaml:"google_sheet_url"`
	GoogleSheetWorksheet string `yaml:"google_sheet_worksheet"`

	// Logging Configuration
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	LogTimeFormat string `yaml:"log_time_format"`
	LogOutput     string `yaml:"log_output"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTPAddr:             ":8080",
		HTTPRequestTimeout:   15 * time.Second,
		AnchorDay:            15,
		VATRate:              0.16,
		DateStyle:            "iso",
		OpenAIModel:          "gpt-4o-mini",
		ChatMaxTokens:        800,
		ChatRatePerMinute:    20,
		ChatRateBurst:        5,
		DocumentsPath:        "data/documents.json",
		GoogleCloudLocation:  "us",
		GoogleSheetWorksheet: "Prorations",
		LogLevel:             "info",
		LogFormat:            "console",
		LogTimeFormat:        time.RFC3339,
		LogOutput:            "stdout",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE and the environment, in that order of precedence.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.DateStyle = getEnv("BILLING_DATE_STYLE", c.DateStyle)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.DocumentsPath = getEnv("DOCUMENTS_PATH", c.DocumentsPath)
	c.GoogleCloudProject = getEnv("GOOGLE_CLOUD_PROJECT", c.GoogleCloudProject)
	c.GoogleCloudLocation = getEnv("GOOGLE_CLOUD_LOCATION", c.GoogleCloudLocation)
	c.DocumentAIProcessorID = getEnv("DOCUMENT_AI_PROCESSOR_ID", c.DocumentAIProcessorID)
	c.DocumentAIProcessorVersion = getEnv("DOCUMENT_AI_PROCESSOR_VERSION", c.DocumentAIProcessorVersion)
	c.GoogleServiceAccountKey = getEnv("GOOGLE_SERVICE_ACCOUNT_KEY", c.GoogleServiceAccountKey)
	c.GoogleSheetURL = getEnv("GOOGLE_SHEET_URL", c.GoogleSheetURL)
	c.GoogleSheetWorksheet = getEnv("GOOGLE_SHEET_WORKSHEET", c.GoogleSheetWorksheet)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.LogTimeFormat = getEnv("LOG_TIME_FORMAT", c.LogTimeFormat)
	c.LogOutput = getEnv("LOG_OUTPUT", c.LogOutput)

	var err error
	if c.HTTPRequestTimeout, err = getEnvDuration("HTTP_REQUEST_TIMEOUT", c.HTTPRequestTimeout); err != nil {
		return err
	}
	if c.AnchorDay, err = getEnvInt("BILLING_ANCHOR_DAY", c.AnchorDay); err != nil {
		return err
	}
	if c.VATRate, err = getEnvFloat("BILLING_VAT_RATE", c.VATRate); err != nil {
		return err
	}
	if c.ChatMaxTokens, err = getEnvInt("CHAT_MAX_TOKENS", c.ChatMaxTokens); err != nil {
		return err
	}
	if c.ChatRatePerMinute, err = getEnvFloat("CHAT_RATE_PER_MINUTE", c.ChatRatePerMinute); err != nil {
		return err
	}
	if c.ChatRateBurst, err = getEnvInt("CHAT_RATE_BURST", c.ChatRateBurst); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.HTTPRequestTimeout <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT must be positive, got %s", c.HTTPRequestTimeout)
	}
	if c.AnchorDay < 1 || c.AnchorDay > 31 {
		return fmt.Errorf("BILLING_ANCHOR_DAY must be between 1 and 31, got %d", c.AnchorDay)
	}
	if math.IsNaN(c.VATRate) || c.VATRate < 0 || c.VATRate > 1 {
		return fmt.Errorf("BILLING_VAT_RATE must be a fraction between 0 and 1, got %v", c.VATRate)
	}
	if c.DateStyle != "iso" && c.DateStyle != "dmy" {
		return fmt.Errorf("BILLING_DATE_STYLE must be iso or dmy, got %q", c.DateStyle)
	}
	if c.ChatMaxTokens <= 0 {
		return fmt.Errorf("CHAT_MAX_TOKENS must be positive, got %d", c.ChatMaxTokens)
	}
	if c.ChatRatePerMinute <= 0 || math.IsInf(c.ChatRatePerMinute, 0) {
		return fmt.Errorf("CHAT_RATE_PER_MINUTE must be positive, got %v", c.ChatRatePerMinute)
	}
	if c.ChatRateBurst < 1 {
		return fmt.Errorf("CHAT_RATE_BURST must be at least 1, got %d", c.ChatRateBurst)
	}
	if c.DocumentsPath == "" {
		return fmt.Errorf("DOCUMENTS_PATH is required")
	}
	return nil
}

// ChatEnabled reports whether an OpenAI key is configured.
func (c *Config) ChatEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// ScanEnabled reports whether Document AI is configured.
func (c *Config) ScanEnabled() bool {
	return c.GoogleCloudProject != "" && c.DocumentAIProcessorID != ""
}

// SheetsEnabled reports whether calculations can be exported.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSheetURL != ""
}

// GoogleCredentials returns the service account key as JSON. The setting is
// either inline JSON or a path to the key file. Nil means application default
// credentials.
func (c *Config) GoogleCredentials() ([]byte, error) {
	key := strings.TrimSpace(c.GoogleServiceAccountKey)
	if key == "" {
		return nil, nil
	}
	if strings.HasPrefix(key, "{") {
		return []byte(key), nil
	}
	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("read GOOGLE_SERVICE_ACCOUNT_KEY: %w", err)
	}
	return data, nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: expected an integer, got %q", key, value)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: expected a number, got %q", key, value)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: expected a duration such as 15s, got %q", key, value)
	}
	return d, nil
}
