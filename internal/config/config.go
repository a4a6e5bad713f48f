// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/aristath/portfolio-analytics/internal/modules/indicators"
	"github.com/aristath/portfolio-analytics/internal/modules/optimization"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
	"github.com/aristath/portfolio-analytics/internal/modules/risk"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for all databases (always absolute)
	Port            int
	LogLevel        string
	LogPretty       bool
	DevMode         bool
	DBDriver        string // sqlite (modernc) or sqlite3 (mattn)
	BenchmarkSymbol string
	LookbackDays    int
	RefreshSchedule string
	Workers         int
	Analytics       AnalyticsConfig
	Export          ExportConfig
}

// AnalyticsConfig holds the numeric engine parameters
type AnalyticsConfig struct {
	RiskFreeRate        float64 // annual
	AnnualizationFactor float64
	MinSampleSize       int
	SMAWindows          []int
	RSIWindow           int
	MACDFast            int
	MACDSlow            int
	MACDSignal          int
	BollingerWindow     int
	BollingerK          float64
}

// ExportConfig holds S3-compatible report export settings. Export is
// disabled when Bucket is empty.
type ExportConfig struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Enabled reports whether a bucket is configured
func (e ExportConfig) Enabled() bool {
	return e.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ANALYTICS_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("ANALYTICS_PORT", 8001),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnvAsBool("LOG_PRETTY", true),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		BenchmarkSymbol: strings.ToUpper(getEnv("BENCHMARK_SYMBOL", "SPY")),
		LookbackDays:    getEnvAsInt("LOOKBACK_DAYS", 365),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 15m"),
		Workers:         getEnvAsInt("ANALYSIS_WORKERS", runtime.NumCPU()),
		Analytics: AnalyticsConfig{
			RiskFreeRate:        getEnvAsFloat("RISK_FREE_RATE", 0.02),
			AnnualizationFactor: getEnvAsFloat("ANNUALIZATION_FACTOR", 252),
			MinSampleSize:       getEnvAsInt("MIN_SAMPLE_SIZE", risk.DefaultMinSampleSize),
			SMAWindows:          getEnvAsInts("SMA_WINDOWS", []int{20, 50}),
			RSIWindow:           getEnvAsInt("RSI_WINDOW", 14),
			MACDFast:            getEnvAsInt("MACD_FAST", 12),
			MACDSlow:            getEnvAsInt("MACD_SLOW", 26),
			MACDSignal:          getEnvAsInt("MACD_SIGNAL", 9),
			BollingerWindow:     getEnvAsInt("BOLLINGER_WINDOW", 20),
			BollingerK:          getEnvAsFloat("BOLLINGER_K", 2),
		},
		Export: ExportConfig{
			Bucket:    getEnv("EXPORT_BUCKET", ""),
			Endpoint:  getEnv("EXPORT_ENDPOINT", ""),
			Region:    getEnv("EXPORT_REGION", "us-east-1"),
			AccessKey: getEnv("EXPORT_ACCESS_KEY", ""),
			SecretKey: getEnv("EXPORT_SECRET_KEY", ""),
			Prefix:    getEnv("EXPORT_PREFIX", "reports"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects parameter combinations the engines cannot run with
func (c *Config) Validate() error {
	a := c.Analytics
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid ANALYTICS_PORT %d", c.Port)
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "sqlite3" {
		return fmt.Errorf("invalid DB_DRIVER %q: must be sqlite or sqlite3", c.DBDriver)
	}
	if c.LookbackDays <= 0 {
		return fmt.Errorf("LOOKBACK_DAYS must be positive, got %d", c.LookbackDays)
	}
	if a.AnnualizationFactor <= 0 {
		return fmt.Errorf("ANNUALIZATION_FACTOR must be positive, got %v", a.AnnualizationFactor)
	}
	if a.MinSampleSize < 2 {
		return fmt.Errorf("MIN_SAMPLE_SIZE must be at least 2, got %d", a.MinSampleSize)
	}
	for _, w := range a.SMAWindows {
		if w <= 0 {
			return fmt.Errorf("SMA_WINDOWS must be positive, got %d", w)
		}
	}
	if a.RSIWindow <= 0 || a.MACDFast <= 0 || a.MACDSlow <= 0 || a.MACDSignal <= 0 || a.BollingerWindow <= 0 {
		return fmt.Errorf("indicator windows must be positive")
	}
	if a.MACDFast >= a.MACDSlow {
		return fmt.Errorf("MACD_FAST (%d) must be smaller than MACD_SLOW (%d)", a.MACDFast, a.MACDSlow)
	}
	if a.BollingerK <= 0 {
		return fmt.Errorf("BOLLINGER_K must be positive, got %v", a.BollingerK)
	}
	if c.Export.Enabled() && (c.Export.AccessKey == "") != (c.Export.SecretKey == "") {
		return fmt.Errorf("EXPORT_ACCESS_KEY and EXPORT_SECRET_KEY must be set together")
	}
	return nil
}

// RiskOptions builds the risk engine options
func (c *Config) RiskOptions() risk.Options {
	opts := risk.DefaultOptions()
	opts.MinSampleSize = c.Analytics.MinSampleSize
	opts.AnnualizationFactor = c.Analytics.AnnualizationFactor
	return opts.WithAnnualRiskFreeRate(c.Analytics.RiskFreeRate)
}

// IndicatorParams builds the indicator set computed for every asset
func (c *Config) IndicatorParams() indicators.Params {
	a := c.Analytics
	return indicators.Params{
		SMAWindows:      append([]int(nil), a.SMAWindows...),
		RSIWindow:       a.RSIWindow,
		MACDFast:        a.MACDFast,
		MACDSlow:        a.MACDSlow,
		MACDSignal:      a.MACDSignal,
		BollingerWindow: a.BollingerWindow,
		BollingerK:      a.BollingerK,
	}
}

// PortfolioOptions builds the aggregator options
func (c *Config) PortfolioOptions() portfolio.Options {
	return portfolio.Options{Workers: c.Workers, Indicators: c.IndicatorParams()}
}

// OptimizationOptions builds the optimizer options
func (c *Config) OptimizationOptions() optimization.Options {
	opts := optimization.DefaultOptions()
	opts.AnnualizationFactor = c.Analytics.AnnualizationFactor
	opts.RiskFreeRate = c.Analytics.RiskFreeRate
	opts.MinSampleSize = c.Analytics.MinSampleSize
	return opts
}

// DatabasePath returns the path of a named database inside DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsInts parses a comma separated list; an unparsable entry yields the default
func getEnvAsInts(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
