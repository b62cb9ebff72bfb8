package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	DatabasePath string
	LogLevel     string

	// Quote provider endpoints. The defaults point at the public fund API;
	// tests point them at an httptest server.
	NavRealtimeBaseURL string
	NavHistoryBaseURL  string
	NavFetchTimeout    time.Duration

	// NavFetchDelay is the fixed pause between sequential per-fund provider
	// calls during batch jobs. Cooperative throttling, not an error backoff.
	NavFetchDelay time.Duration

	// History window bounds for date-targeted NAV resolution.
	NavHistoryMin int
	NavHistoryMax int

	// NearestNavMaxLagDays bounds how far back a "nearest" NAV match may be
	// before it is treated as no data.
	NearestNavMaxLagDays int

	// SettleCutoffHour is the business-timezone (UTC+8) hour at which a
	// pending request rolls to the next workday.
	SettleCutoffHour int

	// CalendarScanLimitDays bounds forward scans in the trading calendar.
	CalendarScanLimitDays int

	// Category staleness thresholds. The dashboard and the direction detail
	// page intentionally use different values; both are preserved.
	StaleBuyDaysDashboard int
	StaleBuyDaysDetail    int

	// Price alert bands, percent change of latest NAV vs. the most recent BUY.
	PriceDropAlertPct float64
	PriceRiseAlertPct float64
}

var Cfg *AppConfig

func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: no .env file found, relying on OS environment variables and defaults.")
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./fundfolio.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		NavRealtimeBaseURL: getEnv("NAV_REALTIME_BASE_URL", "https://fundgz.1234567.com.cn/js"),
		NavHistoryBaseURL:  getEnv("NAV_HISTORY_BASE_URL", "https://api.fund.eastmoney.com/f10/lsjz"),
		NavFetchTimeout:    getEnvAsDuration("NAV_FETCH_TIMEOUT", 20*time.Second),
		NavFetchDelay:      getEnvAsDuration("NAV_FETCH_DELAY", 500*time.Millisecond),

		NavHistoryMin:        getEnvAsInt("NAV_HISTORY_MIN", 30),
		NavHistoryMax:        getEnvAsInt("NAV_HISTORY_MAX", 600),
		NearestNavMaxLagDays: getEnvAsInt("NEAREST_NAV_MAX_LAG_DAYS", 7),

		SettleCutoffHour:      getEnvAsInt("SETTLE_CUTOFF_HOUR", 15),
		CalendarScanLimitDays: getEnvAsInt("CALENDAR_SCAN_LIMIT_DAYS", 30),

		StaleBuyDaysDashboard: getEnvAsInt("STALE_BUY_DAYS_DASHBOARD", 45),
		StaleBuyDaysDetail:    getEnvAsInt("STALE_BUY_DAYS_DETAIL", 30),

		PriceDropAlertPct: getEnvAsFloat("PRICE_DROP_ALERT_PCT", -5),
		PriceRiseAlertPct: getEnvAsFloat("PRICE_RISE_ALERT_PCT", 8),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
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
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
