package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	SMTP          SMTPConfig
	Detection     DetectionConfig
	Orchestration OrchestrationConfig
	Analytics     AnalyticsConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

// DetectionConfig centralizes the recurrence-classification thresholds.
// The window bounds come from observed billing behaviour and are
// deliberately overridable per environment.
type DetectionConfig struct {
	MinOccurrences  int     // clusters below this are never recurring
	AmountTolerance float64 // relative amount spread per fingerprint bucket

	WeeklyMinGapDays    float64
	WeeklyMaxGapDays    float64
	MonthlyMinGapDays   float64
	MonthlyMaxGapDays   float64
	QuarterlyMinGapDays float64
	QuarterlyMaxGapDays float64
	YearlyMinGapDays    float64
	YearlyMaxGapDays    float64

	// Multiplier applied when the mean gap falls outside every window
	// and the cluster defaults to monthly.
	OutOfWindowPenalty float64
}

type OrchestrationConfig struct {
	DefaultMaxAttempts int
	EscalateByAttempts int // extra attempts granted by an escalated retry

	ApiTimeout        time.Duration
	AutomationTimeout time.Duration
	ManualTimeout     time.Duration

	// MinCancellableConfidence gates detected (non-manual) subscriptions
	// from orchestration when the detector was not sure enough.
	MinCancellableConfidence float64

	DispatchTopic      string
	StaleSweepInterval time.Duration

	// Base URL of the headless web-automation runner service.
	AutomationServiceURL string
}

type AnalyticsConfig struct {
	LowSuccessWarningRate float64 // overall success rate warning threshold
	HealthyMinRate        float64
	DegradedMinRate       float64
	HealthWindow          time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/subguard.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "SubGuard"),
		},
		Detection: DetectionConfig{
			MinOccurrences:      getEnvAsInt("DETECTION_MIN_OCCURRENCES", 2),
			AmountTolerance:     getEnvAsFloat("DETECTION_AMOUNT_TOLERANCE", 0.05),
			WeeklyMinGapDays:    getEnvAsFloat("DETECTION_WEEKLY_MIN_GAP", 6),
			WeeklyMaxGapDays:    getEnvAsFloat("DETECTION_WEEKLY_MAX_GAP", 8),
			MonthlyMinGapDays:   getEnvAsFloat("DETECTION_MONTHLY_MIN_GAP", 25),
			MonthlyMaxGapDays:   getEnvAsFloat("DETECTION_MONTHLY_MAX_GAP", 35),
			QuarterlyMinGapDays: getEnvAsFloat("DETECTION_QUARTERLY_MIN_GAP", 85),
			QuarterlyMaxGapDays: getEnvAsFloat("DETECTION_QUARTERLY_MAX_GAP", 95),
			YearlyMinGapDays:    getEnvAsFloat("DETECTION_YEARLY_MIN_GAP", 350),
			YearlyMaxGapDays:    getEnvAsFloat("DETECTION_YEARLY_MAX_GAP", 375),
			OutOfWindowPenalty:  getEnvAsFloat("DETECTION_OUT_OF_WINDOW_PENALTY", 0.6),
		},
		Orchestration: OrchestrationConfig{
			DefaultMaxAttempts:       getEnvAsInt("ORCH_DEFAULT_MAX_ATTEMPTS", 3),
			EscalateByAttempts:       getEnvAsInt("ORCH_ESCALATE_BY_ATTEMPTS", 2),
			ApiTimeout:               getEnvAsDuration("ORCH_API_TIMEOUT", 30*time.Second),
			AutomationTimeout:        getEnvAsDuration("ORCH_AUTOMATION_TIMEOUT", 5*time.Minute),
			ManualTimeout:            getEnvAsDuration("ORCH_MANUAL_TIMEOUT", 72*time.Hour),
			MinCancellableConfidence: getEnvAsFloat("ORCH_MIN_CANCELLABLE_CONFIDENCE", 0.5),
			DispatchTopic:            getEnv("ORCH_DISPATCH_TOPIC", "CANCELLATION_DISPATCH"),
			StaleSweepInterval:       getEnvAsDuration("ORCH_STALE_SWEEP_INTERVAL", time.Minute),
			AutomationServiceURL:     getEnv("ORCH_AUTOMATION_SERVICE_URL", "http://localhost:7600"),
		},
		Analytics: AnalyticsConfig{
			LowSuccessWarningRate: getEnvAsFloat("ANALYTICS_LOW_SUCCESS_RATE", 0.5),
			HealthyMinRate:        getEnvAsFloat("ANALYTICS_HEALTHY_MIN_RATE", 0.9),
			DegradedMinRate:       getEnvAsFloat("ANALYTICS_DEGRADED_MIN_RATE", 0.7),
			HealthWindow:          getEnvAsDuration("ANALYTICS_HEALTH_WINDOW", time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
