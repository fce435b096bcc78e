package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Alerts AlertsConfig
	Twilio TwilioConfig
	Agent  AgentConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// cross-instance alert bridge and the server runs standalone.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings. The agent signs its own
// connection token with the same secret; user management lives elsewhere.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AlertsConfig holds the alerting policy consumed by the stream aggregator and
// the coordinator. Read once at startup; no hot-reload.
type AlertsConfig struct {
	Enabled             bool
	HRPhone             string // default SMS destination; event hrPhone overrides
	LevelThreshold      float64
	ConfidenceThreshold float64
	Cooldown            time.Duration
	Debounce            time.Duration
}

// TwilioConfig holds notification-provider credentials. Empty AccountSID
// disables SMS delivery; alerts still fan out to connected dashboards.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// AgentConfig holds settings for the headless monitoring agent binary.
type AgentConfig struct {
	ServerURL      string // ws:// or wss:// endpoint of the alert server
	UserID         string
	UserName       string
	Source         string // inference model identifier stamped into alerts
	SimulateFrames bool   // drive the pipeline with a synthetic frame source
	FrameInterval  time.Duration
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "5000"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Alerts: AlertsConfig{
			Enabled:             getEnvBool("ALERTS_ENABLED", true),
			HRPhone:             getEnv("HR_PHONE_NUMBER", ""),
			LevelThreshold:      getEnvFloat("ALERT_LEVEL_THRESHOLD", 0.7),
			ConfidenceThreshold: getEnvFloat("ALERT_CONFIDENCE_THRESHOLD", 0.6),
			Cooldown:            getEnvDuration("ALERT_COOLDOWN", 30*time.Second),
			Debounce:            getEnvDuration("ALERT_DEBOUNCE", 150*time.Millisecond),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		},
		Agent: AgentConfig{
			ServerURL:      getEnv("AGENT_SERVER_URL", "ws://localhost:5000/ws"),
			UserID:         getEnv("AGENT_USER_ID", "agent@neurometric.local"),
			UserName:       getEnv("AGENT_USER_NAME", "Unknown User"),
			Source:         getEnv("AGENT_SOURCE", "FULL_FRAME_MINI_XCEPTION"),
			SimulateFrames: getEnvBool("AGENT_SIMULATE_FRAMES", false),
			FrameInterval:  getEnvDuration("AGENT_FRAME_INTERVAL", 500*time.Millisecond),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
