package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret    string
	JWTAlgorithm string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration

	AgentModel        string
	AgentSystemPrompt string
	StreamMaxDuration time.Duration
	StreamIdleTimeout time.Duration

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8000"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 0),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DB_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 2)),
		JWTSecret:               strings.TrimSpace(os.Getenv("SECRET_KEY")),
		JWTAlgorithm:            getEnv("JWT_ALGORITHM", "HS256"),
		AccessTTL:               getDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTTL:              getDuration("REFRESH_TOKEN_TTL", 168*time.Hour),
		AgentModel:              getEnv("AGENT_MODEL", "googleai/gemini-2.5-flash"),
		AgentSystemPrompt:       getEnv("AGENT_SYSTEM_PROMPT", defaultSystemPrompt),
		StreamMaxDuration:       getDuration("STREAM_MAX_DURATION", 5*time.Minute),
		StreamIdleTimeout:       getDuration("STREAM_IDLE_TIMEOUT", 60*time.Second),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 120),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that would silently run with an insecure
// or unusable setup. There is intentionally no default signing secret.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}

	if c.JWTAlgorithm != "HS256" {
		return fmt.Errorf("unsupported JWT_ALGORITHM %q (only HS256 is supported)", c.JWTAlgorithm)
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DB_URL is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.StreamMaxDuration <= 0 || c.StreamIdleTimeout <= 0 {
		return fmt.Errorf("stream timeouts must be positive")
	}

	return nil
}

const defaultSystemPrompt = `You are Furia Superfan, a chatbot for the FURIA Counter-Strike team from Brazil.
Answer questions about matches, players and historical results, talking with users fan to fan.
Your style is friendly, informal and fact-focused. Answer in the language of the user's question.
Be enthusiastic about the team and engaging, with emojis where it fits.`

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
