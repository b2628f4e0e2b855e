package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For durations

	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // For the amount ceiling
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	IsProd     bool   // Is production environment
	DBDriver   string // Database driver: mysql or postgres
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number

	PaystackSecretKey string // Secret key for the gateway API and webhook signatures
	PaystackBaseURL   string // Gateway API base URL
	GoogleClientID    string // OAuth client ID that Google ID tokens must be issued for
	APIKeySecret      string // HMAC secret used to hash API keys

	MaxAmount            decimal.Decimal // Ceiling for a single deposit or transfer
	GatewayTimeout       time.Duration   // Bound on every gateway call
	PendingDepositTTL    time.Duration   // Age after which a pending deposit is reconciled
	PendingDepositMaxAge time.Duration   // Age after which an unconfirmed deposit is failed
	SweepInterval        time.Duration   // Interval of the background sweeper, 0 disables it

	RateLimitGlobal    int // Requests per minute per client
	RateLimitTransfers int // Transfers per minute per client
	RateLimitKeys      int // API key creations per minute per client
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),             // Application port
		IsProd:     os.Getenv("IS_PROD") == "true",         // Is production environment
		DBDriver:   getEnv("DB_DRIVER", "mysql"),           // Database driver
		DBUser:     os.Getenv("DB_USER"),                   // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),               // Database password
		DBHost:     os.Getenv("DB_HOST"),                   // Database host
		DBPort:     os.Getenv("DB_PORT"),                   // Database port
		DBName:     os.Getenv("DB_NAME"),                   // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),                // JWT secret key
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"), // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),                // Redis password
		RedisDB:    redisDB,                                // Redis database number

		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		GoogleClientID:    os.Getenv("GOOGLE_CLIENT_ID"),
		APIKeySecret:      os.Getenv("API_KEY_SECRET"),

		MaxAmount:            getDecimal("MAX_AMOUNT", decimal.NewFromInt(10_000_000)),
		GatewayTimeout:       getDuration("GATEWAY_TIMEOUT", 15*time.Second),
		PendingDepositTTL:    getDuration("PENDING_DEPOSIT_TTL", 30*time.Minute),
		PendingDepositMaxAge: getDuration("PENDING_DEPOSIT_MAX_AGE", 24*time.Hour),
		SweepInterval:        getDuration("SWEEP_INTERVAL", 5*time.Minute),

		RateLimitGlobal:    getInt("RATE_LIMIT_GLOBAL", 100),
		RateLimitTransfers: getInt("RATE_LIMIT_TRANSFERS", 20),
		RateLimitKeys:      getInt("RATE_LIMIT_KEYS", 5),
	}
}

// DSN builds the data source name for the configured driver
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser +
			" password=" + c.DBPassword + " dbname=" + c.DBName + " sslmode=disable TimeZone=UTC"
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v, err := decimal.NewFromString(os.Getenv(key)); err == nil && v.IsPositive() {
		return v
	}
	return fallback
}
