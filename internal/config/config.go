package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// StoreBackend selects the account store: "dynamo" or "memory".
	StoreBackend string
	// RevocationBackend selects the token denylist: "dynamo", "redis" or "memory".
	RevocationBackend string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWTSecret enables HS256. When empty the RS256 key pair below is used.
	JWTSecret         string
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTIssuer         string
	JWTTTL            time.Duration
	JWTRefreshTTL     time.Duration

	VerificationTTL time.Duration
	ResetTTL        time.Duration

	BcryptCost       int
	PasswordStrict   bool
	PasswordMinScore int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string
	SMSEnabled   bool

	NotifyTimeout time.Duration

	// AdminEmail and AdminPassword seed the first admin account at startup.
	AdminEmail    string
	AdminPassword string

	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxy makes the router take the client address from
	// X-Forwarded-For / X-Real-Ip. Enable only behind a proxy that sets them.
	TrustedProxy bool

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Accounts      string
	AccountEmails string
	RevokedTokens string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:           getEnv("APP_PORT", "3000"),
		AppEnv:            getEnv("APP_ENV", "development"),
		StoreBackend:      getEnv("STORE_BACKEND", "dynamo"),
		RevocationBackend: getEnv("REVOCATION_BACKEND", "dynamo"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:    getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID:    getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Accounts:      getEnv("DYNAMO_TABLE_ACCOUNTS", "accounts"),
			AccountEmails: getEnv("DYNAMO_TABLE_ACCOUNT_EMAILS", "account_emails"),
			RevokedTokens: getEnv("DYNAMO_TABLE_REVOKED_TOKENS", "revoked_tokens"),
		},
		S3BucketName:      getEnv("S3_BUCKET_NAME", "identity-avatars"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTIssuer:         getEnv("JWT_ISSUER", "identity-api"),
		JWTTTL:            getEnvDuration("JWT_TTL", 24*time.Hour),
		JWTRefreshTTL:     getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
		VerificationTTL:   getEnvDuration("VERIFICATION_TTL", 15*time.Minute),
		ResetTTL:          getEnvDuration("RESET_TTL", 15*time.Minute),
		BcryptCost:        getEnvInt("BCRYPT_COST", 10),
		PasswordStrict:    getEnvBool("PASSWORD_STRICT", true),
		PasswordMinScore:  getEnvInt("PASSWORD_MIN_SCORE", 0),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SNSRegion:         getEnv("SNS_REGION", "us-east-1"),
		SMSEnabled:        getEnvBool("SMS_ENABLED", false),
		NotifyTimeout:     getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
		TrustedProxy:      getEnvBool("TRUSTED_PROXY", false),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// Production reports whether the service runs with production defaults
// (JSON logs).
func (c *Config) Production() bool {
	return c.AppEnv == "production"
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

// getEnvDuration accepts Go duration strings ("15m", "24h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
