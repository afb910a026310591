package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment string // ENV / NODE_ENV: production, development, test
	Port        string

	// Database
	DBDriver          string // mysql, postgres, sqlite3
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DatabaseURL       string // overrides the individual DB_* values when set
	DBConnectionLimit int
	DBConnectTimeout  time.Duration

	RedisURI string // optional; rate-limit counters and listing cache
	MongoURI string // optional; search history sink

	// Auth
	JWTSecret                string
	JWTExpiresIn             time.Duration
	BcryptCost               int
	MaxLoginAttempts         int
	LoginAttemptWindow       time.Duration
	LoginAttemptRetention    time.Duration
	RequireEmailVerification bool

	// CSRF (gorilla/csrf keyed by SESSION_SECRET)
	SessionSecret string
	SessionMaxAge time.Duration
	CSRFEnabled   bool

	// HTTP surface
	AllowedOrigins   []string // CORS_ORIGIN, FRONTEND_URL
	RateLimitWindow  time.Duration
	RateLimitMax     int
	AdminIPWhitelist []string
	TrustProxy       bool
	ListingCacheTTL  time.Duration

	// Uploads
	UploadDir        string
	MaxFileSize      int64
	AllowedFileTypes []string

	CloudinaryName      string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", getEnv("NODE_ENV", "development"))))

	origins := parseList(getEnv("CORS_ORIGIN", ""))
	if len(origins) == 0 {
		origins = parseList(getEnv("FRONTEND_URL", "http://localhost:3000"))
	}

	return &Config{
		Environment: env,
		Port:        getEnv("PORT", "3001"),

		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "usedgoods"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBConnectionLimit: getEnvInt("DB_CONNECTION_LIMIT", 10),
		DBConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),

		RedisURI: getEnv("REDIS_URI", ""),
		MongoURI: getEnv("MONGODB_URI", getEnv("MONGO_URI", "")),

		JWTSecret:                getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiresIn:             getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		BcryptCost:               getEnvInt("BCRYPT_COST", 12),
		MaxLoginAttempts:         getEnvInt("MAX_LOGIN_ATTEMPTS", 5),
		LoginAttemptWindow:       15 * time.Minute,
		LoginAttemptRetention:    30 * 24 * time.Hour,
		RequireEmailVerification: getEnvBool("REQUIRE_EMAIL_VERIFICATION", false),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionMaxAge: getEnvMillis("SESSION_MAX_AGE", 24*time.Hour),
		CSRFEnabled:   getEnvBool("CSRF_ENABLED", false),

		AllowedOrigins:   origins,
		RateLimitWindow:  getEnvMillis("RATE_LIMIT_WINDOW_MS", 15*time.Minute),
		RateLimitMax:     getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100),
		AdminIPWhitelist: parseList(getEnv("ADMIN_IP_WHITELIST", "")),
		TrustProxy:       getEnvBool("TRUST_PROXY", false),
		ListingCacheTTL:  getEnvDuration("LISTING_CACHE_TTL", 30*time.Second),

		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),
		MaxFileSize:      int64(getEnvInt("MAX_FILE_SIZE", 5*1024*1024)),
		AllowedFileTypes: parseList(getEnv("ALLOWED_FILE_TYPES", "image/jpeg,image/jpg,image/png,image/gif,image/webp")),

		CloudinaryName:      getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

// CloudinaryEnabled reports whether all Cloudinary credentials are present.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvMillis reads a plain integer as milliseconds (RATE_LIMIT_WINDOW_MS=900000),
// falling back to a duration string.
func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := ParseDuration(raw); err == nil {
		return d
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	d, err := ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// ParseDuration accepts Go durations plus a day suffix ("7d", "1d12h").
// A bare integer is treated as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if idx := strings.Index(s, "d"); idx > 0 {
		days, err := strconv.Atoi(s[:idx])
		if err != nil {
			return 0, err
		}
		total := time.Duration(days) * 24 * time.Hour
		if rest := s[idx+1:]; rest != "" {
			d, err := time.ParseDuration(rest)
			if err != nil {
				return 0, err
			}
			total += d
		}
		return total, nil
	}
	return time.ParseDuration(s)
}
