package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Config holds the kitchen server's runtime configuration. Each field
// corresponds to an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	LogLevel       string // zap level
	LogFormat      string // "json" or "console"
	AMQPURL        string // broker for the change feed
	ChangeFeed     string // "amqp", "redis" or "local"; see ChangeFeedKind
	OAuth          OAuthConfig
}

// OAuthConfig describes the single OAuth provider the server offers. When
// ClientID is empty the OAuth routes answer 404.
type OAuthConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	CallbackURL  string
	Scopes       []string

	// AllowedRedirects lists URL prefixes a sign-in may return to. Tokens
	// travel in the redirect fragment, so arbitrary targets are refused.
	AllowedRedirects []string
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogFormat:      envStr("LOG_FORMAT", "json"),
		AMQPURL:        amqpURL(),
		ChangeFeed:     envStr("CHANGEFEED", ""),
		OAuth: OAuthConfig{
			Provider:     envStr("OAUTH_PROVIDER", "google"),
			ClientID:     os.Getenv("OAUTH_CLIENT_ID"),
			ClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
			AuthURL:      envStr("OAUTH_AUTH_URL", "https://accounts.google.com/o/oauth2/auth"),
			TokenURL:     envStr("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),
			UserInfoURL:  envStr("OAUTH_USERINFO_URL", "https://openidconnect.googleapis.com/v1/userinfo"),
			CallbackURL:  os.Getenv("OAUTH_CALLBACK_URL"),
			Scopes:       parseList(envStr("OAUTH_SCOPES", "openid,email,profile")),

			AllowedRedirects: parseList(envStr("OAUTH_ALLOWED_REDIRECTS", "http://localhost")),
		},
	}
}

// ClientConfig configures the sync engine and the kitchen CLI.
type ClientConfig struct {
	APIURL      string        // base URL of the kitchen server
	CacheDir    string        // directory for the local mirror and session
	CacheRedis  string        // optional redis address; when set the mirror lives in redis
	SyncTimeout time.Duration // upper bound for one Sync Loop run
	HTTPTimeout time.Duration // per-request timeout of the API client
	LogLevel    string
	LogFormat   string
	RedirectURL string // OAuth redirect target handed to the server
}

// LoadClient reads the client configuration. Every value has a default so
// the CLI works against a local server out of the box.
func LoadClient() ClientConfig {
	home, _ := os.UserHomeDir()
	return ClientConfig{
		APIURL:      envStr("KITCHEN_API_URL", "http://localhost:8080"),
		CacheDir:    envStr("KITCHEN_CACHE_DIR", home+"/.kitchen"),
		CacheRedis:  os.Getenv("KITCHEN_CACHE_REDIS"),
		SyncTimeout: envDur("KITCHEN_SYNC_TIMEOUT", 15*time.Second),
		HTTPTimeout: envDur("KITCHEN_HTTP_TIMEOUT", 10*time.Second),
		LogLevel:    envStr("KITCHEN_LOG_LEVEL", "warn"),
		LogFormat:   envStr("KITCHEN_LOG_FORMAT", "console"),
		RedirectURL: envStr("KITCHEN_REDIRECT_URL", "http://localhost:3000"),
	}
}

// ChangeFeedKind resolves the change feed transport. Without an explicit
// CHANGEFEED the broker is used when a URL is configured and the in-process
// feed otherwise.
func (c Config) ChangeFeedKind() string {
	switch k := strings.ToLower(strings.TrimSpace(c.ChangeFeed)); k {
	case "amqp", "redis", "local":
		return k
	}
	if c.AMQPURL != "" {
		return "amqp"
	}
	return "local"
}

// amqpURL looks up RABBITMQ_URL, then AMQP_URL. There is no localhost
// default: an unset URL selects the in-process feed.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
