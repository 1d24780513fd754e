package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Graph       GraphConfig
	Crawler     CrawlerConfig
	Classifier  ClassifierConfig
	Suggestions SuggestionsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GraphConfig holds the Microsoft Graph API and OAuth token endpoint settings.
type GraphConfig struct {
	BaseURL        string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	Scopes         []string
	TokenBuffer    time.Duration
	RetryAfterDef  time.Duration
	RequestsPerSec float64
}

// CrawlerConfig tunes the queue-driven crawl engine.
type CrawlerConfig struct {
	BatchSize       int
	StaleAfter      time.Duration
	Background      bool
	PumpInterval    time.Duration
	PumpConcurrency int
}

// ClassifierConfig configures the optional external AI classification pass.
// The pass is skipped entirely when APIKey is empty.
type ClassifierConfig struct {
	APIURL    string
	APIKey    string
	Model     string
	ChunkSize int
	Timeout   time.Duration
}

// SuggestionsConfig tunes suggestion persistence.
type SuggestionsConfig struct {
	InsertChunkSize int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Graph = GraphConfig{
		BaseURL:        v.GetString("GRAPH_BASE_URL"),
		TokenURL:       v.GetString("GRAPH_TOKEN_URL"),
		ClientID:       v.GetString("GRAPH_CLIENT_ID"),
		ClientSecret:   v.GetString("GRAPH_CLIENT_SECRET"),
		Scopes:         splitAndTrim(v.GetString("GRAPH_SCOPES")),
		TokenBuffer:    parseDuration(v.GetString("GRAPH_TOKEN_BUFFER"), 5*time.Minute),
		RetryAfterDef:  parseDuration(v.GetString("GRAPH_RETRY_AFTER_DEFAULT"), 5*time.Second),
		RequestsPerSec: v.GetFloat64("GRAPH_REQUESTS_PER_SEC"),
	}

	cfg.Crawler = CrawlerConfig{
		BatchSize:       v.GetInt("CRAWLER_BATCH_SIZE"),
		StaleAfter:      parseDuration(v.GetString("CRAWLER_STALE_AFTER"), 2*time.Minute),
		Background:      v.GetBool("CRAWLER_BACKGROUND"),
		PumpInterval:    parseDuration(v.GetString("CRAWLER_PUMP_INTERVAL"), 15*time.Second),
		PumpConcurrency: v.GetInt("CRAWLER_PUMP_CONCURRENCY"),
	}

	cfg.Classifier = ClassifierConfig{
		APIURL:    v.GetString("CLASSIFIER_API_URL"),
		APIKey:    v.GetString("CLASSIFIER_API_KEY"),
		Model:     v.GetString("CLASSIFIER_MODEL"),
		ChunkSize: v.GetInt("CLASSIFIER_CHUNK_SIZE"),
		Timeout:   parseDuration(v.GetString("CLASSIFIER_TIMEOUT"), 2*time.Minute),
	}

	cfg.Suggestions = SuggestionsConfig{
		InsertChunkSize: v.GetInt("SUGGESTIONS_INSERT_CHUNK"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tidyshare")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0")
	v.SetDefault("GRAPH_TOKEN_URL", "https://login.microsoftonline.com/common/oauth2/v2.0/token")
	v.SetDefault("GRAPH_CLIENT_ID", "")
	v.SetDefault("GRAPH_CLIENT_SECRET", "")
	v.SetDefault("GRAPH_SCOPES", "Files.Read.All,Sites.Read.All,offline_access")
	v.SetDefault("GRAPH_TOKEN_BUFFER", "5m")
	v.SetDefault("GRAPH_RETRY_AFTER_DEFAULT", "5s")
	v.SetDefault("GRAPH_REQUESTS_PER_SEC", 10.0)

	v.SetDefault("CRAWLER_BATCH_SIZE", 50)
	v.SetDefault("CRAWLER_STALE_AFTER", "2m")
	v.SetDefault("CRAWLER_BACKGROUND", false)
	v.SetDefault("CRAWLER_PUMP_INTERVAL", "15s")
	v.SetDefault("CRAWLER_PUMP_CONCURRENCY", 2)

	v.SetDefault("CLASSIFIER_API_URL", "")
	v.SetDefault("CLASSIFIER_API_KEY", "")
	v.SetDefault("CLASSIFIER_MODEL", "")
	v.SetDefault("CLASSIFIER_CHUNK_SIZE", 500)
	v.SetDefault("CLASSIFIER_TIMEOUT", "2m")

	v.SetDefault("SUGGESTIONS_INSERT_CHUNK", 100)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
