package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Documents DocumentsConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Mirror    MirrorConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DocumentsConfig struct {
	Dir             string
	MaxContentBytes int64
}

type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	Backend string // memory | file | redis
	Dir     string // counter dir for the file backend

	// Coarse per-IP flood guard applied to every route.
	FloodGuard bool
	FloodRPS   float64
	FloodBurst int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MirrorConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5002")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:5002/")
	viper.SetDefault("DOCUMENTS_DIR", "documents")
	viper.SetDefault("MAX_CONTENT_BYTES", 5*1024*1024)
	viper.SetDefault("RATE_LIMIT", 10)
	viper.SetDefault("RATE_WINDOW_SECONDS", 3600)
	viper.SetDefault("RATE_LIMIT_BACKEND", "file")
	viper.SetDefault("RATE_LIMIT_DIR", os.TempDir())
	viper.SetDefault("FLOOD_GUARD_ENABLED", true)
	viper.SetDefault("FLOOD_GUARD_RPS", 20.0)
	viper.SetDefault("FLOOD_GUARD_BURST", 40)
	viper.SetDefault("MIRROR_BUCKET", "mdreader")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			BaseURL:      viper.GetString("PUBLIC_BASE_URL"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Documents: DocumentsConfig{
			Dir:             viper.GetString("DOCUMENTS_DIR"),
			MaxContentBytes: viper.GetInt64("MAX_CONTENT_BYTES"),
		},
		RateLimit: RateLimitConfig{
			Limit:      viper.GetInt("RATE_LIMIT"),
			Window:     time.Duration(viper.GetInt("RATE_WINDOW_SECONDS")) * time.Second,
			Backend:    viper.GetString("RATE_LIMIT_BACKEND"),
			Dir:        viper.GetString("RATE_LIMIT_DIR"),
			FloodGuard: viper.GetBool("FLOOD_GUARD_ENABLED"),
			FloodRPS:   viper.GetFloat64("FLOOD_GUARD_RPS"),
			FloodBurst: viper.GetInt("FLOOD_GUARD_BURST"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Mirror: MirrorConfig{
			Enabled:   viper.GetBool("MIRROR_ENABLED"),
			Endpoint:  viper.GetString("MIRROR_ENDPOINT"),
			AccessKey: viper.GetString("MIRROR_ACCESS_KEY"),
			SecretKey: os.Getenv("MIRROR_SECRET_KEY"),
			UseSSL:    viper.GetBool("MIRROR_USE_SSL"),
			Bucket:    viper.GetString("MIRROR_BUCKET"),
		},
	}

	return cfg, nil
}
