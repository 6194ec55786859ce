package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type OAuthApp struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	TokenURL     string `env:"TOKEN_URL"`
	APIBaseURL   string `env:"API_BASE_URL"`
	// Requests per second allowed towards the platform API.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"1"`
	RateBurst int     `env:"RATE_BURST" envDefault:"5"`
}

type Postmark struct {
	ServerToken  string `env:"SERVER_TOKEN"`
	AccountToken string `env:"ACCOUNT_TOKEN"`
	From         string `env:"FROM"`
	AlertTo      string `env:"ALERT_TO"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type Worker struct {
	Concurrency      int           `env:"CONCURRENCY" envDefault:"10"`
	QueueSweepSpec   string        `env:"QUEUE_SWEEP_SPEC" envDefault:"@every 1m"`
	QueueSweepLimit  int           `env:"QUEUE_SWEEP_LIMIT" envDefault:"100"`
	TokenRefreshSpec string        `env:"TOKEN_REFRESH_SPEC" envDefault:"@every 10m"`
	PublishTimeout   time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"30s"`
}

type Config struct {
	PostgresURI   string `env:"POSTGRES_URI,required,notEmpty"`
	RedisURI      string `env:"REDIS_URI" envDefault:"localhost:6379"`
	ServerAddr    string `env:"SERVER_ADDR" envDefault:":3000"`
	FrontendURL   string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	SecretKey     string `env:"SECRET_KEY,required,notEmpty"`
	CookieName    string `env:"COOKIE_NAME" envDefault:"postqueue_session"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	Twitter  OAuthApp `envPrefix:"TWITTER_"`
	LinkedIn OAuthApp `envPrefix:"LINKEDIN_"`
	Postmark Postmark `envPrefix:"POSTMARK_"`
	Log      Log      `envPrefix:"LOG_"`
	Worker   Worker   `envPrefix:"WORKER_"`
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Twitter.APIBaseURL == "" {
		cfg.Twitter.APIBaseURL = "https://api.twitter.com/2"
	}
	if cfg.Twitter.TokenURL == "" {
		cfg.Twitter.TokenURL = "https://api.twitter.com/2/oauth2/token"
	}
	if cfg.LinkedIn.APIBaseURL == "" {
		cfg.LinkedIn.APIBaseURL = "https://api.linkedin.com/rest"
	}
	if cfg.LinkedIn.TokenURL == "" {
		cfg.LinkedIn.TokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
	}

	if n := len(cfg.SecretKey); n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("SECRET_KEY must be 16, 24 or 32 bytes, got %d", n)
	}

	return &cfg, nil
}
