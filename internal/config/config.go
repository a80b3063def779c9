package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	_ "github.com/joho/godotenv/autoload"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env             string `envconfig:"ENV" default:"dev"`
	ShortCodeLength int    `envconfig:"SHORT_CODE_LENGTH" default:"7"`
	HTTPServer HTTPServer
	Postgres   Postgres
	Redis      Redis
	Cache      Cache
	Buffer     Buffer
	RateLimit  RateLimit
	JWT        JWT

	// PasswordPageURL is where visitors of password-protected links are
	// sent to enter the password. The short code is appended as a query
	// parameter.
	PasswordPageURL string `envconfig:"PASSWORD_PAGE_URL" default:"/password"`
}

type HTTPServer struct {
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"1m"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	MaxHeaderBytes  int           `envconfig:"SERVER_MAX_HEADER_BYTES" default:"1048576"`
	CertFile        string        `envconfig:"SERVER_CERT_FILE"`
	KeyFile         string        `envconfig:"SERVER_KEY_FILE"`
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `envconfig:"POSTGRES_USER" required:"true"`
	Password        string        `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Host            string        `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port            int           `envconfig:"POSTGRES_PORT" default:"5432"`
	DB              string        `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode         string        `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	ConnMaxIdleTime time.Duration `envconfig:"POSTGRES_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"30m"`
	MaxIdleConns    int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"5"`
	MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"25"`
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Redis configures the optional link cache. An empty Addr disables the
// cache entirely; the redirect path then always reads from storage.
type Redis struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (r *Redis) Enabled() bool {
	return r.Addr != ""
}

type Cache struct {
	TTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`
}

type Buffer struct {
	MaxSize       int           `envconfig:"CLICK_BUFFER_MAX_SIZE" default:"100"`
	FlushInterval time.Duration `envconfig:"CLICK_BUFFER_FLUSH_INTERVAL" default:"10s"`
}

// RateLimit holds the per-tier fixed-window thresholds. The redirect tier
// is deliberately far more permissive than the rest so that redirects are
// never starved by API traffic.
type RateLimit struct {
	SweepInterval time.Duration `envconfig:"RATE_LIMIT_SWEEP_INTERVAL" default:"5m"`

	BurstMax    int           `envconfig:"RATE_LIMIT_BURST_MAX" default:"10"`
	BurstWindow time.Duration `envconfig:"RATE_LIMIT_BURST_WINDOW" default:"1s"`

	APIMax    int           `envconfig:"RATE_LIMIT_API_MAX" default:"100"`
	APIWindow time.Duration `envconfig:"RATE_LIMIT_API_WINDOW" default:"1m"`

	AuthMax    int           `envconfig:"RATE_LIMIT_AUTH_MAX" default:"10"`
	AuthWindow time.Duration `envconfig:"RATE_LIMIT_AUTH_WINDOW" default:"15m"`

	CreateMax    int           `envconfig:"RATE_LIMIT_CREATE_MAX" default:"50"`
	CreateWindow time.Duration `envconfig:"RATE_LIMIT_CREATE_WINDOW" default:"1h"`

	RedirectMax    int           `envconfig:"RATE_LIMIT_REDIRECT_MAX" default:"1000"`
	RedirectWindow time.Duration `envconfig:"RATE_LIMIT_REDIRECT_WINDOW" default:"1m"`
}

type JWT struct {
	Secret string `envconfig:"JWT_SECRET" required:"true"`
}

func Load() (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to process environment: %w", op, err)
	}

	return &cfg, nil
}
