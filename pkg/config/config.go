package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cache drivers.
const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"

	StaleDriverShared = "shared"
	StaleDriverBolt   = "bolt"
	StaleDriverNone   = "none"
)

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type Cache struct {
	Driver      string `envconfig:"DRIVER" default:"redis"`
	StaleDriver string `envconfig:"STALE_DRIVER" default:"shared"`
	BoltPath    string `envconfig:"BOLT_PATH" default:"data/quotes-stale.db"`
}

type Quote struct {
	CacheTTL        time.Duration   `envconfig:"CACHE_TTL" default:"60s"`
	StaleTTL        time.Duration   `envconfig:"STALE_TTL" default:"24h"`
	KeyPrefix       string          `envconfig:"KEY_PREFIX" default:"quote:"`
	RetryAttempts   int             `envconfig:"RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay  time.Duration   `envconfig:"RETRY_BASE_DELAY" default:"200ms"`
	RetryMaxJitter  time.Duration   `envconfig:"RETRY_MAX_JITTER" default:"50ms"`
	FallbackRate    decimal.Decimal `envconfig:"FALLBACK_RATE" default:"5.00"`
	DefaultCurrency string          `envconfig:"DEFAULT_CURRENCY" default:"USD"`
}

type Upstream struct {
	URL           string        `envconfig:"URL" default:"http://provider:9000/quote"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"1200ms"`
	CurrencyParam string        `envconfig:"CURRENCY_PARAM" default:"currency"`
	Name          string        `envconfig:"NAME" default:"provider"`
}

// Simulator configures the local provider service that stands in for the
// real upstream.
type Simulator struct {
	Port      int             `envconfig:"PORT" default:"9000"`
	FailProb  float64         `envconfig:"FAIL_PROB" default:"0.25"`
	MinDelay  time.Duration   `envconfig:"MIN_DELAY" default:"50ms"`
	MaxDelay  time.Duration   `envconfig:"MAX_DELAY" default:"400ms"`
	ForceFail bool            `envconfig:"FORCE_FAIL" default:"false"`
	BaseRate  decimal.Decimal `envconfig:"BASE_RATE" default:"5.00"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[fxquote]"`
}

type Server struct {
	Scheme          string        `envconfig:"SCHEME" default:"http"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	Redis     *Redis     `envconfig:"REDIS"`
	Cache     *Cache     `envconfig:"CACHE"`
	Quote     *Quote     `envconfig:"QUOTE"`
	Upstream  *Upstream  `envconfig:"UPSTREAM"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Simulator *Simulator `envconfig:"SIMULATOR"`
}
