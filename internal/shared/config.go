package shared

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"prod"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`
	InternalAddr string `envconfig:"INTERNAL_ADDR" default:":8081"`
	MetricsAddr  string `envconfig:"METRICS_ADDR" default:":9100"`
	SearchRPS    int    `envconfig:"SEARCH_RPS" default:"50"`

	MySQLDSN     string `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/stayfinder?parseTime=true&charset=utf8mb4,utf8&loc=UTC"`
	MySQLReadDSN string `envconfig:"MYSQL_READ_DSN"`

	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPass      string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	SearchCacheTTL time.Duration `envconfig:"SEARCH_CACHE_TTL" default:"30s"`

	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"stayfinder.reservations"`

	CatalogBase string `envconfig:"CATALOG_BASE_URL" default:"http://localhost:8090/v1"`
	CatalogKey  string `envconfig:"CATALOG_API_KEY"`
	CatalogRPS  int    `envconfig:"CATALOG_RPS" default:"5"`

	SyncWorkers int `envconfig:"SYNC_WORKERS" default:"8"`
	SyncDays    int `envconfig:"SYNC_DAYS" default:"90"`

	PriceWorkers   int           `envconfig:"PRICE_WORKERS" default:"4"`
	MaxStayNights  int           `envconfig:"MAX_STAY_NIGHTS" default:"30"`
	ReserveRetries int           `envconfig:"RESERVE_RETRIES" default:"3"`
	ReserveTimeout time.Duration `envconfig:"RESERVE_TIMEOUT" default:"5s"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if c.SyncDays <= 0 {
		return Config{}, fmt.Errorf("load config: SYNC_DAYS must be positive, got %d", c.SyncDays)
	}
	if c.SyncWorkers <= 0 {
		return Config{}, fmt.Errorf("load config: SYNC_WORKERS must be positive, got %d", c.SyncWorkers)
	}
	if c.PriceWorkers <= 0 {
		return Config{}, fmt.Errorf("load config: PRICE_WORKERS must be positive, got %d", c.PriceWorkers)
	}
	if c.MaxStayNights <= 0 {
		return Config{}, fmt.Errorf("load config: MAX_STAY_NIGHTS must be positive, got %d", c.MaxStayNights)
	}
	if c.ReserveRetries < 0 {
		return Config{}, fmt.Errorf("load config: RESERVE_RETRIES must not be negative, got %d", c.ReserveRetries)
	}
	if c.CatalogKey == "" {
		log.Warn().Msg("CATALOG_API_KEY is empty")
	}
	return c, nil
}
