package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"pbv2-api"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"pbv2"`
	DatabaseSSLMode             string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce      int           `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Redis result cache. An empty address disables the cache.
	RedisAddr      string        `env:"REDIS_ADDR" env-default:""`
	RedisPassword  string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB        int           `env:"REDIS_DB" env-default:"0"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX" env-default:"pbv2"`
	ResultCacheTTL time.Duration `env:"RESULT_CACHE_TTL" env-default:"10m"`

	// Kafka producer. Empty brokers disable event publishing.
	KafkaBrokers            []string `env:"KAFKA_BROKERS"`
	KafkaMaterialUsageTopic string   `env:"KAFKA_MATERIAL_USAGE_TOPIC" env-default:"pbv2.material-usage"`
	KafkaEvaluationTopic    string   `env:"KAFKA_EVALUATION_TOPIC" env-default:"pbv2.evaluations"`
	KafkaBatchSize          int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeoutMs     int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks       int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression        string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	OtelExporter string `env:"OTEL_EXPORTER" env-default:"none"`
	OtelEndpoint string `env:"OTEL_ENDPOINT" env-default:"localhost:4317"`
	OtelInsecure bool   `env:"OTEL_INSECURE" env-default:"true"`

	// Processor
	TreeCacheTTL     time.Duration `env:"TREE_CACHE_TTL" env-default:"5m"`
	TreeCacheMaxSize int           `env:"TREE_CACHE_MAX_SIZE" env-default:"500"`
	BatchWorkers     int           `env:"BATCH_WORKERS" env-default:"4"`
	BatchMaxSize     int           `env:"BATCH_MAX_SIZE" env-default:"200"`

	// Default evaluation policy
	StrictPricebookRefsAtPublish bool `env:"PBV2_STRICT_PRICEBOOK_REFS" env-default:"true"`
	DivByZeroStrict              bool `env:"PBV2_DIV_BY_ZERO_STRICT" env-default:"true"`
	NegativeQuantityStrict       bool `env:"PBV2_NEGATIVE_QUANTITY_STRICT" env-default:"true"`
	AmbiguousEdgesStrict         bool `env:"PBV2_AMBIGUOUS_EDGES_STRICT" env-default:"false"`
	OutOfRangeSelectionsStrict   bool `env:"PBV2_OUT_OF_RANGE_SELECTIONS_STRICT" env-default:"false"`
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Policy() models.Policy {
	return models.Policy{
		StrictPricebookRefsAtPublish: c.StrictPricebookRefsAtPublish,
		DivByZeroStrict:              c.DivByZeroStrict,
		NegativeQuantityStrict:       c.NegativeQuantityStrict,
		AmbiguousEdgesStrict:         c.AmbiguousEdgesStrict,
		OutOfRangeSelectionsStrict:   c.OutOfRangeSelectionsStrict,
	}
}
