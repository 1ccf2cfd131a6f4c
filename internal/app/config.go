package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/service/idempotency"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedFile: JSON с пользователями, партнёрами и товарами, загружаемый при старте.
	SeedFile string

	JWTSecret string
	// LegacyTokensUntil: до этого момента принимаются токены со старым ключом username.
	LegacyTokensUntil time.Time

	PricePolicy      domain.PricePolicy
	TransitionPolicy domain.TransitionPolicy
	InstanceID       string

	RateLimitRPS   float64
	RateLimitBurst int

	// KafkaBrokers: список брокеров через запятую; пустой отключает outbox-публикацию.
	KafkaBrokers string
	KafkaRelay   bool

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxPending   int

	IdempotencyTTL              time.Duration
	IdempotencyCleanupSchedule  string
	IdempotencyCleanupBatchSize int

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		PricePolicy:                 domain.PriceCatalog,
		TransitionPolicy:            domain.TransitionStrict,
		RateLimitRPS:                20,
		RateLimitBurst:              40,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxPending:            1000,
		IdempotencyTTL:              idempotency.DefaultTTL,
		IdempotencyCleanupSchedule:  idempotency.DefaultCleanupSchedule,
		IdempotencyCleanupBatchSize: 500,
		ShutdownTimeout:             5 * time.Second,
	}
}

// Validate проверяет согласованность настроек до старта.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if _, err := domain.ParsePricePolicy(string(c.PricePolicy)); err != nil {
		errs = append(errs, err)
	}
	if _, err := domain.ParseTransitionPolicy(string(c.TransitionPolicy)); err != nil {
		errs = append(errs, err)
	}
	if c.KafkaRelay && strings.TrimSpace(c.KafkaBrokers) == "" {
		errs = append(errs, errors.New("kafka relay requires kafka brokers"))
	}
	if err := idempotency.ValidateSchedule(c.IdempotencyCleanupSchedule); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// brokers разбирает KafkaBrokers, отбрасывая пробелы и пустые элементы.
func (c Config) brokers() []string {
	var out []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			out = append(out, broker)
		}
	}
	return out
}

// ConfigFromEnv накладывает переменные MARKETPLACE_* на DefaultConfig.
// lookup обычно os.LookupEnv. Некорректное значение возвращает ошибку.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	r := envReader{lookup: lookup}

	r.str("MARKETPLACE_HTTP_ADDR", &cfg.HTTPAddr)
	r.str("MARKETPLACE_GRPC_ADDR", &cfg.GRPCAddr)
	r.str("MARKETPLACE_METRICS_ADDR", &cfg.MetricsAddr)

	var driver string
	if r.str("MARKETPLACE_STORAGE_DRIVER", &driver) {
		cfg.StorageDriver = StorageDriver(strings.ToLower(driver))
	}
	r.str("MARKETPLACE_POSTGRES_DSN", &cfg.PostgresDSN)
	r.boolean("MARKETPLACE_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	r.str("MARKETPLACE_SEED_FILE", &cfg.SeedFile)

	r.str("MARKETPLACE_JWT_SECRET", &cfg.JWTSecret)
	var legacyUntil string
	if r.str("MARKETPLACE_LEGACY_TOKENS_UNTIL", &legacyUntil) {
		at, err := time.Parse(time.RFC3339, legacyUntil)
		if err != nil {
			r.fail("MARKETPLACE_LEGACY_TOKENS_UNTIL", err)
		}
		cfg.LegacyTokensUntil = at
	}

	var raw string
	if r.str("MARKETPLACE_PRICE_POLICY", &raw) {
		policy, err := domain.ParsePricePolicy(raw)
		if err != nil {
			r.fail("MARKETPLACE_PRICE_POLICY", err)
		}
		cfg.PricePolicy = policy
	}
	if r.str("MARKETPLACE_ORDER_TRANSITIONS", &raw) {
		policy, err := domain.ParseTransitionPolicy(raw)
		if err != nil {
			r.fail("MARKETPLACE_ORDER_TRANSITIONS", err)
		}
		cfg.TransitionPolicy = policy
	}
	r.str("MARKETPLACE_INSTANCE_ID", &cfg.InstanceID)

	r.float("MARKETPLACE_RATE_LIMIT_RPS", &cfg.RateLimitRPS)
	r.integer("MARKETPLACE_RATE_LIMIT_BURST", &cfg.RateLimitBurst)

	r.str("MARKETPLACE_KAFKA_BROKERS", &cfg.KafkaBrokers)
	r.boolean("MARKETPLACE_KAFKA_RELAY", &cfg.KafkaRelay)

	r.duration("MARKETPLACE_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	r.integer("MARKETPLACE_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	r.integer("MARKETPLACE_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	r.duration("MARKETPLACE_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	r.integer("MARKETPLACE_OUTBOX_MAX_PENDING", &cfg.OutboxMaxPending)

	r.duration("MARKETPLACE_IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	r.str("MARKETPLACE_IDEMPOTENCY_CLEANUP_SCHEDULE", &cfg.IdempotencyCleanupSchedule)
	r.integer("MARKETPLACE_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	r.duration("MARKETPLACE_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *envReader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
}

// str записывает непустое значение и сообщает, было ли оно задано.
func (r *envReader) str(key string, dst *string) bool {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return false
	}
	*dst = v
	return true
}

func (r *envReader) boolean(key string, dst *bool) {
	var raw string
	if !r.str(key, &raw) {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = v
}

func (r *envReader) integer(key string, dst *int) {
	var raw string
	if !r.str(key, &raw) {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		r.fail(key, fmt.Errorf("expected positive integer, got %q", raw))
		return
	}
	*dst = v
}

func (r *envReader) float(key string, dst *float64) {
	var raw string
	if !r.str(key, &raw) {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		r.fail(key, fmt.Errorf("expected non-negative number, got %q", raw))
		return
	}
	*dst = v
}

func (r *envReader) duration(key string, dst *time.Duration) {
	var raw string
	if !r.str(key, &raw) {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		r.fail(key, fmt.Errorf("expected non-negative duration, got %q", raw))
		return
	}
	*dst = v
}
