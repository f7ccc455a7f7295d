package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Workflow     WorkflowConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ORDERLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERLINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERLINE_DB_DSN"`
	Driver string `envconfig:"ORDERLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERLINE_DB_USER"`
	LegacyPassword string `envconfig:"ORDERLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERLINE_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ORDERLINE_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERLINE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"ORDERLINE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERLINE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"ORDERLINE_PUBSUB_ORDERS_TOPIC" default:"ol-order-events"`
	OrdersSubscription string `envconfig:"ORDERLINE_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERLINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERLINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERLINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WorkflowConfig struct {
	ReleaseRetryAttempts int           `envconfig:"ORDERLINE_WORKFLOW_RELEASE_RETRY_ATTEMPTS" default:"3"`
	ReleaseRetryDelay    time.Duration `envconfig:"ORDERLINE_WORKFLOW_RELEASE_RETRY_DELAY" default:"50ms"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
