package config

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "orderline"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv       = "ORDERLINE_APP_ENV"
	EnvPort         = "ORDERLINE_APP_PORT"
	EnvDBDSN        = "ORDERLINE_DB_DSN"
	EnvDBHost       = "ORDERLINE_DB_HOST"
	EnvDBUser       = "ORDERLINE_DB_USER"
	EnvDBName       = "ORDERLINE_DB_NAME"
	EnvRedisURL     = "ORDERLINE_REDIS_URL"
	EnvGCPProjectID = "ORDERLINE_GCP_PROJECT_ID"
	EnvOrdersTopic  = "ORDERLINE_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
