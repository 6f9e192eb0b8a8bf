package config

const EnvPrefix = "SALESRANK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageStrategyDirect    = "direct"
	StorageStrategyPresigned = "presigned"

	StorageProviderS3  = "s3"
	StorageProviderGCS = "gcs"

	AggregateBackendPostgres = "postgres"
	AggregateBackendBigQuery = "bigquery"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv   = "SALESRANK_APP_ENV"
	EnvPort     = "SALESRANK_APP_PORT"
	EnvLogLevel = "SALESRANK_LOG_LEVEL"

	EnvDBDSN  = "SALESRANK_DB_DSN"
	EnvDBHost = "SALESRANK_DB_HOST"
	EnvDBUser = "SALESRANK_DB_USER"
	EnvDBName = "SALESRANK_DB_NAME"

	EnvRedisURL = "SALESRANK_REDIS_URL"

	EnvGCPProjectID = "SALESRANK_GCP_PROJECT_ID"
	EnvGCPCredsJSON = "SALESRANK_GCP_CREDENTIALS_JSON"

	EnvStorageStrategy      = "SALESRANK_STORAGE_STRATEGY"
	EnvStorageProvider      = "SALESRANK_STORAGE_PROVIDER"
	EnvStorageEndpoint      = "SALESRANK_STORAGE_ENDPOINT"
	EnvStorageAccessKeyID   = "SALESRANK_STORAGE_ACCESS_KEY_ID"
	EnvStorageSecretKey     = "SALESRANK_STORAGE_SECRET_ACCESS_KEY"
	EnvStorageBucket        = "SALESRANK_STORAGE_BUCKET"
	EnvStoragePublicBaseURL = "SALESRANK_STORAGE_PUBLIC_BASE_URL"
	EnvStorageURLTTL        = "SALESRANK_STORAGE_URL_TTL"

	EnvAggregateBackend = "SALESRANK_AGGREGATE_BACKEND"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
