package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	Storage      StorageConfig
	BigQuery     BigQueryConfig
	Ranking      RankingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabase reads only the App and DB sections, for tools such as the
// migration CLI that never touch storage or the warehouse.
func LoadDatabase() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg.App); err != nil {
		return nil, fmt.Errorf("parsing app config: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.DB); err != nil {
		return nil, fmt.Errorf("parsing db config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"SALESRANK_APP_ENV" required:"true"`
	Port         string   `envconfig:"SALESRANK_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"SALESRANK_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"SALESRANK_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"SALESRANK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SALESRANK_DB_DSN"`
	Driver string `envconfig:"SALESRANK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SALESRANK_DB_HOST"`
	LegacyPort     int    `envconfig:"SALESRANK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SALESRANK_DB_USER"`
	LegacyPassword string `envconfig:"SALESRANK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SALESRANK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SALESRANK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SALESRANK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SALESRANK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SALESRANK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SALESRANK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional; an empty URL and address disables rate limiting.
type RedisConfig struct {
	URL          string        `envconfig:"SALESRANK_REDIS_URL"`
	Address      string        `envconfig:"SALESRANK_REDIS_ADDR"`
	Password     string        `envconfig:"SALESRANK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SALESRANK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SALESRANK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SALESRANK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SALESRANK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SALESRANK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SALESRANK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type RateLimitConfig struct {
	Window  time.Duration `envconfig:"SALESRANK_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit int           `envconfig:"SALESRANK_RATE_LIMIT_IP_LIMIT" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SALESRANK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SALESRANK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SALESRANK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SALESRANK_GOOGLE_APPLICATION_CREDENTIALS"`
}

// HasCredentials reports whether service account material is available.
func (g GCPConfig) HasCredentials() bool {
	return strings.TrimSpace(g.CredentialsJSON) != "" || strings.TrimSpace(g.ApplicationCredentials) != ""
}

// StorageConfig describes where article images live and how their URLs are produced.
type StorageConfig struct {
	Strategy        string        `envconfig:"SALESRANK_STORAGE_STRATEGY" default:"direct"`
	Provider        string        `envconfig:"SALESRANK_STORAGE_PROVIDER" default:"s3"`
	Endpoint        string        `envconfig:"SALESRANK_STORAGE_ENDPOINT"`
	Region          string        `envconfig:"SALESRANK_STORAGE_REGION" default:"us-east-1"`
	AccessKeyID     string        `envconfig:"SALESRANK_STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string        `envconfig:"SALESRANK_STORAGE_SECRET_ACCESS_KEY"`
	Bucket          string        `envconfig:"SALESRANK_STORAGE_BUCKET" required:"true"`
	PublicBaseURL   string        `envconfig:"SALESRANK_STORAGE_PUBLIC_BASE_URL"`
	UsePathStyle    bool          `envconfig:"SALESRANK_STORAGE_USE_PATH_STYLE" default:"true"`
	URLTTL          time.Duration `envconfig:"SALESRANK_STORAGE_URL_TTL" default:"1h"`
	ShardPrefixLen  int           `envconfig:"SALESRANK_STORAGE_SHARD_PREFIX_LEN" default:"2"`
	FileExtension   string        `envconfig:"SALESRANK_STORAGE_FILE_EXTENSION" default:"jpg"`
	MaxConcurrency  int           `envconfig:"SALESRANK_STORAGE_MAX_CONCURRENCY" default:"64"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"SALESRANK_BIGQUERY_DATASET" default:"salesrank"`
	ArticlesTable     string `envconfig:"SALESRANK_BIGQUERY_ARTICLES_TABLE" default:"articles"`
	TransactionsTable string `envconfig:"SALESRANK_BIGQUERY_TRANSACTIONS_TABLE" default:"transactions"`
	Location          string `envconfig:"SALESRANK_BIGQUERY_LOCATION"`
	MaxBytesBilled    int64  `envconfig:"SALESRANK_BIGQUERY_MAX_BYTES_BILLED" default:"0"`
}

type RankingConfig struct {
	Backend          string `envconfig:"SALESRANK_AGGREGATE_BACKEND" default:"postgres"`
	DefaultLimit     int    `envconfig:"SALESRANK_RANKING_DEFAULT_LIMIT" default:"500"`
	DefaultMetric    string `envconfig:"SALESRANK_RANKING_DEFAULT_METRIC" default:"units"`
	IncludeZeroSales bool   `envconfig:"SALESRANK_RANKING_INCLUDE_ZERO" default:"true"`
}

func (c *Config) validate() error {
	var problems []string

	switch strings.ToLower(strings.TrimSpace(c.Storage.Strategy)) {
	case StorageStrategyDirect:
		if strings.TrimSpace(c.Storage.PublicBaseURL) == "" {
			problems = append(problems, EnvStoragePublicBaseURL+" is required for the direct strategy")
		}
	case StorageStrategyPresigned:
		switch strings.ToLower(strings.TrimSpace(c.Storage.Provider)) {
		case StorageProviderS3:
			if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
				problems = append(problems, "storage access key id and secret are required for s3 presigning")
			}
		case StorageProviderGCS:
			if !c.GCP.HasCredentials() {
				problems = append(problems, "gcp service account credentials are required for gcs presigning")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown storage provider %q", c.Storage.Provider))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage strategy %q", c.Storage.Strategy))
	}

	switch strings.ToLower(strings.TrimSpace(c.Ranking.Backend)) {
	case AggregateBackendPostgres:
	case AggregateBackendBigQuery:
		if strings.TrimSpace(c.GCP.ProjectID) == "" {
			problems = append(problems, EnvGCPProjectID+" is required for the bigquery backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown aggregate backend %q", c.Ranking.Backend))
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
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
