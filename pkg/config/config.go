package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	// EnvPrefix is applied to every FARMARKET_* environment variable.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "FARMARKET_DB_DSN"
	EnvDBHost = "FARMARKET_DB_HOST"
	EnvDBUser = "FARMARKET_DB_USER"
	EnvDBName = "FARMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Policy        PolicyConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	Email         EmailConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
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
	Env           string `envconfig:"FARMARKET_APP_ENV" required:"true"`
	Port          string `envconfig:"FARMARKET_APP_PORT" default:"8080"`
	PublicBaseURL string `envconfig:"FARMARKET_APP_PUBLIC_URL" default:"http://localhost:8080"`
	LogLevel      string `envconfig:"FARMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack  bool   `envconfig:"FARMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FARMARKET_DB_DSN"`
	Driver string `envconfig:"FARMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FARMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"FARMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FARMARKET_DB_USER"`
	LegacyPassword string `envconfig:"FARMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"FARMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"FARMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FARMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"FARMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"FARMARKET_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"FARMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"FARMARKET_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"FARMARKET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"FARMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"FARMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"FARMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"FARMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"FARMARKET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"FARMARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"FARMARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"FARMARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"FARMARKET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"FARMARKET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"FARMARKET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// PolicyConfig holds marketplace policy values. Defaults mirror the launch
// policy: 200 RUB flat delivery fee waived above a 2000 RUB subtotal, and a
// low-stock alert at fewer than 10 units.
type PolicyConfig struct {
	DeliveryFee           string `envconfig:"FARMARKET_POLICY_DELIVERY_FEE" default:"200"`
	FreeDeliveryThreshold string `envconfig:"FARMARKET_POLICY_FREE_DELIVERY_THRESHOLD" default:"2000"`
	LowStockThreshold     int    `envconfig:"FARMARKET_POLICY_LOW_STOCK_THRESHOLD" default:"10"`
	Currency              string `envconfig:"FARMARKET_POLICY_CURRENCY" default:"RUB"`
}

// DeliveryFeeAmount parses the configured flat delivery fee.
func (p PolicyConfig) DeliveryFeeAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(p.DeliveryFee)
}

// FreeDeliveryThresholdAmount parses the subtotal above which delivery is free.
func (p PolicyConfig) FreeDeliveryThresholdAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(p.FreeDeliveryThreshold)
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FARMARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FARMARKET_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey string `envconfig:"FARMARKET_STRIPE_API_KEY"`
	Secret string `envconfig:"FARMARKET_STRIPE_SECRET"`
	Env    string `envconfig:"FARMARKET_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type EmailConfig struct {
	APIKey      string `envconfig:"FARMARKET_EMAIL_API_KEY"`
	BaseURL     string `envconfig:"FARMARKET_EMAIL_BASE_URL" default:"https://api.sendgrid.com"`
	DefaultFrom string `envconfig:"FARMARKET_EMAIL_FROM" default:"noreply@farmarket.ru"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FARMARKET_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FARMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FARMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"FARMARKET_GCS_BUCKET_NAME"`
	UploadURLExpiry   time.Duration `envconfig:"FARMARKET_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"FARMARKET_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
}

type PubSubConfig struct {
	OrdersTopic               string `envconfig:"FARMARKET_PUBSUB_ORDERS_TOPIC" default:"fm-order-events"`
	OrdersSubscription        string `envconfig:"FARMARKET_PUBSUB_ORDERS_SUBSCRIPTION" default:"fm-order-events-worker"`
	NotificationTopic         string `envconfig:"FARMARKET_PUBSUB_NOTIFICATION_TOPIC" default:"fm-notification-events"`
	NotificationSubscription  string `envconfig:"FARMARKET_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"fm-notification-events-worker"`
	AnalyticsTopic            string `envconfig:"FARMARKET_PUBSUB_ANALYTICS_TOPIC" default:"fm-analytics-events"`
	AnalyticsSubscription     string `envconfig:"FARMARKET_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"fm-analytics-events-worker"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"FARMARKET_BIGQUERY_DATASET" default:"farmarket"`
	MarketplaceEventsTable string `envconfig:"FARMARKET_BIGQUERY_MARKETPLACE_TABLE" default:"marketplace_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FARMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FARMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FARMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FARMARKET_CRON_INTERVAL" default:"30m"`
	LockTTL  time.Duration `envconfig:"FARMARKET_CRON_LOCK_TTL" default:"45m"`
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
