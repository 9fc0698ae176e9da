package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// DBConfig holds the main store connection settings.
type DBConfig struct {
	Driver      string
	URL         string
	MaxOpenConn int
	ConnMaxIdle time.Duration
}

// AgentConfig points at the carrier agent database (UMS_MSG / UMS_LOG_YYYYMM).
type AgentConfig struct {
	Driver         string
	URL            string
	Sandbox        bool
	RequestChannel string
	TrafficType    string
	DeptCode       string
	UserID         string
	CallbackNumber string
}

type VendorConfig struct {
	BaseURL      string
	PocID        string
	Timeout      time.Duration
	MockMode     bool
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	DefaultGoods string
}

type DispatchConfig struct {
	Workers int
}

// JobConfig toggles a single periodic job.
type JobConfig struct {
	Enabled  bool
	Interval time.Duration
}

type SchedulerConfig struct {
	CarrierSync JobConfig
	CouponSync  JobConfig
	ProductSync JobConfig
	Lookback    time.Duration
	CouponBatch int
}

// QueueConfig selects RabbitMQ when AMQPURL is set; jobs then survive restarts.
type QueueConfig struct {
	AMQPURL string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

type Config struct {
	Port          string
	Env           string
	EncryptionKey string
	// PhoneHash must match the scheme the recipient upload pipeline writes.
	PhoneHash     string
	DB            DBConfig
	Agent         AgentConfig
	Vendor        VendorConfig
	Dispatch      DispatchConfig
	Scheduler     SchedulerConfig
	Queue         QueueConfig
	Kafka         KafkaConfig
	Tracing       TracingConfig
}

// ConfigError reports an invalid or missing setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("APP_ENV", "development"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		PhoneHash:     getEnv("PHONE_HASH_SCHEME", "sha256"),
		DB: DBConfig{
			Driver:      getEnv("DB_DRIVER", "postgres"),
			URL:         getEnv("DATABASE_URL", ""),
			MaxOpenConn: getEnvInt("DB_MAX_OPEN", 10),
			ConnMaxIdle: getEnvDuration("DB_CONN_IDLE", 5*time.Minute),
		},
		Agent: AgentConfig{
			Driver:         getEnv("SNAP_DB_DRIVER", "postgres"),
			URL:            getEnv("SNAP_DB_URL", ""),
			Sandbox:        getEnvBool("SNAP_SANDBOX", false),
			RequestChannel: getEnv("SNAP_REQUEST_CHANNEL", "MMS"),
			TrafficType:    getEnv("SNAP_TRAFFIC_TYPE", "AD"),
			DeptCode:       getEnv("SNAP_DEPT_CODE", ""),
			UserID:         getEnv("SNAP_USER_ID", ""),
			CallbackNumber: getEnv("SNAP_CALLBACK_NUMBER", ""),
		},
		Vendor: VendorConfig{
			BaseURL:      getEnv("COUFUN_BASE_URL", "https://api.coufun.kr"),
			PocID:        getEnv("COUFUN_POC_ID", ""),
			Timeout:      getEnvDuration("COUFUN_TIMEOUT", 10*time.Second),
			MockMode:     getEnvBool("COUFUN_MOCK_MODE", true),
			MaxAttempts:  getEnvInt("COUFUN_MAX_ATTEMPTS", 3),
			BaseBackoff:  getEnvDuration("COUFUN_BACKOFF", 400*time.Millisecond),
			MaxBackoff:   getEnvDuration("COUFUN_MAX_BACKOFF", 2*time.Second),
			DefaultGoods: getEnv("COUFUN_DEFAULT_GOODS_ID", ""),
		},
		Dispatch: DispatchConfig{
			Workers: getEnvInt("DISPATCH_WORKERS", 8),
		},
		Scheduler: SchedulerConfig{
			CarrierSync: JobConfig{
				Enabled:  getEnvBool("SNAP_SYNC_ENABLED", true),
				Interval: getEnvDuration("SNAP_SYNC_INTERVAL", 5*time.Minute),
			},
			CouponSync: JobConfig{
				Enabled:  getEnvBool("COUFUN_SYNC_ENABLED", true),
				Interval: getEnvDuration("COUFUN_SYNC_INTERVAL", 30*time.Minute),
			},
			ProductSync: JobConfig{
				Enabled:  getEnvBool("PRODUCT_SYNC_ENABLED", false),
				Interval: getEnvDuration("PRODUCT_SYNC_INTERVAL", 24*time.Hour),
			},
			Lookback:    getEnvDuration("SNAP_SYNC_LOOKBACK", 72*time.Hour),
			CouponBatch: getEnvInt("COUFUN_SYNC_BATCH", 200),
		},
		Queue: QueueConfig{
			AMQPURL: getEnv("AMQP_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_STATUS_TOPIC", "coupon.status"),
		},
		Tracing: TracingConfig{
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "coupon-dispatch"),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
	}
}

// Validate checks the settings every process needs.
func (c *Config) Validate() error {
	if c.DB.URL == "" {
		return &ConfigError{Field: "DATABASE_URL", Message: "must be set"}
	}
	if len(c.EncryptionKey) != 64 {
		return &ConfigError{Field: "ENCRYPTION_KEY", Message: "must be 64 hex characters"}
	}
	if c.PhoneHash != "sha256" && c.PhoneHash != "keyed" {
		return &ConfigError{Field: "PHONE_HASH_SCHEME", Message: "must be sha256 or keyed"}
	}
	if !c.Vendor.MockMode && c.Vendor.PocID == "" {
		return &ConfigError{Field: "COUFUN_POC_ID", Message: "required in live mode"}
	}
	if !c.Agent.Sandbox && c.Agent.URL == "" {
		return &ConfigError{Field: "SNAP_DB_URL", Message: "required unless SNAP_SANDBOX is set"}
	}
	if c.Dispatch.Workers < 1 {
		return &ConfigError{Field: "DISPATCH_WORKERS", Message: "must be at least 1"}
	}
	if c.Vendor.MaxAttempts < 1 {
		return &ConfigError{Field: "COUFUN_MAX_ATTEMPTS", Message: "must be at least 1"}
	}
	return nil
}
