package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"sqlite"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"conductor.db"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address        string `envconfig:"OCR_CONDUCTOR_ADDRESS" default:":8472"`
	MetricsAddress string `envconfig:"OCR_CONDUCTOR_METRICS_ADDRESS" default:":8473"`
	BaseUrl        string `envconfig:"OCR_CONDUCTOR_BASE_URL" default:"http://localhost:8472"`
	LogLevel       string `envconfig:"OCR_CONDUCTOR_LOG_LEVEL" default:"info"`

	Docstore docstoreConfig
	OCR      ocrConfig
}

type docstoreConfig struct {
	URL       string `envconfig:"OCR_CONDUCTOR_DOCSTORE_URL" default:"http://localhost:8000"`
	Token     string `envconfig:"OCR_CONDUCTOR_DOCSTORE_TOKEN" default:""`
	RunTag    string `envconfig:"OCR_CONDUCTOR_RUN_TAG" default:"runocr"`
	FinishTag string `envconfig:"OCR_CONDUCTOR_FINISH_TAG" default:"ocrfinish"`
}

type ocrConfig struct {
	// RequestTimeout bounds a single inference call so one unresponsive
	// server cannot wedge a whole batch.
	RequestTimeout time.Duration `envconfig:"OCR_CONDUCTOR_OCR_TIMEOUT" default:"5m"`
	// EndpointCooldown is how long a failed endpoint is skipped before it
	// is tried again.
	EndpointCooldown time.Duration `envconfig:"OCR_CONDUCTOR_ENDPOINT_COOLDOWN" default:"30s"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a config built only from defaults and current env,
// ignoring any previously cached instance. Used by tests.
func NewDefault() *Config {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
	return cfg
}
