package logfire

import (
	"net/http"
	"net/url"
	"time"

	"github.com/pydantic/logfire-go/lfbase"
	"github.com/pydantic/logfire-go/lfexport"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/clockz"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Defaults substituted by Configure for zero Config fields.
const (
	DefaultBaseURL         = "https://api.logfire.dev"
	DefaultScheduleDelay   = lfexport.DefaultScheduleDelay
	DefaultMaxQueueSize    = lfexport.DefaultQueueSize
	DefaultMaxBatchSize    = lfexport.DefaultBatchSize
	DefaultMaxBodySize     = 5 << 20
	DefaultRequestTimeout  = 10 * time.Second
	DefaultFallbackPath    = "logfire_spans.bin"
	DefaultMetricsInterval = time.Minute
)

// Config controls Configure. A zero Config plus a Token is a working
// production setup. Zero-valued fields take the defaults above;
// negative sizes and delays are configuration errors.
type Config struct {
	Token           string        `json:"token"           envconfig:"TOKEN"            help:"write token, sent verbatim as the Authorization header"`
	BaseURL         string        `json:"baseURL"         envconfig:"BASE_URL"         help:"ingest base URL"`
	Disabled        bool          `json:"disabled"        envconfig:"DISABLED"         help:"build a pipeline that discards every record"`
	ScheduleDelay   time.Duration `json:"scheduleDelay"   envconfig:"SCHEDULE_DELAY"   help:"how long a finished record may wait for its batch"`
	MaxQueueSize    int           `json:"maxQueueSize"    envconfig:"MAX_QUEUE_SIZE"   help:"finished records buffered before the oldest drop"`
	MaxBatchSize    int           `json:"maxBatchSize"    envconfig:"MAX_BATCH_SIZE"   help:"records per export request"`
	MaxBodySize     int64         `json:"maxBodySize"     envconfig:"MAX_BODY_SIZE"    help:"request body byte cap enforced by the export transport"`
	RequestTimeout  time.Duration `json:"requestTimeout"  envconfig:"REQUEST_TIMEOUT"  help:"per-request timeout on export calls"`
	FallbackPath    string        `json:"fallbackPath"    envconfig:"FALLBACK_PATH"    help:"file that receives batches when export fails"`
	CompressBody    bool          `json:"compressBody"    envconfig:"COMPRESS_BODY"    help:"gzip export request bodies"`
	MetricsInterval time.Duration `json:"metricsInterval" envconfig:"METRICS_INTERVAL" help:"how often gathered metrics are exported"`

	// Diagnostics receives the SDK's own logging: export failures,
	// fallback writes, swallowed capture errors. Defaults to a nop
	// logger. The SDK never logs through its own pipeline.
	Diagnostics *zap.Logger `json:"-" ignored:"true"`

	// Now is the timestamp source for every record. Defaults to
	// clockz.RealClock.Now.
	Now func() time.Time `json:"-" ignored:"true"`

	// IDGenerator allocates trace and span ids. The default draws from
	// crypto/rand and never returns zero ids.
	IDGenerator sdktrace.IDGenerator `json:"-" ignored:"true"`

	// Processors replaces the default batcher/fallback/HTTP chain.
	// When set, Token, BaseURL, and the export knobs above are unused.
	Processors []lfbase.Processor `json:"-" ignored:"true"`

	// HTTPClient underlies the exporter when set; lfexport.RetryPolicy
	// builds a suitable one. The body-size transport wraps whatever
	// Transport it carries.
	HTTPClient *http.Client `json:"-" ignored:"true"`

	// Metrics names a registry to gather and export every
	// MetricsInterval. Nil disables the metrics path.
	Metrics *prometheus.Registry `json:"-" ignored:"true"`
}

// ConfigFromEnv resolves a Config from LOGFIRE_* environment variables
// (LOGFIRE_TOKEN, LOGFIRE_BASE_URL, and so on per the envconfig tags).
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("logfire", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "logfire configuration")
	}
	return cfg, nil
}

func (cfg Config) withDefaults() Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ScheduleDelay == 0 {
		cfg.ScheduleDelay = DefaultScheduleDelay
	}
	if cfg.MaxQueueSize == 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.FallbackPath == "" {
		cfg.FallbackPath = DefaultFallbackPath
	}
	if cfg.MetricsInterval == 0 {
		cfg.MetricsInterval = DefaultMetricsInterval
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = clockz.RealClock.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = randomIDGenerator{}
	}
	return cfg
}

// validate runs after withDefaults, so zero values are gone and only
// explicit bad input remains.
func (cfg Config) validate() error {
	if cfg.Disabled {
		return nil
	}
	if len(cfg.Processors) == 0 && cfg.Token == "" {
		return configErr("Token", "required to send to logfire (set Disabled or supply Processors to run without one)")
	}
	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return configErr("BaseURL", "not an absolute URL: %q", cfg.BaseURL)
	}
	if cfg.ScheduleDelay < 0 {
		return configErr("ScheduleDelay", "must be positive, got %s", cfg.ScheduleDelay)
	}
	if cfg.MaxQueueSize < 0 || cfg.MaxBatchSize < 0 || cfg.MaxBodySize < 0 {
		return configErr("MaxQueueSize/MaxBatchSize/MaxBodySize", "sizes must be positive")
	}
	if cfg.MaxBatchSize > cfg.MaxQueueSize {
		return configErr("MaxBatchSize", "%d exceeds MaxQueueSize %d", cfg.MaxBatchSize, cfg.MaxQueueSize)
	}
	if cfg.RequestTimeout < 0 {
		return configErr("RequestTimeout", "must be positive, got %s", cfg.RequestTimeout)
	}
	if cfg.MetricsInterval < 0 {
		return configErr("MetricsInterval", "must be positive, got %s", cfg.MetricsInterval)
	}
	return nil
}
