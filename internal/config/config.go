// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Pool    PoolConfig    `mapstructure:"pool"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Lookup  LookupConfig  `mapstructure:"lookup"`
	Source  SourceConfig  `mapstructure:"source"`
	Output  OutputConfig  `mapstructure:"output"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	DB      DBConfig      `mapstructure:"db"`
	Export  ExportConfig  `mapstructure:"export"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Size int `mapstructure:"size" validate:"min=1"`
}

// RetryConfig controls the lookup retry schedule.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	BackoffUnit time.Duration `mapstructure:"backoff_unit" validate:"gt=0"`
}

// LookupConfig points at the remote hotel search endpoint.
type LookupConfig struct {
	URL      string        `mapstructure:"url" validate:"required,url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Detailed bool          `mapstructure:"detailed"`
}

// SourceConfig locates the work-item source file.
type SourceConfig struct {
	Path    string `mapstructure:"path" validate:"required"`
	IDField string `mapstructure:"id_field" validate:"required"`
}

// OutputConfig names the local result destinations.
type OutputConfig struct {
	Dir       string `mapstructure:"dir" validate:"required"`
	Results   string `mapstructure:"results" validate:"required,nefield=Summaries"`
	Summaries string `mapstructure:"summaries" validate:"required"`
}

// PubSubConfig enables the Pub/Sub mirror when both fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id" validate:"required_with=Topic"`
	Topic     string `mapstructure:"topic" validate:"required_with=ProjectID"`
}

// Enabled reports whether records should be mirrored to Pub/Sub.
func (p PubSubConfig) Enabled() bool { return p.ProjectID != "" && p.Topic != "" }

// DBConfig enables the Postgres mirror when DSN is set.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table" validate:"required"`
}

// ExportConfig controls the post-run merge/export.
type ExportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend" validate:"oneof=local gcs"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket" validate:"required_if=Backend gcs"`
	Object  string `mapstructure:"object" validate:"required"`
}

// MetricsConfig exposes /metrics and /healthz on Port when non-zero.
type MetricsConfig struct {
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// TracingConfig controls OpenTelemetry spans around lookups.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"min=0,max=1"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pool.size", 4)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_unit", time.Second)
	v.SetDefault("lookup.url", "")
	v.SetDefault("lookup.username", "")
	v.SetDefault("lookup.password", "")
	v.SetDefault("lookup.timeout", 30*time.Second)
	v.SetDefault("lookup.detailed", false)
	v.SetDefault("source.path", "saas.CityTBO.json")
	v.SetDefault("source.id_field", "code")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.results", "results.json")
	v.SetDefault("output.summaries", "city_and_hotels.json")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "harvest_records")
	v.SetDefault("export.enabled", false)
	v.SetDefault("export.backend", "local")
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.object", "merged_results.json")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.project_id", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return val
}

// Validate enforces required values and reasonable limits. Failures are
// reported by their configuration key, e.g. "lookup.url: required".
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, key+": "+rule)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
