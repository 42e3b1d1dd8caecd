package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/look-pyrenees/internal/bucket"
	"github.com/i474232898/look-pyrenees/internal/resilience"
	"github.com/i474232898/look-pyrenees/internal/scene"
	"github.com/i474232898/look-pyrenees/internal/scene/providers"
)

// ErrInvalid is returned when the environment holds invalid settings.
var ErrInvalid = errors.New("invalid configuration")

type AppConfig struct {
	OutPath           string `envconfig:"OUT_PATH" default:"./data" validate:"required"`
	PreferredProvider string `envconfig:"PREF_PROVIDER" default:"cop_dataspace" validate:"oneof=cop_dataspace earth_search"`
	ProductType       string `envconfig:"PRODUCT_TYPE" default:"S2_MSI_L2A" validate:"oneof=S2_MSI_L2A S2_MSI_L1C"`
	ZonesFile         string `envconfig:"ZONES_FILE"`
	ShowResults       bool   `envconfig:"SHOW_RESULTS" default:"false"`

	// Scene selection.
	MinOverlap       float64 `envconfig:"MIN_OVERLAP" default:"95" validate:"gte=0,lte=100"`
	CloudCeiling     float64 `envconfig:"CLOUD_CEILING" default:"20" validate:"gte=0,lte=100"`
	CloudFlagAbove   float64 `envconfig:"CLOUD_FLAG_ABOVE" default:"30" validate:"gte=0,lte=100"`
	SelectMode       string  `envconfig:"SELECT_MODE" default:"threshold" validate:"oneof=threshold best"`
	WindowBeforeDays int     `envconfig:"WINDOW_BEFORE_DAYS" default:"10" validate:"gte=0"`
	WindowAfterDays  int     `envconfig:"WINDOW_AFTER_DAYS" default:"1" validate:"gte=0"`
	SearchDays       int     `envconfig:"SEARCH_DAYS" default:"30" validate:"gte=1"`
	RetentionDays    int     `envconfig:"RETENTION_DAYS" default:"31" validate:"gte=1"`

	// External calls.
	CallTimeout     time.Duration `envconfig:"CALL_TIMEOUT" default:"2m" validate:"gt=0"`
	DownloadTimeout time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"30m" validate:"gt=0"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"3" validate:"gte=0"`
	RetryInterval   time.Duration `envconfig:"RETRY_INTERVAL" default:"500ms" validate:"gt=0"`
	RetryMaxDelay   time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5s"`
	RasterTimeout   time.Duration `envconfig:"RASTER_TIMEOUT" default:"20m" validate:"gt=0"`

	CDSEUsername string `envconfig:"CDSE_USERNAME"`
	CDSEPassword string `envconfig:"CDSE_PASSWORD"`

	// Remote artifact storage. Disabled when BucketName is empty.
	BucketName      string `envconfig:"BUCKET_NAME"`
	BucketBackend   string `envconfig:"BUCKET_BACKEND" default:"gcs" validate:"oneof=s3 gcs"`
	BucketRegion    string `envconfig:"BUCKET_REGION"`
	BucketEndpoint  string `envconfig:"BUCKET_ENDPOINT"`
	BucketAccessKey string `envconfig:"BUCKET_ACCESS_KEY"`
	BucketSecretKey string `envconfig:"BUCKET_SECRET_KEY"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	// Service mode.
	Port         string        `envconfig:"PORT" default:"8080"`
	ScheduleCron string        `envconfig:"SCHEDULE_CRON" default:"0 6 * * *" validate:"required"`
	RunTimeout   time.Duration `envconfig:"RUN_TIMEOUT" default:"3h" validate:"gt=0"`
	RunHistory   int           `envconfig:"RUN_HISTORY" default:"30"`
	RunMaxAge    time.Duration `envconfig:"RUN_MAX_AGE" default:"720h"`
}

// Load reads configuration from the environment, after loading a .env file
// when one is present, and validates it.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings, including ones overridden from flags.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.PreferredProvider == providers.EarthSearchName && c.ProductType != providers.ProductTypeL2A {
		return fmt.Errorf("%w: %s only serves %s", ErrInvalid, providers.EarthSearchName, providers.ProductTypeL2A)
	}
	return nil
}

// Selector returns the scene selection thresholds.
func (c *AppConfig) Selector() scene.Selector {
	return scene.Selector{
		MinOverlap:   c.MinOverlap,
		Ceiling:      c.CloudCeiling,
		FlagAbove:    c.CloudFlagAbove,
		WindowBefore: c.WindowBeforeDays,
		WindowAfter:  c.WindowAfterDays,
		Mode:         scene.Mode(c.SelectMode),
	}
}

// Backoff returns the retry policy for external calls.
func (c *AppConfig) Backoff() resilience.BackoffConfig {
	return resilience.BackoffConfig{
		MaxRetries:      c.MaxRetries,
		InitialInterval: c.RetryInterval,
		MaxInterval:     c.RetryMaxDelay,
	}
}

// Providers returns the settings shared by the imagery providers.
func (c *AppConfig) Providers() providers.Config {
	return providers.Config{
		Backoff:            c.Backoff(),
		CallTimeout:        c.CallTimeout,
		DownloadTimeout:    c.DownloadTimeout,
		CopernicusUsername: c.CDSEUsername,
		CopernicusPassword: c.CDSEPassword,
	}
}

// Bucket returns the remote storage settings and whether storage is enabled.
func (c *AppConfig) Bucket() (bucket.Config, bool) {
	return bucket.Config{
		Backend:   c.BucketBackend,
		Name:      c.BucketName,
		Region:    c.BucketRegion,
		Endpoint:  c.BucketEndpoint,
		AccessKey: c.BucketAccessKey,
		SecretKey: c.BucketSecretKey,
	}, c.BucketName != ""
}
