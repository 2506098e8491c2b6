package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/kiosk/pkg/invoice"
	"go.opentelemetry.io/otel/attribute"
)

// Stripe modes.
const (
	ModeLive = "live"
	ModeTest = "test"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration for the kiosk.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Purolator
	PurolatorKey           string        `envconfig:"PUROLATOR_KEY"`
	PurolatorPassword      string        `envconfig:"PUROLATOR_PASSWORD"`
	PurolatorCSCAccount    string        `envconfig:"PUROLATOR_CSC_ACCOUNT"`
	PurolatorUseProduction bool          `envconfig:"PUROLATOR_USE_PRODUCTION" default:"false"`
	PurolatorUseMock       bool          `envconfig:"PUROLATOR_USE_MOCK" default:"false"`
	PurolatorBaseURL       string        `envconfig:"PUROLATOR_BASE_URL"`
	PurolatorRetries       int           `envconfig:"PUROLATOR_RETRIES" default:"1"`
	PurolatorTimeout       time.Duration `envconfig:"PUROLATOR_TIMEOUT" default:"30s"`

	// SkipValidation creates shipments without the carrier's validation call.
	SkipValidation bool `envconfig:"SKIP_VALIDATION" default:"false"`

	// Stripe, single key pair with the mode taken from the key prefix
	StripeSecretKey      string `envconfig:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `envconfig:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	// Stripe, explicit live/test key pairs
	StripeUseLiveMode        bool   `envconfig:"STRIPE_USE_LIVE_MODE" default:"false"`
	StripeLiveSecretKey      string `envconfig:"STRIPE_LIVE_SECRET_KEY"`
	StripeLivePublishableKey string `envconfig:"STRIPE_LIVE_PUBLISHABLE_KEY"`
	StripeLiveWebhookSecret  string `envconfig:"STRIPE_LIVE_WEBHOOK_SECRET"`
	StripeTestSecretKey      string `envconfig:"STRIPE_TEST_SECRET_KEY"`
	StripeTestPublishableKey string `envconfig:"STRIPE_TEST_PUBLISHABLE_KEY"`
	StripeTestWebhookSecret  string `envconfig:"STRIPE_TEST_WEBHOOK_SECRET"`
	StripeUseMock            bool   `envconfig:"STRIPE_USE_MOCK" default:"false"`
	InvoiceDueDays           int    `envconfig:"INVOICE_DUE_DAYS" default:"30"`

	// Store
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// Mail
	ResendAPIKey      string `envconfig:"RESEND_API_KEY"`
	MailFrom          string `envconfig:"MAIL_FROM"`
	NotificationEmail string `envconfig:"NOTIFICATION_EMAIL"`

	// Events
	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"kiosk.shipments"`

	// Station
	StationProfile string `envconfig:"STATION_PROFILE"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"shipping-kiosk"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// StripeKeys is the key set selected for the active mode.
type StripeKeys struct {
	Mode           string
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Stripe selects the key set. When both explicit pairs are configured the
// live flag picks one; otherwise the single pair is used and its mode is
// taken from the key prefix.
func (c *Config) Stripe() StripeKeys {
	if c.StripeLivePublishableKey != "" && c.StripeTestPublishableKey != "" {
		if c.StripeUseLiveMode {
			return StripeKeys{
				Mode:           ModeLive,
				SecretKey:      c.StripeLiveSecretKey,
				PublishableKey: c.StripeLivePublishableKey,
				WebhookSecret:  c.StripeLiveWebhookSecret,
			}
		}
		return StripeKeys{
			Mode:           ModeTest,
			SecretKey:      c.StripeTestSecretKey,
			PublishableKey: c.StripeTestPublishableKey,
			WebhookSecret:  c.StripeTestWebhookSecret,
		}
	}

	mode := ModeTest
	if invoice.IsLiveKey(c.StripeSecretKey) || invoice.IsLiveKey(c.StripePublishableKey) {
		mode = ModeLive
	}
	return StripeKeys{
		Mode:           mode,
		SecretKey:      c.StripeSecretKey,
		PublishableKey: c.StripePublishableKey,
		WebhookSecret:  c.StripeWebhookSecret,
	}
}

// PurolatorMode names the carrier environment in use.
func (c *Config) PurolatorMode() string {
	switch {
	case c.PurolatorUseMock:
		return "mock"
	case c.PurolatorUseProduction:
		return "production"
	default:
		return "development"
	}
}

// KafkaEnabled reports whether lifecycle events are published.
func (c *Config) KafkaEnabled() bool {
	return strings.TrimSpace(c.KafkaBrokers) != ""
}

// Validate fails when a key required by the active carrier, payment or
// store mode is missing.
func (c *Config) Validate() error {
	var errs []error

	if !c.PurolatorUseMock {
		if c.PurolatorKey == "" {
			errs = append(errs, errors.New("PUROLATOR_KEY is required"))
		}
		if c.PurolatorPassword == "" {
			errs = append(errs, errors.New("PUROLATOR_PASSWORD is required"))
		}
	}
	if len(c.PurolatorCSCAccount) != 8 || !isDigits(c.PurolatorCSCAccount) {
		errs = append(errs, errors.New("PUROLATOR_CSC_ACCOUNT must be 8 digits"))
	}
	if c.PurolatorRetries < 0 {
		errs = append(errs, errors.New("PUROLATOR_RETRIES must not be negative"))
	}

	if !c.StripeUseMock {
		keys := c.Stripe()
		var missing []string
		if keys.PublishableKey == "" {
			missing = append(missing, "publishableKey")
		}
		if keys.SecretKey == "" {
			missing = append(missing, "secretKey")
		}
		if keys.WebhookSecret == "" {
			missing = append(missing, "webhookSecret")
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("missing Stripe %s mode keys: %s", keys.Mode, strings.Join(missing, ", ")))
		}
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("purolator.mode", c.PurolatorMode()),
		attribute.String("stripe.mode", c.Stripe().Mode),
		attribute.String("store.driver", c.StoreDriver),
		attribute.Bool("kafka.enabled", c.KafkaEnabled()),
	}
}

func isDigits(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
