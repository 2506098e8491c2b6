package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kiosk/internal/config"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"PUROLATOR_KEY":          "key",
		"PUROLATOR_PASSWORD":     "secret",
		"PUROLATOR_CSC_ACCOUNT":  "12345678",
		"STRIPE_SECRET_KEY":      "sk_test_123",
		"STRIPE_PUBLISHABLE_KEY": "pk_test_123",
		"STRIPE_WEBHOOK_SECRET":  "whsec_123",
		"DATABASE_URL":           "postgres://localhost/kiosk?sslmode=disable",
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, baseEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1, cfg.PurolatorRetries)
	assert.Equal(t, 30*time.Second, cfg.PurolatorTimeout)
	assert.Equal(t, 30, cfg.InvoiceDueDays)
	assert.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "development", cfg.PurolatorMode())
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, config.ModeTest, cfg.Stripe().Mode)
	assert.False(t, cfg.SkipValidation)
}

func TestLoad_SkipValidation(t *testing.T) {
	env := baseEnv()
	env["SKIP_VALIDATION"] = "true"
	setEnv(t, env)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.SkipValidation)
}

func TestLoad_CSCAccountMustBeDigits(t *testing.T) {
	tests := []struct {
		name    string
		account string
		wantErr bool
	}{
		{name: "eight digits", account: "12345678"},
		{name: "letters", account: "1234567A", wantErr: true},
		{name: "spaces", account: "1234 567", wantErr: true},
		{name: "too short", account: "1234567", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			env["PUROLATOR_CSC_ACCOUNT"] = tt.account
			setEnv(t, env)

			_, err := config.Load()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "PUROLATOR_CSC_ACCOUNT must be 8 digits")
		})
	}
}

func TestLoad_ProductionRequiresExplicitFlag(t *testing.T) {
	env := baseEnv()
	env["NODE_ENV"] = "production"
	setEnv(t, env)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.PurolatorMode())

	t.Setenv("PUROLATOR_USE_PRODUCTION", "true")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.PurolatorMode())
}

func TestLoad_MissingKeysFailFast(t *testing.T) {
	setEnv(t, map[string]string{"PUROLATOR_CSC_ACCOUNT": "1234"})

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUROLATOR_KEY is required")
	assert.Contains(t, err.Error(), "PUROLATOR_CSC_ACCOUNT must be 8 digits")
	assert.Contains(t, err.Error(), "missing Stripe test mode keys: publishableKey, secretKey, webhookSecret")
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_MockModesSkipKeys(t *testing.T) {
	setEnv(t, map[string]string{
		"PUROLATOR_USE_MOCK":    "true",
		"PUROLATOR_CSC_ACCOUNT": "12345678",
		"STRIPE_USE_MOCK":       "true",
		"STORE_DRIVER":          "memory",
	})

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.PurolatorMode())
}

func TestLoad_UnknownStoreDriver(t *testing.T) {
	env := baseEnv()
	env["STORE_DRIVER"] = "sqlite"
	setEnv(t, env)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown STORE_DRIVER "sqlite"`)
}

func TestStripe_SinglePairDetectsLiveFromPrefix(t *testing.T) {
	cfg := &config.Config{StripeSecretKey: "sk_live_abc", StripePublishableKey: "pk_live_abc", StripeWebhookSecret: "whsec"}
	keys := cfg.Stripe()
	assert.Equal(t, config.ModeLive, keys.Mode)
	assert.Equal(t, "sk_live_abc", keys.SecretKey)
}

func TestStripe_ExplicitPairs(t *testing.T) {
	cfg := &config.Config{
		StripeLiveSecretKey:      "sk_live_1",
		StripeLivePublishableKey: "pk_live_1",
		StripeLiveWebhookSecret:  "whsec_live",
		StripeTestSecretKey:      "sk_test_1",
		StripeTestPublishableKey: "pk_test_1",
		StripeTestWebhookSecret:  "whsec_test",
	}

	keys := cfg.Stripe()
	assert.Equal(t, config.ModeTest, keys.Mode)
	assert.Equal(t, "sk_test_1", keys.SecretKey)
	assert.Equal(t, "whsec_test", keys.WebhookSecret)

	cfg.StripeUseLiveMode = true
	keys = cfg.Stripe()
	assert.Equal(t, config.ModeLive, keys.Mode)
	assert.Equal(t, "sk_live_1", keys.SecretKey)
	assert.Equal(t, "whsec_live", keys.WebhookSecret)
}

func TestStripe_LiveModeMissingKeys(t *testing.T) {
	cfg := &config.Config{
		PurolatorUseMock:         true,
		PurolatorCSCAccount:      "12345678",
		StoreDriver:              config.DriverMemory,
		StripeUseLiveMode:        true,
		StripeLivePublishableKey: "pk_live_1",
		StripeTestPublishableKey: "pk_test_1",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Stripe live mode keys: secretKey, webhookSecret")
}

func TestLoadProfile_Defaults(t *testing.T) {
	p, err := config.LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "5875 Falls Ave", p.Sender.Street)

	missing, err := config.LoadProfile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, p, missing)

	addr := p.SenderAddress()
	assert.Equal(t, "5875", addr.StreetNumber)
	assert.Equal(t, "Falls Ave", addr.StreetName)
	assert.Equal(t, "L2G3K7", addr.PostalCode)
	assert.Equal(t, "905", addr.Phone.AreaCode)
	assert.Equal(t, "3581430", addr.Phone.Number)
	assert.Equal(t, "CA", addr.Country)

	pkg := p.StandardPackage(10)
	assert.InDelta(t, 24.0, pkg.Length, 0.001)
	assert.InDelta(t, 10.0, pkg.Weight, 0.001)
}

func TestLoadProfile_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sender:
  city: Toronto
  postalCode: m5h 2n2
  province: Ontario
pickup:
  location: Loading Bay 3
  loadingDock: true
`), 0o600))

	p, err := config.LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "Toronto", p.Sender.City)
	assert.Equal(t, "5875 Falls Ave", p.Sender.Street)
	assert.Equal(t, "Loading Bay 3", p.Pickup.Location)
	assert.True(t, p.Pickup.LoadingDock)
	assert.Equal(t, "09:00", p.Pickup.ReadyTime)
	assert.InDelta(t, 12.0, p.Box.Width, 0.001)

	addr := p.SenderAddress()
	assert.Equal(t, "ON", addr.Province)
	assert.Equal(t, "M5H2N2", addr.PostalCode)
}

func TestLoadProfile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sender:\n  postalCode: \"12345\"\n"), 0o600))

	_, err := config.LoadProfile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("box: [not, a, map]\n"), 0o600))
	_, err = config.LoadProfile(path)
	assert.Error(t, err)
}
