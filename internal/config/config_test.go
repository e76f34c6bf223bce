package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/lovewheel")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("S3_BUCKET", "gifts")
	t.Setenv("S3_PUBLIC_BASE_URL", "https://cdn.lovewheel.test")
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "development", c.Env)
	assert.False(t, c.IsProduction())
	assert.Equal(t, int64(900), c.GiftPriceCents)
	assert.Equal(t, "usd", c.GiftCurrency)
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.Equal(t, 2, c.ReconcileWorkers)
	assert.Equal(t, time.Minute, c.ReconcileInterval)
	assert.Equal(t, 24*time.Hour, c.ReconcileWindow)
	assert.Empty(t, c.AdminToken)
}

func TestLoad_MissingRequiredVarsAreAllReported(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"DATABASE_URL", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "S3_BUCKET", "S3_PUBLIC_BASE_URL"} {
		t.Setenv(k, "")
	}

	_, err := Load()
	require.Error(t, err)
	for _, k := range []string{"DATABASE_URL", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "S3_BUCKET", "S3_PUBLIC_BASE_URL"} {
		assert.Contains(t, err.Error(), k)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("GIFT_PRICE_CENTS", "1299")
	t.Setenv("GIFT_CURRENCY", "EUR")
	t.Setenv("S3_FORCE_PATH_STYLE", "true")
	t.Setenv("RECONCILE_INTERVAL", "45")
	t.Setenv("RECONCILE_WINDOW", "6h")
	t.Setenv("ENV", "production")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(1299), c.GiftPriceCents)
	assert.Equal(t, "eur", c.GiftCurrency)
	assert.True(t, c.S3ForcePathStyle)
	assert.Equal(t, 45*time.Second, c.ReconcileInterval)
	assert.Equal(t, 6*time.Hour, c.ReconcileWindow)
	assert.True(t, c.IsProduction())
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("GIFT_PRICE_CENTS", "0")
	t.Setenv("GIFT_CURRENCY", "dollars")
	t.Setenv("PUBLIC_APP_URL", "lovewheel.app")
	t.Setenv("S3_ACCESS_KEY_ID", "AKIA")
	t.Setenv("S3_SECRET_ACCESS_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GIFT_PRICE_CENTS")
	assert.Contains(t, err.Error(), "GIFT_CURRENCY")
	assert.Contains(t, err.Error(), "PUBLIC_APP_URL")
	assert.Contains(t, err.Error(), "S3_SECRET_ACCESS_KEY")
}

func TestLoad_IgnoresUnusedBaseURL(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("BASE_URL", "not a url")

	_, err := Load()
	assert.NoError(t, err)
}

func TestLoadDotEnv_RealEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LW_TEST_FROM_FILE=file\nLW_TEST_BOTH=file\n# comment\n"), 0o600))

	t.Setenv("LW_TEST_BOTH", "env")
	t.Setenv("LW_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("LW_TEST_FROM_FILE"))

	LoadDotEnv(path)
	t.Cleanup(func() { _ = os.Unsetenv("LW_TEST_FROM_FILE") })

	assert.Equal(t, "file", os.Getenv("LW_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("LW_TEST_BOTH"))
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	assert.NotPanics(t, func() { LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")) })
}
