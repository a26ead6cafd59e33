package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("ENV", EnvDevelopment)
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("PRICE_CREDITS", "price_a=5, price_b=0")
	t.Setenv("ADMIN_EMAILS", "Ops@Linguaby.org")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, devJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, map[string]int{"price_a": 5, "price_b": 0}, cfg.Checkout.PriceCredits)
	assert.Equal(t, []string{"ops@linguaby.org"}, cfg.Admin.Emails)
}

func TestLoadRejectsDevelopmentSecretsInProduction(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_live")
	t.Setenv("RECEIPT_LINK_SECRET", "receipts-live-secret")

	_, err := Load()
	require.ErrorIs(t, err, ErrInsecureSecret)
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")

	t.Setenv("AUTH_JWT_SECRET", "jwt-live-secret")
	t.Setenv("RECEIPT_LINK_SECRET", devReceiptsSecret)
	_, err = Load()
	require.ErrorIs(t, err, ErrInsecureSecret)
	assert.Contains(t, err.Error(), "RECEIPT_LINK_SECRET")

	t.Setenv("RECEIPT_LINK_SECRET", "receipts-live-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvProduction, cfg.Env)
}

func TestValidateIgnoresDevelopment(t *testing.T) {
	cfg := &Config{Env: EnvDevelopment}
	assert.NoError(t, cfg.Validate())
}
