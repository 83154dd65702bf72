package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-backoffice/internal/ledger"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, "00:05:00", cfg.DailyInterestAt)
	assert.True(t, cfg.CatchUpOnStartup)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 100*time.Millisecond, cfg.WorkerBackoff)
	assert.False(t, cfg.IsProduction())

	p := cfg.IBANParams()
	assert.Equal(t, "FR", p.CountryCode)
	assert.Equal(t, 11, p.AccountLength)

	policy, err := cfg.Overdraft()
	require.NoError(t, err)
	assert.Equal(t, ledger.NoOverdraft, policy)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestOverdraftPolicy(t *testing.T) {
	cfg := &Config{OverdraftLimit: "150.00"}
	policy, err := cfg.Overdraft()
	require.NoError(t, err)
	assert.True(t, policy.Allows(decimal.RequireFromString("-150")))
	assert.False(t, policy.Allows(decimal.RequireFromString("-150.01")))

	cfg = &Config{OverdraftUnlimited: true, OverdraftLimit: "0"}
	policy, err = cfg.Overdraft()
	require.NoError(t, err)
	assert.Equal(t, ledger.UnlimitedOverdraft, policy)

	cfg = &Config{OverdraftLimit: "beaucoup"}
	_, err = cfg.Overdraft()
	assert.Error(t, err)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"bad time zone":      {"TZ_NAME": "Mars/Olympus"},
		"bad accrual time":   {"DAILY_INTEREST_AT": "midnight"},
		"bad overdraft":      {"OVERDRAFT_LIMIT": "x"},
		"admin without pass": {"BOOTSTRAP_ADMIN_NAME": "admin"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "test-secret")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
