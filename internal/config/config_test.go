package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
server:
  http_port: 8080
database:
  host: localhost
  user: teamnet
  database: teamnet
jwt:
  secret: "0123456789abcdef0123456789abcdef"
gateway:
  api_key: key
  ipn_secret: secret
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.GRPCPort)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 50, cfg.Hierarchy.MaxDepth)
	assert.Equal(t, 10, cfg.Hierarchy.DefaultDepth)
	assert.Equal(t, 10, cfg.Gateway.TimeoutSeconds)
	assert.Equal(t, "https://api.nowpayments.io/v1", cfg.Gateway.BaseURL)
	assert.Equal(t, "0 */5 * * * *", cfg.Scheduler.RefreshPendingPayments)
	assert.Equal(t, 24, cfg.Subscription.ReminderWindowHours)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "postgres://teamnet:@localhost:5432/teamnet?sslmode=disable", cfg.GetDatabaseConnectionString())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NOWPAYMENTS_IPN_SECRET", "from-env")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HTTP_PORT", "9000")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Gateway.IPNSecret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
}

func TestValidate(t *testing.T) {
	t.Run("MissingIPNSecret", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)
		cfg.Gateway.IPNSecret = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("ShortJWTSecret", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)
		cfg.JWT.Secret = "short"
		assert.Error(t, cfg.Validate())
	})

	t.Run("DefaultDepthAboveMax", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)
		cfg.Hierarchy.MaxDepth = 5
		cfg.Hierarchy.DefaultDepth = 6
		assert.Error(t, cfg.Validate())
	})
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEAMNET_TEST_VAR=hello\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEAMNET_TEST_VAR") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "hello", os.Getenv("TEAMNET_TEST_VAR"))
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("POST /api/payments/webhook"))
	assert.Equal(t, SecurityAuthenticated, GetSecurityLevel("POST /api/payments/subscribe"))
	assert.Equal(t, SecurityAdmin, GetSecurityLevel("GET /api/team/downline-structure/{userId}"))
	assert.Equal(t, SecurityAdmin, GetSecurityLevel("GET /api/unknown"))
}
