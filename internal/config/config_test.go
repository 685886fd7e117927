package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPageDelay, cfg.PageDelay)
	assert.Equal(t, DefaultStrategies, cfg.Strategies)
	assert.False(t, cfg.CacheFallback)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PRICECRAWL_PROXIES", "http://a:1, http://b:2")
	t.Setenv("PRICECRAWL_PAGE_DELAY", "500ms")
	t.Setenv("PRICECRAWL_STRATEGIES", "static,stealth")
	t.Setenv("PRICECRAWL_CACHE_FALLBACK", "true")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a:1", "http://b:2"}, cfg.Proxies)
	assert.Equal(t, 500*time.Millisecond, cfg.PageDelay)
	assert.Equal(t, []string{"static", "stealth"}, cfg.Strategies)
	assert.True(t, cfg.CacheFallback)
}

func TestLoad_EnvInvalid(t *testing.T) {
	t.Setenv("PRICECRAWL_TIMEOUT", "soon")
	_, err := Load(nil)
	assert.ErrorContains(t, err, "PRICECRAWL_TIMEOUT")
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("PRICECRAWL_PAGE_DELAY", "5s")

	cmd := newCmd(t, "--delay", "1s", "--verbose", "--proxy", "http://p:1", "--proxy-cooldown", "30s", "--strategies", "rendered,identity")
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.PageDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"http://p:1"}, cfg.Proxies)
	assert.Equal(t, 30*time.Second, cfg.ProxyCooldown)
	assert.Equal(t, []string{"rendered", "identity"}, cfg.Strategies)
}

func TestLoad_UnsetFlagsKeepDefaults(t *testing.T) {
	cfg, err := Load(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, DefaultOperationTimeout, cfg.OperationTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown strategy", func(c *Config) { c.Strategies = []string{"teleport"} }, "unknown strategy"},
		{"duplicate strategy", func(c *Config) { c.Strategies = []string{"static", "static"} }, "twice"},
		{"no strategies", func(c *Config) { c.Strategies = nil }, "at least one"},
		{"negative delay", func(c *Config) { c.PageDelay = -time.Second }, "page delay"},
		{"negative proxy cooldown", func(c *Config) { c.ProxyCooldown = -time.Second }, "proxy cooldown"},
		{"zero timeout", func(c *Config) { c.OperationTimeout = 0 }, "operation timeout"},
		{"zero render timeout", func(c *Config) { c.RenderTimeout = 0 }, "render timeout"},
		{"too many workers", func(c *Config) { c.DownloadWorkers = 100 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.ErrorContains(t, validate(cfg), tt.errMsg)
		})
	}

	assert.NoError(t, validate(Defaults()))
}
