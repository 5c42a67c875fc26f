package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionn-seer/internal/status"
	"github.com/fusionn-seer/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(true)
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

const minimalConfig = `
overseerr:
  base_url: http://overseerr:5055
  api_key: secret
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "*/30 * * * *", cfg.Scheduler.Cron)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 512, cfg.Cache.Size)
	assert.Equal(t, 4, cfg.Cache.Concurrency)
	assert.Equal(t, "data/tracker_state.json", cfg.Tracker.StateFile)
	assert.InDelta(t, 5.0, cfg.Overseerr.RequestsPerSecond, 0.001)
}

func TestLoadReadsSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9000
overseerr:
  base_url: http://overseerr:5055
  api_key: secret
  user_id: 7
tracker:
  enabled: true
  shows: [1399, 94997]
  notify_on: [fully_available]
cache:
  ttl: 90s
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Overseerr.UserID)
	assert.True(t, cfg.Tracker.Enabled)
	assert.Equal(t, []int{1399, 94997}, cfg.Tracker.Shows)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, map[status.Status]bool{status.FullyAvailable: true}, cfg.Tracker.NotifyStatuses())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FUSIONN_SEER_OVERSEERR_API_KEY", "from-env")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Overseerr.APIKey)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing overseerr url",
			body:    "overseerr:\n  api_key: x\n",
			wantErr: "overseerr.base_url is required",
		},
		{
			name:    "unknown notify status",
			body:    minimalConfig + "tracker:\n  notify_on: [done]\n",
			wantErr: `unknown status "done"`,
		},
		{
			name:    "apprise enabled without url",
			body:    minimalConfig + "apprise:\n  enabled: true\n",
			wantErr: "apprise.base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNotifyStatusesEmptyMeansAny(t *testing.T) {
	assert.Nil(t, TrackerConfig{}.NotifyStatuses())
}

func TestDiffMasksAPIKey(t *testing.T) {
	old := &Config{Overseerr: OverseerrConfig{APIKey: "a", UserID: 1}}
	cur := &Config{Overseerr: OverseerrConfig{APIKey: "b", UserID: 2}}

	lines := diff(old, cur, "")
	assert.ElementsMatch(t, []string{
		"Overseerr.APIKey: **** → ****",
		"Overseerr.UserID: 1 → 2",
	}, lines)
}

func TestManagerApplyNotifiesCallbacks(t *testing.T) {
	m := &Manager{cfg: &Config{Server: ServerConfig{Port: 1}}}

	var gotOld, gotNew *Config
	m.OnChange(func(old, new *Config) {
		gotOld, gotNew = old, new
	})

	next := &Config{Server: ServerConfig{Port: 2}}
	m.apply(next)

	assert.Same(t, next, m.Get())
	require.NotNil(t, gotOld)
	assert.Equal(t, 1, gotOld.Server.Port)
	assert.Same(t, next, gotNew)
}
