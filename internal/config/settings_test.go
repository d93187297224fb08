package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/glm-tray/internal/models"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Len(t, cfg.Slots, models.MaxSlots)
	assert.Equal(t, models.DefaultMaxConsecutiveErrors, cfg.MaxConsecutiveErrors)
	assert.Equal(t, models.DefaultQuotaPollBackoffCapMinutes, cfg.QuotaPollBackoffCapMinutes)
	assert.Equal(t, models.DefaultWakeQuotaRetryWindowMinutes, cfg.WakeQuotaRetryWindowMinutes)
	for i, slot := range cfg.Slots {
		assert.Equal(t, i+1, slot.Slot)
		assert.False(t, slot.Enabled)
	}
}

func TestMigrateV2RenamesWakeKeys(t *testing.T) {
	v2 := `{
		"config_version": 2,
		"theme": "light",
		"slots": [{
			"slot": 1,
			"name": "main",
			"enabled": true,
			"api_key": "abc",
			"quota_url": "https://example.com/quota/limit",
			"wake_enabled": true,
			"wake_mode": "interval",
			"wake_interval_enabled": true,
			"wake_times_enabled": true,
			"wake_after_reset_enabled": false,
			"wake_interval_minutes": 45,
			"wake_times": ["08:00", "13:30"],
			"wake_after_reset_minutes": 3,
			"poll_interval_minutes": 10,
			"logging": false
		}]
	}`

	cfg, err := Migrate([]byte(v2))
	require.NoError(t, err)

	require.Len(t, cfg.Slots, 1)
	slot := cfg.Slots[0]
	assert.Equal(t, models.CurrentConfigVersion, cfg.ConfigVersion)
	assert.Equal(t, "light", cfg.Theme)
	assert.True(t, slot.ScheduleIntervalEnabled)
	assert.True(t, slot.ScheduleTimesEnabled)
	assert.False(t, slot.ScheduleAfterResetEnabled)
	assert.Equal(t, 45, slot.ScheduleIntervalMinutes)
	assert.Equal(t, []string{"08:00", "13:30"}, slot.ScheduleTimes)
	assert.Equal(t, 3, slot.ScheduleAfterResetMinutes)
	assert.Equal(t, 10, slot.PollIntervalMinutes)
	assert.Equal(t, models.DefaultMaxConsecutiveErrors, cfg.MaxConsecutiveErrors)
}

func TestMigrateMissingSlotFieldsTakeDefaults(t *testing.T) {
	cfg, err := Migrate([]byte(`{"config_version": 3, "slots": [{"api_key": "k"}]}`))
	require.NoError(t, err)

	require.Len(t, cfg.Slots, 1)
	assert.Equal(t, models.DefaultPollIntervalMinutes, cfg.Slots[0].PollIntervalMinutes)
	assert.Equal(t, models.DefaultQuotaURL, cfg.Slots[0].QuotaURL)
	assert.Equal(t, models.DefaultQuotaPollBackoffCapMinutes, cfg.QuotaPollBackoffCapMinutes)
}

func TestMigrateRejectsInvalidJSON(t *testing.T) {
	_, err := Migrate([]byte(`{"slots": [`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.AppConfig)
		check  func(*testing.T, models.AppConfig)
	}{
		{
			name: "clamps policy",
			mutate: func(c *models.AppConfig) {
				c.MaxConsecutiveErrors = 0
				c.QuotaPollBackoffCapMinutes = 5000
				c.WakeQuotaRetryWindowMinutes = -3
				c.MaxLogDays = 1000
			},
			check: func(t *testing.T, c models.AppConfig) {
				assert.Equal(t, 1, c.MaxConsecutiveErrors)
				assert.Equal(t, 1440, c.QuotaPollBackoffCapMinutes)
				assert.Equal(t, 1, c.WakeQuotaRetryWindowMinutes)
				assert.Equal(t, 365, c.MaxLogDays)
			},
		},
		{
			name: "clamps slot intervals",
			mutate: func(c *models.AppConfig) {
				c.Slots[0].PollIntervalMinutes = 0
				c.Slots[0].ScheduleIntervalMinutes = 2000
				c.Slots[0].ScheduleAfterResetMinutes = -1
			},
			check: func(t *testing.T, c models.AppConfig) {
				assert.Equal(t, 1, c.Slots[0].PollIntervalMinutes)
				assert.Equal(t, 1440, c.Slots[0].ScheduleIntervalMinutes)
				assert.Equal(t, 1, c.Slots[0].ScheduleAfterResetMinutes)
			},
		},
		{
			name: "filters schedule times",
			mutate: func(c *models.AppConfig) {
				c.Slots[1].ScheduleTimes = []string{" 07:05 ", "24:00", "", "12:60", "23:59"}
			},
			check: func(t *testing.T, c models.AppConfig) {
				assert.Equal(t, []string{"07:05", "23:59"}, c.Slots[1].ScheduleTimes)
			},
		},
		{
			name: "caps schedule times before filtering",
			mutate: func(c *models.AppConfig) {
				c.Slots[1].ScheduleTimes = []string{"01:00", "02:00", "03:00", "04:00", "05:00", "06:00"}
			},
			check: func(t *testing.T, c models.AppConfig) {
				assert.Len(t, c.Slots[1].ScheduleTimes, models.MaxScheduleTimes)
			},
		},
		{
			name: "blank key force-disables",
			mutate: func(c *models.AppConfig) {
				c.Slots[2].Enabled = true
				c.Slots[2].APIKey = "   "
			},
			check: func(t *testing.T, c models.AppConfig) {
				assert.False(t, c.Slots[2].Enabled)
				assert.Empty(t, c.Slots[2].APIKey)
			},
		},
		{
			name: "trims and caps names",
			mutate: func(c *models.AppConfig) {
				c.Slots[0].Name = "  abcdefghijklmnopqrstuvwxyz0123456789  "
			},
			check: func(t *testing.T, c models.AppConfig) {
				assert.Equal(t, "abcdefghijklmnopqrstuvwxyz012345", c.Slots[0].Name)
			},
		},
		{
			name: "invalid urls fall back to globals",
			mutate: func(c *models.AppConfig) {
				c.GlobalQuotaURL = "https://quota.example.com/limit"
				c.Slots[0].QuotaURL = "ftp://nope"
				c.Slots[0].RequestURL = "http://plain.example.com"
			},
			check: func(t *testing.T, c models.AppConfig) {
				assert.Equal(t, "https://quota.example.com/limit", c.Slots[0].QuotaURL)
				assert.Equal(t, models.DefaultRequestURL, c.Slots[0].RequestURL)
			},
		},
		{
			name: "debug permits http",
			mutate: func(c *models.AppConfig) {
				c.Debug = true
				c.Slots[0].QuotaURL = "http://localhost:8080/quota"
			},
			check: func(t *testing.T, c models.AppConfig) {
				assert.Equal(t, "http://localhost:8080/quota", c.Slots[0].QuotaURL)
			},
		},
		{
			name: "pads and renumbers slots",
			mutate: func(c *models.AppConfig) {
				c.Slots = []models.SlotConfig{{Slot: 9, APIKey: "k", Enabled: true}}
			},
			check: func(t *testing.T, c models.AppConfig) {
				require.Len(t, c.Slots, models.MaxSlots)
				assert.Equal(t, 1, c.Slots[0].Slot)
				assert.True(t, c.Slots[0].Enabled)
				assert.Equal(t, 5, c.Slots[4].Slot)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.DefaultAppConfig()
			tt.mutate(&cfg)
			tt.check(t, Validate(cfg, false))
		})
	}
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	cfg := models.DefaultAppConfig()
	cfg.Slots[0].ScheduleTimes = []string{" 08:00 "}

	_ = Validate(cfg, false)

	assert.Equal(t, []string{" 08:00 "}, cfg.Slots[0].ScheduleTimes)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", SettingsFileName)

	cfg := models.DefaultAppConfig()
	cfg.Slots[0].Enabled = true
	cfg.Slots[0].APIKey = "secret"
	cfg.Slots[0].ScheduleTimesEnabled = true
	cfg.Slots[0].ScheduleTimes = []string{"09:15"}

	saved, err := Save(path, cfg, false)
	require.NoError(t, err)
	assert.True(t, saved.Slots[0].Enabled)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestLoadRewritesLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)
	legacy := `{"config_version": 2, "theme": "dark", "slots": [{"slot": 1, "wake_interval_minutes": 15}]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	_, err := Load(path, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, models.CurrentConfigVersion, doc["config_version"])
	assert.NotContains(t, string(data), "wake_interval_minutes")
	assert.Contains(t, string(data), `"schedule_interval_minutes": 15`)
}

func TestValidScheduleTime(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"00:00", true},
		{"23:59", true},
		{"24:00", false},
		{"12:60", false},
		{"1200", false},
		{"ab:cd", false},
		{"12-30", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidScheduleTime(tt.in))
		})
	}
}

func defaultSettings() models.AppConfig {
	return models.DefaultAppConfig()
}

func TestLoadLeavesCurrentFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), SettingsFileName)
	_, err := Save(path, models.DefaultAppConfig(), false)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err = Load(path, false)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "unchanged settings must not be rewritten")
}
