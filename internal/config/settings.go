package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/models"
)

// Clamp bounds applied by Validate.
const (
	minMinutes     = 1
	maxMinutes     = 1440
	maxErrorsBound = 1000
	maxLogDays     = 365
	maxNameLength  = 32
)

// legacySlotKeys maps v2 slot keys to their v3 names.
var legacySlotKeys = [][2]string{
	{"wake_interval_enabled", "schedule_interval_enabled"},
	{"wake_times_enabled", "schedule_times_enabled"},
	{"wake_after_reset_enabled", "schedule_after_reset_enabled"},
	{"wake_interval_minutes", "schedule_interval_minutes"},
	{"wake_times", "schedule_times"},
	{"wake_after_reset_minutes", "schedule_after_reset_minutes"},
}

// Load reads, migrates and validates the settings file at path.
// A missing file yields the defaults. The file is rewritten with the current schema.
func Load(path string, allowHTTP bool) (models.AppConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no settings file, using defaults", "path", path)
		return Validate(models.DefaultAppConfig(), allowHTTP), nil
	}
	if err != nil {
		return models.AppConfig{}, fmt.Errorf("failed to read settings: %w", err)
	}

	cfg, err := Migrate(data)
	if err != nil {
		return models.AppConfig{}, err
	}
	cfg = Validate(cfg, allowHTTP)

	// Rewrite only when migration or validation changed the document, so the
	// settings watcher does not see its own writes.
	if encoded, err := encode(cfg); err == nil && !bytes.Equal(encoded, data) {
		if err := write(path, cfg); err != nil {
			logger.Warn("failed to persist migrated settings", "path", path, "error", err)
		}
	}

	return cfg, nil
}

// Save validates cfg and writes it atomically to path.
func Save(path string, cfg models.AppConfig, allowHTTP bool) (models.AppConfig, error) {
	validated := Validate(cfg, allowHTTP)
	if err := write(path, validated); err != nil {
		return models.AppConfig{}, err
	}
	logger.Info("settings saved", "path", path)
	return validated, nil
}

func write(path string, cfg models.AppConfig) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := encode(cfg)
	if err != nil {
		return err
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func encode(cfg models.AppConfig) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return data, nil
}

// Migrate decodes a settings document of any known version into the current schema.
func Migrate(data []byte) (models.AppConfig, error) {
	if !gjson.ValidBytes(data) {
		return models.AppConfig{}, errors.New("invalid settings JSON")
	}

	raw := string(data)
	from := gjson.Get(raw, "config_version").Int()

	if from < models.CurrentConfigVersion {
		var err error
		raw, err = renameLegacySlotKeys(raw)
		if err != nil {
			return models.AppConfig{}, err
		}
		logger.Info("migrating settings", "from", from, "to", models.CurrentConfigVersion)
	}

	cfg := models.DefaultAppConfig()
	cfg.Slots = nil
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return models.AppConfig{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	cfg.ConfigVersion = models.CurrentConfigVersion

	return cfg, nil
}

func renameLegacySlotKeys(raw string) (string, error) {
	count := int(gjson.Get(raw, "slots.#").Int())
	for i := range count {
		prefix := "slots." + strconv.Itoa(i) + "."
		for _, pair := range legacySlotKeys {
			old := gjson.Get(raw, prefix+pair[0])
			if !old.Exists() {
				continue
			}

			var err error
			if !gjson.Get(raw, prefix+pair[1]).Exists() {
				raw, err = sjson.SetRaw(raw, prefix+pair[1], old.Raw)
				if err != nil {
					return "", fmt.Errorf("failed to migrate %s: %w", pair[0], err)
				}
			}
			raw, err = sjson.Delete(raw, prefix+pair[0])
			if err != nil {
				return "", fmt.Errorf("failed to migrate %s: %w", pair[0], err)
			}
		}
		for _, dropped := range []string{"wake_enabled", "wake_mode"} {
			raw, _ = sjson.Delete(raw, prefix+dropped)
		}
	}
	return raw, nil
}

// ValidURL reports whether url is usable: https always, http only when allowHTTP.
func ValidURL(url string, allowHTTP bool) bool {
	if strings.HasPrefix(url, "https://") {
		return true
	}
	return allowHTTP && strings.HasPrefix(url, "http://")
}

// Validate clamps, trims and sanitizes every field so the engine can trust the result.
func Validate(cfg models.AppConfig, allowHTTP bool) models.AppConfig {
	cfg = cfg.Clone()
	allowHTTP = allowHTTP || cfg.Debug

	cfg.GlobalQuotaURL = strings.TrimSpace(cfg.GlobalQuotaURL)
	if !ValidURL(cfg.GlobalQuotaURL, allowHTTP) {
		logger.Warn("invalid global quota url, resetting to default", "url", cfg.GlobalQuotaURL)
		cfg.GlobalQuotaURL = models.DefaultQuotaURL
	}
	cfg.GlobalRequestURL = strings.TrimSpace(cfg.GlobalRequestURL)
	if !ValidURL(cfg.GlobalRequestURL, allowHTTP) {
		logger.Warn("invalid global request url, resetting to default", "url", cfg.GlobalRequestURL)
		cfg.GlobalRequestURL = models.DefaultRequestURL
	}

	cfg.LogDirectory = strings.TrimSpace(cfg.LogDirectory)
	cfg.MaxLogDays = clamp(cfg.MaxLogDays, 1, maxLogDays)
	cfg.WakeQuotaRetryWindowMinutes = clamp(cfg.WakeQuotaRetryWindowMinutes, minMinutes, maxMinutes)
	cfg.MaxConsecutiveErrors = clamp(cfg.MaxConsecutiveErrors, 1, maxErrorsBound)
	cfg.QuotaPollBackoffCapMinutes = clamp(cfg.QuotaPollBackoffCapMinutes, minMinutes, maxMinutes)

	if len(cfg.Slots) > models.MaxSlots {
		logger.Warn("truncating slots", "count", len(cfg.Slots), "max", models.MaxSlots)
		cfg.Slots = cfg.Slots[:models.MaxSlots]
	}
	for len(cfg.Slots) < models.MaxSlots {
		cfg.Slots = append(cfg.Slots, models.DefaultSlot(len(cfg.Slots)+1))
	}

	for i := range cfg.Slots {
		validateSlot(&cfg.Slots[i], i+1, cfg, allowHTTP)
	}

	cfg.ConfigVersion = models.CurrentConfigVersion
	return cfg
}

func validateSlot(slot *models.SlotConfig, number int, cfg models.AppConfig, allowHTTP bool) {
	slot.Slot = number

	name := []rune(strings.TrimSpace(slot.Name))
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	slot.Name = string(name)
	slot.APIKey = strings.TrimSpace(slot.APIKey)

	if !ValidURL(slot.QuotaURL, allowHTTP) {
		if strings.TrimSpace(slot.QuotaURL) != "" {
			logger.Warn("invalid quota url, resetting to default", "slot", number, "url", slot.QuotaURL)
		}
		slot.QuotaURL = cfg.GlobalQuotaURL
	}
	if !ValidURL(slot.RequestURL, allowHTTP) {
		if strings.TrimSpace(slot.RequestURL) != "" {
			logger.Warn("invalid request url, resetting to default", "slot", number, "url", slot.RequestURL)
		}
		slot.RequestURL = cfg.GlobalRequestURL
	}

	slot.PollIntervalMinutes = clamp(slot.PollIntervalMinutes, minMinutes, maxMinutes)
	slot.ScheduleIntervalMinutes = clamp(slot.ScheduleIntervalMinutes, minMinutes, maxMinutes)
	slot.ScheduleAfterResetMinutes = clamp(slot.ScheduleAfterResetMinutes, minMinutes, maxMinutes)

	if len(slot.ScheduleTimes) > models.MaxScheduleTimes {
		slot.ScheduleTimes = slot.ScheduleTimes[:models.MaxScheduleTimes]
	}
	times := make([]string, 0, len(slot.ScheduleTimes))
	for _, v := range slot.ScheduleTimes {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !ValidScheduleTime(v) {
			logger.Warn("dropping invalid schedule time", "slot", number, "value", v)
			continue
		}
		times = append(times, v)
	}
	slot.ScheduleTimes = times

	if slot.APIKey == "" && slot.Enabled {
		logger.Warn("no api key, force-disabling slot", "slot", number)
		slot.Enabled = false
	}
}

// ValidScheduleTime reports whether v is a 24-hour HH:MM value.
func ValidScheduleTime(v string) bool {
	if len(v) != 5 || v[2] != ':' {
		return false
	}
	h, err := strconv.Atoi(v[:2])
	if err != nil || h < 0 || h > 23 {
		return false
	}
	m, err := strconv.Atoi(v[3:])
	if err != nil || m < 0 || m > 59 {
		return false
	}
	return true
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
