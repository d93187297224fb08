// Package models defines data structures and domain types.
package models

import (
	"encoding/json"
	"strings"
)

// MaxSlots is the number of key slots the application manages.
const MaxSlots = 5

// Policy defaults and bounds.
const (
	DefaultMaxConsecutiveErrors        = 10
	DefaultQuotaPollBackoffCapMinutes  = 480
	DefaultWakeQuotaRetryWindowMinutes = 15
	DefaultPollIntervalMinutes         = 30
	DefaultScheduleIntervalMinutes     = 60
	DefaultScheduleAfterResetMinutes   = 1
	DefaultMaxLogDays                  = 7

	// MaxScheduleTimes caps the number of HH:MM entries per slot.
	MaxScheduleTimes = 5

	// CurrentConfigVersion is the settings file schema version written by Save.
	CurrentConfigVersion = 3
)

// Default endpoints for the quota monitor and wake requests.
const (
	DefaultQuotaURL   = "https://api.z.ai/api/monitor/usage/quota/limit"
	DefaultRequestURL = "https://api.z.ai/api/coding/paas/v4/chat/completions"
)

// SlotConfig is the user configuration of a single key slot.
type SlotConfig struct {
	Name                      string   `json:"name"`
	APIKey                    string   `json:"api_key"`
	QuotaURL                  string   `json:"quota_url"`
	RequestURL                string   `json:"request_url,omitempty"`
	ScheduleTimes             []string `json:"schedule_times"`
	Slot                      int      `json:"slot"`
	PollIntervalMinutes       int      `json:"poll_interval_minutes"`
	ScheduleIntervalMinutes   int      `json:"schedule_interval_minutes"`
	ScheduleAfterResetMinutes int      `json:"schedule_after_reset_minutes"`
	Enabled                   bool     `json:"enabled"`
	ScheduleIntervalEnabled   bool     `json:"schedule_interval_enabled"`
	ScheduleTimesEnabled      bool     `json:"schedule_times_enabled"`
	ScheduleAfterResetEnabled bool     `json:"schedule_after_reset_enabled"`
	Logging                   bool     `json:"logging"`
}

// DefaultSlot returns the configuration used for an unconfigured slot.
func DefaultSlot(slot int) SlotConfig {
	return SlotConfig{
		Slot:                      slot,
		QuotaURL:                  DefaultQuotaURL,
		RequestURL:                DefaultRequestURL,
		PollIntervalMinutes:       DefaultPollIntervalMinutes,
		ScheduleIntervalMinutes:   DefaultScheduleIntervalMinutes,
		ScheduleAfterResetMinutes: DefaultScheduleAfterResetMinutes,
		ScheduleTimes:             []string{},
	}
}

// UnmarshalJSON fills fields missing from the document with slot defaults.
func (s *SlotConfig) UnmarshalJSON(data []byte) error {
	type plain SlotConfig
	p := plain(DefaultSlot(0))
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = SlotConfig(p)
	return nil
}

// Active reports whether the slot should have a running scheduler.
func (s SlotConfig) Active() bool {
	return s.Enabled && strings.TrimSpace(s.APIKey) != ""
}

// Label returns the display label of the slot.
func (s SlotConfig) Label() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return SlotLabel(s.Slot)
}

// Clone returns a copy that does not share the schedule times slice.
func (s SlotConfig) Clone() SlotConfig {
	clone := s
	clone.ScheduleTimes = append([]string(nil), s.ScheduleTimes...)
	return clone
}

// Policy holds the engine limits that can change while slots are running.
type Policy struct {
	MaxConsecutiveErrors        int
	QuotaPollBackoffCapMinutes  int
	WakeQuotaRetryWindowMinutes int
}

// DefaultPolicy returns the default engine limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxConsecutiveErrors:        DefaultMaxConsecutiveErrors,
		QuotaPollBackoffCapMinutes:  DefaultQuotaPollBackoffCapMinutes,
		WakeQuotaRetryWindowMinutes: DefaultWakeQuotaRetryWindowMinutes,
	}
}

// AppConfig is the persisted application settings file.
type AppConfig struct {
	Theme                       string       `json:"theme"`
	GlobalQuotaURL              string       `json:"global_quota_url"`
	GlobalRequestURL            string       `json:"global_request_url"`
	LogDirectory                string       `json:"log_directory,omitempty"`
	Slots                       []SlotConfig `json:"slots"`
	ConfigVersion               int          `json:"config_version"`
	MaxLogDays                  int          `json:"max_log_days"`
	MaxConsecutiveErrors        int          `json:"max_consecutive_errors"`
	QuotaPollBackoffCapMinutes  int          `json:"quota_poll_backoff_cap_minutes"`
	WakeQuotaRetryWindowMinutes int          `json:"wake_quota_retry_window_minutes"`
	Debug                       bool         `json:"debug"`
}

// DefaultAppConfig returns the settings used when no settings file exists.
func DefaultAppConfig() AppConfig {
	slots := make([]SlotConfig, MaxSlots)
	for i := range slots {
		slots[i] = DefaultSlot(i + 1)
	}
	return AppConfig{
		Slots:                       slots,
		Theme:                       "dark",
		GlobalQuotaURL:              DefaultQuotaURL,
		GlobalRequestURL:            DefaultRequestURL,
		ConfigVersion:               CurrentConfigVersion,
		MaxLogDays:                  DefaultMaxLogDays,
		MaxConsecutiveErrors:        DefaultMaxConsecutiveErrors,
		QuotaPollBackoffCapMinutes:  DefaultQuotaPollBackoffCapMinutes,
		WakeQuotaRetryWindowMinutes: DefaultWakeQuotaRetryWindowMinutes,
	}
}

// Policy extracts the engine limits from the settings.
func (c AppConfig) Policy() Policy {
	return Policy{
		MaxConsecutiveErrors:        c.MaxConsecutiveErrors,
		QuotaPollBackoffCapMinutes:  c.QuotaPollBackoffCapMinutes,
		WakeQuotaRetryWindowMinutes: c.WakeQuotaRetryWindowMinutes,
	}
}

// Clone returns a deep copy of the settings.
func (c AppConfig) Clone() AppConfig {
	clone := c
	clone.Slots = make([]SlotConfig, len(c.Slots))
	for i, s := range c.Slots {
		clone.Slots[i] = s.Clone()
	}
	return clone
}
