// Package credentials resolves API key references stored in the OS keyring.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/j-veylop/glm-tray/internal/logger"
	"github.com/j-veylop/glm-tray/internal/models"
)

// Service is the keyring service name entries are stored under.
const Service = "glm-tray"

// RefPrefix marks an api_key value as a keyring reference.
const RefPrefix = "keyring:"

// IsRef reports whether key refers to a keyring entry.
func IsRef(key string) bool {
	return strings.HasPrefix(strings.TrimSpace(key), RefPrefix)
}

// Resolve returns the secret behind a keyring reference, or key itself otherwise.
func Resolve(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !IsRef(key) {
		return key, nil
	}

	user := strings.TrimSpace(strings.TrimPrefix(key, RefPrefix))
	if user == "" {
		return "", errors.New("empty keyring reference")
	}

	secret, err := keyring.Get(Service, user)
	if err != nil {
		return "", fmt.Errorf("failed to read keyring entry %q: %w", user, err)
	}
	return strings.TrimSpace(secret), nil
}

// Store saves secret under user and returns the reference to put in the settings file.
func Store(user, secret string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", errors.New("keyring user is required")
	}
	if err := keyring.Set(Service, user, strings.TrimSpace(secret)); err != nil {
		return "", fmt.Errorf("failed to write keyring entry %q: %w", user, err)
	}
	return RefPrefix + user, nil
}

// ResolveSlots returns a copy of cfg with keyring references replaced by their secrets.
// A reference that cannot be resolved leaves the key empty, which makes the slot inactive.
func ResolveSlots(cfg models.AppConfig) models.AppConfig {
	resolved := cfg.Clone()
	for i := range resolved.Slots {
		slot := &resolved.Slots[i]
		if !IsRef(slot.APIKey) {
			continue
		}
		secret, err := Resolve(slot.APIKey)
		if err != nil {
			logger.Warn("api key unavailable", "slot", slot.Slot, "error", err)
			slot.APIKey = ""
			continue
		}
		slot.APIKey = secret
	}
	return resolved
}
