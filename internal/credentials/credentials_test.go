package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/j-veylop/glm-tray/internal/models"
)

func TestResolve(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(Service, "work", " sk-work "))

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain key", key: " sk-plain ", want: "sk-plain"},
		{name: "reference", key: "keyring:work", want: "sk-work"},
		{name: "missing entry", key: "keyring:nobody", wantErr: true},
		{name: "empty reference", key: "keyring: ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore(t *testing.T) {
	keyring.MockInit()

	ref, err := Store("home", "sk-home")
	require.NoError(t, err)
	assert.Equal(t, "keyring:home", ref)

	secret, err := Resolve(ref)
	require.NoError(t, err)
	assert.Equal(t, "sk-home", secret)

	_, err = Store(" ", "x")
	assert.Error(t, err)
}

func TestResolveSlots(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(Service, "a", "secret-a"))

	cfg := models.DefaultAppConfig()
	cfg.Slots[0].Enabled = true
	cfg.Slots[0].APIKey = "keyring:a"
	cfg.Slots[1].Enabled = true
	cfg.Slots[1].APIKey = "keyring:missing"
	cfg.Slots[2].Enabled = true
	cfg.Slots[2].APIKey = "inline"

	resolved := ResolveSlots(cfg)

	assert.Equal(t, "secret-a", resolved.Slots[0].APIKey)
	assert.Empty(t, resolved.Slots[1].APIKey)
	assert.False(t, resolved.Slots[1].Active())
	assert.Equal(t, "inline", resolved.Slots[2].APIKey)
	assert.Equal(t, "keyring:a", cfg.Slots[0].APIKey, "input must not change")
}
