package testutil

import (
	"testing"

	"github.com/spf13/viper"
)

// ResetConfig resets viper for the duration of a test and again on cleanup.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetConfig resets viper and applies the given key/value pairs.
func SetConfig(t *testing.T, values map[string]any) {
	t.Helper()

	ResetConfig(t)
	for key, value := range values {
		viper.Set(key, value)
	}
}
