package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlugin_DesktopAlert_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	pluginDir := findPluginDir("desktop-alert")
	if pluginDir == "" {
		t.Skip("desktop-alert plugin not built")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	require.NoError(t, mgr.Discover())

	plug, err := mgr.Get("desktop-alert")
	require.NoError(t, err)
	assert.True(t, plug.Supports(ActionAlert))
	assert.True(t, plug.Supports(ActionClear))

	executor := NewExecutor(5 * time.Second)
	ctx := context.Background()

	t.Run("dry run alert", func(t *testing.T) {
		resp, err := executor.Execute(ctx, plug, &Request{
			Action: ActionAlert,
			Text:   "Stop touching your face.",
			Params: json.RawMessage(`{"dry_run": true}`),
		})
		require.NoError(t, err)
		assert.True(t, resp.Success, resp.Error)
	})

	t.Run("clear", func(t *testing.T) {
		resp, err := executor.Execute(ctx, plug, &Request{Action: ActionClear})
		require.NoError(t, err)
		assert.True(t, resp.Success)
	})

	t.Run("unknown action", func(t *testing.T) {
		resp, err := executor.Execute(ctx, plug, &Request{Action: "volume-up"})
		require.NoError(t, err)
		assert.False(t, resp.Success)
	})
}

// findPluginDir returns the plugin directory when its binary has been built.
func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, "plugin.json")); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir
		}
	}
	return ""
}
