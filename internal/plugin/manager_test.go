package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installManifest writes m into root/dir together with an executable stub.
func installManifest(t *testing.T, root, dir string, m Manifest) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	pluginDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0755))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, ManifestFile), data, 0644))

	if m.Executable != "" {
		script := "#!/bin/sh\necho '{\"success\":true}'\n"
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, m.Executable), []byte(script), 0755))
	}

	return pluginDir
}

func alertManifest(name string) Manifest {
	return Manifest{
		Name:       name,
		Version:    "1.0.0",
		Executable: name,
		Actions:    []string{ActionAlert, ActionClear},
	}
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	m := alertManifest("desktop-alert")
	m.Description = "Shows a desktop notification"
	pluginDir := installManifest(t, tmpDir, "desktop-alert", m)

	manager := NewManager(tmpDir)
	require.NoError(t, manager.Discover())

	plugins := manager.List()
	require.Len(t, plugins, 1)

	p := plugins[0]
	assert.Equal(t, "desktop-alert", p.Manifest.Name)
	assert.Equal(t, "1.0.0", p.Manifest.Version)
	assert.Equal(t, pluginDir, p.Path)
	assert.Equal(t, filepath.Join(pluginDir, "desktop-alert"), p.Executable)
	assert.True(t, p.Supports(ActionAlert))
	assert.True(t, p.Supports(ActionClear))
	assert.False(t, p.Supports("volume-up"))
}

func TestManager_Discover_Sorted(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"plugin-b", "plugin-a"} {
		installManifest(t, tmpDir, name, alertManifest(name))
	}

	manager := NewManager(tmpDir)
	require.NoError(t, manager.Discover())

	plugins := manager.List()
	require.Len(t, plugins, 2)
	assert.Equal(t, "plugin-a", plugins[0].Manifest.Name)
	assert.Equal(t, "plugin-b", plugins[1].Manifest.Name)
}

func TestManager_Discover_Skips(t *testing.T) {
	tmpDir := t.TempDir()

	bad := filepath.Join(tmpDir, "bad-json")
	require.NoError(t, os.MkdirAll(bad, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, ManifestFile), []byte("not valid json"), 0644))

	installManifest(t, tmpDir, "nameless", Manifest{Executable: "x", Actions: []string{ActionAlert}})
	installManifest(t, tmpDir, "no-alert", Manifest{Name: "no-alert", Executable: "x", Actions: []string{ActionClear}})
	installManifest(t, tmpDir, "no-binary", Manifest{Name: "no-binary", Actions: []string{ActionAlert}})

	missing := alertManifest("missing-binary")
	data, err := json.Marshal(missing)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "missing-binary"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "missing-binary", ManifestFile), data, 0644))

	notExec := installManifest(t, tmpDir, "not-exec", alertManifest("not-exec"))
	require.NoError(t, os.Chmod(filepath.Join(notExec, "not-exec"), 0644))

	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "no-manifest"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "stray-file"), []byte("x"), 0644))

	manager := NewManager(tmpDir)
	require.NoError(t, manager.Discover())

	assert.Empty(t, manager.List())
}

func TestManager_Discover_Replaces(t *testing.T) {
	tmpDir := t.TempDir()
	dir := installManifest(t, tmpDir, "gone-later", alertManifest("gone-later"))

	manager := NewManager(tmpDir)
	require.NoError(t, manager.Discover())
	require.Len(t, manager.List(), 1)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, manager.Discover())

	assert.Empty(t, manager.List())
}

func TestManager_Discover_MissingDir(t *testing.T) {
	t.Run("empty dir", func(t *testing.T) {
		manager := NewManager(t.TempDir())
		require.NoError(t, manager.Discover())
		assert.Empty(t, manager.List())
	})

	t.Run("non-existent dir", func(t *testing.T) {
		manager := NewManager(filepath.Join(t.TempDir(), "plugins"))
		require.NoError(t, manager.Discover())
		assert.Empty(t, manager.List())
	})
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	m := alertManifest("my-plugin")
	m.Version = "2.0.0"
	installManifest(t, tmpDir, "my-plugin", m)

	manager := NewManager(tmpDir)
	require.NoError(t, manager.Discover())

	p, err := manager.Get("my-plugin")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", p.Manifest.Version)

	_, err = manager.Get("nonexistent-plugin")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestManifest_Validate(t *testing.T) {
	assert.NoError(t, alertManifest("ok").Validate())

	m := alertManifest("slow")
	m.TimeoutMs = -1
	assert.Error(t, m.Validate())

	assert.Error(t, Manifest{}.Validate())
}
