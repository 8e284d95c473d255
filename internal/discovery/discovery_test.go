package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFile), []byte(content), 0o644))
}

func TestDiscoverDetectsReactAndNpm(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"dependencies":{"react":"18.0.0"},"scripts":{"build":"vite build"}}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package-lock.json"), []byte("{}"), 0o644))

	proj, err := Discover(dir)
	require.NoError(t, err)
	require.True(t, proj.ManifestFound)
	require.Equal(t, FrameworkReact, proj.Framework)
	require.Equal(t, PackageManagerNPM, proj.PackageManager)
	require.False(t, proj.UnsupportedFramework)
	require.Equal(t, "vite build", proj.Scripts["build"])
}

func TestDiscoverPrefersNextOverReact(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"dependencies":{"react":"18.0.0","next":"14.0.0"}}`)

	proj, err := Discover(dir)
	require.NoError(t, err)
	require.Equal(t, FrameworkNext, proj.Framework)
}

func TestDiscoverDetectsReactRouter(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"dependencies":{"react":"18.0.0","react-router-dom":"6.0.0"}}`)

	proj, err := Discover(dir)
	require.NoError(t, err)
	require.Equal(t, RouterReactRouter, proj.Router)
}

func TestDiscoverWalksUpToFindManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `{"dependencies":{"vue":"3.0.0"}}`)
	nested := filepath.Join(root, "src", "components")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	proj, err := Discover(nested)
	require.NoError(t, err)
	require.True(t, proj.ManifestFound)
	require.Equal(t, FrameworkVue, proj.Framework)
}

func TestDiscoverRecordsUnsupportedFrameworkWithoutFailing(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"dependencies":{"backbone":"1.0.0"}}`)

	proj, err := Discover(dir)
	require.NoError(t, err)
	require.True(t, proj.UnsupportedFramework)
	require.Contains(t, proj.Warnings, "unsupported_framework")
}

func TestDiscoverMissingManifestIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	proj, err := Discover(dir)
	require.NoError(t, err)
	require.False(t, proj.ManifestFound)
	require.Contains(t, proj.Warnings, "manifest_not_found")
}
