package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Endpoint string            `json:"endpoint"`
	Retries  int               `json:"retries"`
	Headers  map[string]string `json:"headers"`
}

func TestSplitExt(t *testing.T) {
	name, ext := splitExt("hcr.json5")
	require.Equal(t, "hcr", name)
	require.Equal(t, "json5", ext)

	name, ext = splitExt("noext")
	require.Equal(t, "noext", name)
	require.Equal(t, "", ext)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "hcr.json5"), []byte(`{
		// comments are allowed
		endpoint: "https://example.test/",
		retries: 1,
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "hcr.local.json5"), []byte(`{retries: 3}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "hcr.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://example.test/", cfg.Endpoint)
	require.Equal(t, 3, cfg.Retries)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "hcr.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestReadOrDefault(t *testing.T) {
	defaults := testConfig{Endpoint: "https://default.test/", Retries: 1}

	cfg, err := ReadOrDefault(filepath.Join(t.TempDir(), "hcr.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, defaults, cfg)

	dir := t.TempDir()
	err = os.WriteFile(filepath.Join(dir, "hcr.json5"), []byte(`{retries: 4}`), 0600)
	require.NoError(t, err)

	cfg, err = ReadOrDefault(filepath.Join(dir, "hcr.json5"), defaults)
	require.NoError(t, err)
	require.Equal(t, "https://default.test/", cfg.Endpoint)
	require.Equal(t, 4, cfg.Retries)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, filepath.Join("conf", "hcr.local.json5"), localPath(filepath.Join("conf", "hcr.json5")))
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "hcr.local.json5"), []byte(`{endpoint: "https://local.test/"}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "hcr.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://local.test/", cfg.Endpoint)
}
