package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gobufr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "json", cfg.Output.Format)
	require.Equal(t, 4, cfg.Encode.Edition)
	require.False(t, cfg.SkipErrors)
}

func TestLoadWithoutEnv(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("GOBUFR_TEST_ROOT", "/srv/wmo")
	path := writeConfig(t, `
tables:
  dir: ${GOBUFR_TEST_ROOT}/tables
output:
  format: cbor
  zstd: true
encode:
  edition: 3
  compressed: true
  template: "0.2"
limits:
  max_variables: 5000
skip_errors: true
`)
	t.Setenv(EnvVar, path)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/srv/wmo/tables", cfg.Tables.Dir)
	require.Equal(t, "cbor", cfg.Output.Format)
	require.True(t, cfg.Output.Zstd)
	require.Equal(t, 3, cfg.Encode.Edition)
	require.True(t, cfg.Encode.Compressed)
	require.Equal(t, "0.2", cfg.Encode.Template)
	require.Equal(t, 5000, cfg.Limits.MaxVariables)
	require.Zero(t, cfg.Limits.MaxProgram)
	require.True(t, cfg.SkipErrors)
}

func TestExpandDefault(t *testing.T) {
	path := writeConfig(t, "tables:\n  dir: ${GOBUFR_UNSET_VAR:-/usr/share/gobufr}\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "/usr/share/gobufr", cfg.Tables.Dir)
}

func TestValidate(t *testing.T) {
	for name, content := range map[string]string{
		"format":   "output:\n  format: xml\n",
		"edition":  "encode:\n  edition: 1\n",
		"template": "encode:\n  template: 1.x\n",
		"limits":   "limits:\n  max_program: -1\n",
		"syntax":   "tables: [\n",
	} {
		_, err := LoadFile(writeConfig(t, content))
		require.Error(t, err, name)
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
