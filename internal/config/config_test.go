package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumtest/stratum/internal/params"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	p, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, params.Default(), p)
}

func TestLoad_OverlaysYAMLOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	contents := `
max_concurrency: 3
warn_threshold: "250ms"
critical_threshold: "2s"
console_output_detail_level: failures
use_child_processes: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o644))

	p, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, p.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, p.WarnThreshold)
	assert.Equal(t, 2*time.Second, p.CriticalThreshold)
	assert.Equal(t, "failures", p.ConsoleOutputDetailLevel)
	assert.True(t, p.UseChildProcesses)
}

func TestLoad_MalformedYAMLIsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("not: valid: yaml: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestApplyOverlay_IgnoresInvalidDurationLiteral(t *testing.T) {
	p := params.Default()
	want := p.WarnThreshold

	applyOverlay(&p, File{WarnThreshold: "not-a-duration"})
	assert.Equal(t, want, p.WarnThreshold)
}

func TestGetDefaultConfigPathOrPanic_EndsInConfigDir(t *testing.T) {
	path := GetDefaultConfigPathOrPanic()
	assert.Contains(t, path, filepath.Join(".config", "stratum"))
}
