package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ttlkernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "output:\n  directory: ./build-out\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSourceURL, cfg.Source.URL)
	assert.Equal(t, DefaultSourceBranch, cfg.Source.Branch)
	assert.Equal(t, DefaultArch, cfg.Kernel.Arch)
	assert.Equal(t, DefaultCrossCompile, cfg.Kernel.CrossCompile)
	assert.Equal(t, DefaultImageTarget, cfg.Kernel.ImageTarget)
	assert.Equal(t, DefaultDTBPattern, cfg.Output.DTBPattern)
	assert.Equal(t, "./build-out", cfg.Output.Directory)
	assert.Equal(t, DefaultPollInterval, cfg.Watch.PollIntervalDuration())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TTL_BRANCH", "lineage-19.1")
	path := writeConfig(t, "source:\n  branch: ${TTL_BRANCH}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lineage-19.1", cfg.Source.Branch)
}

func TestLoadRejectsBadExtraEnable(t *testing.T) {
	path := writeConfig(t, "kernel:\n  extra_enable:\n    - NOT_A_CONFIG_OPTION\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra_enable")
}

func TestLoadRejectsBadSourceURL(t *testing.T) {
	path := writeConfig(t, "source:\n  url: not-a-url\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.url")
}

func TestLoadAcceptsLocalSourcePath(t *testing.T) {
	local := t.TempDir()
	path := writeConfig(t, "source:\n  url: "+local+"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, local, cfg.Source.URL)
}

func TestJobCount(t *testing.T) {
	k := KernelConfig{}
	assert.Equal(t, runtime.NumCPU(), k.JobCount())

	k.Jobs = 4
	assert.Equal(t, 4, k.JobCount())
}

func TestWatchDurationsParse(t *testing.T) {
	path := writeConfig(t, "watch:\n  poll_interval: 90m\n  debounce: 500ms\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Watch.PollIntervalDuration())
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.DebounceDuration())
}

func TestWatchRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "watch:\n  poll_interval: sometimes\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttlkernel.yaml")
	require.NoError(t, Init(path, false))

	// Second init without force refuses to clobber.
	err := Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, Init(path, true))

	// The example file must itself load cleanly.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "kernel.config", cfg.Kernel.ConfigFile)
	assert.True(t, cfg.Output.Clean)
}
