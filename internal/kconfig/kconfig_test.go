package kconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeTree builds a minimal source tree whose scripts/config stub records
// its arguments, and puts a no-op make on PATH.
func newFakeTree(t *testing.T) (srcDir, argLog string) {
	t.Helper()
	srcDir = t.TempDir()
	argLog = filepath.Join(srcDir, "config-args.log")

	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "scripts"), 0o755))
	stub := "#!/bin/sh\necho \"$@\" >> " + argLog + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "scripts", "config"), []byte(stub), 0o755))

	binDir := t.TempDir()
	makeStub := "#!/bin/sh\necho \"$@\" > " + filepath.Join(srcDir, "make-args.log") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "make"), []byte(makeStub), 0o755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	return srcDir, argLog
}

func TestApplyOverlaysAndFlipsFlags(t *testing.T) {
	srcDir, argLog := newFakeTree(t)

	userConfig := filepath.Join(t.TempDir(), "kernel.config")
	require.NoError(t, os.WriteFile(userConfig, []byte("CONFIG_ARM64=y\n"), 0o644))

	m := NewMutator(srcDir, []string{"ARCH=arm64"})
	require.NoError(t, m.Apply(context.Background(), userConfig, nil))

	// Overlay copied verbatim.
	data, err := os.ReadFile(filepath.Join(srcDir, ".config"))
	require.NoError(t, err)
	assert.Equal(t, "CONFIG_ARM64=y\n", string(data))

	// One scripts/config invocation per flag, in order.
	logData, err := os.ReadFile(argLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	require.Len(t, lines, len(EnableFlags))
	for i, flag := range EnableFlags {
		assert.Equal(t, "--file .config --enable "+flag, lines[i])
	}

	// olddefconfig ran afterwards.
	makeArgs, err := os.ReadFile(filepath.Join(srcDir, "make-args.log"))
	require.NoError(t, err)
	assert.Equal(t, "olddefconfig", strings.TrimSpace(string(makeArgs)))
}

func TestApplyIncludesExtraFlags(t *testing.T) {
	srcDir, argLog := newFakeTree(t)

	userConfig := filepath.Join(t.TempDir(), "kernel.config")
	require.NoError(t, os.WriteFile(userConfig, []byte("CONFIG_ARM64=y\n"), 0o644))

	m := NewMutator(srcDir, nil)
	require.NoError(t, m.Apply(context.Background(), userConfig, []string{"CONFIG_IP6_NF_TARGET_HL"}))

	logData, err := os.ReadFile(argLog)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "--enable CONFIG_IP6_NF_TARGET_HL")
}

func TestApplyMissingUserConfig(t *testing.T) {
	srcDir, _ := newFakeTree(t)

	m := NewMutator(srcDir, nil)
	err := m.Apply(context.Background(), filepath.Join(t.TempDir(), "absent.config"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlay")
}

func TestApplyFailingHelper(t *testing.T) {
	srcDir, _ := newFakeTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "scripts", "config"), []byte("#!/bin/sh\nexit 1\n"), 0o755))

	userConfig := filepath.Join(t.TempDir(), "kernel.config")
	require.NoError(t, os.WriteFile(userConfig, []byte("CONFIG_ARM64=y\n"), 0o644))

	m := NewMutator(srcDir, nil)
	err := m.Apply(context.Background(), userConfig, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scripts/config")
}

func TestVerify(t *testing.T) {
	content := strings.Join([]string{
		"# Automatically generated file; DO NOT EDIT.",
		"CONFIG_NETFILTER_XT_TARGET_HL=y",
		"# CONFIG_IP_NF_TARGET_TTL is not set",
		"CONFIG_IP_NF_MATCH_TTL=m",
		"CONFIG_ARM64=y",
		"",
	}, "\n")
	path := filepath.Join(t.TempDir(), ".config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	missing, err := Verify(path, VerifyFlags)
	require.NoError(t, err)
	assert.Equal(t, []string{FlagIPTargetTTL}, missing)

	// =m is a module, not built-in: not counted as enabled.
	missing, err = Verify(path, []string{FlagIPMatchTTL})
	require.NoError(t, err)
	assert.Equal(t, []string{FlagIPMatchTTL}, missing)

	missing, err = Verify(path, []string{FlagXTTargetHL})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestVerifyMissingFile(t *testing.T) {
	_, err := Verify(filepath.Join(t.TempDir(), "absent"), VerifyFlags)
	require.Error(t, err)
}
