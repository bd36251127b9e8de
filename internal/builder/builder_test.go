package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttlkernel/ttlkernel/internal/config"
)

func kernelConfig() config.KernelConfig {
	return config.KernelConfig{
		Arch:         "arm64",
		CrossCompile: "aarch64-linux-gnu-",
		ImageTarget:  "Image",
		Jobs:         4,
	}
}

// installFakeMake puts a make stub on PATH that records args and environment.
func installFakeMake(t *testing.T, exitCode string) (argsFile, envFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	envFile = filepath.Join(dir, "env")

	stub := "#!/bin/sh\n" +
		"echo \"$@\" > " + argsFile + "\n" +
		"echo \"$ARCH $CROSS_COMPILE $KBUILD_BUILD_USER\" > " + envFile + "\n" +
		"exit " + exitCode + "\n"
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "make"), []byte(stub), 0o755))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return argsFile, envFile
}

func TestBuildInvokesMake(t *testing.T) {
	argsFile, envFile := installFakeMake(t, "0")

	b := New(t.TempDir(), kernelConfig())
	require.NoError(t, b.Build(context.Background()))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "Image dtbs -j4", strings.TrimSpace(string(args)))

	env, err := os.ReadFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, "arm64 aarch64-linux-gnu- ttlkernel", strings.TrimSpace(string(env)))
}

func TestBuildPropagatesFailure(t *testing.T) {
	installFakeMake(t, "2")

	b := New(t.TempDir(), kernelConfig())
	err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "make Image dtbs failed")
}

func TestArtifactPaths(t *testing.T) {
	b := New("/src", kernelConfig())
	assert.Equal(t, "/src/arch/arm64/boot/Image", b.ImagePath())
	assert.Equal(t, "/src/arch/arm64/boot/dts/broadcom", b.DTBDir())
	assert.Equal(t, "/src/.config", b.ConfigPath())

	// 32-bit trees keep their blobs directly under dts.
	b32 := New("/src", config.KernelConfig{Arch: "arm", ImageTarget: "zImage"})
	assert.Equal(t, "/src/arch/arm/boot/dts", b32.DTBDir())
}

func TestEnvWithoutCrossCompile(t *testing.T) {
	b := New("/src", config.KernelConfig{Arch: "arm64", ImageTarget: "Image"})
	for _, kv := range b.Env() {
		assert.False(t, strings.HasPrefix(kv, "CROSS_COMPILE="), "unexpected %s", kv)
	}
}
