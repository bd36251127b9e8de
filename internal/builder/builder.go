// Package builder invokes the kernel tree's own build targets to produce the
// kernel image and device-tree blobs.
package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ttlkernel/ttlkernel/internal/config"
	apperrors "github.com/ttlkernel/ttlkernel/internal/errors"
	"github.com/ttlkernel/ttlkernel/internal/logfields"
)

// Builder runs make against a kernel source tree.
type Builder struct {
	SrcDir string
	Kernel config.KernelConfig
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a builder for the given tree and kernel settings.
func New(srcDir string, kernel config.KernelConfig) *Builder {
	return &Builder{
		SrcDir: srcDir,
		Kernel: kernel,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Env returns the make environment: ARCH, CROSS_COMPILE, and pinned KBUILD
// identity so rebuilds don't differ by host name.
func (b *Builder) Env() []string {
	env := []string{
		"ARCH=" + b.Kernel.Arch,
		"KBUILD_BUILD_USER=ttlkernel",
		"KBUILD_BUILD_HOST=ttlkernel",
	}
	if b.Kernel.CrossCompile != "" {
		env = append(env, "CROSS_COMPILE="+b.Kernel.CrossCompile)
	}
	return env
}

// Build compiles the kernel image and device-tree blobs using all configured
// CPU cores. Output is streamed through as-is; kbuild's progress is the UX.
func (b *Builder) Build(ctx context.Context) error {
	jobs := b.Kernel.JobCount()
	slog.Info("Starting kernel build",
		logfields.Path(b.SrcDir),
		slog.String("target", b.Kernel.ImageTarget),
		slog.Int("jobs", jobs))

	cmd := exec.CommandContext(ctx, "make", b.Kernel.ImageTarget, "dtbs", "-j"+strconv.Itoa(jobs))
	cmd.Dir = b.SrcDir
	cmd.Env = append(os.Environ(), b.Env()...)
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr

	if err := cmd.Run(); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryBuild, apperrors.SeverityFatal,
			fmt.Sprintf("make %s dtbs failed", b.Kernel.ImageTarget))
	}

	return nil
}

// ImagePath returns where the built kernel image lands inside the tree.
func (b *Builder) ImagePath() string {
	return filepath.Join(b.SrcDir, "arch", b.Kernel.Arch, "boot", b.Kernel.ImageTarget)
}

// DTBDir returns the directory holding the built device-tree blobs.
func (b *Builder) DTBDir() string {
	if b.Kernel.Arch == "arm64" {
		return filepath.Join(b.SrcDir, "arch", b.Kernel.Arch, "boot", "dts", "broadcom")
	}
	return filepath.Join(b.SrcDir, "arch", b.Kernel.Arch, "boot", "dts")
}

// ConfigPath returns the tree's .config location.
func (b *Builder) ConfigPath() string {
	return filepath.Join(b.SrcDir, ".config")
}
