// Package kconfig overlays the user-supplied kernel .config onto the source
// tree, flips the TTL/HL mangling options on via the tree's own scripts/config
// helper, and normalizes dependent options with make olddefconfig.
package kconfig

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "github.com/ttlkernel/ttlkernel/internal/errors"
	"github.com/ttlkernel/ttlkernel/internal/logfields"
)

// The netfilter options that let the device rewrite outgoing TTL/HL values.
// Treated as opaque literals; scripts/config owns their semantics.
const (
	FlagXTTargetHL  = "CONFIG_NETFILTER_XT_TARGET_HL"
	FlagXTMatchHL   = "CONFIG_NETFILTER_XT_MATCH_HL"
	FlagIPTargetTTL = "CONFIG_IP_NF_TARGET_TTL"
	FlagIPMatchTTL  = "CONFIG_IP_NF_MATCH_TTL"
)

// EnableFlags is the full set flipped on during the configure stage.
var EnableFlags = []string{FlagXTTargetHL, FlagXTMatchHL, FlagIPTargetTTL, FlagIPMatchTTL}

// VerifyFlags is the subset the advisory post-build check requires to be
// enabled; TTL rewriting needs the two target modules.
var VerifyFlags = []string{FlagXTTargetHL, FlagIPTargetTTL}

// Mutator edits the .config of a kernel source tree.
type Mutator struct {
	SrcDir string
	Env    []string // extra environment (ARCH=, CROSS_COMPILE=) for make
	Stdout io.Writer
	Stderr io.Writer
}

// NewMutator creates a mutator for the given source tree.
func NewMutator(srcDir string, env []string) *Mutator {
	return &Mutator{
		SrcDir: srcDir,
		Env:    env,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Apply overlays userConfig onto the tree, enables the TTL flags plus any
// extras, and runs make olddefconfig to resolve dependent options.
func (m *Mutator) Apply(ctx context.Context, userConfig string, extra []string) error {
	dest := filepath.Join(m.SrcDir, ".config")
	if err := copyFile(dest, userConfig); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryKconfig, apperrors.SeverityFatal,
			"failed to overlay kernel config")
	}
	slog.Info("Kernel config overlaid", logfields.Path(userConfig))

	flags := append(append([]string{}, EnableFlags...), extra...)
	for _, flag := range flags {
		if err := m.enable(ctx, flag); err != nil {
			return err
		}
		slog.Info("Config option enabled", logfields.Flag(flag))
	}

	if err := m.olddefconfig(ctx); err != nil {
		return err
	}

	return nil
}

// enable runs the tree's own config-editing helper for one option.
func (m *Mutator) enable(ctx context.Context, flag string) error {
	cmd := exec.CommandContext(ctx, "./scripts/config", "--file", ".config", "--enable", flag)
	cmd.Dir = m.SrcDir
	cmd.Stdout = m.Stdout
	cmd.Stderr = m.Stderr
	if err := cmd.Run(); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryKconfig, apperrors.SeverityFatal,
			fmt.Sprintf("scripts/config --enable %s failed", flag))
	}
	return nil
}

// olddefconfig lets the tree resolve everything the flipped options depend on.
func (m *Mutator) olddefconfig(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "make", "olddefconfig")
	cmd.Dir = m.SrcDir
	cmd.Env = append(os.Environ(), m.Env...)
	cmd.Stdout = m.Stdout
	cmd.Stderr = m.Stderr
	if err := cmd.Run(); err != nil {
		return apperrors.Wrap(err, apperrors.CategoryKconfig, apperrors.SeverityFatal,
			"make olddefconfig failed")
	}
	return nil
}

// Verify parses a .config and returns the flags from want that did not end
// up enabled (=y). Used by the advisory post-build check.
func Verify(configPath string, want []string) ([]string, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", configPath, err)
	}
	defer f.Close()

	enabled := make(map[string]bool, len(want))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		if value == "y" {
			enabled[key] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", configPath, err)
	}

	var missing []string
	for _, flag := range want {
		if !enabled[flag] {
			missing = append(missing, flag)
		}
	}
	return missing, nil
}

// copyFile copies src to dst, preserving the source file mode.
func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	st, err := in.Stat()
	if err != nil {
		return err
	}
	if err := out.Chmod(st.Mode()); err != nil {
		return err
	}
	return out.Close()
}
