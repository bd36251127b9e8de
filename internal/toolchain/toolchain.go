// Package toolchain verifies the host has everything a kernel build needs
// before any stage runs: the user-supplied .config and the build tools on PATH.
package toolchain

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ttlkernel/ttlkernel/internal/config"
	apperrors "github.com/ttlkernel/ttlkernel/internal/errors"
	"github.com/ttlkernel/ttlkernel/internal/logfields"
)

// Checker performs host preflight checks.
type Checker struct {
	lookPath func(file string) (string, error)
	stat     func(name string) (os.FileInfo, error)
}

// NewChecker creates a checker backed by the real host environment.
func NewChecker() *Checker {
	return &Checker{
		lookPath: exec.LookPath,
		stat:     os.Stat,
	}
}

// RequiredTools returns the build tools the kernel tree needs on PATH.
// The cross compiler is probed as <prefix>gcc.
func RequiredTools(crossCompile string) []string {
	tools := []string{"git", "make", "flex", "bison", "bc", "dtc"}
	if crossCompile != "" {
		tools = append(tools, crossCompile+"gcc")
	}
	return tools
}

// Check verifies the config file exists and every required tool resolves on
// PATH. All problems are collected into a single error so the user fixes the
// host in one pass.
func (c *Checker) Check(cfg *config.Config) error {
	var problems []string

	if _, err := c.stat(cfg.Kernel.ConfigFile); err != nil {
		if os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("kernel config file %s does not exist", cfg.Kernel.ConfigFile))
		} else {
			problems = append(problems, fmt.Sprintf("kernel config file %s: %v", cfg.Kernel.ConfigFile, err))
		}
	}

	for _, tool := range RequiredTools(cfg.Kernel.CrossCompile) {
		if _, err := c.lookPath(tool); err != nil {
			problems = append(problems, fmt.Sprintf("%s not found on PATH", tool))
			continue
		}
		slog.Debug("Tool found", logfields.Tool(tool))
	}

	if len(problems) > 0 {
		return apperrors.New(apperrors.CategoryToolchain, apperrors.SeverityFatal,
			"preflight failed: "+strings.Join(problems, "; "))
	}

	return nil
}
