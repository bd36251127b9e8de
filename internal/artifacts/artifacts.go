// Package artifacts copies the build products into the output directory and
// writes the install README and a checksummed manifest alongside them.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ttlkernel/ttlkernel/internal/errors"
	"github.com/ttlkernel/ttlkernel/internal/logfields"
)

const readmeName = "README.txt"
const manifestName = "manifest.yaml"

const readmeText = `ttlkernel build output
======================

This directory contains a Raspberry Pi 4 Android kernel built with the
netfilter TTL/HL mangling options enabled, plus the matching device-tree
blobs.

Installing:

 1. Back up the current kernel and .dtb files from the device's boot
    partition.
 2. Copy the kernel image from this directory over the existing kernel on
    the boot partition (keep the original file name the bootloader expects,
    e.g. kernel8.img for 64-bit Pi 4 images).
 3. Copy the bcm2711-rpi-4*.dtb files over the existing ones.
 4. Reboot the device.

After boot, TTL rewriting can be enabled from a root shell:

    iptables -t mangle -A POSTROUTING -j TTL --ttl-set 64

See manifest.yaml for checksums and the exact source commit this build
came from.
`

// FileEntry describes one collected artifact.
type FileEntry struct {
	Name   string `yaml:"name"`
	SHA256 string `yaml:"sha256"`
	Size   int64  `yaml:"size"`
}

// Manifest records what a build produced and from which source state.
type Manifest struct {
	BuildID      string      `yaml:"build_id"`
	SourceCommit string      `yaml:"source_commit"`
	CreatedAt    time.Time   `yaml:"created_at"`
	Files        []FileEntry `yaml:"files"`
	FlagsEnabled []string    `yaml:"flags_enabled"`
	Warnings     []string    `yaml:"warnings,omitempty"`
}

// Params carries everything the collector needs from earlier stages.
type Params struct {
	BuildID      string
	SourceCommit string
	ImagePath    string
	DTBDir       string
	DTBPattern   string
	FlagsEnabled []string
	Warnings     []string
}

// Collector writes build products to the output directory.
type Collector struct {
	OutputDir string
	Clean     bool
}

// NewCollector creates a collector for the given output directory.
func NewCollector(outputDir string, clean bool) *Collector {
	return &Collector{OutputDir: outputDir, Clean: clean}
}

// Collect copies the kernel image and matching device-tree blobs into the
// output directory and writes the README and manifest. A build with no
// matching DTBs is incomplete and fails here.
func (c *Collector) Collect(p Params) (*Manifest, error) {
	if c.Clean {
		if err := os.RemoveAll(c.OutputDir); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryArtifacts, apperrors.SeverityFatal,
				"failed to clean output directory")
		}
	}
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryArtifacts, apperrors.SeverityFatal,
			"failed to create output directory")
	}

	manifest := &Manifest{
		BuildID:      p.BuildID,
		SourceCommit: p.SourceCommit,
		CreatedAt:    time.Now().UTC(),
		FlagsEnabled: p.FlagsEnabled,
		Warnings:     p.Warnings,
	}

	entry, err := c.copyArtifact(p.ImagePath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryArtifacts, apperrors.SeverityFatal,
			"failed to collect kernel image")
	}
	manifest.Files = append(manifest.Files, entry)

	dtbs, err := filepath.Glob(filepath.Join(p.DTBDir, p.DTBPattern))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryArtifacts, apperrors.SeverityFatal,
			"bad device-tree blob pattern")
	}
	if len(dtbs) == 0 {
		return nil, apperrors.New(apperrors.CategoryArtifacts, apperrors.SeverityFatal,
			fmt.Sprintf("no device-tree blobs matching %s in %s", p.DTBPattern, p.DTBDir))
	}
	for _, dtb := range dtbs {
		entry, err := c.copyArtifact(dtb)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryArtifacts, apperrors.SeverityFatal,
				"failed to collect device-tree blob")
		}
		manifest.Files = append(manifest.Files, entry)
	}

	if err := os.WriteFile(filepath.Join(c.OutputDir, readmeName), []byte(readmeText), 0o644); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryArtifacts, apperrors.SeverityFatal,
			"failed to write README")
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryArtifacts, apperrors.SeverityFatal,
			"failed to marshal manifest")
	}
	if err := os.WriteFile(filepath.Join(c.OutputDir, manifestName), data, 0o644); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryArtifacts, apperrors.SeverityFatal,
			"failed to write manifest")
	}

	slog.Info("Artifacts collected",
		logfields.Path(c.OutputDir),
		slog.Int("files", len(manifest.Files)))

	return manifest, nil
}

// copyArtifact copies one file into the output directory and returns its
// manifest entry.
func (c *Collector) copyArtifact(src string) (FileEntry, error) {
	name := filepath.Base(src)
	dst := filepath.Join(c.OutputDir, name)

	in, err := os.Open(src)
	if err != nil {
		return FileEntry{}, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return FileEntry{}, err
	}
	defer out.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, hasher), in)
	if err != nil {
		return FileEntry{}, err
	}

	st, err := in.Stat()
	if err != nil {
		return FileEntry{}, err
	}
	if err := out.Chmod(st.Mode()); err != nil {
		return FileEntry{}, err
	}
	if err := out.Close(); err != nil {
		return FileEntry{}, err
	}

	slog.Debug("Artifact copied", logfields.Artifact(name))

	return FileEntry{
		Name:   name,
		SHA256: hex.EncodeToString(hasher.Sum(nil)),
		Size:   size,
	}, nil
}
