package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# ttlkernel configuration
#
# Builds a Raspberry Pi 4 Android kernel with the netfilter TTL/HL
# mangling options enabled.

source:
  # Kernel source repository and branch to clone or fast-forward.
  url: https://github.com/lineage-rpi/android_kernel_brcm_rpi.git
  branch: lineage-20
  # dir: ./src/kernel

kernel:
  # Your device .config, copied over the tree before the TTL options
  # are flipped on. Pull it from a running device with:
  #   adb shell zcat /proc/config.gz > kernel.config
  config_file: kernel.config
  arch: arm64
  cross_compile: aarch64-linux-gnu-
  image_target: Image
  # jobs: 8            # defaults to all host CPUs
  # extra_enable:      # extra CONFIG_ options to turn on
  #   - CONFIG_IP6_NF_TARGET_HL

output:
  directory: ./out
  dtb_pattern: "bcm2711-rpi-4*.dtb"
  clean: true

# watch:
#   poll_interval: 6h
#   debounce: 2s
#   metrics_listen: ":9809"

# history:
#   path: ttlkernel.db
`

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
