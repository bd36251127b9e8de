package config

import "time"

// Pinned source tree and build defaults for the Raspberry Pi 4 Android kernel.
const (
	DefaultSourceURL    = "https://github.com/lineage-rpi/android_kernel_brcm_rpi.git"
	DefaultSourceBranch = "lineage-20"

	DefaultConfigFile   = "kernel.config"
	DefaultArch         = "arm64"
	DefaultCrossCompile = "aarch64-linux-gnu-"
	DefaultImageTarget  = "Image"

	DefaultOutputDir  = "./out"
	DefaultDTBPattern = "bcm2711-rpi-4*.dtb"

	DefaultPollInterval = 6 * time.Hour
	DefaultDebounce     = 2 * time.Second
)
