package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Kernel  KernelConfig  `yaml:"kernel"`
	Output  OutputConfig  `yaml:"output"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
}

// SourceConfig pins the kernel source repository to sync.
type SourceConfig struct {
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
	Dir    string `yaml:"dir,omitempty"` // Local checkout directory, defaults to <workspace>/kernel
}

// KernelConfig describes how the kernel tree is configured and built.
type KernelConfig struct {
	ConfigFile   string   `yaml:"config_file"`            // User-supplied .config overlaid onto the tree
	Arch         string   `yaml:"arch,omitempty"`         // ARCH= value
	CrossCompile string   `yaml:"cross_compile,omitempty"` // CROSS_COMPILE= prefix
	ImageTarget  string   `yaml:"image_target,omitempty"` // Kernel image make target
	Jobs         int      `yaml:"jobs,omitempty"`         // Parallel make jobs, 0 = all host CPUs
	ExtraEnable  []string `yaml:"extra_enable,omitempty"` // Additional options to flip on besides the TTL set
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Directory  string `yaml:"directory"`
	DTBPattern string `yaml:"dtb_pattern,omitempty"` // Glob matched against built device-tree blobs
	Clean      bool   `yaml:"clean"`                 // Clean output directory before collecting
}

// WatchConfig configures the continuous rebuild mode. Durations are
// time.ParseDuration strings ("6h", "500ms").
type WatchConfig struct {
	PollInterval  string `yaml:"poll_interval,omitempty"`  // Upstream HEAD poll interval
	Debounce      string `yaml:"debounce,omitempty"`       // Config-file change debounce
	MetricsListen string `yaml:"metrics_listen,omitempty"` // Prometheus listen address, empty disables
}

// PollIntervalDuration returns the parsed poll interval.
func (w WatchConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(w.PollInterval)
	if err != nil || d <= 0 {
		return DefaultPollInterval
	}
	return d
}

// DebounceDuration returns the parsed config-change debounce window.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		return DefaultDebounce
	}
	return d
}

// HistoryConfig configures the build-record store.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"` // SQLite database path, empty disables recording
}

// JobCount resolves the parallel make job count, defaulting to all host CPUs.
func (k KernelConfig) JobCount() int {
	if k.Jobs > 0 {
		return k.Jobs
	}
	return runtime.NumCPU()
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists; missing files are fine.
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Source.URL == "" {
		c.Source.URL = DefaultSourceURL
	}
	if c.Source.Branch == "" {
		c.Source.Branch = DefaultSourceBranch
	}
	if c.Kernel.ConfigFile == "" {
		c.Kernel.ConfigFile = DefaultConfigFile
	}
	if c.Kernel.Arch == "" {
		c.Kernel.Arch = DefaultArch
	}
	if c.Kernel.CrossCompile == "" {
		c.Kernel.CrossCompile = DefaultCrossCompile
	}
	if c.Kernel.ImageTarget == "" {
		c.Kernel.ImageTarget = DefaultImageTarget
	}
	if c.Output.Directory == "" {
		c.Output.Directory = DefaultOutputDir
	}
	if c.Output.DTBPattern == "" {
		c.Output.DTBPattern = DefaultDTBPattern
	}
}

// Validate checks invariants that would otherwise surface deep inside a stage.
func (c *Config) Validate() error {
	if !strings.Contains(c.Source.URL, "://") && !strings.Contains(c.Source.URL, "@") {
		// Bare paths are fine as long as they point at a local repository.
		if st, err := os.Stat(c.Source.URL); err != nil || !st.IsDir() {
			return fmt.Errorf("source.url %q is neither a git URL nor a local directory", c.Source.URL)
		}
	}
	if c.Kernel.Jobs < 0 {
		return fmt.Errorf("kernel.jobs cannot be negative")
	}
	for _, flag := range c.Kernel.ExtraEnable {
		if !strings.HasPrefix(flag, "CONFIG_") {
			return fmt.Errorf("kernel.extra_enable entry %q is not a CONFIG_ option", flag)
		}
	}
	if c.Watch.PollInterval != "" {
		if _, err := time.ParseDuration(c.Watch.PollInterval); err != nil {
			return fmt.Errorf("watch.poll_interval: %w", err)
		}
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
	}
	return nil
}
