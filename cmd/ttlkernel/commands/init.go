package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ttlkernel/ttlkernel/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for the generated config file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	configPath := root.Config
	if i.Output != "" {
		if err := os.MkdirAll(i.Output, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		configPath = filepath.Join(i.Output, "ttlkernel.yaml")
	}

	fmt.Printf("Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, i.Force); err != nil {
		return err
	}
	fmt.Println("Initialized. Drop your device's kernel config next to it and run 'ttlkernel build'.")
	return nil
}
