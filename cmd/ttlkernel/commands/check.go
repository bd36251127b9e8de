package commands

import (
	"fmt"

	"github.com/ttlkernel/ttlkernel/internal/config"
	"github.com/ttlkernel/ttlkernel/internal/toolchain"
)

// CheckCmd implements the 'check' command: the build's preflight stage on its
// own, so the host can be fixed up before a long build.
type CheckCmd struct{}

func (c *CheckCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := toolchain.NewChecker().Check(cfg); err != nil {
		return err
	}

	fmt.Println("Preflight passed")
	fmt.Printf("  kernel config: %s\n", cfg.Kernel.ConfigFile)
	for _, tool := range toolchain.RequiredTools(cfg.Kernel.CrossCompile) {
		fmt.Printf("  %s: found\n", tool)
	}
	return nil
}
