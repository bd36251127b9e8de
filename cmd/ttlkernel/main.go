package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ttlkernel/ttlkernel/cmd/ttlkernel/commands"
	"github.com/ttlkernel/ttlkernel/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("ttlkernel"),
		kong.Description("Build a Raspberry Pi 4 Android kernel with the netfilter TTL/HL mangling options enabled."),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("ttlkernel %s (commit %s, built %s)",
				version.Version, version.GitCommit, version.BuildTime),
		},
	)

	if err := ctx.Run(&commands.Global{}, cli); err != nil {
		fmt.Fprintf(os.Stderr, "ttlkernel: %v\n", err)
		os.Exit(1)
	}
}
