package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/ttlkernel/ttlkernel/internal/config"
	"github.com/ttlkernel/ttlkernel/internal/history"
	"github.com/ttlkernel/ttlkernel/internal/logfields"
	"github.com/ttlkernel/ttlkernel/internal/metrics"
	"github.com/ttlkernel/ttlkernel/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Fresh bool `help:"Re-clone the checkout before the first build"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if addr := cfg.Watch.MetricsListen; addr != "" {
		pr := metrics.NewPrometheusRecorder()
		recorder = pr
		go func() {
			if err := pr.Serve(ctx, addr); err != nil {
				slog.Error("Metrics listener failed", logfields.Error(err))
			}
		}()
	}

	// Seed the commit comparison so a restart doesn't rebuild what the last
	// run already produced.
	var lastBuilt string
	if cfg.History.Path != "" {
		if store, err := history.NewStore(cfg.History.Path); err == nil {
			lastBuilt, _ = store.LastSuccessCommit(ctx)
			_ = store.Close()
		}
	}

	fresh := w.Fresh
	var runner *watch.Runner
	runner = watch.NewRunner(cfg, lastBuilt, func(ctx context.Context, reason string) error {
		st, err := RunPipeline(ctx, cfg, root.Workspace, fresh, recorder)
		fresh = false // only the first build re-clones
		if err != nil {
			return err
		}
		runner.MarkBuilt(st.SourceCommit)
		return nil
	})

	return runner.Run(ctx)
}
