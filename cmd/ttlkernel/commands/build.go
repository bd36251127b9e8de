package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/ttlkernel/ttlkernel/internal/artifacts"
	"github.com/ttlkernel/ttlkernel/internal/builder"
	"github.com/ttlkernel/ttlkernel/internal/config"
	"github.com/ttlkernel/ttlkernel/internal/git"
	"github.com/ttlkernel/ttlkernel/internal/history"
	"github.com/ttlkernel/ttlkernel/internal/kconfig"
	"github.com/ttlkernel/ttlkernel/internal/logfields"
	"github.com/ttlkernel/ttlkernel/internal/metrics"
	"github.com/ttlkernel/ttlkernel/internal/stages"
	"github.com/ttlkernel/ttlkernel/internal/toolchain"
	"github.com/ttlkernel/ttlkernel/internal/workspace"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output string `short:"o" help:"Output directory for the kernel image and DTBs (overrides config)"`
	Fresh  bool   `help:"Remove the existing checkout and re-clone"`
	Clean  bool   `help:"Clean the output directory before collecting"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if b.Output != "" {
		cfg.Output.Directory = b.Output
	}
	if b.Clean {
		cfg.Output.Clean = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := RunPipeline(ctx, cfg, root.Workspace, b.Fresh, metrics.NoopRecorder{})
	if err != nil {
		return err
	}

	fmt.Println("Build complete")
	fmt.Print(st.Report.Summary())
	fmt.Printf("Artifacts written to %s\n", cfg.Output.Directory)
	for _, w := range st.Warnings {
		fmt.Printf("WARNING: %s\n", w)
	}
	return nil
}

// RunPipeline executes the full build pipeline and records the outcome in
// metrics and, when configured, the history store. Watch mode reuses it.
func RunPipeline(ctx context.Context, cfg *config.Config, workDir string, fresh bool, recorder metrics.Recorder) (*stages.State, error) {
	st := stages.NewState(cfg, fresh)

	slog.Info("Starting kernel build pipeline",
		logfields.BuildID(st.BuildID),
		logfields.URL(cfg.Source.URL),
		logfields.Branch(cfg.Source.Branch))

	err := stages.Run(ctx, st, pipeline(workDir))

	for name, d := range st.Report.Durations {
		recorder.RecordStage(string(name), d)
	}

	status := history.StatusSuccess
	switch {
	case err != nil:
		status = history.StatusFailure
	case len(st.Warnings) > 0:
		status = history.StatusWarning
	}
	recorder.RecordBuild(status, st.Report.Total())
	if err == nil {
		recorder.SetLastSuccess(time.Now())
	}

	appendHistory(ctx, cfg, st, status)

	return st, err
}

// pipeline assembles the six build stages.
func pipeline(workDir string) []stages.Stage {
	return []stages.Stage{
		{Name: stages.StagePreflight, Fn: func(ctx context.Context, st *stages.State) error {
			return toolchain.NewChecker().Check(st.Config)
		}},
		{Name: stages.StageSync, Fn: func(ctx context.Context, st *stages.State) error {
			ws := workspace.NewManager(workDir, "")
			if err := ws.Create(); err != nil {
				return err
			}
			path, head, err := git.NewClient(ws.GetPath()).SyncSource(ctx, st.Config.Source, st.Fresh)
			if err != nil {
				return err
			}
			st.SrcDir = path
			st.SourceCommit = head
			return nil
		}},
		{Name: stages.StageConfigure, Fn: func(ctx context.Context, st *stages.State) error {
			b := builder.New(st.SrcDir, st.Config.Kernel)
			m := kconfig.NewMutator(st.SrcDir, b.Env())
			return m.Apply(ctx, st.Config.Kernel.ConfigFile, st.Config.Kernel.ExtraEnable)
		}},
		{Name: stages.StageBuild, Fn: func(ctx context.Context, st *stages.State) error {
			return builder.New(st.SrcDir, st.Config.Kernel).Build(ctx)
		}},
		{Name: stages.StageVerify, Fn: verifyStage},
		{Name: stages.StageCollect, Fn: func(ctx context.Context, st *stages.State) error {
			b := builder.New(st.SrcDir, st.Config.Kernel)
			_, err := artifacts.NewCollector(st.Config.Output.Directory, st.Config.Output.Clean).Collect(artifacts.Params{
				BuildID:      st.BuildID,
				SourceCommit: st.SourceCommit,
				ImagePath:    b.ImagePath(),
				DTBDir:       b.DTBDir(),
				DTBPattern:   st.Config.Output.DTBPattern,
				FlagsEnabled: kconfig.EnableFlags,
				Warnings:     st.Warnings,
			})
			return err
		}},
	}
}

// verifyStage is advisory only: missing flags (or an unreadable .config) are
// logged and recorded as warnings but never fail the build.
func verifyStage(_ context.Context, st *stages.State) error {
	b := builder.New(st.SrcDir, st.Config.Kernel)
	missing, err := kconfig.Verify(b.ConfigPath(), kconfig.VerifyFlags)
	if err != nil {
		slog.Warn("Could not verify final kernel config", logfields.Error(err))
		st.Warn(fmt.Sprintf("could not verify final kernel config: %v", err))
		return nil
	}
	for _, flag := range missing {
		slog.Warn("Required option not enabled in final kernel config", logfields.Flag(flag))
		st.Warn(fmt.Sprintf("%s is not enabled in the final kernel config; TTL rewriting may not work", flag))
	}
	return nil
}

// appendHistory stores the run outcome. History problems are logged, not
// propagated; a finished build should not fail because bookkeeping did.
func appendHistory(ctx context.Context, cfg *config.Config, st *stages.State, status string) {
	if cfg.History.Path == "" {
		return
	}
	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		slog.Warn("Failed to open history store", logfields.Error(err))
		return
	}
	defer store.Close()

	rec := history.Record{
		BuildID:      st.BuildID,
		SourceCommit: st.SourceCommit,
		Branch:       cfg.Source.Branch,
		Image:        cfg.Kernel.ImageTarget,
		Status:       status,
		Warnings:     len(st.Warnings),
		Duration:     st.Report.Total(),
	}
	if err := store.Append(ctx, rec); err != nil {
		slog.Warn("Failed to record build history", logfields.Error(err))
	}
}
