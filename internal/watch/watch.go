// Package watch keeps the kernel current: it polls the upstream branch for
// new commits on a schedule and rebuilds when the user's config file changes.
// Builds run strictly one at a time.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/ttlkernel/ttlkernel/internal/config"
	"github.com/ttlkernel/ttlkernel/internal/git"
	"github.com/ttlkernel/ttlkernel/internal/logfields"
)

// BuildFunc runs one full build. reason says what triggered it.
type BuildFunc func(ctx context.Context, reason string) error

// Runner drives watch mode.
type Runner struct {
	cfg   *config.Config
	build BuildFunc

	// remoteHead is swappable in tests.
	remoteHead func(url, branch string) (string, error)

	mu         sync.Mutex
	lastBuilt  string
	triggerCh  chan string
	debounce   time.Duration
	debounceMu sync.Mutex
	timer      *time.Timer
}

// NewRunner creates a watch runner. lastBuilt seeds the commit comparison so
// a restart does not rebuild a commit that already succeeded.
func NewRunner(cfg *config.Config, lastBuilt string, build BuildFunc) *Runner {
	return &Runner{
		cfg:        cfg,
		build:      build,
		remoteHead: git.NewClient("").RemoteHead,
		lastBuilt:  lastBuilt,
		triggerCh:  make(chan string, 1),
		debounce:   cfg.Watch.DebounceDuration(),
	}
}

// Run blocks until ctx is canceled, building serially whenever the upstream
// branch advances or the kernel config file changes.
func (r *Runner) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.cfg.Watch.PollIntervalDuration()),
		gocron.NewTask(r.pollOnce),
		gocron.WithName("poll-upstream"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule upstream poll: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	absConfig, err := filepath.Abs(r.cfg.Kernel.ConfigFile)
	if err != nil {
		return fmt.Errorf("resolve kernel config path: %w", err)
	}
	// Watch the containing directory; editors replace files on save.
	if err := watcher.Add(filepath.Dir(absConfig)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(absConfig), err)
	}

	slog.Info("Watch mode started",
		logfields.URL(r.cfg.Source.URL),
		logfields.Branch(r.cfg.Source.Branch),
		logfields.Path(absConfig),
		slog.String("poll_interval", r.cfg.Watch.PollInterval))

	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	go r.watchLoop(ctx, watcher, filepath.Base(absConfig))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watch mode stopping")
			return nil
		case reason := <-r.triggerCh:
			slog.Info("Build triggered", slog.String("reason", reason))
			if err := r.build(ctx, reason); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// Keep watching; the next trigger gets another chance.
				slog.Error("Build failed", logfields.Error(err))
			}
		}
	}
}

// pollOnce checks the remote branch head and triggers a build when it moved.
// It only compares against lastBuilt; the commit is recorded via MarkBuilt
// once its build actually succeeds, so a failed build is retried by the next
// poll. Re-triggering while a build is pending coalesces in the channel.
func (r *Runner) pollOnce() {
	head, err := r.remoteHead(r.cfg.Source.URL, r.cfg.Source.Branch)
	if err != nil {
		slog.Error("Upstream poll failed",
			logfields.URL(r.cfg.Source.URL),
			logfields.Error(err))
		return
	}

	r.mu.Lock()
	changed := head != r.lastBuilt
	r.mu.Unlock()

	if changed {
		r.trigger("upstream commit " + head)
	} else {
		slog.Debug("Upstream unchanged", logfields.Commit(head))
	}
}

// MarkBuilt records the commit of a completed build so later polls compare
// against it.
func (r *Runner) MarkBuilt(commit string) {
	r.mu.Lock()
	r.lastBuilt = commit
	r.mu.Unlock()
}

func (r *Runner) trigger(reason string) {
	select {
	case r.triggerCh <- reason:
	default:
		// A build is already pending.
	}
}

func (r *Runner) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, configFile string) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				slog.Debug("Kernel config change detected", logfields.Path(event.Name))
				r.debounceTrigger("kernel config changed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

// debounceTrigger collapses rapid file events into one build trigger.
func (r *Runner) debounceTrigger(reason string) {
	r.debounceMu.Lock()
	defer r.debounceMu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() { r.trigger(reason) })
}
