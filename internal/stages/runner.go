package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ttlkernel/ttlkernel/internal/logfields"
)

// Run executes stages in order, recording timing and stopping on the first
// failure. Cancellation is honored between stages; a stage's own external
// commands are expected to take ctx themselves.
func Run(ctx context.Context, st *State, stages []Stage) error {
	defer func() { st.Report.Finished = time.Now() }()

	for _, stage := range stages {
		select {
		case <-ctx.Done():
			slog.Warn("Pipeline canceled",
				logfields.BuildID(st.BuildID),
				logfields.Stage(string(stage.Name)))
			return fmt.Errorf("stage %s: %w", stage.Name, ctx.Err())
		default:
		}

		slog.Info("Starting stage",
			logfields.BuildID(st.BuildID),
			logfields.Stage(string(stage.Name)))

		t0 := time.Now()
		err := stage.Fn(ctx, st)
		dur := time.Since(t0)
		st.Report.record(stage.Name, dur)

		if err != nil {
			slog.Error("Stage failed",
				logfields.BuildID(st.BuildID),
				logfields.Stage(string(stage.Name)),
				logfields.DurationMS(float64(dur.Milliseconds())),
				logfields.Error(err))
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}

		slog.Info("Stage completed",
			logfields.BuildID(st.BuildID),
			logfields.Stage(string(stage.Name)),
			logfields.DurationMS(float64(dur.Milliseconds())))
	}

	return nil
}
