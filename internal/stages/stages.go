// Package stages runs the build pipeline: an ordered list of named stages
// executed sequentially, timed, and aborted on the first failure.
package stages

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ttlkernel/ttlkernel/internal/config"
)

// Name identifies a pipeline stage.
type Name string

// The pipeline stages, in execution order.
const (
	StagePreflight Name = "preflight"
	StageSync      Name = "sync"
	StageConfigure Name = "configure"
	StageBuild     Name = "build"
	StageVerify    Name = "verify"
	StageCollect   Name = "collect"
)

// Stage pairs a name with its implementation.
type Stage struct {
	Name Name
	Fn   func(ctx context.Context, st *State) error
}

// State is threaded through the pipeline; stages fill in what later stages
// and the final summary need.
type State struct {
	BuildID string
	Config  *config.Config
	Fresh   bool

	SrcDir       string   // set by sync
	SourceCommit string   // set by sync
	Warnings     []string // advisory findings, never abort

	Report *Report
}

// NewState creates pipeline state with a fresh build identity.
func NewState(cfg *config.Config, fresh bool) *State {
	return &State{
		BuildID: uuid.NewString(),
		Config:  cfg,
		Fresh:   fresh,
		Report:  newReport(),
	}
}

// Warn records an advisory finding.
func (st *State) Warn(msg string) {
	st.Warnings = append(st.Warnings, msg)
}

// Report accumulates per-stage timing for the end-of-run summary.
type Report struct {
	Started   time.Time
	Finished  time.Time
	Durations map[Name]time.Duration
	order     []Name
}

func newReport() *Report {
	return &Report{
		Started:   time.Now(),
		Durations: make(map[Name]time.Duration),
	}
}

func (r *Report) record(name Name, d time.Duration) {
	if _, seen := r.Durations[name]; !seen {
		r.order = append(r.order, name)
	}
	r.Durations[name] = d
}

// Total returns the wall-clock duration of the run.
func (r *Report) Total() time.Duration {
	end := r.Finished
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.Started)
}

// Summary renders the human-readable per-stage timing table.
func (r *Report) Summary() string {
	var b strings.Builder
	order := r.order
	if len(order) == 0 {
		order = make([]Name, 0, len(r.Durations))
		for name := range r.Durations {
			order = append(order, name)
		}
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	}
	for _, name := range order {
		fmt.Fprintf(&b, "  %-10s %s\n", name, r.Durations[name].Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "  %-10s %s\n", "total", r.Total().Round(time.Millisecond))
	return b.String()
}
