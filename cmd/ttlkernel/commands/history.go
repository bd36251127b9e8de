package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/ttlkernel/ttlkernel/internal/config"
	"github.com/ttlkernel/ttlkernel/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of builds to show" default:"20"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history is not configured; set history.path in %s", root.Config)
	}

	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No builds recorded yet")
		return nil
	}

	fmt.Printf("%-19s  %-8s  %-10s  %-8s  %s\n", "WHEN", "STATUS", "COMMIT", "DURATION", "BUILD ID")
	for _, rec := range records {
		commit := rec.SourceCommit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		fmt.Printf("%-19s  %-8s  %-10s  %-8s  %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.Status,
			commit,
			rec.Duration.Round(time.Second),
			rec.BuildID)
	}
	return nil
}
