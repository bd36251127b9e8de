// Package git syncs the pinned kernel source repository: fresh clone of a
// single branch, or fast-forward of an existing checkout.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ttlkernel/ttlkernel/internal/config"
	"github.com/ttlkernel/ttlkernel/internal/logfields"
)

// Client handles Git operations against the workspace.
type Client struct {
	workspaceDir string
}

// NewClient creates a new Git client with the specified workspace directory
func NewClient(workspaceDir string) *Client {
	return &Client{
		workspaceDir: workspaceDir,
	}
}

// SourcePath returns the checkout directory for the configured source tree.
func (c *Client) SourcePath(src config.SourceConfig) string {
	if src.Dir != "" {
		return src.Dir
	}
	return filepath.Join(c.workspaceDir, "kernel")
}

// SyncSource clones the source repository at its pinned branch, or
// fast-forwards an existing checkout. With fresh set, any existing checkout
// is removed first. It returns the checkout path and the resulting HEAD.
func (c *Client) SyncSource(ctx context.Context, src config.SourceConfig, fresh bool) (string, string, error) {
	path := c.SourcePath(src)

	if fresh {
		if err := os.RemoveAll(path); err != nil {
			return "", "", fmt.Errorf("failed to remove existing checkout: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		slog.Debug("Updating existing checkout", logfields.Path(path), logfields.Branch(src.Branch))
		head, err := c.updateSource(ctx, path, src)
		return path, head, err
	}

	slog.Debug("Checkout doesn't exist, cloning", logfields.URL(src.URL), logfields.Branch(src.Branch))
	head, err := c.cloneSource(ctx, path, src)
	return path, head, err
}

// cloneSource clones the pinned branch into path.
func (c *Client) cloneSource(ctx context.Context, path string, src config.SourceConfig) (string, error) {
	cloneOptions := &gogit.CloneOptions{
		URL:           src.URL,
		ReferenceName: plumbing.ReferenceName("refs/heads/" + src.Branch),
		SingleBranch:  true,
		Progress:      os.Stdout,
	}

	repository, err := gogit.PlainCloneContext(ctx, path, false, cloneOptions)
	if err != nil {
		return "", fmt.Errorf("failed to clone %s: %w", src.URL, err)
	}

	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD after clone: %w", err)
	}

	slog.Info("Source cloned",
		logfields.URL(src.URL),
		logfields.Branch(src.Branch),
		logfields.Commit(ref.Hash().String()[:8]),
		logfields.Path(path))

	return ref.Hash().String(), nil
}

// updateSource fast-forwards an existing checkout. A diverged tree is an
// error; the caller should re-clone with fresh set.
func (c *Client) updateSource(ctx context.Context, path string, src config.SourceConfig) (string, error) {
	repository, err := gogit.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("failed to open checkout: %w", err)
	}

	worktree, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	pullOptions := &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.ReferenceName("refs/heads/" + src.Branch),
		SingleBranch:  true,
	}

	err = worktree.PullContext(ctx, pullOptions)
	switch {
	case errors.Is(err, gogit.NoErrAlreadyUpToDate):
		slog.Info("Source already up to date", logfields.Branch(src.Branch))
	case errors.Is(err, gogit.ErrNonFastForwardUpdate):
		return "", fmt.Errorf("checkout at %s has diverged from %s; re-run with --fresh to re-clone", path, src.Branch)
	case err != nil:
		return "", fmt.Errorf("failed to pull %s: %w", src.URL, err)
	default:
		ref, _ := repository.Head()
		slog.Info("Source updated",
			logfields.Branch(src.Branch),
			logfields.Commit(ref.Hash().String()[:8]))
	}

	return c.Head(path)
}

// Head returns the HEAD commit hash of a checkout.
func (c *Client) Head(path string) (string, error) {
	repository, err := gogit.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("failed to open checkout: %w", err)
	}
	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}
