package git

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/storage/memory"
)

// RemoteHead returns the commit hash the remote branch currently points at,
// without cloning. Used by watch mode to decide whether a rebuild is due.
func (c *Client) RemoteHead(url, branch string) (string, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	refs, err := remote.List(&gogit.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to list remote references: %w", err)
	}

	want := "refs/heads/" + branch
	for _, ref := range refs {
		if ref.Name().String() == want {
			return ref.Hash().String(), nil
		}
	}

	return "", fmt.Errorf("branch %q not found on remote %s", branch, url)
}
