// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"fmt"
	"slices"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/storage/memory"
)

// RemoteBranches lists the branches advertised by the repository at url,
// without cloning it. Credentials come from the usual git transports
// (ssh agent for ssh URLs).
func RemoteBranches(ctx context.Context, url string) ([]string, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list remote %s: %w", url, err)
	}

	var branches []string
	for _, ref := range refs {
		if ref.Name().IsBranch() {
			branches = append(branches, ref.Name().Short())
		}
	}
	slices.Sort(branches)
	return branches, nil
}
