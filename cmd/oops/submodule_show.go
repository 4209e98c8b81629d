// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/apikcloud/oops/internal/submodule"
	"github.com/apikcloud/oops/pkg/repourl"
	"github.com/apikcloud/oops/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"
)

// submoduleRow is one line of `submodule show`.
type submoduleRow struct {
	Name        string     `json:"name" yaml:"name" toml:"name"`
	URL         string     `json:"url" yaml:"url" toml:"url"`
	Branch      string     `json:"branch" yaml:"branch" toml:"branch"`
	PullRequest bool       `json:"pull_request" yaml:"pull_request" toml:"pull_request"`
	Path        string     `json:"path" yaml:"path" toml:"path"`
	LastCommit  *time.Time `json:"last_commit,omitempty" yaml:"last_commit,omitempty" toml:"last_commit,omitempty"`
	SHA         string     `json:"sha,omitempty" yaml:"sha,omitempty" toml:"sha,omitempty"`
}

// newSubmoduleShowCommand creates `oops submodule show`.
func newSubmoduleShowCommand(app *App) *cobra.Command {
	var (
		pullRequests bool
		format       string
	)
	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"list", "ls"},
		Short:   "List declared submodules with their upstream and last commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, formatText, formatJSON, formatYAML, formatTOML, formatCSV, formatMarkdown)
			if err != nil {
				return app.fail(types.ExitUsage, err)
			}
			return app.runShow(cmd.Context(), f, pullRequests)
		},
	}
	cmd.Flags().BoolVar(&pullRequests, "pull-request", false, "show pull request submodules only")
	cmd.Flags().StringVar(&format, "format", string(formatText), "output format: text, json, yaml, toml, csv or markdown")
	return cmd
}

func (a *App) runShow(ctx context.Context, format outputFormat, pullRequests bool) error {
	s, err := a.openSession(ctx)
	if err != nil {
		return a.fail(types.ExitUsage, err)
	}
	reg, ok, err := s.registry(ctx)
	if err != nil {
		return a.fail(types.ExitFailure, err)
	}
	if !ok {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No .gitmodules found."))
		return nil
	}

	rows := submoduleRows(s.backend.Root(), reg.Records(), pullRequests)
	if len(rows) == 0 {
		fmt.Fprintln(a.stdout, SubtitleStyle.Render("No submodules found."))
		return nil
	}

	l := listing{
		Key:     "submodules",
		Headers: []string{"Name", "URL", "Upstream", "PR", "Last Commit", "Age", "SHA"},
		Records: rows,
	}
	for _, r := range rows {
		date, age := "no commit found", "--"
		if r.LastCommit != nil {
			date = r.LastCommit.Format(time.DateOnly)
			age = humanize.Time(*r.LastCommit)
		}
		sha := r.SHA
		if sha == "" {
			sha = "--"
		}
		l.Rows = append(l.Rows, []string{r.Name, r.URL, r.Branch, yesNo(r.PullRequest), date, age, sha})
	}
	return writeListing(a.stdout, format, l)
}

// submoduleRows builds the listing sorted by name, case-insensitively.
func submoduleRows(root string, records []submodule.Record, pullRequestsOnly bool) []submoduleRow {
	rows := make([]submoduleRow, 0, len(records))
	for _, rec := range records {
		if pullRequestsOnly && !rec.IsPullRequest() {
			continue
		}
		row := submoduleRow{
			Name:        rec.Name,
			URL:         rec.URL,
			Branch:      rec.BranchOr(""),
			PullRequest: rec.IsPullRequest(),
			Path:        rec.Path,
		}
		if canonical, err := repourl.Canonicalize(rec.URL); err == nil {
			row.URL = canonical
		}
		if when, sha, ok := lastCommit(filepath.Join(root, filepath.FromSlash(rec.Path))); ok {
			row.LastCommit = &when
			row.SHA = sha
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(x, y submoduleRow) int {
		return strings.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
	})
	return rows
}

// lastCommit reads the HEAD commit of the checkout at dir.
func lastCommit(dir string) (time.Time, string, bool) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return time.Time{}, "", false
	}
	head, err := repo.Head()
	if err != nil {
		return time.Time{}, "", false
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return time.Time{}, "", false
	}
	return commit.Committer.When, head.Hash().String()[:7], true
}
