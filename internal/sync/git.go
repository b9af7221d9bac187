package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Commit identity used when the clone has none configured.
const (
	gitAuthorName  = "hazel"
	gitAuthorEmail = "hazel@localhost"
)

// GitDestination keeps the export as one file in a local clone. Each
// changed export becomes a commit on branch, pushed to origin.
type GitDestination struct {
	repo   string
	file   string
	branch string
}

// NewGitDestination creates a git destination. repo must be an existing
// clone with an origin remote.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

func (d *GitDestination) Name() string { return "git:" + filepath.Join(d.repo, d.file) }

// Write replaces the file and pushes a commit. An export identical to the
// committed one produces no commit.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// Fails harmlessly while origin lacks the branch.
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	path := filepath.Join(d.repo, d.file)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if err := d.git(ctx, "add", d.file); err != nil {
		return err
	}
	if d.git(ctx, "diff", "--cached", "--quiet") == nil {
		return nil
	}
	if err := d.git(ctx,
		"-c", "user.name="+d.config(ctx, "user.name", gitAuthorName),
		"-c", "user.email="+d.config(ctx, "user.email", gitAuthorEmail),
		"commit", "-m", commitMessage(data)); err != nil {
		return err
	}
	return d.git(ctx, "push", "origin", d.branch)
}

// commitMessage names the record count from the export header.
func commitMessage(data []byte) string {
	line, _, _ := bufio.NewReader(bytes.NewReader(data)).ReadLine()
	var h header
	if json.Unmarshal(line, &h) != nil || h.Type != "header" {
		return "backup: update decision export"
	}
	noun := "decisions"
	if h.RecordCount == 1 {
		noun = "decision"
	}
	return fmt.Sprintf("backup: %d %s", h.RecordCount, noun)
}

// config reads a git config value of the clone, or returns fallback.
func (d *GitDestination) config(ctx context.Context, key, fallback string) string {
	cmd := exec.CommandContext(ctx, "git", "config", "--get", key)
	cmd.Dir = d.repo
	out, err := cmd.Output()
	if v := strings.TrimSpace(string(out)); err == nil && v != "" {
		return v
	}
	return fallback
}

func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	return nil
}
