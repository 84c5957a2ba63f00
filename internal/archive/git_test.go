package archive

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// newTestClone creates a bare remote and a clone of it with one commit on
// main, returning the clone's path.
func newTestClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remote := t.TempDir()
	run(t, remote, "git", "init", "--bare")

	work := t.TempDir()
	run(t, work, "git", "clone", remote, "repo")
	repo := filepath.Join(work, "repo")
	run(t, repo, "git", "config", "user.email", "desk@example.com")
	run(t, repo, "git", "config", "user.name", "Desk")
	run(t, repo, "git", "branch", "-m", "main")

	if err := os.WriteFile(filepath.Join(repo, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repo, "git", "add", ".")
	run(t, repo, "git", "commit", "-m", "init")
	run(t, repo, "git", "push", "origin", "main")
	return repo
}

func commitCount(t *testing.T, repo string) int {
	t.Helper()
	out, err := exec.Command("git", "-C", repo, "rev-list", "--count", "HEAD").Output()
	if err != nil {
		t.Fatalf("rev-list: %v", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("parse rev-list: %v", err)
	}
	return n
}

func TestGitDestination(t *testing.T) {
	repo := newTestClone(t)
	dest := NewGitDestination(repo, "", "")
	ctx := context.Background()

	first := []byte(`{"version":"1","type":"header"}` + "\n")
	if err := dest.Write(ctx, first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repo, "newsdesk.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(first) {
		t.Fatalf("content mismatch: %q", got)
	}
	if n := commitCount(t, repo); n != 2 {
		t.Fatalf("commits after first write = %d, want 2", n)
	}

	// Unchanged snapshot: no new commit.
	if err := dest.Write(ctx, first); err != nil {
		t.Fatalf("repeat write: %v", err)
	}
	if n := commitCount(t, repo); n != 2 {
		t.Fatalf("commits after repeat write = %d, want 2", n)
	}

	second := []byte(`{"version":"1","type":"header","beat_count":1}` + "\n")
	if err := dest.Write(ctx, second); err != nil {
		t.Fatalf("changed write: %v", err)
	}
	if n := commitCount(t, repo); n != 3 {
		t.Fatalf("commits after changed write = %d, want 3", n)
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repo := newTestClone(t)
	dest := NewGitDestination(repo, "snapshots/newsdesk.jsonl", "main")

	data := []byte(`{"type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repo, "snapshots", "newsdesk.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("content mismatch: %q", got)
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("%s %v failed: %v", name, args, err)
	}
}
