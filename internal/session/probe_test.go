package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProbeProjectPlainDirectory(t *testing.T) {
	dir := t.TempDir()

	info := ProbeProject(dir)
	assert.Equal(t, dir, info.Path)
	assert.Equal(t, filepath.Base(dir), info.Name)
	assert.Empty(t, info.Branch)
}

func TestProbeProjectReadsBranch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/feature/login\n")

	info := ProbeProject(dir)
	assert.Equal(t, "feature/login", info.Branch)
}

func TestProbeProjectDetachedHead(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4\n")

	info := ProbeProject(dir)
	assert.Equal(t, "a1b2c3d4", info.Branch)
}

func TestProbeProjectWorktreeGitdirIndirection(t *testing.T) {
	root := t.TempDir()
	gitdir := filepath.Join(root, "main", ".git", "worktrees", "wt1")
	writeFile(t, filepath.Join(gitdir, "HEAD"), "ref: refs/heads/wt-branch\n")

	worktree := filepath.Join(root, "wt1")
	require.NoError(t, os.MkdirAll(worktree, 0o755))
	writeFile(t, filepath.Join(worktree, ".git"), "gitdir: "+gitdir+"\n")

	info := ProbeProject(worktree)
	assert.Equal(t, "wt-branch", info.Branch)
}
