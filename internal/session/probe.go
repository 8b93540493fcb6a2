package session

import (
	"os"
	"path/filepath"
	"strings"
)

// ProjectInfo is the lightweight project summary pushed to the UI on switch.
type ProjectInfo struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Branch string `json:"branch,omitempty"`
	Title  string `json:"title,omitempty"`
}

// ProbeProject builds a ProjectInfo from directory metadata alone, without
// touching the engine. Used to update the UI before session creation
// finishes on the slow path.
func ProbeProject(path string) ProjectInfo {
	return ProjectInfo{
		Path:   path,
		Name:   filepath.Base(path),
		Branch: readGitBranch(path),
	}
}

// readGitBranch reads the checked-out branch from .git/HEAD. Worktree
// checkouts store a gitdir pointer in a .git file; a single level of
// indirection is followed.
func readGitBranch(path string) string {
	gitDir := filepath.Join(path, ".git")
	if fi, err := os.Stat(gitDir); err == nil && !fi.IsDir() {
		data, err := os.ReadFile(gitDir)
		if err != nil {
			return ""
		}
		line := strings.TrimSpace(string(data))
		if dir, ok := strings.CutPrefix(line, "gitdir: "); ok {
			gitDir = dir
			if !filepath.IsAbs(gitDir) {
				gitDir = filepath.Join(path, gitDir)
			}
		}
	}

	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))
	if ref, ok := strings.CutPrefix(head, "ref: refs/heads/"); ok {
		return ref
	}
	if len(head) >= 8 {
		// Detached HEAD: short commit hash.
		return head[:8]
	}
	return ""
}
