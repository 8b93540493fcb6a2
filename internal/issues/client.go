// Package issues provides a minimal GitHub issues client used to move a
// linked issue to done when a session's turn completes. All calls are
// best-effort from the caller's perspective.
package issues

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const githubAPIBase = "https://api.github.com"

// Client talks to the GitHub REST API using a personal access token.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new token-authenticated client.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: githubAPIBase,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL overrides the API base, for tests and GitHub Enterprise.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Ref identifies one issue as "owner/repo#number".
type Ref struct {
	Owner  string
	Repo   string
	Number int
}

// ParseRef parses an "owner/repo#number" reference.
func ParseRef(s string) (Ref, error) {
	repoPart, numPart, ok := strings.Cut(s, "#")
	if !ok {
		return Ref{}, fmt.Errorf("invalid issue reference %q", s)
	}
	owner, repo, ok := strings.Cut(repoPart, "/")
	if !ok || owner == "" || repo == "" {
		return Ref{}, fmt.Errorf("invalid issue reference %q", s)
	}
	number, err := strconv.Atoi(numPart)
	if err != nil || number <= 0 {
		return Ref{}, fmt.Errorf("invalid issue number in %q", s)
	}
	return Ref{Owner: owner, Repo: repo, Number: number}, nil
}

// CloseIssue transitions an issue to the closed ("done") state.
func (c *Client) CloseIssue(ctx context.Context, ref Ref) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues/%d", c.baseURL, ref.Owner, ref.Repo, ref.Number)

	body, err := json.Marshal(map[string]string{
		"state":        "closed",
		"state_reason": "completed",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("close issue %s/%s#%d: %w", ref.Owner, ref.Repo, ref.Number, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("close issue %s/%s#%d: status %d: %s",
			ref.Owner, ref.Repo, ref.Number, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
