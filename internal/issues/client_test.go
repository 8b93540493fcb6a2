package issues

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	ref, err := ParseRef("octocat/hello-world#42")
	require.NoError(t, err)
	assert.Equal(t, Ref{Owner: "octocat", Repo: "hello-world", Number: 42}, ref)

	for _, bad := range []string{
		"",
		"octocat/hello-world",
		"octocat#42",
		"/repo#42",
		"octocat/#42",
		"octocat/repo#zero",
		"octocat/repo#0",
		"octocat/repo#-3",
	} {
		_, err := ParseRef(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestCloseIssue(t *testing.T) {
	var gotPath, gotMethod, gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("tok-123")
	c.SetBaseURL(srv.URL)

	err := c.CloseIssue(context.Background(), Ref{Owner: "octocat", Repo: "hello-world", Number: 42})
	require.NoError(t, err)

	assert.Equal(t, "/repos/octocat/hello-world/issues/42", gotPath)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "closed", gotBody["state"])
	assert.Equal(t, "completed", gotBody["state_reason"])
}

func TestCloseIssueNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	c := NewClient("tok-123")
	c.SetBaseURL(srv.URL)

	err := c.CloseIssue(context.Background(), Ref{Owner: "o", Repo: "r", Number: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
