package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a Client wired to a test HTTP server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Options{
		Token:      "test-token",
		APIURL:     server.URL,
		GraphQLURL: server.URL + "/api/graphql",
	})
	require.NoError(t, err)
	return c
}

func TestMatchesURL(t *testing.T) {
	tests := []struct {
		url     string
		matches bool
	}{
		{"https://github.com/owner/repo/issues/1", true},
		{"https://www.github.com/owner/repo", true},
		{"https://gitlab.com/owner/repo", false},
		{"not-a-url", false},
		{"https://ghe.example.com/owner/repo/issues/1", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.matches, MatchesURL(tt.url))
		})
	}
}

func TestMatchesURLEnterpriseHost(t *testing.T) {
	assert.True(t, MatchesURL("https://GHE.example.com/owner/repo/issues/1", "ghe.example.com"))
	assert.True(t, MatchesURL("https://github.com/owner/repo", "ghe.example.com"))
	assert.False(t, MatchesURL("https://other.example.com/owner/repo", "ghe.example.com"))
	assert.False(t, MatchesURL("https://other.example.com/owner/repo", ""))
}

func TestWebHost(t *testing.T) {
	tests := []struct {
		apiURL string
		want   string
	}{
		{"", ""},
		{"https://ghe.example.com/api/v3/", "ghe.example.com"},
		{"https://ghe.example.com:8443/api/v3", "ghe.example.com"},
		{"https://api.acme.ghe.com", "acme.ghe.com"},
		{"https://api.github.com/", "github.com"},
		{"://bad", ""},
	}

	for _, tt := range tests {
		t.Run(tt.apiURL, func(t *testing.T) {
			assert.Equal(t, tt.want, WebHost(tt.apiURL))
		})
	}
}

func TestParseIssueURLEnterprise(t *testing.T) {
	host := WebHost("https://ghe.example.com/api/v3/")

	got, err := ParseIssueURL("https://ghe.example.com/platform/widgets/issues/42", host)
	require.NoError(t, err)
	assert.Equal(t, IssueRef{Owner: "platform", Repo: "widgets", Number: 42}, got)

	_, err = ParseIssueURL("https://ghe.example.com/platform/widgets/issues/42")
	assert.Error(t, err, "enterprise hosts are only accepted when configured")
}

func TestParseIssueURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    IssueRef
		wantErr bool
	}{
		{
			name:  "plain",
			input: "https://github.com/acme/widgets/issues/7",
			want:  IssueRef{Owner: "acme", Repo: "widgets", Number: 7},
		},
		{
			name:  "fragment",
			input: "https://github.com/acme/widgets/issues/7#issuecomment-123",
			want:  IssueRef{Owner: "acme", Repo: "widgets", Number: 7},
		},
		{
			name:  "trailing slash and query",
			input: "https://www.github.com/acme/widgets/issues/12/?x=1",
			want:  IssueRef{Owner: "acme", Repo: "widgets", Number: 12},
		},
		{name: "pull request", input: "https://github.com/acme/widgets/pull/7", wantErr: true},
		{name: "non numeric", input: "https://github.com/acme/widgets/issues/abc", wantErr: true},
		{name: "zero", input: "https://github.com/acme/widgets/issues/0", wantErr: true},
		{name: "other host", input: "https://gitlab.com/acme/widgets/issues/7", wantErr: true},
		{name: "repo only", input: "https://github.com/acme/widgets", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIssueURL(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchIssue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/widgets/issues/7", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"number":7,"title":"Button broken","body":"Clicking does nothing","html_url":"https://github.com/acme/widgets/issues/7"}`)
	})

	c := newTestClient(t, mux)
	issue, err := c.FetchIssue(context.Background(), IssueRef{Owner: "acme", Repo: "widgets", Number: 7})
	require.NoError(t, err)

	assert.Equal(t, 7, issue.Number)
	assert.Equal(t, "Button broken", issue.Title)
	assert.Equal(t, "Clicking does nothing", issue.Body)
	assert.Equal(t, "acme", issue.Owner)
	assert.Equal(t, "widgets", issue.Repo)
	assert.Equal(t, "https://github.com/acme/widgets/issues/7", issue.URL)
}

func TestFetchIssueNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/acme/widgets/issues/8", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	c := newTestClient(t, mux)
	_, err := c.FetchIssue(context.Background(), IssueRef{Owner: "acme", Repo: "widgets", Number: 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/widgets#8")
}

func TestCreatePullRequest(t *testing.T) {
	var got map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number":11,"html_url":"https://github.com/acme/widgets/pull/11"}`)
	})

	c := newTestClient(t, mux)
	url, err := c.CreatePullRequest(context.Background(), "acme", "widgets", PullRequest{
		Title: "fix: resolve issue #7",
		Body:  "Fixes #7",
		Head:  "fix/issue-7-ai",
		Base:  "main",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/widgets/pull/11", url)
	assert.Equal(t, "fix: resolve issue #7", got["title"])
	assert.Equal(t, "Fixes #7", got["body"])
	assert.Equal(t, "fix/issue-7-ai", got["head"])
	assert.Equal(t, "main", got["base"])
}

func TestCreatePullRequestFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v3/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"Validation Failed","errors":[{"message":"A pull request already exists"}]}`)
	})

	c := newTestClient(t, mux)
	_, err := c.CreatePullRequest(context.Background(), "acme", "widgets", PullRequest{Head: "b", Base: "main"})
	assert.Error(t, err)
}

func TestDefaultBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/graphql", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, strings.Contains(req.Query, "defaultBranchRef"))
		assert.Equal(t, "acme", req.Variables["owner"])
		assert.Equal(t, "widgets", req.Variables["name"])
		fmt.Fprint(w, `{"data":{"repository":{"defaultBranchRef":{"name":"trunk"}}}}`)
	})

	c := newTestClient(t, mux)
	branch, err := c.DefaultBranch(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "trunk", branch)
}

func TestDefaultBranchError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/graphql", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null,"errors":[{"message":"Could not resolve to a Repository"}]}`)
	})

	c := newTestClient(t, mux)
	_, err := c.DefaultBranch(context.Background(), "acme", "missing")
	assert.Error(t, err)
}
