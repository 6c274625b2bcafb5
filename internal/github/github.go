package github

import (
	"context"
	"fmt"
	"strings"
	"sync"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// Options configures a Client. APIURL and GraphQLURL are only needed for
// GitHub Enterprise or test servers.
type Options struct {
	Token      string
	APIURL     string
	GraphQLURL string
}

// Client talks to the GitHub REST and GraphQL APIs.
type Client struct {
	client     *gh.Client
	gqlOnce    sync.Once
	gqlClient  *githubv4.Client
	token      string
	graphQLURL string
}

// NewClient creates a Client. REST calls go through go-github-ratelimit
// middleware for automatic rate limit handling.
func NewClient(opts Options) (*Client, error) {
	rateLimiter := github_ratelimit.NewClient(nil)
	client := gh.NewClient(rateLimiter)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.APIURL != "" {
		base := strings.TrimSuffix(opts.APIURL, "/") + "/"
		var err error
		client, err = client.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub API URL: %w", err)
		}
	}
	return &Client{
		client:     client,
		token:      opts.Token,
		graphQLURL: opts.GraphQLURL,
	}, nil
}

// FetchIssue retrieves an issue's title and body.
func (c *Client) FetchIssue(ctx context.Context, ref IssueRef) (*Issue, error) {
	issue, _, err := c.client.Issues.Get(ctx, ref.Owner, ref.Repo, ref.Number)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %s/%s#%d: %w", ref.Owner, ref.Repo, ref.Number, err)
	}

	return &Issue{
		Number: ref.Number,
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		Owner:  ref.Owner,
		Repo:   ref.Repo,
		URL:    issue.GetHTMLURL(),
	}, nil
}

// CreatePullRequest opens a pull request and returns its HTML URL.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, pr PullRequest) (string, error) {
	created, _, err := c.client.PullRequests.Create(ctx, owner, repo, &gh.NewPullRequest{
		Title: gh.Ptr(pr.Title),
		Body:  gh.Ptr(pr.Body),
		Head:  gh.Ptr(pr.Head),
		Base:  gh.Ptr(pr.Base),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create pull request: %w", err)
	}
	return created.GetHTMLURL(), nil
}

// DefaultBranch returns the repository's default branch name using the
// GraphQL API.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	gql := c.getGraphQLClient(ctx)

	var query struct {
		Repository struct {
			DefaultBranchRef struct {
				Name string
			}
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]any{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(repo),
	}
	if err := gql.Query(ctx, &query, vars); err != nil {
		return "", fmt.Errorf("failed to query default branch: %w", err)
	}

	name := query.Repository.DefaultBranchRef.Name
	if name == "" {
		return "", fmt.Errorf("repository %s/%s has no default branch", owner, repo)
	}
	return name, nil
}

// getGraphQLClient returns (and lazily creates) the GitHub GraphQL client.
// Thread-safe via sync.Once.
func (c *Client) getGraphQLClient(ctx context.Context) *githubv4.Client {
	c.gqlOnce.Do(func() {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
		httpClient := oauth2.NewClient(context.WithoutCancel(ctx), ts)
		if c.graphQLURL != "" {
			c.gqlClient = githubv4.NewEnterpriseClient(c.graphQLURL, httpClient)
		} else {
			c.gqlClient = githubv4.NewClient(httpClient)
		}
	})
	return c.gqlClient
}
