package github

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MatchesURL returns true if the URL belongs to github.com or to one of the
// extra hosts, such as a GitHub Enterprise server.
func MatchesURL(rawURL string, hosts ...string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "github.com" || host == "www.github.com" {
		return true
	}
	for _, h := range hosts {
		if h != "" && strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}

// WebHost returns the host serving issue pages for a REST API base URL.
// https://ghe.example.com/api/v3 maps to ghe.example.com and
// https://api.acme.ghe.com to acme.ghe.com. An empty or unparseable URL
// yields "".
func WebHost(apiURL string) string {
	if apiURL == "" {
		return ""
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "api.")
}

// ParseIssueURL extracts owner, repo and number from
// https://{host}/{owner}/{repo}/issues/{number}, where host is github.com or
// one of hosts. Fragments, query strings and trailing slashes are ignored.
func ParseIssueURL(rawURL string, hosts ...string) (IssueRef, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return IssueRef{}, fmt.Errorf("invalid issue URL %q: %w", rawURL, err)
	}
	if !MatchesURL(u.String(), hosts...) {
		return IssueRef{}, fmt.Errorf("not a GitHub issue URL: %s", rawURL)
	}

	pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(pathParts) != 4 || pathParts[2] != "issues" || pathParts[0] == "" || pathParts[1] == "" {
		return IssueRef{}, fmt.Errorf("not a GitHub issue URL: %s", rawURL)
	}

	num, err := strconv.Atoi(pathParts[3])
	if err != nil || num <= 0 {
		return IssueRef{}, fmt.Errorf("invalid issue number in URL: %s", pathParts[3])
	}

	return IssueRef{Owner: pathParts[0], Repo: pathParts[1], Number: num}, nil
}
