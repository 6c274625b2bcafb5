package github

// IssueRef identifies an issue parsed from its URL.
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

// Issue is the subset of a GitHub issue the fixer needs.
type Issue struct {
	Number int
	Title  string
	Body   string
	Owner  string
	Repo   string
	URL    string
}

// PullRequest describes a pull request to open.
type PullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
}
