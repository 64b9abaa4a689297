package entity

// Repo is a hosted repository the publisher writes into.
type Repo struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}
