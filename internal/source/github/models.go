package github

// APIResponse represents one page of a GitHub code search call.
type APIResponse struct {
	TotalCount int    `json:"total_count"`
	Items      []Item `json:"items"`
}

type Item struct {
	SHA        string     `json:"sha"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	HTMLURL    string     `json:"html_url"`
	Repository Repository `json:"repository"`
}

type Repository struct {
	FullName string `json:"full_name"`
}
