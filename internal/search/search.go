// Package search provides full-text search over reports: Meilisearch
// when configured and healthy, PostgreSQL full-text search otherwise.
package search

// ReportRecord is the data pushed into the search index for a report.
type ReportRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterStatus string // empty = all statuses
	Limit        int
	Offset       int
}

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Status  string `json:"status"`
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}
