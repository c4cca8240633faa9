package search

import (
	"context"
	"fmt"
)

// Result is one evidence snippet returned by the retrieval layer.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Snippet formats a result the way agents embed evidence into prompts.
func (r Result) Snippet() string {
	return fmt.Sprintf("Title: %s\nURL: %s\nContent: %s", r.Title, r.URL, r.Content)
}

// SearchError wraps timeout and connectivity failures. Callers treat it
// identically to an empty result set.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed for %q: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Searcher is the retrieval collaborator consumed by the evidence gatherer.
// Search may return an empty list; Fallback always succeeds (pure, local).
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
	Fallback(query string) []Result
}
