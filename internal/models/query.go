package models

// Search modes accepted by the search API.
const (
	SearchModeVector  = "vector"
	SearchModeKeyword = "keyword"
)

// SearchRequest is the request body for a search.
type SearchRequest struct {
	Query string `json:"query"`
	// Limit is the maximum number of results; the service default applies when 0.
	Limit int `json:"limit,omitempty"`
	// Mode is "vector" (default, cosine nearest-neighbor) or "keyword" (bleve match).
	Mode string `json:"mode,omitempty"`
}

// KeywordHit is a single keyword-index match.
type KeywordHit struct {
	Document *Document `json:"document"`
	Score    float64   `json:"score"`
}

// SearchResponse is the response for a search request. Passages is populated
// in vector mode, KeywordHits in keyword mode.
type SearchResponse struct {
	Query       string       `json:"query"`
	Mode        string       `json:"mode"`
	Passages    []Passage    `json:"passages,omitempty"`
	KeywordHits []KeywordHit `json:"keyword_hits,omitempty"`
	QueryTime   int64        `json:"query_time_ms"`
}
