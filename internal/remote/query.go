package remote

import "strings"

// Query describes one post search. Filter fields are folded into the
// tag string the API expects, so callers never hand-build tag syntax.
type Query struct {
	Tags   []string
	Rating string // safe, questionable, explicit
	Type   string // file extension filter
	Order  string // score, random, ...
	Date   string // e.g. ">=2024-01-01"
	Limit  int
}

// BuildTags renders the query as a space-separated tag expression.
func (q Query) BuildTags() string {
	parts := append([]string(nil), q.Tags...)
	if q.Rating != "" {
		parts = append(parts, "rating:"+q.Rating)
	}
	if q.Type != "" {
		parts = append(parts, "type:"+q.Type)
	}
	if q.Order != "" {
		parts = append(parts, "order:"+q.Order)
	}
	if q.Date != "" {
		parts = append(parts, "date:"+q.Date)
	}
	return strings.Join(parts, " ")
}
