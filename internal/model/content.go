package model

import "time"

// Kind distinguishes posts from comments
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Label returns the upper-case tag used in prompts and reports
func (k Kind) Label() string {
	switch k {
	case KindPost:
		return "POST"
	case KindComment:
		return "COMMENT"
	default:
		return "ITEM"
	}
}

// RawItem is one item as delivered by the content source, before normalization
type RawItem struct {
	ID                string  `json:"id"`
	Kind              Kind    `json:"kind"`
	Title             string  `json:"title,omitempty"`
	Body              string  `json:"body"`
	BodyHTML          string  `json:"body_html,omitempty"` // Rendered body, used when Body is empty
	Community         string  `json:"community"`
	CreatedUTC        float64 `json:"created_utc"` // Unix seconds
	Permalink         string  `json:"permalink"`
	Author            string  `json:"author,omitempty"`
	RemovedByCategory string  `json:"removed_by_category,omitempty"`
	Score             int     `json:"score,omitempty"`
}

// ContentItem is a normalized post or comment with a stable id
type ContentItem struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Community string    `json:"community"`
	Text      string    `json:"text"` // Body, or title + body for posts
	CreatedAt time.Time `json:"created_at"`
	Permalink string    `json:"permalink"`
	Author    string    `json:"author,omitempty"`
}
