package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/ppiankov/persona/internal/model"
)

// DefaultPlaceholders are bodies that carry no evidentiary value
var DefaultPlaceholders = []string{"[deleted]", "[removed]"}

// Normalizer turns raw source items into an addressable Corpus
type Normalizer struct {
	placeholders map[string]bool
}

// NewNormalizer creates a normalizer with the default placeholder set
func NewNormalizer() *Normalizer {
	return NewNormalizerWithPlaceholders(DefaultPlaceholders)
}

// NewNormalizerWithPlaceholders creates a normalizer with a custom placeholder set
func NewNormalizerWithPlaceholders(placeholders []string) *Normalizer {
	set := make(map[string]bool, len(placeholders))
	for _, p := range placeholders {
		set[strings.ToLower(strings.TrimSpace(p))] = true
	}
	return &Normalizer{placeholders: set}
}

// Normalize filters and converts raw items. Arrival order is kept and the
// first occurrence of an id wins.
func (n *Normalizer) Normalize(raw []model.RawItem) *Corpus {
	c := &Corpus{
		items: make([]model.ContentItem, 0, len(raw)),
		index: make(map[string]int, len(raw)),
	}

	for _, r := range raw {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			c.Dropped++
			continue
		}
		if r.Kind != model.KindPost && r.Kind != model.KindComment {
			c.Dropped++
			continue
		}

		body := n.body(r)
		if body == "" || r.RemovedByCategory != "" {
			c.Dropped++
			continue
		}
		if r.Kind == model.KindComment && n.isPlaceholder(r.Author) {
			c.Dropped++
			continue
		}

		if _, exists := c.index[id]; exists {
			c.Duplicates++
			continue
		}

		text := body
		if r.Kind == model.KindPost {
			if title := strings.TrimSpace(r.Title); title != "" {
				text = title + "\n\n" + body
			}
		}

		c.index[id] = len(c.items)
		c.items = append(c.items, model.ContentItem{
			ID:        id,
			Kind:      r.Kind,
			Community: strings.TrimSpace(r.Community),
			Text:      text,
			CreatedAt: unixToTime(r.CreatedUTC),
			Permalink: r.Permalink,
			Author:    strings.TrimSpace(r.Author),
		})
	}

	return c
}

// body returns the usable body text or "" when the item has none
func (n *Normalizer) body(r model.RawItem) string {
	body := strings.TrimSpace(r.Body)
	if body == "" && r.BodyHTML != "" {
		body = strings.TrimSpace(TextFromHTML(r.BodyHTML))
	}
	if n.isPlaceholder(body) {
		return ""
	}
	return body
}

func (n *Normalizer) isPlaceholder(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "" || n.placeholders[s]
}

func unixToTime(secs float64) time.Time {
	if secs <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// Corpus is the normalized, read-only content set of one analysis run
type Corpus struct {
	items []model.ContentItem
	index map[string]int

	Dropped    int // Items filtered as empty, placeholder or malformed
	Duplicates int // Items skipped because their id was already seen
}

// NewCorpus builds a corpus directly from normalized items (first id wins)
func NewCorpus(items []model.ContentItem) *Corpus {
	c := &Corpus{
		items: make([]model.ContentItem, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, item := range items {
		if _, exists := c.index[item.ID]; exists {
			c.Duplicates++
			continue
		}
		c.index[item.ID] = len(c.items)
		c.items = append(c.items, item)
	}
	return c
}

// Items returns the kept items in arrival order. Callers must not modify them.
func (c *Corpus) Items() []model.ContentItem {
	return c.items
}

// Len returns the number of kept items
func (c *Corpus) Len() int {
	return len(c.items)
}

// Lookup finds an item by id
func (c *Corpus) Lookup(id string) (model.ContentItem, bool) {
	i, ok := c.index[id]
	if !ok {
		return model.ContentItem{}, false
	}
	return c.items[i], true
}

// Count returns the number of kept items of the given kind
func (c *Corpus) Count(kind model.Kind) int {
	count := 0
	for _, item := range c.items {
		if item.Kind == kind {
			count++
		}
	}
	return count
}

// Username returns the author of the first item, or model.UnknownUsername
func (c *Corpus) Username() string {
	if len(c.items) > 0 && c.items[0].Author != "" {
		return c.items[0].Author
	}
	return model.UnknownUsername
}
