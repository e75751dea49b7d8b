package citation

import (
	"strings"

	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/util"
)

// DefaultExcerptChars bounds the excerpt kept on each citation
const DefaultExcerptChars = 200

// idPrefixes are decorations models add around real ids
var idPrefixes = []string{"post_id_", "comment_id_", "post_id:", "comment_id:", "t3_", "t1_"}

// Index looks up content items by id
type Index interface {
	Lookup(id string) (model.ContentItem, bool)
}

// Stats counts citation attempts and how many resolved
type Stats struct {
	Attempted int
	Resolved  int
}

// Resolver verifies citation attempts against a run's content set
type Resolver struct {
	excerptChars int
}

// NewResolver creates a resolver; a non-positive limit uses DefaultExcerptChars
func NewResolver(excerptChars int) *Resolver {
	if excerptChars <= 0 {
		excerptChars = DefaultExcerptChars
	}
	return &Resolver{excerptChars: excerptChars}
}

// Resolve turns attempts into verified citations. Every field in
// model.CitedFields gets an entry, empty when nothing resolved. Attempts whose
// id is not in index are dropped. The result holds copies of item data and
// depends only on its inputs.
func (r *Resolver) Resolve(attempts map[string][]model.CitationRef, index Index) (map[string][]model.Citation, Stats) {
	out := make(map[string][]model.Citation, len(model.CitedFields()))
	for _, field := range model.CitedFields() {
		out[field] = []model.Citation{}
	}

	var stats Stats
	for field, refs := range attempts {
		resolved, ok := out[field]
		if !ok {
			resolved = []model.Citation{}
		}
		for _, ref := range refs {
			stats.Attempted++
			item, found := Find(index, ref.ID)
			if !found {
				continue
			}
			stats.Resolved++
			resolved = append(resolved, model.Citation{
				ID:        item.ID,
				Kind:      item.Kind,
				Excerpt:   r.excerpt(ref.Excerpt, item),
				Community: item.Community,
				Timestamp: item.CreatedAt,
				Permalink: item.Permalink,
			})
		}
		out[field] = resolved
	}
	return out, stats
}

// Attach resolves attempts into record.Citations
func (r *Resolver) Attach(record *model.PersonaRecord, attempts map[string][]model.CitationRef, index Index) Stats {
	citations, stats := r.Resolve(attempts, index)
	record.Citations = citations
	return stats
}

// excerpt prefers the model's excerpt and falls back to the item text
func (r *Resolver) excerpt(claimed string, item model.ContentItem) string {
	text := util.CollapseSpace(claimed)
	if text == "" {
		text = util.CollapseSpace(item.Text)
	}
	return util.Truncate(text, r.excerptChars)
}

// Find looks up id as given, then in each normalized form from CandidateIDs
func Find(index Index, id string) (model.ContentItem, bool) {
	for _, candidate := range CandidateIDs(id) {
		if item, ok := index.Lookup(candidate); ok {
			return item, true
		}
	}
	return model.ContentItem{}, false
}

// CandidateIDs lists the forms of a claimed id to try, most literal first:
// the raw id, then trimmed of whitespace, brackets and quotes, then without
// a "POST "/"COMMENT " label, then without a known prefix
func CandidateIDs(id string) []string {
	candidates := []string{id}
	add := func(s string) {
		if s == "" {
			return
		}
		for _, c := range candidates {
			if c == s {
				return
			}
		}
		candidates = append(candidates, s)
	}

	clean := strings.Trim(strings.TrimSpace(id), "[](){}<>\"'` ")
	add(clean)

	for _, label := range []string{"post ", "comment "} {
		if len(clean) > len(label) && strings.EqualFold(clean[:len(label)], label) {
			clean = strings.TrimSpace(clean[len(label):])
			add(clean)
			break
		}
	}

	lower := strings.ToLower(clean)
	for _, prefix := range idPrefixes {
		if strings.HasPrefix(lower, prefix) {
			add(strings.TrimSpace(clean[len(prefix):]))
			break
		}
	}
	return candidates
}
