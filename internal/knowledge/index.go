package knowledge

import (
	"strings"

	"github.com/blevesearch/bleve"
)

// RulesSlug is the canonical policy document included in every extraction.
const RulesSlug = "rules"

// Doc references one knowledge-base document.
type Doc struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// Index ranks knowledge documents against task keywords. Selection unions
// case-insensitive substring matches on slug and title with BM25 hits over
// the same fields, always leading with the rules document.
type Index struct {
	docs []Doc
	meta map[string]Doc
	idx  bleve.Index
}

// NewIndex builds an in-memory index over the document listing.
func NewIndex(docs []Doc) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	x := &Index{docs: docs, meta: make(map[string]Doc, len(docs)), idx: idx}
	for _, d := range docs {
		if d.Slug == "" {
			continue
		}
		x.meta[d.Slug] = d
		if err := idx.Index(d.Slug, d); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Docs returns the indexed documents in listing order.
func (x *Index) Docs() []Doc { return x.docs }

// Select returns the document slugs relevant to the keywords: the rules
// document first, then substring matches, then ranked index hits, with
// duplicates removed. max bounds the result; the rules document is never
// evicted.
func (x *Index) Select(keywords []string, max int) []string {
	if max <= 0 {
		max = 5
	}
	out := []string{RulesSlug}
	seen := map[string]bool{RulesSlug: true}
	add := func(slug string) {
		if slug == "" || seen[slug] || len(out) >= max {
			return
		}
		seen[slug] = true
		out = append(out, slug)
	}

	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		for _, d := range x.docs {
			if strings.Contains(strings.ToLower(d.Slug), kw) ||
				strings.Contains(strings.ToLower(d.Title), kw) {
				add(d.Slug)
			}
		}
	}

	if q := strings.TrimSpace(strings.Join(keywords, " ")); q != "" {
		query := bleve.NewQueryStringQuery(q)
		searchReq := bleve.NewSearchRequestOptions(query, max*3, 0, false)
		if res, err := x.idx.Search(searchReq); err == nil {
			for _, hit := range res.Hits {
				add(hit.ID)
			}
		}
	}
	return out
}
