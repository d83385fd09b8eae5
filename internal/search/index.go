// Package search provides a small, deterministic, concurrency-safe in-memory
// similarity index over short documents (profile texts in this service).
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options for stop words and caps
//   - Unicode-aware tokenization (NFKC + case folding)
//   - Immutable after construction, safe for concurrent use
//   - Deterministic scoring and ordering (ties broken by document id)
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|.
package search

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Document is one indexed text with a caller-chosen identifier.
type Document struct {
	ID   string
	Text string
}

// Result is a document id with its similarity score.
type Result struct {
	ID    string
	Score float64
}

// Index is the interface implemented by similarity indices.
type Index interface {
	// TopK returns up to k documents with a positive score, best first.
	TopK(query string, k int) []Result
	// Scores returns the score of every indexed document, including zeros.
	Scores(query string) map[string]float64
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
}

// DefaultStopwords are dropped from both queries and documents unless
// replaced with WithStopwords.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "i", "in",
	"is", "it", "my", "of", "on", "or", "the", "to", "with", "years", "year",
}

func defaultConfig() config {
	c := config{}
	WithStopwords(DefaultStopwords)(&c)
	return c
}

// WithStopwords replaces the stop-word set. An empty list disables removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) == 0 {
			c.stopwords = nil
			return
		}
		c.stopwords = m
	}
}

// WithMaxDocs caps how many documents are indexed (0 = unlimited).
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     string
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index from docs. Documents without any token are kept
// (they score zero) so Scores covers every id passed in.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
		out = append(out, doc{id: d.ID, tokens: Tokenize(d.Text, cfg.stopwords)})
	}
	return &index{cfg: cfg, docs: out}
}

func (i *index) Len() int { return len(i.docs) }

func (i *index) Scores(q string) map[string]float64 {
	out := make(map[string]float64, len(i.docs))
	qTokens := Tokenize(q, i.cfg.stopwords)
	for _, d := range i.docs {
		out[d.id] = jaccard(qTokens, d.tokens)
	}
	return out
}

func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := Tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	buf := make([]Result, 0, len(i.docs))
	for _, d := range i.docs {
		if s := jaccard(qTokens, d.tokens); s > 0 {
			buf = append(buf, Result{ID: d.id, Score: s})
		}
	}
	SortResults(buf)
	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k]
}

// SortResults orders by score descending, then id ascending.
func SortResults(rs []Result) {
	sort.SliceStable(rs, func(a, b int) bool {
		if rs[a].Score != rs[b].Score {
			return rs[a].Score > rs[b].Score
		}
		return rs[a].ID < rs[b].ID
	})
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}+#.]*`)

var folder = cases.Fold()

func fold(s string) string { return folder.String(norm.NFKC.String(s)) }

// Tokenize returns the set of normalised word tokens in s, minus stop words.
// Tokens keep inner '+', '#' and '.' so "c++", "c#" and "node.js" survive;
// trailing dots are trimmed.
func Tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.TrimRight(w, ".")
		if w == "" {
			continue
		}
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	over := overlap(a, b)
	if over == 0 {
		return 0
	}
	union := len(a) + len(b) - over
	return float64(over) / float64(union)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
