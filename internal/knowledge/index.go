// Package knowledge provides retrieval over a local document corpus. The
// corpus directory is read at query time and never written.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	logx "github.com/alexwox/research-assistant/pkg/logger"
)

var (
	// ErrEmptyCorpus indicates the corpus directory is missing or holds no
	// readable documents. Callers surface this to the model as an
	// empty-result signal rather than failing the run.
	ErrEmptyCorpus = errors.New("knowledge: corpus is empty")
	// ErrNoResults indicates the corpus holds documents but none matched
	// the query.
	ErrNoResults = errors.New("knowledge: no matching excerpt")
)

// corpusExtensions lists the file types loaded into the index.
var corpusExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

const chunkTargetSize = 800 // characters per excerpt, merged from paragraphs

// Excerpt is the most relevant slice of the corpus for a query, together
// with the file it came from.
type Excerpt struct {
	Content string
	Source  string
}

type chunk struct {
	content string
	source  string
	terms   map[string]int
}

type corpusIndex struct {
	chunks []chunk
	df     map[string]int
}

// Index answers natural-language queries against a corpus directory. The
// underlying term index is built lazily on first query and memoized per
// corpus content hash, so an unchanged corpus is indexed once per session
// and corpus edits are picked up on the next query.
type Index struct {
	dir string

	mu    sync.Mutex
	built *corpusIndex
	hash  string
}

func NewIndex(dir string) *Index {
	return &Index{dir: dir}
}

// Query returns the best matching excerpt for the query text.
func (ix *Index) Query(ctx context.Context, query string) (*Excerpt, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("knowledge: query has no searchable terms")
	}

	idx, err := ix.load(ctx)
	if err != nil {
		return nil, err
	}

	bestScore := 0.0
	bestIdx := -1
	total := float64(len(idx.chunks))
	for i, c := range idx.chunks {
		score := 0.0
		for term := range terms {
			tf := c.terms[term]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + total/float64(idx.df[term]))
			score += float64(tf) * idf
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return nil, ErrNoResults
	}

	best := idx.chunks[bestIdx]
	logx.Debug().Str("source", best.source).Float64("score", bestScore).Msg("knowledge excerpt selected")
	return &Excerpt{Content: best.content, Source: best.source}, nil
}

// load returns the memoized index, rebuilding when the corpus changed.
func (ix *Index) load(ctx context.Context) (*corpusIndex, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	docs, hash, err := ix.readCorpus(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}
	if ix.built != nil && ix.hash == hash {
		return ix.built, nil
	}

	idx := buildIndex(docs)
	ix.built = idx
	ix.hash = hash
	logx.Debug().Int("documents", len(docs)).Int("chunks", len(idx.chunks)).Msg("knowledge index built")
	return idx, nil
}

type document struct {
	name    string
	content string
}

func (ix *Index) readCorpus(ctx context.Context) ([]document, string, error) {
	entries, err := os.ReadDir(ix.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrEmptyCorpus
		}
		return nil, "", fmt.Errorf("knowledge: read corpus dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !corpusExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	h := sha256.New()
	docs := make([]document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		b, err := os.ReadFile(filepath.Join(ix.dir, name))
		if err != nil {
			return nil, "", fmt.Errorf("knowledge: read %s: %w", name, err)
		}
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		h.Write([]byte(name))
		h.Write(b)
		docs = append(docs, document{name: name, content: string(b)})
	}
	return docs, hex.EncodeToString(h.Sum(nil)), nil
}

func buildIndex(docs []document) *corpusIndex {
	idx := &corpusIndex{df: make(map[string]int)}
	for _, doc := range docs {
		for _, content := range splitChunks(doc.content) {
			c := chunk{content: content, source: doc.name, terms: tokenize(content)}
			for term := range c.terms {
				idx.df[term]++
			}
			idx.chunks = append(idx.chunks, c)
		}
	}
	return idx
}

// splitChunks merges paragraphs into excerpts of roughly chunkTargetSize
// characters so a hit returns enough surrounding context to be quotable.
func splitChunks(content string) []string {
	paragraphs := strings.Split(content, "\n\n")
	var chunks []string
	var b strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 && b.Len()+len(p) > chunkTargetSize {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func tokenize(s string) map[string]int {
	terms := make(map[string]int)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 2 {
			continue
		}
		terms[w]++
	}
	return terms
}
