package memstore

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/memengine/core/internal/core"
)

// Document is the lexical index's view of a memory: just enough to score
// and tie-break a BM25 match.
type Document struct {
	ID           core.ID
	UserID       string
	Content      string
	Confidence   float64
	LastAccessAt time.Time
}

// ScoredDoc is a BM25 search hit.
type ScoredDoc struct {
	ID    core.ID
	Score float64
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lower-cases and splits on non-alphanumeric runs. The teacher
// relies on SQLite FTS5's built-in tokenizer (documents.go's
// `documents_fts MATCH`); FTS5 has no k1/b knobs, so BM25 here is hand
// rolled over this tokenizer instead.
func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

// BM25Index is an in-process Okapi BM25 inverted index, partitioned by
// user so one user's term statistics never influence another's ranking.
type BM25Index struct {
	k1, b float64

	mu      sync.RWMutex
	docs    map[core.ID]*indexedDoc
	postings map[string]map[core.ID]int // term -> docID -> term frequency
	userDocs map[string]map[core.ID]struct{}
	totalLen map[string]int // per-user total token count, for avgdl
}

type indexedDoc struct {
	userID       string
	length       int
	confidence   float64
	lastAccessAt time.Time
}

// NewBM25Index constructs an empty index with the given Okapi parameters.
func NewBM25Index(k1, b float64) *BM25Index {
	return &BM25Index{
		k1:       k1,
		b:        b,
		docs:     make(map[core.ID]*indexedDoc),
		postings: make(map[string]map[core.ID]int),
		userDocs: make(map[string]map[core.ID]struct{}),
		totalLen: make(map[string]int),
	}
}

// Add indexes a document, replacing any prior entry with the same ID.
func (idx *BM25Index) Add(d Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(d.ID)
	idx.addLocked(d)
}

// Update re-indexes a document whose content or metadata changed.
func (idx *BM25Index) Update(d Document) { idx.Add(d) }

// Remove drops a document from the index.
func (idx *BM25Index) Remove(id core.ID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

func (idx *BM25Index) addLocked(d Document) {
	tokens := tokenize(d.Content)
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	for t, c := range counts {
		m, ok := idx.postings[t]
		if !ok {
			m = make(map[core.ID]int)
			idx.postings[t] = m
		}
		m[d.ID] = c
	}
	idx.docs[d.ID] = &indexedDoc{userID: d.UserID, length: len(tokens), confidence: d.Confidence, lastAccessAt: d.LastAccessAt}
	if idx.userDocs[d.UserID] == nil {
		idx.userDocs[d.UserID] = make(map[core.ID]struct{})
	}
	idx.userDocs[d.UserID][d.ID] = struct{}{}
	idx.totalLen[d.UserID] += len(tokens)
}

func (idx *BM25Index) removeLocked(id core.ID) {
	doc, ok := idx.docs[id]
	if !ok {
		return
	}
	for term, postings := range idx.postings {
		if _, ok := postings[id]; ok {
			delete(postings, id)
			if len(postings) == 0 {
				delete(idx.postings, term)
			}
		}
	}
	delete(idx.docs, id)
	if users := idx.userDocs[doc.userID]; users != nil {
		delete(users, id)
		if len(users) == 0 {
			delete(idx.userDocs, doc.userID)
		}
	}
	idx.totalLen[doc.userID] -= doc.length
}

// Len returns the total number of indexed documents across all users, used
// by the recall health monitor to detect drift against the durable store.
func (idx *BM25Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Search scores every candidate document owned by userID against query and
// returns the top N by Okapi BM25 score, ties broken by confidence then
// recency (spec §4.7).
func (idx *BM25Index) Search(userID, query string, topN int) []ScoredDoc {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	userSet := idx.userDocs[userID]
	if len(userSet) == 0 {
		return nil
	}
	n := len(userSet)
	avgdl := float64(idx.totalLen[userID]) / float64(n)
	if avgdl == 0 {
		avgdl = 1
	}

	terms := tokenize(query)
	scores := make(map[core.ID]float64, len(userSet))
	for _, term := range terms {
		postings, ok := idx.postings[term]
		if !ok {
			continue
		}
		// restrict postings to this user's documents
		df := 0
		for id := range postings {
			if _, owned := userSet[id]; owned {
				df++
			}
		}
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))

		for id, tf := range postings {
			if _, owned := userSet[id]; !owned {
				continue
			}
			doc := idx.docs[id]
			denom := float64(tf) + idx.k1*(1-idx.b+idx.b*float64(doc.length)/avgdl)
			scores[id] += idf * (float64(tf) * (idx.k1 + 1)) / denom
		}
	}

	out := make([]ScoredDoc, 0, len(scores))
	for id, score := range scores {
		out = append(out, ScoredDoc{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		di, dj := idx.docs[out[i].ID], idx.docs[out[j].ID]
		if di.confidence != dj.confidence {
			return di.confidence > dj.confidence
		}
		return di.lastAccessAt.After(dj.lastAccessAt)
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
