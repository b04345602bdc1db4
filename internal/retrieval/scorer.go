package retrieval

import (
	"sort"
	"strings"

	"dexfren/backend/internal/document"
)

// PriorityKeywords are domain terms that make a chunk worth surfacing on
// their own.
var PriorityKeywords = []string{"dexkit", "dexappbuilder", "dapp", "wallet", "swap", "nft", "token", "contract", "deploy"}

const (
	priorityWeight  = 2
	queryWordWeight = 3

	// A chunk scoring above this lands in the priority bucket.
	priorityThreshold = 4

	priorityQuota  = 3
	secondaryQuota = 2

	// Shorter query words are too common to count.
	minQueryWord = 3
)

type scored struct {
	doc   document.Document
	score int
}

// ScoreChunk is priority keyword hits times 2 plus query word hits times 3,
// counting each distinct word once.
func ScoreChunk(query string, doc document.Document) int {
	content := strings.ToLower(doc.Content)
	score := 0
	for _, kw := range PriorityKeywords {
		if strings.Contains(content, kw) {
			score += priorityWeight
		}
	}
	for w := range newQuery(query).words {
		if len([]rune(w)) < minQueryWord {
			continue
		}
		if strings.Contains(content, w) {
			score += queryWordWeight
		}
	}
	return score
}

// ScoreChunks splits docs into a priority bucket (score above the threshold)
// and a secondary bucket, sorts each by descending score keeping input order
// for ties, and returns the top 3 of the first followed by the top 2 of the
// second.
func ScoreChunks(query string, docs []document.Document) []document.Document {
	var priority, secondary []scored
	for _, d := range docs {
		s := scored{doc: d, score: ScoreChunk(query, d)}
		if s.score > priorityThreshold {
			priority = append(priority, s)
		} else {
			secondary = append(secondary, s)
		}
	}

	out := make([]document.Document, 0, priorityQuota+secondaryQuota)
	out = appendTop(out, priority, priorityQuota)
	out = appendTop(out, secondary, secondaryQuota)
	return out
}

func appendTop(out []document.Document, bucket []scored, n int) []document.Document {
	sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].score > bucket[j].score })
	for i := 0; i < len(bucket) && i < n; i++ {
		out = append(out, bucket[i].doc)
	}
	return out
}
