package retrieval

import (
	"context"
	"sort"

	"dexfren/backend/internal/cache"
	"dexfren/backend/internal/document"
	"dexfren/backend/internal/index"
)

// DefaultNamespaces is the partition order similarity search walks. It also
// breaks distance ties.
var DefaultNamespaces = []string{
	document.NamespaceVideos,
	document.NamespaceDocs,
	document.NamespacePlatform,
	document.NamespacePDF,
}

type Searcher interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Query(ctx context.Context, vector []float32, k int, filter index.Filter) ([]index.Hit, error)
}

// SimilaritySearch embeds the query once, asks each namespace for its top k
// and keeps the global top k by ascending distance. Equal distances keep
// namespace order, then the order the index returned them in. With no
// namespaces the index is queried unfiltered.
func SimilaritySearch(s Searcher, namespaces []string) cache.QueryFunc {
	return func(ctx context.Context, text string, k int) ([]document.Document, error) {
		if k <= 0 {
			return nil, nil
		}
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}

		var hits []index.Hit
		if len(namespaces) == 0 {
			hits, err = s.Query(ctx, vec, k, index.Filter{})
			if err != nil {
				return nil, err
			}
		}
		for _, ns := range namespaces {
			h, err := s.Query(ctx, vec, k, index.Namespace(ns))
			if err != nil {
				return nil, err
			}
			hits = append(hits, h...)
		}

		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
		if len(hits) > k {
			hits = hits[:k]
		}
		docs := make([]document.Document, len(hits))
		for i, h := range hits {
			docs[i] = h.Document
		}
		return docs, nil
	}
}
