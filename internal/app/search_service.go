package app

import (
	"context"
	"strings"

	"ragapi/internal/ai"
	"ragapi/internal/repository"
)

// ChunkSearcher is the nearest-neighbor surface SearchService needs.
type ChunkSearcher interface {
	SearchNearest(userID uint, embedding []float32, k int) ([]repository.RetrievedChunk, error)
}

// SearchService embeds a query and runs the user-scoped vector search. The
// query embedding uses the same model and normalization as ingestion, so both
// live in one comparable space.
type SearchService struct {
	chunkRepo ChunkSearcher
	embedder  EmbeddingClient
	embCfg    ai.EmbeddingConfig
}

func NewSearchService(chunkRepo ChunkSearcher, embedder EmbeddingClient, embCfg ai.EmbeddingConfig) *SearchService {
	return &SearchService{
		chunkRepo: chunkRepo,
		embedder:  embedder,
		embCfg:    embCfg,
	}
}

// Search returns the k chunks owned by userID nearest to the query. An empty
// result means the user has no ingested documents relevant to any query;
// callers distinguish that from an error.
func (s *SearchService) Search(ctx context.Context, userID uint, query string, k int) ([]repository.RetrievedChunk, error) {
	if userID == 0 || strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}

	queryEmbedding, err := s.embedder.Embed(ctx, s.embCfg, query)
	if err != nil {
		return nil, err
	}

	return s.chunkRepo.SearchNearest(userID, queryEmbedding, k)
}
