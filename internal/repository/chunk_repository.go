package repository

import (
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// RetrievedChunk is a search hit annotated with its parent document's
// filename and source type.
type RetrievedChunk struct {
	ChunkID    uint   `json:"chunk_id"`
	DocumentID uint   `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
	Metadata   string `json:"-"`
	Filename   string `json:"filename"`
	SourceType string `json:"source_type"`
}

// Page returns the source page recorded in the chunk metadata, or false.
func (c *RetrievedChunk) Page() (int, bool) {
	if c.Metadata == "" {
		return 0, false
	}
	meta := map[string]interface{}{}
	if err := json.Unmarshal([]byte(c.Metadata), &meta); err != nil {
		return 0, false
	}
	f, ok := meta["page"].(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// SearchNearest returns the k chunks closest to the query embedding by cosine
// distance, restricted to documents owned by userID. Ownership is enforced in
// the query itself, never by post-filtering.
func (r *ChunkRepository) SearchNearest(userID uint, embedding []float32, k int) ([]RetrievedChunk, error) {
	if k <= 0 {
		k = 4
	}
	var rows []RetrievedChunk
	err := r.db.Raw(`
		SELECT dc.id AS chunk_id, dc.document_id, dc.chunk_index, dc.content, dc.metadata,
		       d.filename, d.source_type
		FROM document_chunks dc
		JOIN documents d ON d.id = dc.document_id
		WHERE d.user_id = ?
		ORDER BY dc.embedding <=> ?
		LIMIT ?`, userID, pgvector.NewVector(embedding), k).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return rows, nil
}
