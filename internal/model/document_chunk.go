package model

import (
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// DocumentChunk is the unit of retrieval: a bounded substring of a source
// document with its embedding vector. The table is created by bootstrap with
// the configured vector dimension, so it is excluded from AutoMigrate.
type DocumentChunk struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	DocumentID uint            `gorm:"not null;index" json:"document_id"`
	ChunkIndex int             `gorm:"not null" json:"chunk_index"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	Embedding  pgvector.Vector `gorm:"type:vector" json:"-"`
	Metadata   string          `gorm:"type:jsonb;default:'{}'" json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
}

// SetPage records the source page in the chunk metadata.
func (c *DocumentChunk) SetPage(page int) {
	b, _ := json.Marshal(map[string]interface{}{"page": page})
	c.Metadata = string(b)
}

// Page returns the source page from metadata, or false if none is recorded.
func (c *DocumentChunk) Page() (int, bool) {
	meta := map[string]interface{}{}
	if c.Metadata == "" {
		return 0, false
	}
	if err := json.Unmarshal([]byte(c.Metadata), &meta); err != nil {
		return 0, false
	}
	raw, ok := meta["page"]
	if !ok {
		return 0, false
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}
