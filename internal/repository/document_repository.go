package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragapi/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// DocumentSummary is a document row with its chunk count, for listing.
type DocumentSummary struct {
	ID         uint      `json:"id"`
	Filename   string    `json:"filename"`
	SourceType string    `json:"source_type"`
	UploadedAt time.Time `json:"uploaded_at"`
	ChunkCount int       `json:"chunk_count"`
}

// CreateWithChunks persists the document and all its chunks in one transaction.
// The document row is flushed first so chunk rows can reference its id; any
// failure rolls the whole batch back, so no orphaned document remains.
func (r *DocumentRepository) CreateWithChunks(doc *model.Document, chunks []model.DocumentChunk) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		for i := range chunks {
			chunks[i].DocumentID = doc.ID
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.Create(&chunks).Error
	})
	if err != nil {
		return fmt.Errorf("create document with chunks failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListByUserID(userID uint) ([]DocumentSummary, error) {
	var list []DocumentSummary
	err := r.db.Raw(`
		SELECT d.id, d.filename, d.source_type, d.uploaded_at, COUNT(dc.id) AS chunk_count
		FROM documents d
		LEFT JOIN document_chunks dc ON dc.document_id = d.id
		WHERE d.user_id = ?
		GROUP BY d.id, d.filename, d.source_type, d.uploaded_at
		ORDER BY d.uploaded_at DESC`, userID).Scan(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// DeleteByIDAndUserID removes the document and its chunks in one transaction.
func (r *DocumentRepository) DeleteByIDAndUserID(id, userID uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Document{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
