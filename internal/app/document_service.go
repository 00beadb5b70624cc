package app

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/pgvector/pgvector-go"

	"ragapi/internal/ai"
	"ragapi/internal/model"
	"ragapi/internal/pkg/pdfextract"
	"ragapi/internal/pkg/textsplit"
	"ragapi/internal/pkg/webextract"
	"ragapi/internal/repository"
)

// Embedding providers often cap array input, so batch requests stay small.
const embeddingBatchSize = 32

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNoExtractableText = errors.New("document contains no extractable text")
)

// DocumentStore is the persistence surface DocumentService needs.
type DocumentStore interface {
	CreateWithChunks(doc *model.Document, chunks []model.DocumentChunk) error
	ListByUserID(userID uint) ([]repository.DocumentSummary, error)
	GetByIDAndUserID(id, userID uint) (*model.Document, error)
	DeleteByIDAndUserID(id, userID uint) error
}

// EmbeddingClient produces L2-normalized embedding vectors.
type EmbeddingClient interface {
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float32, error)
}

// URLExtractor fetches a web page and returns its readable text.
type URLExtractor interface {
	ExtractText(ctx context.Context, url string) (string, error)
}

type DocumentService struct {
	docRepo      DocumentStore
	embedder     EmbeddingClient
	urlExtractor URLExtractor
	embCfg       ai.EmbeddingConfig
	chunkSize    int
	chunkOverlap int
}

type IngestResult struct {
	DocumentID uint   `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunks"`
}

func NewDocumentService(
	docRepo DocumentStore,
	embedder EmbeddingClient,
	urlExtractor URLExtractor,
	embCfg ai.EmbeddingConfig,
	chunkSize, chunkOverlap int,
) *DocumentService {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &DocumentService{
		docRepo:      docRepo,
		embedder:     embedder,
		urlExtractor: urlExtractor,
		embCfg:       embCfg,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestPDF parses the PDF per page, chunks each page's text, embeds all
// chunks, and persists document plus chunks atomically. Each chunk carries its
// source page; the document records its page count.
func (s *DocumentService) IngestPDF(ctx context.Context, userID uint, filename string, r io.Reader) (*IngestResult, error) {
	if userID == 0 || strings.TrimSpace(filename) == "" {
		return nil, ErrInvalidInput
	}

	pages, err := pdfextract.ExtractPages(r)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoExtractableText
	}

	var chunks []model.DocumentChunk
	for _, page := range pages {
		for _, text := range textsplit.Split(page.Text, s.chunkSize, s.chunkOverlap) {
			chunk := model.DocumentChunk{
				ChunkIndex: len(chunks),
				Content:    text,
			}
			chunk.SetPage(page.Number)
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return nil, ErrNoExtractableText
	}

	doc := &model.Document{
		UserID:     userID,
		Filename:   filename,
		SourceType: model.SourceTypePDF,
	}
	doc.SetMeta(map[string]interface{}{"page_count": len(pages)})

	return s.persist(ctx, doc, chunks)
}

// IngestURL fetches the page, chunks its readable text, embeds, and persists
// atomically. URL chunks carry no page metadata.
func (s *DocumentService) IngestURL(ctx context.Context, userID uint, url string) (*IngestResult, error) {
	if userID == 0 || strings.TrimSpace(url) == "" {
		return nil, ErrInvalidInput
	}

	text, err := s.urlExtractor.ExtractText(ctx, url)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)

	var chunks []model.DocumentChunk
	for i, part := range textsplit.Split(text, s.chunkSize, s.chunkOverlap) {
		chunks = append(chunks, model.DocumentChunk{
			ChunkIndex: i,
			Content:    part,
			Metadata:   "{}",
		})
	}
	if len(chunks) == 0 {
		return nil, webextract.ErrEmptyContent
	}

	doc := &model.Document{
		UserID:     userID,
		Filename:   webextract.NameFromURL(url),
		SourceType: model.SourceTypeURL,
		SourceURL:  url,
		Metadata:   "{}",
	}

	return s.persist(ctx, doc, chunks)
}

func (s *DocumentService) persist(ctx context.Context, doc *model.Document, chunks []model.DocumentChunk) (*IngestResult, error) {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	embeddings, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = toVector(embeddings[i])
	}

	if err := s.docRepo.CreateWithChunks(doc, chunks); err != nil {
		return nil, err
	}

	return &IngestResult{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		ChunkCount: len(chunks),
	}, nil
}

func (s *DocumentService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, s.embCfg, texts[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}
	return embeddings, nil
}

func (s *DocumentService) ListDocuments(userID uint) ([]repository.DocumentSummary, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

func toVector(v []float32) pgvector.Vector {
	return pgvector.NewVector(v)
}

// DeleteDocument removes an owned document and cascades to its chunks.
func (s *DocumentService) DeleteDocument(userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	return s.docRepo.DeleteByIDAndUserID(documentID, userID)
}
