package app

import (
	"context"
	"errors"
	"strings"

	"ragapi/internal/ai"
	"ragapi/internal/model"
	"ragapi/internal/repository"
)

const defaultTopK = 4

const chatSystemPrompt = `You are a helpful assistant answering questions based on the provided context.
Use the context below to answer the question. If you don't know the answer, say so.
Keep your answer concise and relevant.

Context:
`

const citationPreviewRunes = 200

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoDocuments     = errors.New("no documents found, please upload documents first")
	ErrLLMConfig       = errors.New("llm api key is not configured")
)

// SessionStore is the persistence surface ChatService needs for sessions.
type SessionStore interface {
	Create(session *model.ChatSession) error
	ListByUserID(userID uint) ([]repository.SessionSummary, error)
	GetByIDAndUserID(sessionID, userID uint) (*model.ChatSession, error)
	DeleteByIDAndUserID(sessionID, userID uint) error
}

// MessageStore is the persistence surface ChatService needs for messages.
type MessageStore interface {
	CreatePair(userMsg, assistantMsg *model.ChatMessage) error
	ListBySessionID(sessionID uint) ([]model.ChatMessage, error)
}

// Retriever returns the user's k nearest chunks for a query.
type Retriever interface {
	Search(ctx context.Context, userID uint, query string, k int) ([]repository.RetrievedChunk, error)
}

// Completer runs a synchronous chat completion.
type Completer interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// HistoryStore caches session histories between reads.
type HistoryStore interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.ChatMessage, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.ChatMessage) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type ChatService struct {
	sessionRepo  SessionStore
	messageRepo  MessageStore
	retriever    Retriever
	llmClient    Completer
	historyCache HistoryStore
	defaultLLM   ai.ChatConfig
	topK         int
}

type QueryInput struct {
	UserID    uint
	SessionID uint // 0 = create a new session
	Question  string
	APIKey    string // per-request LLM key, overrides the configured default
}

type Citation struct {
	Source  string `json:"source"`
	Page    *int   `json:"page"`
	Content string `json:"content"`
}

type QueryResult struct {
	Answer    string     `json:"answer"`
	SessionID uint       `json:"session_id"`
	Citations []Citation `json:"citations"`
}

func NewChatService(
	sessionRepo SessionStore,
	messageRepo MessageStore,
	retriever Retriever,
	llmClient Completer,
	historyCache HistoryStore,
	defaultLLM ai.ChatConfig,
	topK int,
) *ChatService {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		retriever:    retriever,
		llmClient:    llmClient,
		historyCache: historyCache,
		defaultLLM:   defaultLLM,
		topK:         topK,
	}
}

// Query answers a question from the user's documents: it resolves or lazily
// creates the session, retrieves the nearest chunks, replays prior turns,
// calls the LLM, persists the new turn, and returns the answer with citations
// pointing at exactly the chunks used as context.
func (s *ChatService) Query(ctx context.Context, input QueryInput) (*QueryResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrInvalidInput
	}

	cfg, err := s.resolveLLM(input.APIKey)
	if err != nil {
		return nil, err
	}

	session, err := s.resolveSession(input.UserID, input.SessionID)
	if err != nil {
		return nil, err
	}

	chunks, err := s.retriever.Search(ctx, input.UserID, question, s.topK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}

	history, err := s.messageRepo.ListBySessionID(session.ID)
	if err != nil {
		return nil, err
	}

	messages := buildPrompt(chunks, history, question)
	answer, err := s.llmClient.Complete(ctx, cfg, messages)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)

	userMessage := &model.ChatMessage{
		SessionID: session.ID,
		Role:      model.RoleUser,
		Content:   question,
	}
	assistantMessage := &model.ChatMessage{
		SessionID: session.ID,
		Role:      model.RoleAssistant,
		Content:   answer,
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, session.ID)
		_ = s.historyCache.DeleteHistory(ctx, session.ID)
	}
	if err := s.messageRepo.CreatePair(userMessage, assistantMessage); err != nil {
		return nil, err
	}

	return &QueryResult{
		Answer:    answer,
		SessionID: session.ID,
		Citations: buildCitations(chunks),
	}, nil
}

func (s *ChatService) resolveSession(userID, sessionID uint) (*model.ChatSession, error) {
	if sessionID != 0 {
		session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		return session, nil
	}

	session := &model.ChatSession{UserID: userID, Title: "New Chat"}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) resolveLLM(apiKey string) (ai.ChatConfig, error) {
	cfg := s.defaultLLM
	if strings.TrimSpace(apiKey) != "" {
		cfg.APIKey = strings.TrimSpace(apiKey)
	}
	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.Model == "" {
		return ai.ChatConfig{}, ErrLLMConfig
	}
	return cfg, nil
}

// buildPrompt composes the fixed system instruction with the retrieved context,
// the prior turns in chronological order, and the new question.
func buildPrompt(chunks []repository.RetrievedChunk, history []model.ChatMessage, question string) []ai.ChatMessage {
	blocks := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		blocks = append(blocks, "Source: "+chunk.Filename+"\n"+chunk.Content)
	}
	contextBlock := strings.Join(blocks, "\n\n")

	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{
		Role:    "system",
		Content: chatSystemPrompt + contextBlock,
	})
	for _, item := range history {
		role := item.Role
		if role != model.RoleAssistant {
			role = model.RoleUser
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: item.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: model.RoleUser, Content: question})
	return messages
}

// buildCitations derives citations from the same chunks that formed the
// context, so every answer stays traceable to its sources.
func buildCitations(chunks []repository.RetrievedChunk) []Citation {
	citations := make([]Citation, 0, len(chunks))
	for i := range chunks {
		citation := Citation{
			Source:  chunks[i].Filename,
			Content: previewContent(chunks[i].Content),
		}
		if page, ok := chunks[i].Page(); ok {
			p := page
			citation.Page = &p
		}
		citations = append(citations, citation)
	}
	return citations
}

func previewContent(content string) string {
	runes := []rune(content)
	if len(runes) <= citationPreviewRunes {
		return content
	}
	return string(runes[:citationPreviewRunes]) + "..."
}

func (s *ChatService) ListSessions(userID uint) ([]repository.SessionSummary, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

// GetHistory returns the session's messages in chronological order, serving
// from the cache when it is clean.
func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint) ([]model.ChatMessage, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

// DeleteSession removes an owned session and cascades to its messages.
func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.sessionRepo.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	return nil
}
