package app

import (
	"context"
	"errors"

	"ragapi/internal/ai"
	"ragapi/internal/model"
	"ragapi/internal/repository"
)

// Shared test doubles for the persistence, embedding, and LLM surfaces.

type stubUserStore struct {
	users  map[uint]*model.User
	nextID uint
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: map[uint]*model.User{}, nextID: 1}
}

func (s *stubUserStore) Create(user *model.User) error {
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = user
	return nil
}

func (s *stubUserStore) GetByEmail(email string) (*model.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *stubUserStore) GetByUsername(username string) (*model.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (s *stubUserStore) GetByID(id uint) (*model.User, error) {
	return s.users[id], nil
}

type stubDocStore struct {
	created    []*model.Document
	chunks     [][]model.DocumentChunk
	docs       map[uint]*model.Document
	deletedIDs []uint
	createErr  error
}

func newStubDocStore() *stubDocStore {
	return &stubDocStore{docs: map[uint]*model.Document{}}
}

func (s *stubDocStore) CreateWithChunks(doc *model.Document, chunks []model.DocumentChunk) error {
	if s.createErr != nil {
		return s.createErr
	}
	doc.ID = uint(len(s.created) + 1)
	s.created = append(s.created, doc)
	s.chunks = append(s.chunks, chunks)
	s.docs[doc.ID] = doc
	return nil
}

func (s *stubDocStore) ListByUserID(userID uint) ([]repository.DocumentSummary, error) {
	var out []repository.DocumentSummary
	for _, d := range s.created {
		if d.UserID == userID {
			out = append(out, repository.DocumentSummary{ID: d.ID, Filename: d.Filename, SourceType: d.SourceType})
		}
	}
	return out, nil
}

func (s *stubDocStore) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	doc := s.docs[id]
	if doc == nil || doc.UserID != userID {
		return nil, nil
	}
	return doc, nil
}

func (s *stubDocStore) DeleteByIDAndUserID(id, userID uint) error {
	s.deletedIDs = append(s.deletedIDs, id)
	delete(s.docs, id)
	return nil
}

// stubEmbedder returns unit vectors without talking to any API.
type stubEmbedder struct {
	calls [][]string
	err   error
}

func (s *stubEmbedder) Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, []string{text})
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type stubExtractor struct {
	text string
	err  error
	urls []string
}

func (s *stubExtractor) ExtractText(ctx context.Context, url string) (string, error) {
	s.urls = append(s.urls, url)
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type stubSessionStore struct {
	sessions map[uint]*model.ChatSession
	nextID   uint
	deleted  []uint
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: map[uint]*model.ChatSession{}, nextID: 1}
}

func (s *stubSessionStore) Create(session *model.ChatSession) error {
	session.ID = s.nextID
	s.nextID++
	s.sessions[session.ID] = session
	return nil
}

func (s *stubSessionStore) ListByUserID(userID uint) ([]repository.SessionSummary, error) {
	var out []repository.SessionSummary
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, repository.SessionSummary{ID: sess.ID, Title: sess.Title})
		}
	}
	return out, nil
}

func (s *stubSessionStore) GetByIDAndUserID(sessionID, userID uint) (*model.ChatSession, error) {
	sess := s.sessions[sessionID]
	if sess == nil || sess.UserID != userID {
		return nil, nil
	}
	return sess, nil
}

func (s *stubSessionStore) DeleteByIDAndUserID(sessionID, userID uint) error {
	s.deleted = append(s.deleted, sessionID)
	delete(s.sessions, sessionID)
	return nil
}

type stubMessageStore struct {
	messages map[uint][]model.ChatMessage
}

func newStubMessageStore() *stubMessageStore {
	return &stubMessageStore{messages: map[uint][]model.ChatMessage{}}
}

func (s *stubMessageStore) CreatePair(userMsg, assistantMsg *model.ChatMessage) error {
	s.messages[userMsg.SessionID] = append(s.messages[userMsg.SessionID], *userMsg, *assistantMsg)
	return nil
}

func (s *stubMessageStore) ListBySessionID(sessionID uint) ([]model.ChatMessage, error) {
	return s.messages[sessionID], nil
}

type stubRetriever struct {
	chunks []repository.RetrievedChunk
	err    error
	userID uint
	query  string
	k      int
}

func (s *stubRetriever) Search(ctx context.Context, userID uint, query string, k int) ([]repository.RetrievedChunk, error) {
	s.userID = userID
	s.query = query
	s.k = k
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

type stubCompleter struct {
	answer   string
	err      error
	received [][]ai.ChatMessage
	cfg      ai.ChatConfig
}

func (s *stubCompleter) Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	s.cfg = cfg
	s.received = append(s.received, messages)
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

type stubSearcher struct {
	chunks    []repository.RetrievedChunk
	userID    uint
	embedding []float32
	k         int
}

func (s *stubSearcher) SearchNearest(userID uint, embedding []float32, k int) ([]repository.RetrievedChunk, error) {
	s.userID = userID
	s.embedding = embedding
	s.k = k
	return s.chunks, nil
}

var errStub = errors.New("stub failure")
