package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ragapi/internal/ai"
	"ragapi/internal/model"
	"ragapi/internal/repository"
)

func testChunks() []repository.RetrievedChunk {
	return []repository.RetrievedChunk{
		{ChunkID: 1, DocumentID: 1, Content: "alpha content", Filename: "report.pdf", SourceType: "pdf", Metadata: `{"page": 3}`},
		{ChunkID: 2, DocumentID: 2, Content: "beta content", Filename: "golang.org", SourceType: "url"},
	}
}

func newTestChatService(sessions *stubSessionStore, messages *stubMessageStore, retriever *stubRetriever, completer *stubCompleter) *ChatService {
	return NewChatService(sessions, messages, retriever, completer, nil, ai.ChatConfig{
		BaseURL: "https://api.groq.com/openai/v1",
		APIKey:  "default-key",
		Model:   "llama-3.3-70b-versatile",
	}, 4)
}

func TestQueryCreatesSessionLazily(t *testing.T) {
	sessions := newStubSessionStore()
	messages := newStubMessageStore()
	retriever := &stubRetriever{chunks: testChunks()}
	completer := &stubCompleter{answer: "the answer"}
	svc := newTestChatService(sessions, messages, retriever, completer)

	result, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "what is alpha?"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.SessionID == 0 {
		t.Fatal("expected a new session id")
	}
	created := sessions.sessions[result.SessionID]
	if created == nil || created.UserID != 7 {
		t.Fatalf("session not created for user: %+v", created)
	}
	if created.Title != "New Chat" {
		t.Fatalf("unexpected default title: %q", created.Title)
	}
	if result.Answer != "the answer" {
		t.Fatalf("unexpected answer: %q", result.Answer)
	}
}

func TestQueryForeignSessionRejected(t *testing.T) {
	sessions := newStubSessionStore()
	sessions.Create(&model.ChatSession{UserID: 99, Title: "New Chat"})
	svc := newTestChatService(sessions, newStubMessageStore(), &stubRetriever{chunks: testChunks()}, &stubCompleter{answer: "x"})

	_, err := svc.Query(context.Background(), QueryInput{UserID: 7, SessionID: 1, Question: "hi"})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestQueryNoDocuments(t *testing.T) {
	svc := newTestChatService(newStubSessionStore(), newStubMessageStore(), &stubRetriever{}, &stubCompleter{answer: "x"})

	_, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "hi"})
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestQueryPromptAndPersistence(t *testing.T) {
	sessions := newStubSessionStore()
	messages := newStubMessageStore()
	retriever := &stubRetriever{chunks: testChunks()}
	completer := &stubCompleter{answer: "first answer"}
	svc := newTestChatService(sessions, messages, retriever, completer)

	first, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "first question"})
	if err != nil {
		t.Fatalf("first Query failed: %v", err)
	}

	completer.answer = "second answer"
	_, err = svc.Query(context.Background(), QueryInput{UserID: 7, SessionID: first.SessionID, Question: "second question"})
	if err != nil {
		t.Fatalf("second Query failed: %v", err)
	}

	if len(completer.received) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(completer.received))
	}
	prompt := completer.received[1]
	// system + prior user + prior assistant + new user
	if len(prompt) != 4 {
		t.Fatalf("expected 4 prompt messages, got %d", len(prompt))
	}
	if prompt[0].Role != "system" {
		t.Fatalf("first message must be system, got %q", prompt[0].Role)
	}
	if !strings.Contains(prompt[0].Content, "Source: report.pdf\nalpha content") {
		t.Fatalf("system prompt missing context block: %q", prompt[0].Content)
	}
	if !strings.Contains(prompt[0].Content, "Source: golang.org\nbeta content") {
		t.Fatalf("system prompt missing second source: %q", prompt[0].Content)
	}
	if prompt[1].Role != "user" || prompt[1].Content != "first question" {
		t.Fatalf("unexpected replayed user turn: %+v", prompt[1])
	}
	if prompt[2].Role != "assistant" || prompt[2].Content != "first answer" {
		t.Fatalf("unexpected replayed assistant turn: %+v", prompt[2])
	}
	if prompt[3].Role != "user" || prompt[3].Content != "second question" {
		t.Fatalf("unexpected new question turn: %+v", prompt[3])
	}

	stored := messages.messages[first.SessionID]
	if len(stored) != 4 {
		t.Fatalf("expected 4 persisted messages, got %d", len(stored))
	}
	if stored[2].Content != "second question" || stored[3].Content != "second answer" {
		t.Fatalf("second turn not persisted in order: %+v", stored)
	}
}

func TestQueryCitations(t *testing.T) {
	retriever := &stubRetriever{chunks: testChunks()}
	svc := newTestChatService(newStubSessionStore(), newStubMessageStore(), retriever, &stubCompleter{answer: "ok"})

	result, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "q"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(result.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(result.Citations))
	}
	if result.Citations[0].Source != "report.pdf" {
		t.Fatalf("unexpected citation source: %q", result.Citations[0].Source)
	}
	if result.Citations[0].Page == nil || *result.Citations[0].Page != 3 {
		t.Fatalf("expected page 3 on first citation, got %v", result.Citations[0].Page)
	}
	if result.Citations[1].Page != nil {
		t.Fatalf("url chunk must not carry a page, got %v", *result.Citations[1].Page)
	}
}

func TestQueryCitationPreviewTruncated(t *testing.T) {
	long := strings.Repeat("x", 500)
	retriever := &stubRetriever{chunks: []repository.RetrievedChunk{
		{ChunkID: 1, Content: long, Filename: "big.pdf"},
	}}
	svc := newTestChatService(newStubSessionStore(), newStubMessageStore(), retriever, &stubCompleter{answer: "ok"})

	result, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "q"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	preview := result.Citations[0].Content
	if !strings.HasSuffix(preview, "...") {
		t.Fatalf("expected truncated preview, got %q", preview)
	}
	if got := len([]rune(preview)); got != citationPreviewRunes+3 {
		t.Fatalf("unexpected preview length %d", got)
	}
}

func TestQueryAPIKeyOverride(t *testing.T) {
	completer := &stubCompleter{answer: "ok"}
	svc := newTestChatService(newStubSessionStore(), newStubMessageStore(), &stubRetriever{chunks: testChunks()}, completer)

	_, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "q", APIKey: "request-key"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if completer.cfg.APIKey != "request-key" {
		t.Fatalf("request key must override the default, got %q", completer.cfg.APIKey)
	}
	if completer.cfg.Model != "llama-3.3-70b-versatile" {
		t.Fatalf("model must come from the default config, got %q", completer.cfg.Model)
	}
}

func TestQueryMissingAPIKey(t *testing.T) {
	svc := NewChatService(newStubSessionStore(), newStubMessageStore(), &stubRetriever{chunks: testChunks()}, &stubCompleter{answer: "x"}, nil, ai.ChatConfig{
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama-3.3-70b-versatile",
	}, 4)

	_, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "q"})
	if !errors.Is(err, ErrLLMConfig) {
		t.Fatalf("expected ErrLLMConfig, got %v", err)
	}
}

func TestQueryLLMFailureLeavesNothingPersisted(t *testing.T) {
	messages := newStubMessageStore()
	svc := newTestChatService(newStubSessionStore(), messages, &stubRetriever{chunks: testChunks()}, &stubCompleter{err: errStub})

	_, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "q"})
	if !errors.Is(err, errStub) {
		t.Fatalf("expected stub failure, got %v", err)
	}
	for _, msgs := range messages.messages {
		if len(msgs) != 0 {
			t.Fatalf("no messages may be persisted on LLM failure, got %+v", msgs)
		}
	}
}

func TestQueryBlankQuestion(t *testing.T) {
	svc := newTestChatService(newStubSessionStore(), newStubMessageStore(), &stubRetriever{chunks: testChunks()}, &stubCompleter{answer: "x"})
	if _, err := svc.Query(context.Background(), QueryInput{UserID: 7, Question: "   "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetHistoryForeignSession(t *testing.T) {
	sessions := newStubSessionStore()
	sessions.Create(&model.ChatSession{UserID: 99, Title: "New Chat"})
	svc := newTestChatService(sessions, newStubMessageStore(), &stubRetriever{}, &stubCompleter{})

	if _, err := svc.GetHistory(context.Background(), 7, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	sessions := newStubSessionStore()
	sessions.Create(&model.ChatSession{UserID: 7, Title: "New Chat"})
	svc := newTestChatService(sessions, newStubMessageStore(), &stubRetriever{}, &stubCompleter{})

	if err := svc.DeleteSession(context.Background(), 7, 1); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if len(sessions.deleted) != 1 || sessions.deleted[0] != 1 {
		t.Fatalf("session not deleted: %v", sessions.deleted)
	}

	if err := svc.DeleteSession(context.Background(), 7, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}
