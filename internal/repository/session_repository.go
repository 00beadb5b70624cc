package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragapi/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// SessionSummary is a session row with its message count, for listing.
type SessionSummary struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

func (r *SessionRepository) Create(session *model.ChatSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create chat session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListByUserID(userID uint) ([]SessionSummary, error) {
	var list []SessionSummary
	err := r.db.Raw(`
		SELECT s.id, s.title, s.created_at, COUNT(m.id) AS message_count
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id
		WHERE s.user_id = ?
		GROUP BY s.id, s.title, s.created_at
		ORDER BY s.created_at DESC`, userID).Scan(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list chat sessions failed: %w", err)
	}
	return list, nil
}

func (r *SessionRepository) GetByIDAndUserID(sessionID, userID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat session failed: %w", err)
	}
	return &session, nil
}

// DeleteByIDAndUserID removes the session and its messages in one transaction.
func (r *SessionRepository) DeleteByIDAndUserID(sessionID, userID uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&model.ChatSession{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete chat session failed: %w", err)
	}
	return nil
}
