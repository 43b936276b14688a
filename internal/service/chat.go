package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
)

// ChatHistory is the append-only log of turns per (user, document).
type ChatHistory struct {
	repo  ChatHistoryRepository
	idGen UUIDGenerator
	now   func() time.Time
}

func NewChatHistory(repo ChatHistoryRepository) *ChatHistory {
	return &ChatHistory{repo: repo, idGen: &KSUIDGenerator{}, now: time.Now}
}

// Append stores one turn stamped with the server clock.
func (h *ChatHistory) Append(ctx context.Context, ownerID, documentID, userMessage, botResponse string) (*domain.ChatTurn, error) {
	if ownerID == "" || documentID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if strings.TrimSpace(userMessage) == "" {
		return nil, domain.ErrEmptyMessage
	}

	turn := &domain.ChatTurn{
		ID:          h.idGen.NewString(),
		UserID:      ownerID,
		DocumentID:  documentID,
		UserMessage: userMessage,
		BotResponse: botResponse,
		Timestamp:   h.now().UTC().Truncate(time.Microsecond),
	}
	if err := h.repo.Append(ctx, turn); err != nil {
		return nil, err
	}
	return turn, nil
}

// Recent returns at most limit of the newest turns, oldest first.
func (h *ChatHistory) Recent(ctx context.Context, ownerID, documentID string, limit int) ([]*domain.ChatTurn, error) {
	if limit <= 0 {
		limit = DefaultHistoryWindow
	}
	return h.repo.Recent(ctx, ownerID, documentID, limit)
}

// Full returns every turn, oldest first.
func (h *ChatHistory) Full(ctx context.Context, ownerID, documentID string) ([]*domain.ChatTurn, error) {
	return h.repo.Full(ctx, ownerID, documentID)
}
