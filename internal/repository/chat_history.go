package repository

import (
	"context"
	"slices"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatHistoryRepository stores chat turns. Turns are append-only; they are
// only removed together with their document.
type ChatHistoryRepository struct {
	db dbtx
}

func NewChatHistoryRepository(pool *pgxpool.Pool) *ChatHistoryRepository {
	return &ChatHistoryRepository{db: pool}
}

func NewChatHistoryRepositoryWithTx(tx pgx.Tx) *ChatHistoryRepository {
	return &ChatHistoryRepository{db: tx}
}

func (r *ChatHistoryRepository) Append(ctx context.Context, turn *domain.ChatTurn) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_history (id, user_id, document_id, user_message, bot_response, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.ID, turn.UserID, turn.DocumentID, turn.UserMessage, turn.BotResponse, turn.Timestamp,
	)
	return err
}

// Recent returns the newest limit turns, oldest first.
func (r *ChatHistoryRepository) Recent(ctx context.Context, userID, documentID string, limit int) ([]*domain.ChatTurn, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, document_id, user_message, bot_response, timestamp
		 FROM chat_history
		 WHERE user_id = $1 AND document_id = $2
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $3`,
		userID, documentID, limit,
	)
	if err != nil {
		return nil, err
	}
	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(turns)
	return turns, nil
}

// Full returns every turn for the pair, oldest first.
func (r *ChatHistoryRepository) Full(ctx context.Context, userID, documentID string) ([]*domain.ChatTurn, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, document_id, user_message, bot_response, timestamp
		 FROM chat_history
		 WHERE user_id = $1 AND document_id = $2
		 ORDER BY timestamp ASC, id ASC`,
		userID, documentID,
	)
	if err != nil {
		return nil, err
	}
	return scanTurns(rows)
}

func (r *ChatHistoryRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_history WHERE document_id = $1`, documentID)
	return err
}

func scanTurns(rows pgx.Rows) ([]*domain.ChatTurn, error) {
	defer rows.Close()

	var turns []*domain.ChatTurn
	for rows.Next() {
		var t domain.ChatTurn
		if err := rows.Scan(&t.ID, &t.UserID, &t.DocumentID, &t.UserMessage, &t.BotResponse, &t.Timestamp); err != nil {
			return nil, err
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}
