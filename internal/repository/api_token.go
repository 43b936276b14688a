package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/pagination"
	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type APITokenRepository struct {
	db dbtx
}

func NewAPITokenRepository(pool *pgxpool.Pool) *APITokenRepository {
	return &APITokenRepository{db: pool}
}

func NewAPITokenRepositoryWithTx(tx pgx.Tx) *APITokenRepository {
	return &APITokenRepository{db: tx}
}

func (r *APITokenRepository) Create(ctx context.Context, token *domain.APIToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO api_tokens (id, user_id, name, token_hash, created_at, revoked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, token.Name, token.TokenHash, token.CreatedAt, token.RevokedAt,
	)
	return err
}

func (r *APITokenRepository) GetByHash(ctx context.Context, hash string) (*domain.APIToken, error) {
	var t domain.APIToken
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, token_hash, created_at, revoked_at
		 FROM api_tokens WHERE token_hash = $1`,
		hash,
	).Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.CreatedAt, &t.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAPITokenNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *APITokenRepository) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.TokenCursor, limit int) (*service.APITokenPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, name, token_hash, created_at, revoked_at
			 FROM api_tokens
			 WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			userID, cursor.CreatedAt, cursor.TokenID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, user_id, name, token_hash, created_at, revoked_at
			 FROM api_tokens
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			userID, limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*domain.APIToken
	for rows.Next() {
		var t domain.APIToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash, &t.CreatedAt, &t.RevokedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(tokens) > limit
	if hasMore {
		tokens = tokens[:limit]
	}

	var nextCursor string
	if hasMore {
		nextCursor = pagination.After(tokens[len(tokens)-1]).Encode()
	}

	return &service.APITokenPageResult{
		Items:      tokens,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *APITokenRepository) Revoke(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAPITokenNotFound
	}
	return nil
}
