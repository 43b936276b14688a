package repository

import (
	"context"

	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Documents() service.DocumentRepository {
	return NewDocumentRepositoryWithTx(r.tx)
}

func (r *txRepos) Chunks() service.ChunkRepository {
	return NewDocumentChunkRepositoryWithTx(r.tx)
}

func (r *txRepos) ChatHistory() service.ChatHistoryRepository {
	return NewChatHistoryRepositoryWithTx(r.tx)
}

func (r *txRepos) CleanupJobs() service.CleanupJobRepository {
	return NewCleanupJobRepositoryWithTx(r.tx)
}

func (r *txRepos) Users() service.UserRepository {
	return NewUserRepositoryWithTx(r.tx)
}

func (r *txRepos) APITokens() service.APITokenRepository {
	return NewAPITokenRepositoryWithTx(r.tx)
}
