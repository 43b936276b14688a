package service

import "context"

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Documents() DocumentRepository
	Chunks() ChunkRepository
	ChatHistory() ChatHistoryRepository
	CleanupJobs() CleanupJobRepository
	Users() UserRepository
	APITokens() APITokenRepository
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
