package service

import "context"

type testTxRepos struct {
	documents   DocumentRepository
	chunks      ChunkRepository
	chatHistory ChatHistoryRepository
	cleanupJobs CleanupJobRepository
	users       UserRepository
	apiTokens   APITokenRepository
}

func (t *testTxRepos) Documents() DocumentRepository {
	return t.documents
}

func (t *testTxRepos) Chunks() ChunkRepository {
	return t.chunks
}

func (t *testTxRepos) ChatHistory() ChatHistoryRepository {
	return t.chatHistory
}

func (t *testTxRepos) CleanupJobs() CleanupJobRepository {
	return t.cleanupJobs
}

func (t *testTxRepos) Users() UserRepository {
	return t.users
}

func (t *testTxRepos) APITokens() APITokenRepository {
	return t.apiTokens
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
