package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewTestPool creates a pgxpool connected to the test container and runs migrations
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	var pool *pgxpool.Pool
	var err error
	for i := 0; i < 5; i++ {
		pool, err = pgxpool.New(ctx, pc.ConnectionString())
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to create pool after retries: %v", err)
	}

	if err := RunMigrations(ctx, pool, migrationsDir); err != nil {
		pool.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return pool
}

// RunMigrations applies every *.up.sql file in lexical order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var upMigrations []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".up.sql") {
			upMigrations = append(upMigrations, entry.Name())
		}
	}
	sort.Strings(upMigrations)

	for _, migration := range upMigrations {
		content, err := os.ReadFile(filepath.Join(migrationsDir, migration))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", migration, err)
		}

		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration, err)
		}
	}

	return nil
}

// TruncateAll empties every application table for test isolation.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	tables := []string{
		"vector_cleanup_jobs",
		"chat_history",
		"document_chunks",
		"documents",
		"api_tokens",
		"users",
	}

	for _, table := range tables {
		if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	return nil
}

// SeedUser inserts an active user and returns it.
func SeedUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool, email string) *domain.User {
	t.Helper()
	u := domain.NewUser(uuid.NewString(), email, "Test User", time.Now().UTC().Truncate(time.Microsecond))
	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, email, name, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

// SeedDocument inserts a document owned by userID and returns it.
func SeedDocument(ctx context.Context, t *testing.T, pool *pgxpool.Pool, userID, title string) *domain.Document {
	t.Helper()
	d := &domain.Document{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		FileURL:    "http://blob.local/documents/" + title,
		StorageKey: "documents/" + title,
		FileType:   domain.FileKindPDF,
		UploadedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO documents (id, user_id, title, file_url, storage_key, file_type, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.UserID, d.Title, d.FileURL, d.StorageKey, d.FileType, d.UploadedAt,
	)
	if err != nil {
		t.Fatalf("failed to seed document: %v", err)
	}
	return d
}
