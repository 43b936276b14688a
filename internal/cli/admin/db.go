package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/docchat/internal/config"
	"github.com/cloo-solutions/docchat/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func printJSON(v interface{}) {
	jsonBytes, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(jsonBytes))
}
