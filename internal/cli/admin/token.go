package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/docchat/internal/repository"
	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
		Long:  "Create, list, and revoke API tokens",
	}

	cmd.AddCommand(TokenCreateCmd())
	cmd.AddCommand(TokenListCmd())
	cmd.AddCommand(TokenRevokeCmd())

	return cmd
}

func newAuthService(pool *pgxpool.Pool) *service.AuthService {
	return service.NewAuthService(
		repository.NewUserRepository(pool),
		repository.NewAPITokenRepository(pool),
		&service.DefaultUUIDGenerator{},
	)
}

func TokenCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API token",
		Long:  "Create a new API token for a user",
		RunE:  runTokenCreate,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().StringP("name", "n", "", "Token name (required)")
	cmd.Flags().String("output", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	userID, _ := cmd.Flags().GetString("user")
	name, _ := cmd.Flags().GetString("name")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	plaintext, record, err := newAuthService(pool).CreateToken(ctx, userID, name)
	if err != nil {
		return fmt.Errorf("failed to create API token: %w", err)
	}

	if outputFormat == "json" {
		printJSON(map[string]interface{}{
			"id":      record.ID,
			"name":    record.Name,
			"user_id": record.UserID,
			"token":   plaintext,
		})
		return nil
	}

	fmt.Printf("API token created for user %s\n", record.UserID)
	fmt.Printf("Token ID: %s\n", record.ID)
	fmt.Printf("Token Name: %s\n", record.Name)
	fmt.Printf("Token: %s\n", plaintext)
	fmt.Println("\nSave this token now. It cannot be shown again.")
	return nil
}

func TokenListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API tokens for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			outputFormat, _ := cmd.Flags().GetString("output")
			return runTokenList(userID, outputFormat, limit, cursor)
		},
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().String("output", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultTokenPageSize, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runTokenList(userID, outputFormat string, limit int, cursor string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	result, err := newAuthService(pool).ListTokens(ctx, userID, cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list API tokens: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(result.Items))
		for i, tok := range result.Items {
			data[i] = map[string]interface{}{
				"id":         tok.ID,
				"name":       tok.Name,
				"user_id":    tok.UserID,
				"created_at": tok.CreatedAt,
				"revoked_at": tok.RevokedAt,
				"revoked":    tok.IsRevoked(),
			}
		}
		printJSON(map[string]interface{}{
			"items":    data,
			"cursor":   result.NextCursor,
			"has_more": result.HasMore,
		})
		return nil
	}

	if len(result.Items) == 0 {
		fmt.Printf("No API tokens found for user %s\n", userID)
		return nil
	}
	fmt.Printf("API tokens for user %s:\n", userID)
	for _, tok := range result.Items {
		status := "active"
		if tok.IsRevoked() {
			status = "revoked"
		}
		fmt.Printf("  %s: %s (%s, created: %s)\n", tok.ID, tok.Name, status, tok.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if result.HasMore && result.NextCursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s\n", result.NextCursor)
	}
	return nil
}

func TokenRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API token",
		Args:  cobra.ExactArgs(1),
		RunE:  runTokenRevoke,
	}

	cmd.Flags().String("output", "text", "Output format (text or json)")

	return cmd
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tokenID := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := newAuthService(pool).RevokeToken(ctx, tokenID); err != nil {
		return fmt.Errorf("failed to revoke API token: %w", err)
	}

	if outputFormat == "json" {
		printJSON(map[string]interface{}{
			"id":      tokenID,
			"revoked": true,
			"message": "API token revoked successfully",
		})
		return nil
	}

	fmt.Printf("API token %s revoked successfully\n", tokenID)
	return nil
}
