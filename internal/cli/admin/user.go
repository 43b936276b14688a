package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/docchat/internal/repository"
	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create and list users",
	}

	cmd.AddCommand(UserCreateCmd())
	cmd.AddCommand(UserListCmd())

	return cmd
}

func UserCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a user and its first API token",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCreate,
	}

	cmd.Flags().StringP("name", "n", "", "Display name (required)")
	cmd.Flags().String("location", "", "Location")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name, _ := cmd.Flags().GetString("name")
	location, _ := cmd.Flags().GetString("location")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	uuidGen := &service.DefaultUUIDGenerator{}
	userRepo := repository.NewUserRepository(pool)
	authSvc := service.NewAuthService(userRepo, repository.NewAPITokenRepository(pool), uuidGen)
	userSvc := service.NewUserService(userRepo, authSvc, repository.NewTxRunner(pool), nil, uuidGen)

	result, err := userSvc.Signup(ctx, service.SignupInput{Email: args[0], Name: name, Location: location})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if outputFormat == "json" {
		printJSON(map[string]interface{}{
			"id":         result.User.ID,
			"email":      result.User.Email,
			"name":       result.User.Name,
			"created_at": result.User.CreatedAt,
			"token":      result.Token,
		})
		return nil
	}

	fmt.Printf("User created: %s (%s)\n", result.User.Email, result.User.ID)
	fmt.Printf("Token: %s\n", result.Token)
	fmt.Println("\nSave this token now. It cannot be shown again.")
	return nil
}

func UserListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE:  runUserList,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runUserList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	users, err := repository.NewUserRepository(pool).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(users))
		for i, u := range users {
			data[i] = map[string]interface{}{
				"id":         u.ID,
				"email":      u.Email,
				"name":       u.Name,
				"is_active":  u.IsActive,
				"created_at": u.CreatedAt,
			}
		}
		printJSON(data)
		return nil
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}
	for _, u := range users {
		status := "active"
		if !u.IsActive {
			status = "inactive"
		}
		fmt.Printf("  %s: %s <%s> (%s, created: %s)\n", u.ID, u.Name, u.Email, status, u.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
