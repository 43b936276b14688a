package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/docchat/internal/cli"
	"github.com/cloo-solutions/docchat/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docchat",
		Short: "Docchat CLI - chat with your documents",
		Long: `Docchat CLI uploads documents and asks questions grounded on their content.

Environment variables:
  DOCCHAT_API_TOKEN   API token for authentication
  DOCCHAT_API_URL     API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.LoginCmd())
	rootCmd.AddCommand(client.LogoutCmd())
	rootCmd.AddCommand(client.StatusCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.DownloadCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.ProfileCmd())

	if handled, err := cli.CheckHelpJSON(rootCmd, os.Args[1:]); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
