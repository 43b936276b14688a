package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// LoginCmd creates the login command
func LoginCmd() *cobra.Command {
	var apiToken string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with an API token",
		Long:  "Verify an API token against the server and store it in the global config (~/.config/docchat/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(apiToken, apiURL)
		},
	}

	cmd.Flags().StringVar(&apiToken, "token", "", "API token (dc_...)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")

	return cmd
}

// LogoutCmd creates the logout command
func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Println("Successfully logged out")
			return nil
		},
	}
}

// StatusCmd creates the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display where the current credentials come from",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			flagToken, _ := cmd.Flags().GetString("api-token")
			flagURL, _ := cmd.Flags().GetString("api-url")
			source, token, url := GetCredentialSource(flagToken, flagURL)
			if outputJSON {
				return outputStatusJSON(source, token, url)
			}
			outputStatusText(source, token, url)
			return nil
		},
	}
}

func runLogin(apiToken, apiURL string) error {
	if apiToken == "" {
		fmt.Print("Enter API token: ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API token: %w", err)
		}
		apiToken = strings.TrimSpace(input)
	}

	if !IsValidAPIToken(apiToken) {
		return fmt.Errorf("invalid API token format (expected: dc_ + 64 hex characters)")
	}

	identity, err := fetchIdentity(NewAPIClientWithConfig(apiToken, apiURL))
	if err != nil {
		return fmt.Errorf("failed to verify API token: %w", err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIToken: apiToken, APIURL: apiURL}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("Logged in as %s (%s)\n", identity.Name, identity.Email)
	return nil
}

func outputStatusJSON(source CredentialSource, apiToken, apiURL string) error {
	status := map[string]interface{}{
		"authenticated": source != SourceNone,
		"source":        string(source),
	}

	if source != SourceNone {
		status["api_token"] = maskAPIToken(apiToken)
		status["api_url"] = apiURL
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	fmt.Println(string(data))
	return nil
}

func outputStatusText(source CredentialSource, apiToken, apiURL string) {
	if source == SourceNone {
		fmt.Println("Not authenticated")
		fmt.Println("Run 'docchat login' to authenticate")
		return
	}

	fmt.Printf("Authenticated: yes\n")
	fmt.Printf("Source: %s\n", source)
	fmt.Printf("API Token: %s\n", maskAPIToken(apiToken))
	fmt.Printf("API URL: %s\n", apiURL)
}

func maskAPIToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:6] + "..." + token[len(token)-4:]
}
