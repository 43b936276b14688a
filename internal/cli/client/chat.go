package client

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "chat <document-id> <message...>",
		Short: "Ask a question about a document",
		Long: `Asks a question grounded on the chunks of one document.

Examples:
  docchat chat 7b2f... "What is the notice period?"
  docchat chat 7b2f... summarize section 3 --sources`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			message := strings.Join(args[1:], " ")
			return runChat(api, cmd.OutOrStdout(), args[0], message, showSources, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the retrieved source chunks")

	return cmd
}

func runChat(api *APIClient, out io.Writer, documentID, message string, showSources, outputJSON bool) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message cannot be empty")
	}

	resp, err := api.Post("/documents/chat/"+url.PathEscape(documentID), map[string]string{"message": message})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	var answer ChatAnswer
	if err := decodeData(resp, &answer); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, answer)
	}

	fmt.Fprintln(out, answer.Answer)
	if showSources && len(answer.Sources) > 0 {
		fmt.Fprintf(out, "\nSources:\n")
		for _, src := range answer.Sources {
			fmt.Fprintf(out, "  [chunk %d, score %.3f] %s\n", src.Metadata.ChunkIndex, src.RelevanceScore, truncate(src.Content, 120))
		}
	}
	return nil
}

// HistoryCmd creates the chat history command.
func HistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <document-id>",
		Short: "Show the chat history of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runHistory(api, cmd.OutOrStdout(), args[0], outputJSON)
		},
	}
}

func runHistory(api *APIClient, out io.Writer, documentID string, outputJSON bool) error {
	resp, err := api.Get("/documents/chat/" + url.PathEscape(documentID) + "/history")
	if err != nil {
		return fmt.Errorf("failed to get chat history: %w", err)
	}

	var history ChatHistory
	if err := decodeData(resp, &history); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, history)
	}

	fmt.Fprintf(out, "%s\n", history.Title)
	if len(history.ChatHistory) == 0 {
		fmt.Fprintln(out, "No messages yet.")
		return nil
	}
	for _, turn := range history.ChatHistory {
		fmt.Fprintf(out, "\n[%s]\n", turn.Timestamp)
		fmt.Fprintf(out, "> %s\n", turn.UserMessage)
		fmt.Fprintf(out, "%s\n", turn.BotResponse)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
