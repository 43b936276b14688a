package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a PDF or DOCX document",
		Long: `Uploads a document, which the server extracts, chunks and indexes before answering.

Examples:
  docchat upload handbook.pdf
  docchat upload notes.docx --output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			var progress ProgressFunc
			if !quiet && !outputJSON {
				progress = stderrProgress(cmd.ErrOrStderr(), filepath.Base(args[0]))
			}
			return runUpload(api, cmd.OutOrStdout(), args[0], outputJSON, progress)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress upload progress")

	return cmd
}

func runUpload(api *APIClient, out io.Writer, filePath string, outputJSON bool, progress ProgressFunc) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("cannot read %s: %w", filePath, err)
	}

	resp, err := api.PostFile("/documents/upload", filePath, progress)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	var result UploadResult
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, result)
	}

	fmt.Fprintf(out, "Uploaded %s\n", result.Title)
	fmt.Fprintf(out, "  ID:     %s\n", result.DocumentID)
	fmt.Fprintf(out, "  Type:   %s\n", result.ProcessingStatus.FileType)
	fmt.Fprintf(out, "  Chunks: %d (%s)\n", result.ProcessingStatus.ChunksProcessed, result.ProcessingStatus.Status)
	return nil
}

// ListCmd creates the document list command.
func ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(api, cmd.OutOrStdout(), outputJSON)
		},
	}
}

func runList(api *APIClient, out io.Writer, outputJSON bool) error {
	resp, err := api.Get("/documents/list")
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var listResp struct {
		Documents []Document `json:"documents"`
	}
	if err := decodeData(resp, &listResp); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, listResp)
	}

	if len(listResp.Documents) == 0 {
		fmt.Fprintln(out, "No documents found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d documents:\n\n", len(listResp.Documents))
	for i, doc := range listResp.Documents {
		fmt.Fprintf(out, "%d. %s\n", i+1, doc.Title)
		fmt.Fprintf(out, "   ID: %s\n", doc.ID)
		fmt.Fprintf(out, "   Uploaded: %s\n", doc.UploadedAt)
		if i < len(listResp.Documents)-1 {
			fmt.Fprintln(out, strings.Repeat("-", 40))
		}
	}
	return nil
}

// DeleteCmd creates the document delete command.
func DeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document with its chat history and vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDelete(api, cmd.OutOrStdout(), args[0], outputJSON)
		},
	}
}

func runDelete(api *APIClient, out io.Writer, documentID string, outputJSON bool) error {
	resp, err := api.Delete("/documents/" + url.PathEscape(documentID))
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(out, result)
	}

	fmt.Fprintln(out, result.Message)
	return nil
}

// DownloadCmd creates the download command.
func DownloadCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <document-id>",
		Short: "Download the original file of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runDownload(api, cmd.OutOrStdout(), args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "O", "", "Output path (defaults to the stored file name)")

	return cmd
}

func runDownload(api *APIClient, out io.Writer, documentID, outputPath string) error {
	resp, err := api.Get("/documents/" + url.PathEscape(documentID) + "/download")
	if err != nil {
		return fmt.Errorf("failed to get download URL: %w", err)
	}

	var result struct {
		DownloadURL string `json:"download_url"`
	}
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = fileNameFromURL(result.DownloadURL, documentID)
	}

	if err := api.DownloadFileWithProgress(result.DownloadURL, outputPath, nil); err != nil {
		return err
	}

	fmt.Fprintf(out, "Saved %s\n", outputPath)
	return nil
}

func fileNameFromURL(raw, fallback string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	name := filepath.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}

func writeJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func stderrProgress(w io.Writer, name string) ProgressFunc {
	return func(current, total int64) {
		if total <= 0 {
			return
		}
		fmt.Fprintf(w, "\rUploading %s: %3d%%", name, current*100/total)
		if current >= total {
			fmt.Fprintln(w)
		}
	}
}
