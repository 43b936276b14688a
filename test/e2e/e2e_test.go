//go:build e2e

package e2e

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handbook = []string{
	"Employee handbook for the Lisbon office.",
	"Either party may end the contract. The notice period is thirty days from written notice.",
	"Remote work is allowed two days per week after the probation period.",
}

type uploadData struct {
	DocumentID       string `json:"document_id"`
	Title            string `json:"title"`
	FileURL          string `json:"file_url"`
	ProcessingStatus struct {
		ChunksProcessed int    `json:"chunks_processed"`
		Status          string `json:"status"`
		FileType        string `json:"file_type"`
	} `json:"processing_status"`
}

func decode(t *testing.T, resp *APIResponse, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func requireStatus(t *testing.T, err error, status int, code string) {
	t.Helper()
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr), "expected HTTP error, got %v", err)
	assert.Equal(t, status, httpErr.Status)
	if code != "" {
		assert.Equal(t, code, httpErr.Code)
	}
}

func TestE2E_SignupAndProfile(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	userID, token := env.Signup("Ada@Example.com", "Ada")
	require.NotEmpty(t, userID)
	require.NotEmpty(t, token)

	t.Run("identity", func(t *testing.T) {
		resp, err := env.Get("/profile", token)
		require.NoError(t, err)

		var identity struct {
			UID   string `json:"uid"`
			Email string `json:"email"`
		}
		decode(t, resp, &identity)
		assert.Equal(t, userID, identity.UID)
		assert.Equal(t, "ada@example.com", identity.Email)
	})

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		_, err := env.Post("/auth/signup", map[string]string{"email": "ada@example.com", "name": "Again"}, "")
		requireStatus(t, err, http.StatusConflict, "ALREADY_EXISTS")
	})

	t.Run("partial update keeps other fields", func(t *testing.T) {
		_, err := env.Patch("/users/profile", map[string]string{"location": "Lisbon"}, token)
		require.NoError(t, err)

		resp, err := env.Patch("/users/profile", map[string]string{"bio": "analyst"}, token)
		require.NoError(t, err)

		var profile struct {
			Name     string `json:"name"`
			Location string `json:"location"`
			Bio      string `json:"bio"`
		}
		decode(t, resp, &profile)
		assert.Equal(t, "Ada", profile.Name)
		assert.Equal(t, "Lisbon", profile.Location)
		assert.Equal(t, "analyst", profile.Bio)
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := env.Get("/users/profile", "dc_"+"00000000000000000000000000000000000000000000000000000000000000ff")
		requireStatus(t, err, http.StatusUnauthorized, "UNAUTHORIZED")
	})
}

func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, token := env.Signup("owner@example.com", "Owner")
	content := BuildDOCX(t, handbook...)

	var doc uploadData
	t.Run("upload indexes the document", func(t *testing.T) {
		resp, err := env.Upload("/documents/upload", "handbook.docx", content, token)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.Status)

		decode(t, resp, &doc)
		assert.Equal(t, "handbook", doc.Title)
		assert.Equal(t, "docx", doc.ProcessingStatus.FileType)
		assert.Equal(t, "success", doc.ProcessingStatus.Status)
		assert.Positive(t, doc.ProcessingStatus.ChunksProcessed)
	})
	require.NotEmpty(t, doc.DocumentID)

	t.Run("list shows it", func(t *testing.T) {
		resp, err := env.Get("/documents/list", token)
		require.NoError(t, err)

		var list struct {
			Documents []struct {
				ID string `json:"id"`
			} `json:"documents"`
		}
		decode(t, resp, &list)
		require.Len(t, list.Documents, 1)
		assert.Equal(t, doc.DocumentID, list.Documents[0].ID)
	})

	t.Run("chat answers from the document", func(t *testing.T) {
		resp, err := env.Post("/documents/chat/"+doc.DocumentID, map[string]string{"message": "What is the notice period?"}, token)
		require.NoError(t, err)

		var chat struct {
			Answer  string `json:"answer"`
			Sources []struct {
				Content  string `json:"content"`
				Metadata struct {
					DocumentID string `json:"document_id"`
				} `json:"metadata"`
			} `json:"sources"`
		}
		decode(t, resp, &chat)
		assert.Equal(t, "The notice period is thirty days.", chat.Answer)
		require.NotEmpty(t, chat.Sources)
		for _, src := range chat.Sources {
			assert.Equal(t, doc.DocumentID, src.Metadata.DocumentID)
		}
		assert.Contains(t, env.LLM.LastPrompt(), "notice period")
	})

	t.Run("empty message is rejected", func(t *testing.T) {
		_, err := env.Post("/documents/chat/"+doc.DocumentID, map[string]string{"message": "  "}, token)
		requireStatus(t, err, http.StatusBadRequest, "VALIDATION_ERROR")
	})

	t.Run("history records the turn", func(t *testing.T) {
		resp, err := env.Get("/documents/chat/"+doc.DocumentID+"/history", token)
		require.NoError(t, err)

		var history struct {
			ChatHistory []struct {
				UserMessage string `json:"user_message"`
				BotResponse string `json:"bot_response"`
			} `json:"chat_history"`
		}
		decode(t, resp, &history)
		require.Len(t, history.ChatHistory, 1)
		assert.Equal(t, "What is the notice period?", history.ChatHistory[0].UserMessage)
	})

	t.Run("download returns the original bytes", func(t *testing.T) {
		resp, err := env.Get("/documents/"+doc.DocumentID+"/download", token)
		require.NoError(t, err)

		var dl struct {
			DownloadURL string `json:"download_url"`
		}
		decode(t, resp, &dl)

		data, err := env.DownloadFile(dl.DownloadURL)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("delete removes document, chunks and history", func(t *testing.T) {
		_, err := env.Delete("/documents/"+doc.DocumentID, token)
		require.NoError(t, err)

		var chunks, turns, vectors int
		require.NoError(t, env.Pool.QueryRow(env.Ctx, `SELECT count(*) FROM document_chunks WHERE document_id = $1`, doc.DocumentID).Scan(&chunks))
		require.NoError(t, env.Pool.QueryRow(env.Ctx, `SELECT count(*) FROM chat_history WHERE document_id = $1`, doc.DocumentID).Scan(&turns))
		require.NoError(t, env.Pool.QueryRow(env.Ctx, `SELECT count(*) FROM vec_documents WHERE document_id = $1`, doc.DocumentID).Scan(&vectors))
		assert.Zero(t, chunks)
		assert.Zero(t, turns)
		assert.Zero(t, vectors)

		_, err = env.Get("/documents/chat/"+doc.DocumentID+"/history", token)
		requireStatus(t, err, http.StatusNotFound, "NOT_FOUND")
	})
}

func TestE2E_OwnershipIsolation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, ownerToken := env.Signup("owner@example.com", "Owner")
	_, otherToken := env.Signup("other@example.com", "Other")

	resp, err := env.Upload("/documents/upload", "handbook.docx", BuildDOCX(t, handbook...), ownerToken)
	require.NoError(t, err)
	var doc uploadData
	decode(t, resp, &doc)

	_, err = env.Post("/documents/chat/"+doc.DocumentID, map[string]string{"message": "notice period?"}, otherToken)
	requireStatus(t, err, http.StatusNotFound, "NOT_FOUND")

	_, err = env.Get("/documents/"+doc.DocumentID+"/download", otherToken)
	requireStatus(t, err, http.StatusNotFound, "NOT_FOUND")

	_, err = env.Delete("/documents/"+doc.DocumentID, otherToken)
	requireStatus(t, err, http.StatusNotFound, "NOT_FOUND")

	resp, err = env.Get("/documents/list", otherToken)
	require.NoError(t, err)
	var list struct {
		Documents []json.RawMessage `json:"documents"`
	}
	decode(t, resp, &list)
	assert.Empty(t, list.Documents)
}

func TestE2E_RejectsUnsupportedUpload(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, token := env.Signup("owner@example.com", "Owner")

	_, err := env.Upload("/documents/upload", "notes.pdf", []byte("just plain text pretending to be a pdf"), token)
	requireStatus(t, err, http.StatusBadRequest, "INVALID_FILE_TYPE")

	var count int
	require.NoError(t, env.Pool.QueryRow(env.Ctx, `SELECT count(*) FROM documents`).Scan(&count))
	assert.Zero(t, count)
}

func TestE2E_CLIWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	_, token := env.Signup("cli@example.com", "CLI User")

	docPath := filepath.Join(env.BinaryDir, "handbook.docx")
	require.NoError(t, os.WriteFile(docPath, BuildDOCX(t, handbook...), 0600))

	var doc uploadData
	t.Run("docchat upload", func(t *testing.T) {
		output, err := env.RunDocchat(token, "upload", docPath, "--output")
		require.NoError(t, err, "upload failed: %s", output)
		require.NoError(t, json.Unmarshal([]byte(output), &doc))
		assert.Equal(t, "handbook", doc.Title)
	})

	t.Run("docchat list", func(t *testing.T) {
		output, err := env.RunDocchat(token, "list")
		require.NoError(t, err, "list failed: %s", output)
		assert.Contains(t, output, "handbook")
		assert.Contains(t, output, doc.DocumentID)
	})

	t.Run("docchat chat", func(t *testing.T) {
		output, err := env.RunDocchat(token, "chat", doc.DocumentID, "What", "is", "the", "notice", "period?")
		require.NoError(t, err, "chat failed: %s", output)
		assert.Contains(t, output, "thirty days")
	})

	t.Run("docchat history", func(t *testing.T) {
		output, err := env.RunDocchat(token, "history", doc.DocumentID)
		require.NoError(t, err, "history failed: %s", output)
		assert.Contains(t, output, "> What is the notice period?")
	})

	t.Run("docchat delete", func(t *testing.T) {
		output, err := env.RunDocchat(token, "delete", doc.DocumentID)
		require.NoError(t, err, "delete failed: %s", output)
		assert.Contains(t, output, "deleted successfully")
	})

	t.Run("bad token fails", func(t *testing.T) {
		output, err := env.RunDocchat("dc_bad", "list")
		assert.Error(t, err)
		assert.Contains(t, output, "401")
	})
}
