package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const docID = "5f0c2a9e-7d41-4b8e-9c3a-1e6f2d8b4a70"

var uploadedAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestDocumentHandler_Upload(t *testing.T) {
	t.Run("returns processing status", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		content := []byte("%PDF-1.4 body")

		svc.On("Upload", mock.Anything, service.UploadInput{
			OwnerID:  "user-1",
			Title:    "Report",
			FileName: "report.pdf",
			Content:  content,
		}).Return(&service.UploadResult{
			Document: &domain.Document{ID: docID, Title: "Report", FileURL: "http://files/documents/x.pdf"},
			Ingest:   &service.IngestResult{DocumentID: docID, ChunkCount: 3, Status: "success", FileType: domain.FileKindPDF},
		}, nil)

		req := authed(multipartRequest(t, "/documents/upload", "report.pdf", content, map[string]string{"title": "Report"}), "user-1")
		w := httptest.NewRecorder()

		h.Upload(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp UploadResponse
		decodeData(t, w, &resp)
		assert.Equal(t, docID, resp.DocumentID)
		assert.Equal(t, 3, resp.ProcessingStatus.ChunksProcessed)
		assert.Equal(t, "pdf", resp.ProcessingStatus.FileType)
		assert.Equal(t, "success", resp.ProcessingStatus.Status)
		svc.AssertExpectations(t)
	})

	t.Run("missing file part", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)

		req := authed(multipartRequest(t, "/documents/upload", "", nil, map[string]string{"title": "x"}), "user-1")
		w := httptest.NewRecorder()

		h.Upload(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file is required")
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("validation failure maps to 400", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("Upload", mock.Anything, mock.Anything).Return(nil, domain.NewDomainError(domain.ErrCodeInvalidFileType, "Invalid file type text/plain"))

		req := authed(multipartRequest(t, "/documents/upload", "notes.txt", []byte("hello"), nil), "user-1")
		w := httptest.NewRecorder()

		h.Upload(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), domain.ErrCodeInvalidFileType)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := NewDocumentHandler(new(MockDocumentService))
		w := httptest.NewRecorder()

		h.Upload(w, multipartRequest(t, "/documents/upload", "a.pdf", []byte("x"), nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestDocumentHandler_Chat(t *testing.T) {
	t.Run("returns answer and sources", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("Chat", mock.Anything, "user-1", docID, "What is it?").Return(&service.ChatResult{
			DocumentID: docID,
			Answer:     "A report.",
			Sources: []service.RetrievedChunk{{
				Content: "chunk text",
				Payload: domain.ChunkPayload{DocumentID: docID, UserID: "user-1", ChunkIndex: 2, VectorID: "v-2", FileType: "pdf", PageContent: "chunk text"},
				Score:   0.91,
			}},
		}, nil)

		body, _ := json.Marshal(ChatRequest{Message: "What is it?"})
		req := httptest.NewRequest(http.MethodPost, "/documents/chat/"+docID, bytes.NewReader(body))
		req = authed(withURLParam(req, "id", docID), "user-1")
		w := httptest.NewRecorder()

		h.Chat(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ChatResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "A report.", resp.Answer)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, 2, resp.Sources[0].Metadata.ChunkIndex)
		assert.Equal(t, "v-2", resp.Sources[0].Metadata.VectorID)
		assert.InDelta(t, 0.91, resp.Sources[0].RelevanceScore, 1e-9)
	})

	t.Run("foreign document is 404", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("Chat", mock.Anything, "user-2", docID, "hi").Return(nil, domain.ErrDocumentNotFound)

		req := httptest.NewRequest(http.MethodPost, "/documents/chat/"+docID, bytes.NewReader([]byte(`{"message":"hi"}`)))
		req = authed(withURLParam(req, "id", docID), "user-2")
		w := httptest.NewRecorder()

		h.Chat(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Document not found or doesn't belong to you")
	})

	t.Run("invalid body", func(t *testing.T) {
		h := NewDocumentHandler(new(MockDocumentService))
		req := httptest.NewRequest(http.MethodPost, "/documents/chat/"+docID, bytes.NewReader([]byte(`{`)))
		req = authed(withURLParam(req, "id", docID), "user-1")
		w := httptest.NewRecorder()

		h.Chat(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("synthesis failure is 502", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("Chat", mock.Anything, "user-1", docID, "hi").Return(nil, domain.ErrSynthesisFailed)

		req := httptest.NewRequest(http.MethodPost, "/documents/chat/"+docID, bytes.NewReader([]byte(`{"message":"hi"}`)))
		req = authed(withURLParam(req, "id", docID), "user-1")
		w := httptest.NewRecorder()

		h.Chat(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestDocumentHandler_History(t *testing.T) {
	svc := new(MockDocumentService)
	h := NewDocumentHandler(svc)
	svc.On("History", mock.Anything, "user-1", docID).Return(&service.HistoryResult{
		Document: &domain.Document{ID: docID, Title: "Report"},
		Turns: []*domain.ChatTurn{
			{ID: "t1", UserMessage: "q1", BotResponse: "a1", Timestamp: uploadedAt},
			{ID: "t2", UserMessage: "q2", BotResponse: "a2", Timestamp: uploadedAt.Add(time.Minute)},
		},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/chat/"+docID+"/history", nil)
	req = authed(withURLParam(req, "id", docID), "user-1")
	w := httptest.NewRecorder()

	h.History(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HistoryResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "Report", resp.Title)
	require.Len(t, resp.ChatHistory, 2)
	assert.Equal(t, "q1", resp.ChatHistory[0].UserMessage)
	assert.Equal(t, "2026-03-01T10:00:00Z", resp.ChatHistory[0].Timestamp)
}

func TestDocumentHandler_List(t *testing.T) {
	t.Run("lists documents", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("List", mock.Anything, "user-1").Return([]*domain.Document{
			{ID: "doc-2", Title: "Newer", FileURL: "u2", UploadedAt: uploadedAt.Add(time.Hour)},
			{ID: docID, Title: "Older", FileURL: "u1", UploadedAt: uploadedAt},
		}, nil)

		w := httptest.NewRecorder()
		h.List(w, authed(httptest.NewRequest(http.MethodGet, "/documents/list", nil), "user-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp ListDocumentsResponse
		decodeData(t, w, &resp)
		require.Len(t, resp.Documents, 2)
		assert.Equal(t, "doc-2", resp.Documents[0].ID)
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("List", mock.Anything, "user-1").Return([]*domain.Document{}, nil)

		w := httptest.NewRecorder()
		h.List(w, authed(httptest.NewRequest(http.MethodGet, "/documents/list", nil), "user-1"))

		assert.JSONEq(t, `{"data":{"documents":[]}}`, w.Body.String())
	})
}

func TestDocumentHandler_Delete(t *testing.T) {
	svc := new(MockDocumentService)
	h := NewDocumentHandler(svc)
	svc.On("Delete", mock.Anything, "user-1", docID).Return("Document 'Report' and all associated data deleted successfully", nil)

	req := httptest.NewRequest(http.MethodDelete, "/documents/"+docID, nil)
	req = authed(withURLParam(req, "id", docID), "user-1")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"success":true,"message":"Document 'Report' and all associated data deleted successfully"}}`, w.Body.String())
}

func TestDocumentHandler_Download(t *testing.T) {
	t.Run("returns presigned url", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("DownloadURL", mock.Anything, "user-1", docID).Return("https://s3/presigned", nil)

		req := httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/download", nil)
		req = authed(withURLParam(req, "id", docID), "user-1")
		w := httptest.NewRecorder()

		h.Download(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "https://s3/presigned")
	})

	t.Run("storage missing is 503", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("DownloadURL", mock.Anything, "user-1", docID).Return("", domain.ErrStorageNotConfigured)

		req := httptest.NewRequest(http.MethodGet, "/documents/"+docID+"/download", nil)
		req = authed(withURLParam(req, "id", docID), "user-1")
		w := httptest.NewRecorder()

		h.Download(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestDocumentHandler_MalformedIDIsNotFound(t *testing.T) {
	svc := new(MockDocumentService)
	h := NewDocumentHandler(svc)

	cases := []struct {
		name    string
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{"chat", http.MethodPost, "/documents/chat/not-a-uuid", h.Chat},
		{"history", http.MethodGet, "/documents/chat/not-a-uuid/history", h.History},
		{"download", http.MethodGet, "/documents/not-a-uuid/download", h.Download},
		{"delete", http.MethodDelete, "/documents/not-a-uuid", h.Delete},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewReader([]byte(`{"message":"hi"}`)))
			req = authed(withURLParam(req, "id", "not-a-uuid"), "user-1")
			w := httptest.NewRecorder()

			tc.handler(w, req)

			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
		})
	}

	svc.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "DownloadURL", mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestDocumentHandler_UploadFile(t *testing.T) {
	t.Run("returns stored url", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		content := []byte("%PDF-1.4 body")
		svc.On("StoreFile", mock.Anything, "user-1", content).Return("http://files/documents/user-1_20260301100000.pdf", nil)

		w := httptest.NewRecorder()
		h.UploadFile(w, authed(multipartRequest(t, "/files/upload/document", "report.pdf", content, nil), "user-1"))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp FileUploadResponse
		decodeData(t, w, &resp)
		assert.Equal(t, "Document uploaded successfully", resp.Message)
		assert.Equal(t, "http://files/documents/user-1_20260301100000.pdf", resp.FileURL)
		svc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("rejected type is 400", func(t *testing.T) {
		svc := new(MockDocumentService)
		h := NewDocumentHandler(svc)
		svc.On("StoreFile", mock.Anything, "user-1", mock.Anything).Return("", domain.ErrInvalidFileType)

		w := httptest.NewRecorder()
		h.UploadFile(w, authed(multipartRequest(t, "/files/upload/document", "notes.txt", []byte("plain"), nil), "user-1"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"INVALID_FILE_TYPE"`)
	})
}
