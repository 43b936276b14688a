package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/docchat/internal/api"
	"github.com/cloo-solutions/docchat/internal/api/middleware"
	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 4 << 20

type DocumentService interface {
	Upload(ctx context.Context, in service.UploadInput) (*service.UploadResult, error)
	Chat(ctx context.Context, ownerID, documentID, message string) (*service.ChatResult, error)
	History(ctx context.Context, ownerID, documentID string) (*service.HistoryResult, error)
	List(ctx context.Context, ownerID string) ([]*domain.Document, error)
	Delete(ctx context.Context, ownerID, documentID string) (string, error)
	DownloadURL(ctx context.Context, ownerID, documentID string) (string, error)
	StoreFile(ctx context.Context, ownerID string, content []byte) (string, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type ProcessingStatusResponse struct {
	DocumentID      string `json:"document_id"`
	ChunksProcessed int    `json:"chunks_processed"`
	Status          string `json:"status"`
	FileType        string `json:"file_type"`
}

type UploadResponse struct {
	DocumentID       string                   `json:"document_id"`
	Title            string                   `json:"title"`
	FileURL          string                   `json:"file_url"`
	ProcessingStatus ProcessingStatusResponse `json:"processing_status"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type SourceMetadata struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	ChunkIndex int    `json:"chunk_index"`
	VectorID   string `json:"vector_db_id"`
	FileType   string `json:"file_type"`
}

type SourceResponse struct {
	Content        string         `json:"content"`
	Metadata       SourceMetadata `json:"metadata"`
	RelevanceScore float64        `json:"relevance_score"`
}

type ChatResponse struct {
	Answer     string           `json:"answer"`
	DocumentID string           `json:"document_id"`
	Sources    []SourceResponse `json:"sources"`
}

type ChatTurnResponse struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	UserMessage string `json:"user_message"`
	BotResponse string `json:"bot_response"`
}

type HistoryResponse struct {
	DocumentID  string             `json:"document_id"`
	Title       string             `json:"title"`
	ChatHistory []ChatTurnResponse `json:"chat_history"`
}

type DocumentResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	FileURL    string `json:"file_url"`
	UploadedAt string `json:"uploaded_at"`
}

type ListDocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type FileUploadResponse struct {
	Message string `json:"message"`
	FileURL string `json:"file_url"`
}

type DownloadURLResponse struct {
	DownloadURL string `json:"download_url"`
}

func documentToResponse(d *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID,
		Title:      d.Title,
		FileURL:    d.FileURL,
		UploadedAt: d.UploadedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	content, fileName, ok := readMultipartFile(w, r, service.MaxDocumentSize)
	if !ok {
		return
	}

	result, err := h.svc.Upload(r.Context(), service.UploadInput{
		OwnerID:  userID,
		Title:    r.FormValue("title"),
		FileName: fileName,
		Content:  content,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	resp := UploadResponse{
		DocumentID: result.Document.ID,
		Title:      result.Document.Title,
		FileURL:    result.Document.FileURL,
	}
	if result.Ingest != nil {
		resp.ProcessingStatus = ProcessingStatusResponse{
			DocumentID:      result.Ingest.DocumentID,
			ChunksProcessed: result.Ingest.ChunkCount,
			Status:          result.Ingest.Status,
			FileType:        string(result.Ingest.FileType),
		}
	}

	api.Success(w, http.StatusCreated, resp)
}

// UploadFile stores a document without indexing it.
func (h *DocumentHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	content, _, ok := readMultipartFile(w, r, service.MaxDocumentSize)
	if !ok {
		return
	}

	url, err := h.svc.StoreFile(r.Context(), userID, content)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, FileUploadResponse{Message: "Document uploaded successfully", FileURL: url})
}

func (h *DocumentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Chat(r.Context(), userID, documentID, req.Message)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	sources := make([]SourceResponse, 0, len(result.Sources))
	for _, src := range result.Sources {
		sources = append(sources, SourceResponse{
			Content: src.Content,
			Metadata: SourceMetadata{
				DocumentID: src.Payload.DocumentID,
				UserID:     src.Payload.UserID,
				ChunkIndex: src.Payload.ChunkIndex,
				VectorID:   src.Payload.VectorID,
				FileType:   src.Payload.FileType,
			},
			RelevanceScore: src.Score,
		})
	}

	api.Success(w, http.StatusOK, ChatResponse{
		Answer:     result.Answer,
		DocumentID: result.DocumentID,
		Sources:    sources,
	})
}

func (h *DocumentHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.svc.History(r.Context(), userID, documentID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	turns := make([]ChatTurnResponse, 0, len(result.Turns))
	for _, turn := range result.Turns {
		turns = append(turns, ChatTurnResponse{
			ID:          turn.ID,
			Timestamp:   turn.Timestamp.UTC().Format(time.RFC3339Nano),
			UserMessage: turn.UserMessage,
			BotResponse: turn.BotResponse,
		})
	}

	api.Success(w, http.StatusOK, HistoryResponse{
		DocumentID:  result.Document.ID,
		Title:       result.Document.Title,
		ChatHistory: turns,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	docs, err := h.svc.List(r.Context(), userID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	resp := ListDocumentsResponse{Documents: make([]DocumentResponse, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, documentToResponse(d))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	url, err := h.svc.DownloadURL(r.Context(), userID, documentID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadURLResponse{DownloadURL: url})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	documentID, ok := documentIDParam(w, r)
	if !ok {
		return
	}

	message, err := h.svc.Delete(r.Context(), userID, documentID)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, DeleteResponse{Success: true, Message: message})
}

// documentIDParam reads the {id} path parameter. Ids that are not UUIDs
// cannot name a document and are reported as not found.
func documentIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	documentID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(documentID); err != nil {
		api.HandleError(w, r, domain.ErrDocumentNotFound)
		return "", false
	}
	return documentID, true
}

// readMultipartFile reads the "file" part, at most limit+1 bytes so the
// validator can still report an oversized upload. It writes the error
// response itself and returns ok=false on failure.
func readMultipartFile(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.ErrorWithCode(w, http.StatusRequestEntityTooLarge, domain.ErrCodeFileTooLarge, "request body too large")
			return nil, "", false
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.ErrorWithCode(w, http.StatusBadRequest, domain.ErrCodeValidation, "file is required")
		return nil, "", false
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return nil, "", false
	}

	return content, strings.TrimSpace(header.Filename), true
}
