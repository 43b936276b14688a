package service

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/telemetry"
	"github.com/cloo-solutions/docchat/internal/vectorindex"
)

// Blob folders.
const (
	FolderDocuments     = "documents"
	FolderProfileImages = "profile_images"
)

const DefaultRetrievalK = 5

// BlobStore keeps uploaded files. Put returns the URL recorded as file_url.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type Ingester interface {
	Ingest(ctx context.Context, in IngestInput) (*IngestResult, error)
}

type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, doc *domain.Document, k int) []RetrievedChunk
}

type AnswerSynthesizer interface {
	Answer(ctx context.Context, query, documentID string, chunks []RetrievedChunk, history []*domain.ChatTurn) (*Answer, error)
}

type TurnStore interface {
	Append(ctx context.Context, ownerID, documentID, userMessage, botResponse string) (*domain.ChatTurn, error)
	Recent(ctx context.Context, ownerID, documentID string, limit int) ([]*domain.ChatTurn, error)
	Full(ctx context.Context, ownerID, documentID string) ([]*domain.ChatTurn, error)
}

type UploadInput struct {
	OwnerID  string
	Title    string
	FileName string
	Content  []byte
}

type UploadResult struct {
	Document *domain.Document
	Ingest   *IngestResult
}

type ChatResult struct {
	DocumentID string
	Answer     string
	Sources    []RetrievedChunk
}

type HistoryResult struct {
	Document *domain.Document
	Turns    []*domain.ChatTurn
}

type DocumentServiceDeps struct {
	Validator   *FileValidator
	Blobs       BlobStore
	Ingestion   Ingester
	Retriever   ChunkRetriever
	Synthesizer AnswerSynthesizer
	History     TurnStore
	Documents   DocumentRepository
	Chunks      ChunkRepository
	Index       vectorindex.Index
	TxRunner    TxRunner
	UUIDGen     UUIDGenerator

	RetrievalK    int
	HistoryWindow int
}

// DocumentService owns the document lifecycle: upload, chat, history,
// listing and cascading delete. Every operation is scoped to the owner.
type DocumentService struct {
	validator     *FileValidator
	blobs         BlobStore
	ingestion     Ingester
	retriever     ChunkRetriever
	synthesizer   AnswerSynthesizer
	history       TurnStore
	docs          DocumentRepository
	chunks        ChunkRepository
	index         vectorindex.Index
	txRunner      TxRunner
	uuidGen       UUIDGenerator
	retrievalK    int
	historyWindow int
	now           func() time.Time
}

func NewDocumentService(deps DocumentServiceDeps) *DocumentService {
	if deps.Validator == nil {
		deps.Validator = NewFileValidator()
	}
	if deps.UUIDGen == nil {
		deps.UUIDGen = &DefaultUUIDGenerator{}
	}
	if deps.RetrievalK <= 0 {
		deps.RetrievalK = DefaultRetrievalK
	}
	if deps.HistoryWindow <= 0 {
		deps.HistoryWindow = DefaultHistoryWindow
	}
	return &DocumentService{
		validator:     deps.Validator,
		blobs:         deps.Blobs,
		ingestion:     deps.Ingestion,
		retriever:     deps.Retriever,
		synthesizer:   deps.Synthesizer,
		history:       deps.History,
		docs:          deps.Documents,
		chunks:        deps.Chunks,
		index:         deps.Index,
		txRunner:      deps.TxRunner,
		uuidGen:       deps.UUIDGen,
		retrievalK:    deps.RetrievalK,
		historyWindow: deps.HistoryWindow,
		now:           time.Now,
	}
}

// BlobKey builds the storage key for an upload: {folder}/{uid}_{YYYYmmddHHMMSS}{ext}.
func BlobKey(folder, ownerID string, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%s_%s%s", folder, ownerID, at.UTC().Format("20060102150405"), ext)
}

// StoreFile validates a document and stores it without indexing. It
// returns the URL of the stored file.
func (s *DocumentService) StoreFile(ctx context.Context, ownerID string, content []byte) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.StoreFile", telemetry.SpanAttributes{
		UserID:    ownerID,
		Operation: "store_file",
	})
	defer span.End()

	if ownerID == "" {
		return "", domain.ErrMissingRequiredField
	}
	file, err := s.validator.Validate(content, UploadDocument)
	if err != nil {
		return "", err
	}
	kind, ok := domain.FileKindFromMIME(file.MIMEType)
	if !ok {
		return "", domain.ErrUnsupportedFormat
	}
	if s.blobs == nil {
		return "", domain.ErrStorageNotConfigured
	}

	key := BlobKey(FolderDocuments, ownerID, s.now(), kind.Extension())
	url, err := s.blobs.Put(ctx, key, file.MIMEType, content)
	if err != nil {
		span.SetError(err)
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "Failed to upload file", err)
	}
	return url, nil
}

// Upload validates, stores and indexes a document. The document row and
// its chunks commit together; if ingestion fails the stored blob is removed.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		UserID:    in.OwnerID,
		Operation: "upload",
	})
	defer span.End()

	if in.OwnerID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(in.FileName), filepath.Ext(in.FileName))
	}
	if title == "" || title == "." {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "title is required")
	}

	file, err := s.validator.Validate(in.Content, UploadDocument)
	if err != nil {
		return nil, err
	}
	kind, ok := domain.FileKindFromMIME(file.MIMEType)
	if !ok {
		return nil, domain.ErrUnsupportedFormat
	}
	if s.blobs == nil {
		return nil, domain.ErrStorageNotConfigured
	}

	now := s.now().UTC()
	key := BlobKey(FolderDocuments, in.OwnerID, now, kind.Extension())
	url, err := s.blobs.Put(ctx, key, file.MIMEType, in.Content)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "Failed to upload file", err)
	}

	doc := &domain.Document{
		ID:         s.uuidGen.NewString(),
		UserID:     in.OwnerID,
		Title:      title,
		FileURL:    url,
		StorageKey: key,
		FileType:   kind,
		UploadedAt: now,
	}
	if err := domain.ValidateDocument(doc); err != nil {
		s.deleteBlob(ctx, key)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, err.Error(), err)
	}

	result, err := s.ingestion.Ingest(ctx, IngestInput{
		DocumentID: doc.ID,
		OwnerID:    doc.UserID,
		Content:    in.Content,
		Kind:       kind,
		Prepare: func(ctx context.Context, repos TxRepositories) error {
			return repos.Documents().Create(ctx, doc)
		},
	})
	if err != nil {
		span.SetError(err)
		s.deleteBlob(ctx, key)
		return nil, err
	}

	log.Printf("document %s uploaded by %s: %d chunks", doc.ID, doc.UserID, result.ChunkCount)
	return &UploadResult{Document: doc, Ingest: result}, nil
}

// Chat answers a question about one owned document and records the turn.
func (s *DocumentService) Chat(ctx context.Context, ownerID, documentID, message string) (*ChatResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Chat", telemetry.SpanAttributes{
		UserID:     ownerID,
		DocumentID: documentID,
		Operation:  "chat",
	})
	defer span.End()

	if strings.TrimSpace(message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	doc, err := s.docs.GetByIDForUser(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}

	history, err := s.history.Recent(ctx, ownerID, doc.ID, s.historyWindow)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	chunks := s.retriever.Retrieve(ctx, message, doc, s.retrievalK)

	answer, err := s.synthesizer.Answer(ctx, message, doc.ID, chunks, history)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if _, err := s.history.Append(ctx, ownerID, doc.ID, message, answer.Text); err != nil {
		span.SetError(err)
		return nil, err
	}

	return &ChatResult{DocumentID: doc.ID, Answer: answer.Text, Sources: answer.Sources}, nil
}

// History returns every turn for an owned document, oldest first.
func (s *DocumentService) History(ctx context.Context, ownerID, documentID string) (*HistoryResult, error) {
	doc, err := s.docs.GetByIDForUser(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	turns, err := s.history.Full(ctx, ownerID, doc.ID)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Document: doc, Turns: turns}, nil
}

// List returns the owner's documents, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]*domain.Document, error) {
	if ownerID == "" {
		return nil, domain.ErrMissingRequiredField
	}
	return s.docs.ListByUser(ctx, ownerID)
}

// Delete removes a document with its chunks, vectors, chat turns and blob.
// A failed vector delete does not block the relational delete; the ids are
// queued for the cleanup worker in the same transaction.
func (s *DocumentService) Delete(ctx context.Context, ownerID, documentID string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		UserID:     ownerID,
		DocumentID: documentID,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docs.GetByIDForUser(ctx, documentID, ownerID)
	if err != nil {
		return "", err
	}

	vectorIDs, err := s.chunks.VectorIDsByDocument(ctx, doc.ID)
	if err != nil {
		span.SetError(err)
		return "", err
	}

	var pending []string
	if len(vectorIDs) > 0 {
		if err := s.index.Delete(ctx, vectorIDs); err != nil {
			log.Printf("vector delete for document %s failed, queueing %d ids: %v", doc.ID, len(vectorIDs), err)
			pending = vectorIDs
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if len(pending) > 0 {
			job := &domain.VectorCleanupJob{
				ID:         s.uuidGen.NewString(),
				DocumentID: doc.ID,
				VectorIDs:  pending,
				Status:     domain.CleanupJobStatusPending,
				CreatedAt:  s.now().UTC(),
			}
			if err := repos.CleanupJobs().Create(ctx, job); err != nil {
				return err
			}
		}
		if err := repos.ChatHistory().DeleteByDocument(ctx, doc.ID); err != nil {
			return err
		}
		if err := repos.Chunks().DeleteByDocument(ctx, doc.ID); err != nil {
			return err
		}
		return repos.Documents().Delete(ctx, doc.ID)
	})
	if err != nil {
		span.SetError(err)
		return "", err
	}

	if doc.StorageKey != "" {
		s.deleteBlob(ctx, doc.StorageKey)
	}

	return fmt.Sprintf("Document '%s' and all associated data deleted successfully", doc.Title), nil
}

// DownloadURL presigns a GET for the stored file of an owned document.
func (s *DocumentService) DownloadURL(ctx context.Context, ownerID, documentID string) (string, error) {
	doc, err := s.docs.GetByIDForUser(ctx, documentID, ownerID)
	if err != nil {
		return "", err
	}
	if s.blobs == nil {
		return "", domain.ErrStorageNotConfigured
	}
	if doc.StorageKey == "" {
		return doc.FileURL, nil
	}
	url, err := s.blobs.PresignGet(ctx, doc.StorageKey)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to generate download URL", err)
	}
	return url, nil
}

func (s *DocumentService) deleteBlob(ctx context.Context, key string) {
	if s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		log.Printf("failed to delete blob %s: %v", key, err)
	}
}
