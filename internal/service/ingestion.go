package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/telemetry"
	"github.com/cloo-solutions/docchat/internal/vectorindex"
)

// IngestStatusSuccess is the only status a returned IngestResult carries.
const IngestStatusSuccess = "success"

// Embedder maps text to fixed-dimension vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextExtractor turns uploaded bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, kind domain.FileKind, content []byte) (string, error)
}

// IngestInput describes one document to index. Prepare, when set, runs
// first inside the chunk transaction; the upload flow uses it to insert the
// document row so that row and chunks commit together.
type IngestInput struct {
	DocumentID string
	OwnerID    string
	Content    []byte
	Kind       domain.FileKind
	Prepare    func(ctx context.Context, repos TxRepositories) error
}

type IngestResult struct {
	DocumentID string
	ChunkCount int
	Status     string
	FileType   domain.FileKind
}

// IngestionService runs extract, chunk, embed, upsert and the relational
// mirror write for a document.
type IngestionService struct {
	extractor TextExtractor
	chunker   *Chunker
	embedder  Embedder
	index     vectorindex.Index
	txRunner  TxRunner
	uuidGen   UUIDGenerator
}

func NewIngestionService(extractor TextExtractor, chunker *Chunker, embedder Embedder, index vectorindex.Index, txRunner TxRunner) *IngestionService {
	return NewIngestionServiceWithUUIDGen(extractor, chunker, embedder, index, txRunner, &DefaultUUIDGenerator{})
}

func NewIngestionServiceWithUUIDGen(extractor TextExtractor, chunker *Chunker, embedder Embedder, index vectorindex.Index, txRunner TxRunner, uuidGen UUIDGenerator) *IngestionService {
	return &IngestionService{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		txRunner:  txRunner,
		uuidGen:   uuidGen,
	}
}

// Ingest indexes a document. Unsupported kinds fail with
// UNSUPPORTED_FORMAT; every other failure is PROCESSING_FAILED wrapping the
// cause, and leaves no relational rows behind.
func (s *IngestionService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		UserID:     in.OwnerID,
		DocumentID: in.DocumentID,
		Operation:  "ingest",
	})
	defer span.End()

	if in.Kind != domain.FileKindPDF && in.Kind != domain.FileKindDOCX {
		return nil, domain.ErrUnsupportedFormat
	}
	if in.DocumentID == "" || in.OwnerID == "" {
		return nil, domain.ErrMissingRequiredField
	}

	count, err := s.ingest(ctx, in)
	if err != nil {
		span.SetError(err)
		return nil, domain.Wrap(domain.ErrProcessingFailed, err)
	}

	span.SetData("chunk_count", count)
	return &IngestResult{
		DocumentID: in.DocumentID,
		ChunkCount: count,
		Status:     IngestStatusSuccess,
		FileType:   in.Kind,
	}, nil
}

func (s *IngestionService) ingest(ctx context.Context, in IngestInput) (int, error) {
	text, err := s.extractor.Extract(ctx, in.Kind, in.Content)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	chunks := s.chunker.Split(text)
	now := time.Now().UTC()

	ids := make([]string, len(chunks))
	payloads := make([]domain.ChunkPayload, len(chunks))
	rows := make([]domain.DocumentChunk, len(chunks))
	for i, content := range chunks {
		ids[i] = s.uuidGen.NewString()
		payloads[i] = domain.ChunkPayload{
			DocumentID:  in.DocumentID,
			UserID:      in.OwnerID,
			ChunkIndex:  i,
			VectorID:    ids[i],
			FileType:    string(in.Kind),
			PageContent: content,
		}
		rows[i] = domain.DocumentChunk{
			ID:         s.uuidGen.NewString(),
			DocumentID: in.DocumentID,
			ChunkIndex: i,
			Content:    content,
			VectorID:   ids[i],
			CreatedAt:  now,
		}
	}

	if len(chunks) > 0 {
		vectors, err := s.embedder.EmbedDocuments(ctx, chunks)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		if err := s.index.Upsert(ctx, ids, vectors, payloads); err != nil {
			return 0, fmt.Errorf("upsert vectors: %w", err)
		}
		telemetry.AddBreadcrumb(ctx, "ingestion", fmt.Sprintf("upserted %d vectors for document %s", len(ids), in.DocumentID))
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if in.Prepare != nil {
			if err := in.Prepare(ctx, repos); err != nil {
				return err
			}
		}
		return repos.Chunks().InsertChunks(ctx, rows)
	})
	if err != nil {
		if len(ids) > 0 {
			log.Printf("ingestion: document %s left %d orphaned vectors: %s", in.DocumentID, len(ids), strings.Join(ids, ","))
		}
		return 0, fmt.Errorf("persist chunks: %w", err)
	}

	return len(chunks), nil
}
