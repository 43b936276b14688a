package service

import (
	"context"
	"log"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/telemetry"
	"github.com/cloo-solutions/docchat/internal/vectorindex"
)

// FallbackScore is assigned to chunks read from the relational mirror.
// Those chunks are in storage order, not ranked by relevance.
const FallbackScore = 1.0

// RetrievedChunk is one piece of context for answer synthesis.
type RetrievedChunk struct {
	Content string
	Payload domain.ChunkPayload
	Score   float64
}

// Retriever finds the chunks of one document most similar to a query.
type Retriever struct {
	embedder Embedder
	index    vectorindex.Index
	chunks   ChunkRepository
}

func NewRetriever(embedder Embedder, index vectorindex.Index, chunks ChunkRepository) *Retriever {
	return &Retriever{embedder: embedder, index: index, chunks: chunks}
}

// Retrieve never fails. When the embedder or index errors, or the search is
// empty, it returns up to k chunks from the relational mirror in
// chunk_index order. doc supplies owner and file type for rebuilt payloads.
func (r *Retriever) Retrieve(ctx context.Context, query string, doc *domain.Document, k int) []RetrievedChunk {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		UserID:     doc.UserID,
		DocumentID: doc.ID,
		Operation:  "retrieve",
	})
	defer span.End()

	if k <= 0 {
		return []RetrievedChunk{}
	}

	if hits := r.search(ctx, query, doc.ID, k); len(hits) > 0 {
		span.SetData("source", "vector")
		return hits
	}

	span.SetData("source", "fallback")
	return r.fallback(ctx, doc, k)
}

func (r *Retriever) search(ctx context.Context, query, documentID string, k int) []RetrievedChunk {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Printf("retriever: embed query for document %s failed, using fallback: %v", documentID, err)
		return nil
	}

	hits, err := r.index.Search(ctx, vector, k, vectorindex.Filter{DocumentID: documentID})
	if err != nil {
		log.Printf("retriever: vector search for document %s failed, using fallback: %v", documentID, err)
		return nil
	}

	out := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		// the filter is authoritative, but a misbehaving backend must not
		// leak another document's chunks
		if h.Payload.DocumentID != documentID {
			continue
		}
		out = append(out, RetrievedChunk{Content: h.Payload.PageContent, Payload: h.Payload, Score: h.Score})
		if len(out) == k {
			break
		}
	}
	return out
}

func (r *Retriever) fallback(ctx context.Context, doc *domain.Document, k int) []RetrievedChunk {
	rows, err := r.chunks.ListByDocument(ctx, doc.ID, k)
	if err != nil {
		log.Printf("retriever: fallback read for document %s failed: %v", doc.ID, err)
		return []RetrievedChunk{}
	}

	fileType := string(doc.FileType)
	if fileType == "" {
		fileType = domain.UnknownFileType
	}

	out := make([]RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		out = append(out, RetrievedChunk{
			Content: row.Content,
			Payload: domain.ChunkPayload{
				DocumentID:  row.DocumentID,
				UserID:      doc.UserID,
				ChunkIndex:  row.ChunkIndex,
				VectorID:    row.VectorID,
				FileType:    fileType,
				PageContent: row.Content,
			},
			Score: FallbackScore,
		})
	}
	return out
}
