package domain

import "time"

// DocumentChunk is the relational mirror of one indexed chunk.
type DocumentChunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	VectorID   string
	CreatedAt  time.Time
}

// ChunkPayload is the metadata stored next to each vector.
type ChunkPayload struct {
	DocumentID  string `json:"document_id"`
	UserID      string `json:"user_id"`
	ChunkIndex  int    `json:"chunk_index"`
	VectorID    string `json:"vector_db_id"`
	FileType    string `json:"file_type"`
	PageContent string `json:"page_content"`
}

// UnknownFileType is reported for chunks whose source format is not recorded.
const UnknownFileType = "unknown"
