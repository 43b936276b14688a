package client

import (
	"encoding/json"
	"fmt"
)

// Document is a row of the document list.
type Document struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	FileURL    string `json:"file_url"`
	UploadedAt string `json:"uploaded_at"`
}

type ProcessingStatus struct {
	DocumentID      string `json:"document_id"`
	ChunksProcessed int    `json:"chunks_processed"`
	Status          string `json:"status"`
	FileType        string `json:"file_type"`
}

type UploadResult struct {
	DocumentID       string           `json:"document_id"`
	Title            string           `json:"title"`
	FileURL          string           `json:"file_url"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
}

type Source struct {
	Content  string `json:"content"`
	Metadata struct {
		DocumentID string `json:"document_id"`
		ChunkIndex int    `json:"chunk_index"`
		FileType   string `json:"file_type"`
	} `json:"metadata"`
	RelevanceScore float64 `json:"relevance_score"`
}

type ChatAnswer struct {
	Answer     string   `json:"answer"`
	DocumentID string   `json:"document_id"`
	Sources    []Source `json:"sources"`
}

type ChatTurn struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	UserMessage string `json:"user_message"`
	BotResponse string `json:"bot_response"`
}

type ChatHistory struct {
	DocumentID  string     `json:"document_id"`
	Title       string     `json:"title"`
	ChatHistory []ChatTurn `json:"chat_history"`
}

type Profile struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	Bio          string `json:"bio"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func decodeData(resp *APIResponse, v interface{}) error {
	if err := json.Unmarshal(resp.Data, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func fetchIdentity(api *APIClient) (*Identity, error) {
	resp, err := api.Get("/profile")
	if err != nil {
		return nil, err
	}
	var identity Identity
	if err := decodeData(resp, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}
