package service

import "github.com/cloo-solutions/docchat/internal/domain"

// ChunkConfig is measured in runes.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig keeps chunks within typical embedding context limits.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: 1000, Overlap: 200}
}

func (c ChunkConfig) Validate() error {
	if c.Size <= 0 || c.Overlap <= 0 || c.Overlap >= c.Size {
		return domain.ErrInvalidChunkConfig
	}
	return nil
}

// Chunker cuts text into fixed windows that overlap by cfg.Overlap runes.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Split returns the chunks of text in source order. Every chunk except the
// last holds exactly Size runes, and chunks[0] followed by chunks[i][Overlap:]
// for i > 0 reproduces text.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.cfg.Size {
		return []string{text}
	}

	step := c.cfg.Size - c.cfg.Overlap
	chunks := make([]string, 0, (len(runes)-c.cfg.Overlap+step-1)/step)
	for start := 0; ; start += step {
		end := start + c.cfg.Size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
