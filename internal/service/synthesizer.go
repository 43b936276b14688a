package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
	"github.com/cloo-solutions/docchat/internal/telemetry"
	"github.com/pkoukk/tiktoken-go"
)

// NotFoundAnswer is returned without a model call when retrieval found nothing.
const NotFoundAnswer = "I couldn't find any relevant information about this in the document. " +
	"Please try rephrasing your question or ask about a different topic covered in the document."

const (
	DefaultHistoryWindow    = 5
	DefaultSynthesisTimeout = 60 * time.Second
)

// Completer runs one non-streaming completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TokenCounter measures prompt size for logging and tracing.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts cl100k_base tokens.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

func (t *TiktokenCounter) CountTokens(text string) int {
	if t == nil || t.encoding == nil {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// Answer is a synthesized reply and the chunks it was grounded on.
type Answer struct {
	Text         string
	Sources      []RetrievedChunk
	PromptTokens int
}

type SynthesizerConfig struct {
	Timeout       time.Duration
	HistoryWindow int
}

// Synthesizer answers a question from retrieved context and recent history.
type Synthesizer struct {
	completer     Completer
	counter       TokenCounter
	timeout       time.Duration
	historyWindow int
}

func NewSynthesizer(completer Completer, counter TokenCounter, cfg SynthesizerConfig) *Synthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSynthesisTimeout
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	return &Synthesizer{
		completer:     completer,
		counter:       counter,
		timeout:       cfg.Timeout,
		historyWindow: cfg.HistoryWindow,
	}
}

// Answer calls the model once. history must be oldest first; only the
// newest historyWindow turns are used. Backend errors and timeouts are
// SYNTHESIS_FAILED.
func (s *Synthesizer) Answer(ctx context.Context, query, documentID string, chunks []RetrievedChunk, history []*domain.ChatTurn) (*Answer, error) {
	if len(chunks) == 0 {
		return &Answer{Text: NotFoundAnswer, Sources: []RetrievedChunk{}}, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "Synthesizer.Answer", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "synthesize",
	})
	defer span.End()

	if len(history) > s.historyWindow {
		history = history[len(history)-s.historyWindow:]
	}
	prompt := buildPrompt(query, chunks, history)

	tokens := 0
	if s.counter != nil {
		tokens = s.counter.CountTokens(prompt)
	}
	span.SetData("prompt_tokens", tokens)
	log.Printf("synthesizer: document %s prompt %d tokens, %d chunks, %d history turns", documentID, tokens, len(chunks), len(history))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.completer.Complete(callCtx, prompt)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("no answer within %s: %w", s.timeout, err)
		}
		span.SetError(err)
		return nil, domain.Wrap(domain.ErrSynthesisFailed, err)
	}

	return &Answer{Text: text, Sources: chunks, PromptTokens: tokens}, nil
}

func buildPrompt(query string, chunks []RetrievedChunk, history []*domain.ChatTurn) string {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	var b strings.Builder
	b.WriteString("Answer the following question based only on the provided context:\n\n")
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(contents, "\n\n"))
	b.WriteString("\n\n")

	if len(history) > 0 {
		turns := make([]string, len(history))
		for i, t := range history {
			turns[i] = "User: " + t.UserMessage + "\nAssistant: " + t.BotResponse
		}
		b.WriteString("Previous conversation (most recent only):\n")
		b.WriteString(strings.Join(turns, "\n\n"))
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
