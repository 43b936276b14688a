package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cloo-solutions/docchat/internal/domain"
)

// QdrantConfig configures the Qdrant REST backend.
type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// QdrantIndex is a REST client for a Qdrant server.
type QdrantIndex struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu   sync.RWMutex
	spec *CollectionSpec
}

func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &QdrantIndex{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// qdrantStatusError is a non-2xx response.
type qdrantStatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.Method, e.Path, e.Status, e.Body)
}

func (q *QdrantIndex) Ping(ctx context.Context) error {
	return q.do(ctx, http.MethodGet, "/collections", nil, nil)
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(spec.Name), nil, &info)

	var statusErr *qdrantStatusError
	switch {
	case err == nil:
		vectors := info.Result.Config.Params.Vectors
		if vectors.Size != spec.Dimension {
			return domain.Wrap(domain.ErrSchemaMismatch,
				fmt.Errorf("collection %q has dimension %d, want %d", spec.Name, vectors.Size, spec.Dimension))
		}
		if vectors.Distance != "" {
			spec.Distance = Distance(vectors.Distance)
		}
	case errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound:
		create := map[string]any{
			"vectors": map[string]any{
				"size":     spec.Dimension,
				"distance": string(spec.Distance),
			},
		}
		if err := q.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(spec.Name), create, nil); err != nil {
			return err
		}
		index := map[string]any{"field_name": "document_id", "field_schema": "keyword"}
		if err := q.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(spec.Name)+"/index?wait=true", index, nil); err != nil {
			return err
		}
	default:
		return err
	}

	q.mu.Lock()
	q.spec = &spec
	q.mu.Unlock()
	return nil
}

type qdrantPoint struct {
	ID      string              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload domain.ChunkPayload `json:"payload"`
}

func (q *QdrantIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.ChunkPayload) error {
	spec, err := q.current()
	if err != nil {
		return err
	}
	if err := validatePoints(spec.Dimension, ids, vectors, payloads); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	points := make([]qdrantPoint, len(ids))
	for i := range ids {
		points[i] = qdrantPoint{ID: ids[i], Vector: vectors[i], Payload: payloads[i]}
	}
	return q.do(ctx, http.MethodPut, q.pointsPath(spec, "?wait=true"), map[string]any{"points": points}, nil)
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	spec, err := q.current()
	if err != nil {
		return nil, err
	}
	if len(vector) != spec.Dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if filter.DocumentID != "" {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": filter.DocumentID}},
			},
		}
	}

	var resp struct {
		Result []struct {
			ID      any                 `json:"id"`
			Score   float64             `json:"score"`
			Payload domain.ChunkPayload `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.pointsPath(spec, "/search"), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{ID: fmt.Sprint(r.ID), Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	spec, err := q.current()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return q.do(ctx, http.MethodPost, q.pointsPath(spec, "/delete?wait=true"), map[string]any{"points": ids}, nil)
}

func (q *QdrantIndex) current() (CollectionSpec, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.spec == nil {
		return CollectionSpec{}, errCollectionNotReady
	}
	return *q.spec, nil
}

func (q *QdrantIndex) pointsPath(spec CollectionSpec, suffix string) string {
	return "/collections/" + url.PathEscape(spec.Name) + "/points" + suffix
}

func (q *QdrantIndex) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &qdrantStatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
