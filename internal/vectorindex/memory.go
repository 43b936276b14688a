package vectorindex

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"

	"github.com/cloo-solutions/docchat/internal/domain"
)

type memoryPoint struct {
	vector  []float32
	payload domain.ChunkPayload
}

// MemoryIndex is a brute-force in-process index.
type MemoryIndex struct {
	mu     sync.RWMutex
	spec   *CollectionSpec
	points map[string]memoryPoint
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]memoryPoint)}
}

func (m *MemoryIndex) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryIndex) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec != nil {
		if m.spec.Dimension != spec.Dimension {
			return domain.ErrSchemaMismatch
		}
		return nil
	}
	m.spec = &spec
	return nil
}

func (m *MemoryIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.ChunkPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec == nil {
		return errCollectionNotReady
	}
	if err := validatePoints(m.spec.Dimension, ids, vectors, payloads); err != nil {
		return err
	}
	for i, id := range ids {
		m.points[id] = memoryPoint{vector: slices.Clone(vectors[i]), payload: payloads[i]}
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.spec == nil {
		return nil, errCollectionNotReady
	}
	if len(vector) != m.spec.Dimension {
		return nil, domain.ErrDimensionMismatch
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, 0, len(m.points))
	for id, p := range m.points {
		if filter.DocumentID != "" && p.payload.DocumentID != filter.DocumentID {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score(m.spec.Distance, vector, p.vector), Payload: p.payload})
	}
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

// Len reports the number of stored points.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

func score(d Distance, a, b []float32) float64 {
	var dot, na, nb, sq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		sq += (x - y) * (x - y)
	}
	switch d {
	case Dot:
		return dot
	case Euclid:
		return 1 / (1 + math.Sqrt(sq))
	default:
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}
