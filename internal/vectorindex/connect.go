package vectorindex

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloo-solutions/docchat/internal/domain"
)

// ConnectConfig controls the startup handshake with a backend.
type ConnectConfig struct {
	Spec     CollectionSpec
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
}

// Client is the process-wide handle on the vector index. It is safe for
// concurrent use. When the startup handshake failed, every call returns
// BACKEND_UNAVAILABLE without contacting the backend.
type Client struct {
	backend Backend
	spec    CollectionSpec
	timeout time.Duration
	err     error
}

// Connect pings the backend and ensures the collection exists, retrying
// with a fixed backoff. Schema and dimension mismatches are configuration
// errors: they are returned immediately and the caller should abort.
// Any other persistent failure yields a Client in the unavailable state.
func Connect(ctx context.Context, backend Backend, cfg ConnectConfig) (*Client, error) {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	c := &Client{backend: backend, spec: cfg.Spec, timeout: cfg.Timeout}

	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		if err := backend.Ping(callCtx); err != nil {
			log.Printf("vector index ping failed (attempt %d/%d): %v", attempt, attempts, err)
			return err
		}
		if err := backend.EnsureCollection(callCtx, cfg.Spec); err != nil {
			if isConfigError(err) {
				return backoff.Permanent(err)
			}
			log.Printf("vector index ensure collection failed (attempt %d/%d): %v", attempt, attempts, err)
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Backoff), uint64(attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if isConfigError(err) {
			return nil, err
		}
		log.Printf("vector index unavailable after %d attempts: %v", attempt, err)
		c.err = domain.Wrap(domain.ErrBackendUnavailable, err)
		return c, nil
	}

	log.Printf("vector index ready (collection %s, dimension %d)", cfg.Spec.Name, cfg.Spec.Dimension)
	return c, nil
}

// Unavailable returns a Client that fails every call with cause.
func Unavailable(cause error) *Client {
	return &Client{err: domain.Wrap(domain.ErrBackendUnavailable, cause)}
}

// Available reports whether the startup handshake succeeded.
func (c *Client) Available() bool {
	return c.err == nil
}

// Err returns the recorded startup failure, if any.
func (c *Client) Err() error {
	return c.err
}

// Spec returns the collection the client was connected with.
func (c *Client) Spec() CollectionSpec {
	return c.spec
}

func (c *Client) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if c.err != nil {
		return c.err
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return mapError(c.backend.EnsureCollection(ctx, spec))
}

func (c *Client) Upsert(ctx context.Context, ids []string, vectors [][]float32, payloads []domain.ChunkPayload) error {
	if c.err != nil {
		return c.err
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return mapError(c.backend.Upsert(ctx, ids, vectors, payloads))
}

func (c *Client) Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error) {
	if c.err != nil {
		return nil, c.err
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	hits, err := c.backend.Search(ctx, vector, k, filter)
	if err != nil {
		return nil, mapError(err)
	}
	return hits, nil
}

func (c *Client) Delete(ctx context.Context, ids []string) error {
	if c.err != nil {
		return c.err
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	return mapError(c.backend.Delete(ctx, ids))
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func isConfigError(err error) bool {
	return errors.Is(err, domain.ErrSchemaMismatch) || errors.Is(err, domain.ErrDimensionMismatch)
}

// mapError keeps domain errors and reports anything else as an
// unavailable backend.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsDomainError(err); ok {
		return err
	}
	return domain.Wrap(domain.ErrBackendUnavailable, err)
}
