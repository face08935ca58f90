package memory

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// cache is the content-addressed embedding cache. It shares the engine's
// database handle and mutex: its operations are atomic with respect to
// every other engine operation because nothing else takes the lock
// concurrently.
type cache struct {
	db       *sql.DB
	mu       *sync.Mutex
	provider Provider
	max      int
}

func newCache(db *sql.DB, mu *sync.Mutex, provider Provider, max int) *cache {
	return &cache{db: db, mu: mu, provider: provider, max: max}
}

// contentHash renders the lower 8 bytes of SHA-256 over text as 16
// lowercase hex characters. Collisions are acknowledged but ignored; the
// cache is best-effort.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%016x", sum[:8])
}

// getOrCompute returns the cached embedding for text, computing and
// caching it on a miss. It returns (nil, nil) immediately, without
// touching the cache, when the provider reports dimension 0. The
// embedder call (the only suspension point here) happens with the lock
// released.
func (c *cache) getOrCompute(ctx context.Context, text string) ([]float32, error) {
	if c.provider.Dimensions() == 0 {
		return nil, nil
	}

	hash := contentHash(text)
	now := time.Now().Format(time.RFC3339)

	if vec, hit := c.lookup(hash, now); hit {
		return vec, nil
	}

	embedding, err := EmbedOne(ctx, c.provider, text)
	if err != nil {
		return nil, err
	}

	c.store(hash, embedding, now)
	return embedding, nil
}

func (c *cache) lookup(hash, now string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var blob []byte
	err := c.db.QueryRow(`SELECT embedding FROM embedding_cache WHERE content_hash = ?`, hash).Scan(&blob)
	if err != nil {
		return nil, false
	}

	_, _ = c.db.Exec(`UPDATE embedding_cache SET accessed_at = ? WHERE content_hash = ?`, now, hash)
	return DecodeVector(blob), true
}

func (c *cache) store(hash string, embedding []float32, now string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bytes := EncodeVector(embedding)
	_, _ = c.db.Exec(
		`INSERT OR REPLACE INTO embedding_cache (content_hash, embedding, created_at, accessed_at) VALUES (?, ?, ?, ?)`,
		hash, bytes, now, now,
	)

	_, _ = c.db.Exec(
		`DELETE FROM embedding_cache WHERE content_hash IN (
			SELECT content_hash FROM embedding_cache
			ORDER BY accessed_at ASC
			LIMIT MAX(0, (SELECT COUNT(*) FROM embedding_cache) - ?)
		)`,
		c.max,
	)
}
