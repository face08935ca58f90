package memory

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Category is the tagged-union memory category. Core/Daily/Conversation
// are the well-known tags; any other string is a caller-defined custom
// category.
type Category string

const (
	CategoryCore         Category = "core"
	CategoryDaily        Category = "daily"
	CategoryConversation Category = "conversation"
)

// Entry is a memory record as returned to callers: recall/get/list all
// hand these back, with Score populated only by recall.
type Entry struct {
	ID        string
	Key       string
	Content   string
	Category  Category
	Timestamp string
	SessionID string
	Score     *float64
}

// Engine is the hybrid search engine: it owns the relational store, its
// full-text auxiliary index, and the embedding cache, all behind one
// mutex-guarded database handle.
type Engine struct {
	db            *sql.DB
	mu            sync.Mutex
	embedder      Provider
	cache         *cache
	vectorWeight  float32
	keywordWeight float32
}

// EngineConfig configures a new Engine.
type EngineConfig struct {
	WorkspaceDir  string
	Embedder      Provider
	VectorWeight  float32
	KeywordWeight float32
	CacheMax      int
}

// NewEngine opens (creating if necessary) the database at
// <workspace>/memory/brain.db, applies the tuning pragmas, and creates
// the schema idempotently.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Embedder == nil {
		cfg.Embedder = NoopProvider{}
	}
	if cfg.CacheMax <= 0 {
		cfg.CacheMax = 10000
	}

	dbPath := filepath.Join(cfg.WorkspaceDir, "memory", "brain.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, wrapErr("new engine: create dir", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, wrapErr("new engine: open database", err)
	}

	const pragmas = `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous  = NORMAL;
		PRAGMA mmap_size    = 8388608;
		PRAGMA cache_size   = -2000;
		PRAGMA temp_store   = MEMORY;
	`
	if _, err := db.Exec(pragmas); err != nil {
		db.Close()
		return nil, wrapErr("new engine: apply pragmas", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, wrapErr("new engine: init schema", err)
	}

	e := &Engine{
		db:            db,
		embedder:      cfg.Embedder,
		vectorWeight:  cfg.VectorWeight,
		keywordWeight: cfg.KeywordWeight,
	}
	e.cache = newCache(db, &e.mu, cfg.Embedder, cfg.CacheMax)
	return e, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS memories (
			id         TEXT PRIMARY KEY,
			key        TEXT NOT NULL UNIQUE,
			content    TEXT NOT NULL,
			category   TEXT NOT NULL DEFAULT 'core',
			embedding  BLOB,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category);
		CREATE INDEX IF NOT EXISTS idx_memories_key ON memories(key);

		CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			key, content, content=memories, content_rowid=rowid
		);

		CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, key, content)
			VALUES (new.rowid, new.key, new.content);
		END;
		CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, key, content)
			VALUES ('delete', old.rowid, old.key, old.content);
		END;
		CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, key, content)
			VALUES ('delete', old.rowid, old.key, old.content);
			INSERT INTO memories_fts(rowid, key, content)
			VALUES (new.rowid, new.key, new.content);
		END;

		CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT PRIMARY KEY,
			embedding    BLOB NOT NULL,
			created_at   TEXT NOT NULL,
			accessed_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_cache_accessed ON embedding_cache(accessed_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// RFC 4122 version 4 layout, matching the teacher's hand-rolled UUID.
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}

// Store computes the embedding for content before acquiring the database
// lock (the embedder may do network I/O), then upserts the record under
// the lock: a fresh id is generated but ignored on conflict, content,
// category, embedding and updated_at are refreshed, and created_at keeps
// its original value.
func (e *Engine) Store(ctx context.Context, key, content string, category Category) error {
	embedding, err := e.cache.getOrCompute(ctx, content)
	if err != nil {
		return wrapErr("store: embed content", err)
	}

	var blob []byte
	if embedding != nil {
		blob = EncodeVector(embedding)
	}

	id, err := generateID()
	if err != nil {
		return wrapErr("store: generate id", err)
	}
	now := time.Now().Format(time.RFC3339)

	e.mu.Lock()
	defer e.mu.Unlock()

	_, err = e.db.ExecContext(ctx, `
		INSERT INTO memories (id, key, content, category, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			category = excluded.category,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at
	`, id, key, content, string(category), blob, now, now)
	if err != nil {
		return wrapErr("store", err)
	}
	return nil
}

// Recall computes the query embedding, performs keyword and vector
// search under the lock, fuses them, hydrates the merged ids, and falls
// back to a LIKE scan if hydration still yields nothing.
func (e *Engine) Recall(ctx context.Context, query string, limit int) ([]Entry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	queryEmbedding, err := e.cache.getOrCompute(ctx, query)
	if err != nil {
		queryEmbedding = nil // embedder errors degrade recall to keyword-only
	}

	e.mu.Lock()
	keywordResults := e.ftsSearch(ctx, query, limit*2)

	var vectorResults []ScoredID
	if queryEmbedding != nil {
		vectorResults = e.vectorSearch(ctx, queryEmbedding, limit*2)
	}

	var merged []ScoredResult
	if len(vectorResults) == 0 {
		merged = make([]ScoredResult, 0, len(keywordResults))
		for _, kr := range keywordResults {
			score := kr.Score
			merged = append(merged, ScoredResult{ID: kr.ID, KeywordScore: &score, FinalScore: score})
		}
	} else {
		merged = HybridMerge(vectorResults, keywordResults, e.vectorWeight, e.keywordWeight, limit)
	}

	results := e.hydrate(ctx, merged)
	e.mu.Unlock()

	if len(results) == 0 {
		results = e.likeFallback(ctx, query, limit)
	}

	if limit >= 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// ftsSearch quotes each whitespace token and ORs them together, queries
// the inverted index by BM25 (ascending, lower is better), and re-emits
// as (id, -bm25) so higher is better downstream. Any failure degrades to
// an empty list without aborting the recall.
func (e *Engine) ftsSearch(ctx context.Context, query string, limit int) []ScoredID {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"`
	}
	ftsQuery := strings.Join(quoted, " OR ")

	rows, err := e.db.QueryContext(ctx, `
		SELECT m.id, bm25(memories_fts) as score
		FROM memories_fts f
		JOIN memories m ON m.rowid = f.rowid
		WHERE memories_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []ScoredID
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil
		}
		out = append(out, ScoredID{ID: id, Score: float32(-score)})
	}
	return out
}

// vectorSearch scans every non-null embedding, computes cosine similarity
// to queryEmbedding, drops non-positive similarities, sorts descending
// and truncates to limit. Any failure degrades to an empty list.
func (e *Engine) vectorSearch(ctx context.Context, queryEmbedding []float32, limit int) []ScoredID {
	rows, err := e.db.QueryContext(ctx, `SELECT id, embedding FROM memories WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var scored []ScoredID
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil
		}
		sim := CosineSimilarity(queryEmbedding, DecodeVector(blob))
		if sim > 0 {
			scored = append(scored, ScoredID{ID: id, Score: sim})
		}
	}

	merged := HybridMerge(scored, nil, 1, 0, limit)
	out := make([]ScoredID, len(merged))
	for i, m := range merged {
		out[i] = ScoredID{ID: m.ID, Score: m.FinalScore}
	}
	return out
}

// hydrate fetches the full row for each merged id, skipping ids whose
// row no longer exists.
func (e *Engine) hydrate(ctx context.Context, merged []ScoredResult) []Entry {
	results := make([]Entry, 0, len(merged))
	for _, m := range merged {
		row := e.db.QueryRowContext(ctx,
			`SELECT id, key, content, category, created_at FROM memories WHERE id = ?`, m.ID)
		var entry Entry
		var cat string
		if err := row.Scan(&entry.ID, &entry.Key, &entry.Content, &cat, &entry.Timestamp); err != nil {
			continue
		}
		entry.Category = Category(cat)
		score := float64(m.FinalScore)
		entry.Score = &score
		results = append(results, entry)
	}
	return results
}

// likeFallback rescues recall when both the inverted index and the
// embedder produce nothing, by OR-ing substring matches over content and
// key for every whitespace token. Scores are uniformly 1.0; this is a
// safety net, not a ranking mechanism.
func (e *Engine) likeFallback(ctx context.Context, query string, limit int) []Entry {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil
	}

	conditions := make([]string, len(tokens))
	args := make([]any, 0, len(tokens)*2+1)
	for i, t := range tokens {
		conditions[i] = "(content LIKE ? OR key LIKE ?)"
		pattern := "%" + t + "%"
		args = append(args, pattern, pattern)
	}
	args = append(args, limit)

	sqlStr := fmt.Sprintf(`
		SELECT id, key, content, category, created_at FROM memories
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT ?
	`, strings.Join(conditions, " OR "))

	e.mu.Lock()
	rows, err := e.db.QueryContext(ctx, sqlStr, args...)
	defer e.mu.Unlock()
	if err != nil {
		return nil
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var entry Entry
		var cat string
		if err := rows.Scan(&entry.ID, &entry.Key, &entry.Content, &cat, &entry.Timestamp); err != nil {
			continue
		}
		entry.Category = Category(cat)
		score := 1.0
		entry.Score = &score
		results = append(results, entry)
	}
	return results
}

// Get looks up a single record by key.
func (e *Engine) Get(ctx context.Context, key string) (*Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	row := e.db.QueryRowContext(ctx,
		`SELECT id, key, content, category, created_at FROM memories WHERE key = ?`, key)
	var entry Entry
	var cat string
	if err := row.Scan(&entry.ID, &entry.Key, &entry.Content, &cat, &entry.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, wrapErr("get", ErrNotFound)
		}
		return nil, wrapErr("get", err)
	}
	entry.Category = Category(cat)
	return &entry, nil
}

// List returns every record, optionally filtered by category, ordered by
// updated_at descending.
func (e *Engine) List(ctx context.Context, category *Category) ([]Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rows *sql.Rows
	var err error
	if category != nil {
		rows, err = e.db.QueryContext(ctx,
			`SELECT id, key, content, category, created_at FROM memories WHERE category = ? ORDER BY updated_at DESC`,
			string(*category))
	} else {
		rows, err = e.db.QueryContext(ctx,
			`SELECT id, key, content, category, created_at FROM memories ORDER BY updated_at DESC`)
	}
	if err != nil {
		return nil, wrapErr("list", err)
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var entry Entry
		var cat string
		if err := rows.Scan(&entry.ID, &entry.Key, &entry.Content, &cat, &entry.Timestamp); err != nil {
			return nil, wrapErr("list: scan", err)
		}
		entry.Category = Category(cat)
		results = append(results, entry)
	}
	return results, nil
}

// Forget deletes a record by key, reporting whether a row was removed.
func (e *Engine) Forget(ctx context.Context, key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.db.ExecContext(ctx, `DELETE FROM memories WHERE key = ?`, key)
	if err != nil {
		return false, wrapErr("forget", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("forget", err)
	}
	return n > 0, nil
}

// Count returns the total number of stored records.
func (e *Engine) Count(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var n int
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, wrapErr("count", err)
	}
	return n, nil
}

// Health verifies the database handle still answers a trivial query.
func (e *Engine) Health(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.db.ExecContext(ctx, `SELECT 1`)
	return err == nil
}
