// Package sqlcache persists embedding vectors in SQLite and only forwards
// unseen phrases to the wrapped backend.
package sqlcache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Backend is the embedder being cached.
type Backend interface {
	Embed(ctx context.Context, phrases []string) ([][]float32, error)
}

// Embedder is a read-through cache keyed by namespace and phrase. The
// namespace should identify backend and model so vectors of different spaces
// never mix.
type Embedder struct {
	db        *sql.DB
	next      Backend
	namespace string
	logger    *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens (or creates) the cache database at path.
func Open(path string, next Backend, namespace string, logger *zap.Logger) (*Embedder, error) {
	if next == nil {
		return nil, errors.New("sqlcache: backend is required")
	}
	if namespace == "" {
		return nil, errors.New("sqlcache: namespace is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("sqlcache: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlcache: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlcache: init schema: %w", err)
	}

	return &Embedder{
		db:        db,
		next:      next,
		namespace: namespace,
		logger:    logger,
	}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS embeddings (
		namespace  TEXT NOT NULL,
		phrase     TEXT NOT NULL,
		dimension  INTEGER NOT NULL,
		vector     BLOB NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		PRIMARY KEY (namespace, phrase)
	)`)
	return err
}

func (e *Embedder) Close() error {
	return e.db.Close()
}

// Stats returns cache hits and misses since Open.
func (e *Embedder) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}

func (e *Embedder) Embed(ctx context.Context, phrases []string) ([][]float32, error) {
	if len(phrases) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(phrases))
	missing := make(map[string][]int)
	var order []string

	for i, phrase := range phrases {
		if idx, ok := missing[phrase]; ok {
			missing[phrase] = append(idx, i)
			continue
		}
		vec, err := e.lookup(ctx, phrase)
		if err != nil {
			return nil, err
		}
		if vec != nil {
			out[i] = vec
			e.hits.Add(1)
			continue
		}
		missing[phrase] = []int{i}
		order = append(order, phrase)
	}

	if len(order) == 0 {
		return out, nil
	}
	e.misses.Add(int64(len(order)))

	vectors, err := e.next.Embed(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(order) {
		return nil, fmt.Errorf("sqlcache: backend returned %d vectors for %d phrases", len(vectors), len(order))
	}

	if err := checkVectors(order, vectors, cachedDimension(out)); err != nil {
		return nil, err
	}

	if err := e.store(ctx, order, vectors); err != nil {
		return nil, err
	}

	for i, phrase := range order {
		for _, pos := range missing[phrase] {
			out[pos] = vectors[i]
		}
	}

	e.logger.Debug("embedding cache",
		zap.String("namespace", e.namespace),
		zap.Int("requested", len(phrases)),
		zap.Int("fetched", len(order)),
	)

	return out, nil
}

// cachedDimension returns the length of the first vector served from the
// cache, or 0 when nothing was cached.
func cachedDimension(vectors [][]float32) int {
	for _, v := range vectors {
		if v != nil {
			return len(v)
		}
	}
	return 0
}

// checkVectors rejects backend output that must never reach the cache.
func checkVectors(phrases []string, vectors [][]float32, dim int) error {
	for i, vec := range vectors {
		if len(vec) == 0 {
			return fmt.Errorf("sqlcache: backend returned an empty vector for %q", phrases[i])
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return fmt.Errorf("sqlcache: backend returned %d values for %q, want %d", len(vec), phrases[i], dim)
		}
		for _, v := range vec {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return fmt.Errorf("sqlcache: backend returned a non-finite value for %q", phrases[i])
			}
		}
	}
	return nil
}

func (e *Embedder) lookup(ctx context.Context, phrase string) ([]float32, error) {
	var (
		dim  int
		blob []byte
	)
	err := e.db.QueryRowContext(ctx,
		`SELECT dimension, vector FROM embeddings WHERE namespace = ? AND phrase = ?`,
		e.namespace, phrase,
	).Scan(&dim, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlcache: lookup %q: %w", phrase, err)
	}

	vec, err := decode(blob, dim)
	if err != nil {
		return nil, fmt.Errorf("sqlcache: entry %q: %w", phrase, err)
	}
	return vec, nil
}

func (e *Embedder) store(ctx context.Context, phrases []string, vectors [][]float32) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlcache: begin: %w", err)
	}
	defer tx.Rollback()

	for i, phrase := range phrases {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO embeddings (namespace, phrase, dimension, vector) VALUES (?, ?, ?, ?)`,
			e.namespace, phrase, len(vectors[i]), encode(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("sqlcache: store %q: %w", phrase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlcache: commit: %w", err)
	}
	return nil
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decode(buf []byte, dim int) ([]float32, error) {
	if len(buf) != 4*dim {
		return nil, fmt.Errorf("vector has %d bytes, want %d", len(buf), 4*dim)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
