package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apca/claimaudit/internal/model"
)

// PostgresStore persists chunks in a pgvector-enabled Postgres table.
// Cosine distance queries use the <=> operator so similarity is
// computed as 1 - distance.
type PostgresStore struct {
	db         *pgxpool.Pool
	collection string
}

func NewPostgresStore(db *pgxpool.Pool, collection string) *PostgresStore {
	if collection == "" {
		collection = "policy_chunks"
	}
	return &PostgresStore{db: db, collection: collection}
}

// formatVector formats an embedding as a pgvector literal for pgx.
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (s *PostgresStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}

	if _, err := s.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}

	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vector_collections (
			name      TEXT PRIMARY KEY,
			dimension INT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create collection registry: %w", err)
	}

	var existing int
	err = s.db.QueryRow(ctx,
		`SELECT dimension FROM vector_collections WHERE name = $1`, s.collection,
	).Scan(&existing)
	if err == nil {
		if existing != dimension {
			return fmt.Errorf("%w: collection %s has %d, requested %d",
				ErrDimensionMismatch, s.collection, existing, dimension)
		}
		return nil
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_id     TEXT PRIMARY KEY,
			policy_id    TEXT NOT NULL,
			policy_name  TEXT NOT NULL,
			payer        TEXT NOT NULL DEFAULT '',
			section_path TEXT NOT NULL DEFAULT '',
			page         INT NOT NULL DEFAULT 0,
			chunk_text   TEXT NOT NULL,
			embedding    vector(%d) NOT NULL
		)`, s.collection, dimension)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}

	index := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_policy_idx ON %s (policy_id)`,
		s.collection, s.collection)
	if _, err := s.db.Exec(ctx, index); err != nil {
		return fmt.Errorf("failed to index collection %s: %w", s.collection, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO vector_collections (name, dimension) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`, s.collection, dimension)
	if err != nil {
		return fmt.Errorf("failed to register collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, chunks []model.PolicyChunk) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, policy_id, policy_name, payer, section_path, page, chunk_text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
		ON CONFLICT (chunk_id) DO UPDATE SET
			policy_id    = EXCLUDED.policy_id,
			policy_name  = EXCLUDED.policy_name,
			payer        = EXCLUDED.payer,
			section_path = EXCLUDED.section_path,
			page         = EXCLUDED.page,
			chunk_text   = EXCLUDED.chunk_text,
			embedding    = EXCLUDED.embedding`, s.collection)

	for _, chunk := range chunks {
		if chunk.ChunkID == "" {
			return fmt.Errorf("chunk without ID for policy %s", chunk.PolicyID)
		}
		_, err := s.db.Exec(ctx, query,
			chunk.ChunkID,
			chunk.PolicyID,
			chunk.PolicyName,
			chunk.Payer,
			chunk.SectionPath,
			chunk.Page,
			chunk.Text,
			formatVector(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", chunk.ChunkID, err)
		}
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, query []float32, limit int, filter Filter) ([]model.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	vectorStr := formatVector(query)
	args := []interface{}{vectorStr}
	var conditions []string
	for key, value := range filter {
		switch key {
		case "policy_id", "payer":
			args = append(args, value)
			conditions = append(conditions, fmt.Sprintf("%s = $%d", key, len(args)))
		default:
			return nil, fmt.Errorf("unsupported filter key %q", key)
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`
		SELECT
			chunk_id,
			policy_id,
			policy_name,
			payer,
			section_path,
			page,
			chunk_text,
			embedding <=> $1::vector AS distance
		FROM %s
		%s
		ORDER BY embedding <=> $1::vector
		LIMIT $%d`, s.collection, where, len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []model.ScoredChunk
	for rows.Next() {
		var chunk model.PolicyChunk
		var distance float64
		err := rows.Scan(
			&chunk.ChunkID,
			&chunk.PolicyID,
			&chunk.PolicyName,
			&chunk.Payer,
			&chunk.SectionPath,
			&chunk.Page,
			&chunk.Text,
			&distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, model.ScoredChunk{Chunk: chunk, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}
	return results, nil
}

func (s *PostgresStore) DeletePolicy(ctx context.Context, policyID string) (int, error) {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE policy_id = $1`, s.collection)
	tag, err := s.db.Exec(ctx, sql, policyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete policy %s: %w", policyID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.collection)
	if err := s.db.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
