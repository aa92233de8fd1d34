package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"rag-engine/internal/config"
	"rag-engine/internal/models"
)

// Store is the relational side of the engine: chunk/document/source metadata
// plus the lexical full-text index, backed by Postgres through bun.
type Store struct {
	db *bun.DB
}

func ConnectDB(cfg *config.Database) (*sql.DB, error) {
	dsn := cfg.DSN + "?sslmode=disable"
	// return sql.Open("postgres", dsn)
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password))), nil
}

// NewStore wraps the sql connection with bun. The connection pool is bounded
// by max_open_conns; every operation acquires and releases through it.
func NewStore(sqldb *sql.DB, cfg *config.Database) *Store {
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}
}

// Init creates the schema and the full-text GIN index.
func (s *Store) Init(ctx context.Context) error {
	for _, model := range []interface{}{
		(*models.Source)(nil),
		(*models.Document)(nil),
		(*models.Chunk)(nil),
	} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_chunks_fts ON chunks USING GIN (to_tsvector('english', text))`)
	if err != nil {
		return fmt.Errorf("failed to create full-text index: %v", err)
	}
	return nil
}

// RegisterSource inserts a source row, keeping the existing row on re-registration.
func (s *Store) RegisterSource(ctx context.Context, src *models.Source) error {
	if src.Status == "" {
		src.Status = models.SourceStatusRegistered
	}
	_, err := s.db.NewInsert().
		Model(src).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	return err
}

// UpdateSourceStatus records crawl/ingestion status transitions.
func (s *Store) UpdateSourceStatus(ctx context.Context, id, status string) error {
	_, err := s.db.NewUpdate().
		Model((*models.Source)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// UpsertDocument creates the document row at ingestion start. Title edits are
// allowed on re-ingestion, nothing else changes once chunks exist.
func (s *Store) UpsertDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.db.NewInsert().
		Model(doc).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Exec(ctx)
	return err
}

// WriteChunk writes one chunk row inside a transaction. The upsert on
// content_hash keeps re-ingestion of unchanged content from duplicating rows.
func (s *Store) WriteChunk(ctx context.Context, chunk *models.Chunk) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(chunk).
			On("CONFLICT (content_hash) DO UPDATE").
			Set("text = EXCLUDED.text").
			Set("token_count = EXCLUDED.token_count").
			Set("vector_ref = EXCLUDED.vector_ref").
			Exec(ctx)
		return err
	})
}

type textRow struct {
	ID         string  `bun:"id"`
	Text       string  `bun:"text"`
	DocumentID string  `bun:"document_id"`
	Rank       float64 `bun:"rank"`
}

// FullTextQuery runs a ranked lexical search over the chunk text. The rank
// uses ts_rank_cd with normalization flag 32, which maps it into [0,1].
func (s *Store) FullTextQuery(ctx context.Context, query string, k int, filter map[string]string) ([]models.TextHit, error) {
	var rows []textRow
	q := s.db.NewSelect().
		TableExpr("chunks AS c").
		ColumnExpr("c.id, c.text, c.document_id").
		ColumnExpr("ts_rank_cd(to_tsvector('english', c.text), plainto_tsquery('english', ?), 32) AS rank", query).
		Where("to_tsvector('english', c.text) @@ plainto_tsquery('english', ?)", query).
		OrderExpr("rank DESC").
		Limit(k)
	if docID, ok := filter["document_id"]; ok {
		q = q.Where("c.document_id = ?", docID)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("full-text query failed: %v", err)
	}

	hits := make([]models.TextHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, models.TextHit{
			ChunkID:  r.ID,
			Content:  r.Text,
			Metadata: map[string]string{"document_id": r.DocumentID},
			Rank:     r.Rank,
		})
	}
	return hits, nil
}

// ChunkCount returns the number of chunk rows for a document, or all rows when
// documentID is empty.
func (s *Store) ChunkCount(ctx context.Context, documentID string) (int, error) {
	q := s.db.NewSelect().Model((*models.Chunk)(nil))
	if documentID != "" {
		q = q.Where("document_id = ?", documentID)
	}
	return q.Count(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
