package models

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// ErrDimensionMismatch is returned when a vector does not match the configured
// embedding dimension. It is a configuration error and is never absorbed.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Source is where documents come from, either an upload or a crawl.
type Source struct {
	bun.BaseModel `bun:"table:sources,alias:s"`

	ID        string    `bun:"id,pk"`
	Type      string    `bun:"type,notnull"`
	URI       string    `bun:"uri,notnull"`
	Status    string    `bun:"status,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

const (
	SourceTypeUpload = "upload"
	SourceTypeCrawl  = "crawl"

	SourceStatusRegistered = "registered"
	SourceStatusIngesting  = "ingesting"
	SourceStatusReady      = "ready"
	SourceStatusFailed     = "failed"
)

// Document groups the chunks of one ingested document.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID        string    `bun:"id,pk"`
	SourceID  string    `bun:"source_id,notnull"`
	Title     string    `bun:"title"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Chunk is one embeddable unit of document text. VectorRef points at the
// chunk's entry in the vector index; an empty VectorRef means the chunk has no
// embedded vector. A zero or padded vector is never stored in its place.
type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID          string `bun:"id,pk"`
	DocumentID  string `bun:"document_id,notnull"`
	Text        string `bun:"text,notnull"`
	TokenCount  int    `bun:"token_count,notnull"`
	ContentHash string `bun:"content_hash,notnull,unique"`
	VectorRef   string `bun:"vector_ref,nullzero"`
}
