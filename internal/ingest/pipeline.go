package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"rag-engine/internal/embedding"
	"rag-engine/internal/helper"
	"rag-engine/internal/models"
)

// Embedder is the slice of the embedding service the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (*embedding.BatchResult, error)
}

// VectorWriter is the write side of the vector index.
type VectorWriter interface {
	Upsert(ctx context.Context, points []models.VectorPoint) error
	Delete(ctx context.Context, ids ...string) error
}

// ChunkWriter is the transactional write side of the relational store.
type ChunkWriter interface {
	WriteChunk(ctx context.Context, chunk *models.Chunk) error
}

// ChunkInput is one pre-chunked piece of document text, as handed over by the
// parsing stage.
type ChunkInput struct {
	Text     string
	Metadata map[string]string
}

// Stats reports the outcome of one ingestion run. Failures are listed
// explicitly; silent partial success is not a thing.
type Stats struct {
	Succeeded      int               `json:"succeeded"`
	Failed         int               `json:"failed"`
	FailureReasons map[string]string `json:"failure_reasons,omitempty"`
}

// Pipeline turns pre-chunked text into cached embeddings and writes the
// vector index and the relational store consistently.
type Pipeline struct {
	embedder Embedder
	vectors  VectorWriter
	store    ChunkWriter
}

func NewPipeline(embedder Embedder, vectors VectorWriter, store ChunkWriter) *Pipeline {
	return &Pipeline{embedder: embedder, vectors: vectors, store: store}
}

// Ingest embeds the chunks and persists each successfully embedded chunk to
// both stores: vector first, then the chunk row in a relational transaction.
// If the relational write fails after the vector write succeeded, the vector
// is deleted again so no orphaned vector survives without queryable metadata.
// Chunks whose embedding failed are recorded in Stats and written nowhere.
// Re-running with unchanged content is idempotent: hashes hit the embedding
// cache and both writes are upserts keyed on the same derived id.
func (p *Pipeline) Ingest(ctx context.Context, documentID string, chunks []ChunkInput) (*Stats, error) {
	stats := &Stats{FailureReasons: make(map[string]string)}
	if len(chunks) == 0 {
		return stats, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	result, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	for i, outcome := range result.Outcomes {
		hash := helper.ContentHash(texts[i])
		id := chunkID(documentID, hash)

		if !outcome.OK() {
			stats.Failed++
			stats.FailureReasons[id] = outcome.FailureReason
			continue
		}

		metadata := map[string]string{
			"document_id":  documentID,
			"content_hash": hash,
		}
		for k, v := range chunks[i].Metadata {
			metadata[k] = v
		}

		err := p.vectors.Upsert(ctx, []models.VectorPoint{{
			ID:        id,
			Content:   texts[i],
			Metadata:  metadata,
			Embedding: outcome.Vector,
		}})
		if err != nil {
			if errors.Is(err, models.ErrDimensionMismatch) {
				return nil, err
			}
			stats.Failed++
			stats.FailureReasons[id] = fmt.Sprintf("vector write failed: %v", err)
			continue
		}

		chunk := &models.Chunk{
			ID:          id,
			DocumentID:  documentID,
			Text:        texts[i],
			TokenCount:  helper.TokenCount(texts[i]),
			ContentHash: hash,
			VectorRef:   id,
		}
		if err := p.store.WriteChunk(ctx, chunk); err != nil {
			// compensate: drop the vector we just wrote
			if delErr := p.vectors.Delete(ctx, id); delErr != nil {
				log.Error().Err(delErr).Str("chunk", id).Msg("Compensating vector delete failed")
			}
			stats.Failed++
			stats.FailureReasons[id] = fmt.Sprintf("relational write failed: %v", err)
			continue
		}

		stats.Succeeded++
	}

	log.Info().
		Str("document", documentID).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Msg("Ingestion finished")
	return stats, nil
}

// chunkID derives a stable id from the document and the content hash, so that
// re-ingesting unchanged content upserts instead of duplicating.
func chunkID(documentID, hash string) string {
	return fmt.Sprintf("%s-%s", documentID, hash[:16])
}
