package vectordb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"rag-engine/internal/config"
	"rag-engine/internal/models"
)

const compress = false

// Index encapsulates the chromem-go database operations. It stores
// fixed-dimension vectors with payload metadata and answers k-nearest-neighbour
// queries with an optional metadata filter and a minimum-similarity cutoff.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
	dbPath     string
}

// NewIndex initializes a new vector index, persistent or in-memory.
func NewIndex(cfg *config.Vector) (*Index, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	c, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}

	return &Index{
		db:         db,
		collection: c,
		dimension:  cfg.Dimension,
		dbPath:     cfg.Path,
	}, nil
}

// Upsert adds vectors with their payloads. Every vector must have exactly the
// configured dimension; a mismatch rejects the whole call before any write.
func (x *Index) Upsert(ctx context.Context, points []models.VectorPoint) error {
	docs := make([]chromem.Document, 0, len(points))
	for _, p := range points {
		if len(p.Embedding) != x.dimension {
			return fmt.Errorf("%w: point %s has %d dimensions, want %d",
				models.ErrDimensionMismatch, p.ID, len(p.Embedding), x.dimension)
		}
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Content:   p.Content,
			Metadata:  p.Metadata,
			Embedding: p.Embedding,
		})
	}
	if len(docs) == 0 {
		return nil
	}

	if err := x.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

// Query returns up to k nearest neighbours of the query vector, filtered by
// metadata and by minScore. chromem has no score cutoff of its own, so the
// cutoff is applied as a post-filter on the similarity it reports.
func (x *Index) Query(ctx context.Context, vector []float32, k int, filter map[string]string, minScore float64) ([]models.VectorHit, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			models.ErrDimensionMismatch, len(vector), x.dimension)
	}

	// chromem rejects nResults above the collection size
	n := k
	if count := x.collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := x.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       n,
		Where:          filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	hits := make([]models.VectorHit, 0, len(results))
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < minScore {
			continue
		}
		hits = append(hits, models.VectorHit{
			ChunkID:    r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: sim,
		})
	}
	return hits, nil
}

// Delete removes vectors by id. Used as the compensating action when the
// paired relational write fails after a vector write succeeded.
func (x *Index) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := x.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete documents: %v", err)
	}
	return nil
}

// Count returns the number of stored vectors.
func (x *Index) Count() int {
	return x.collection.Count()
}

// Reset drops and recreates the collection.
func (x *Index) Reset(name string) error {
	log.Debug().Msgf("Resetting collection: %s", x.collection.Name)
	if err := x.db.DeleteCollection(x.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	c, err := x.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	x.collection = c
	return nil
}
