package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-engine/internal/config"
	"rag-engine/internal/embedding"
	"rag-engine/internal/helper"
	"rag-engine/internal/models"
)

type fakeEmbedder struct {
	result *embedding.BatchResult
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) (*embedding.BatchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// allOK builds a fully successful batch result with dim-4 vectors.
func allOK(n int) *embedding.BatchResult {
	outcomes := make([]embedding.BatchOutcome, n)
	for i := range outcomes {
		outcomes[i] = embedding.BatchOutcome{Index: i, Vector: []float32{1, 0, 0, 0}}
	}
	return &embedding.BatchResult{Outcomes: outcomes}
}

type fakeVectors struct {
	mu        sync.Mutex
	points    map[string]models.VectorPoint
	upsertErr error
	deleted   []string
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{points: make(map[string]models.VectorPoint)}
}

func (f *fakeVectors) Upsert(ctx context.Context, points []models.VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, p := range points {
		f.points[p.ID] = p
	}
	return nil
}

func (f *fakeVectors) Delete(ctx context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.points, id)
		f.deleted = append(f.deleted, id)
	}
	return nil
}

type fakeChunkStore struct {
	mu       sync.Mutex
	byHash   map[string]models.Chunk
	failText string // chunks containing this text fail the relational write
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{byHash: make(map[string]models.Chunk)}
}

func (f *fakeChunkStore) WriteChunk(ctx context.Context, chunk *models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText != "" && chunk.Text == f.failText {
		return errors.New("deadlock detected")
	}
	// upsert keyed on content_hash, like the real store
	f.byHash[chunk.ContentHash] = *chunk
	return nil
}

func (f *fakeChunkStore) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byHash)
}

func chunkInputs(n int) []ChunkInput {
	chunks := make([]ChunkInput, n)
	for i := range chunks {
		chunks[i] = ChunkInput{Text: fmt.Sprintf("chunk %d has its own words", i)}
	}
	return chunks
}

func TestIngestWritesBothStores(t *testing.T) {
	vectors := newFakeVectors()
	store := newFakeChunkStore()
	p := NewPipeline(&fakeEmbedder{result: allOK(3)}, vectors, store)

	stats, err := p.Ingest(context.Background(), "doc-1", chunkInputs(3))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Succeeded)
	assert.Equal(t, 0, stats.Failed)
	assert.Len(t, vectors.points, 3)
	assert.Equal(t, 3, store.rowCount())

	for _, row := range store.byHash {
		assert.Equal(t, row.ID, row.VectorRef, "vector_ref must point at the stored vector")
		_, ok := vectors.points[row.VectorRef]
		assert.True(t, ok)
	}
}

func TestIngestEmbeddingFailuresNotPersisted(t *testing.T) {
	outcomes := allOK(3)
	outcomes.Outcomes[1] = embedding.BatchOutcome{Index: 1, FailureReason: embedding.ReasonQuotaExhausted}
	vectors := newFakeVectors()
	store := newFakeChunkStore()
	p := NewPipeline(&fakeEmbedder{result: outcomes}, vectors, store)

	stats, err := p.Ingest(context.Background(), "doc-1", chunkInputs(3))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, stats.FailureReasons, 1)
	assert.Len(t, vectors.points, 2, "failed chunks are written to neither store")
	assert.Equal(t, 2, store.rowCount())
}

func TestIngestQuotaPartialAccounting(t *testing.T) {
	outcomes := allOK(10)
	for i := 3; i < 10; i++ {
		outcomes.Outcomes[i] = embedding.BatchOutcome{Index: i, FailureReason: embedding.ReasonQuotaExhausted}
	}
	vectors := newFakeVectors()
	store := newFakeChunkStore()
	p := NewPipeline(&fakeEmbedder{result: outcomes}, vectors, store)

	stats, err := p.Ingest(context.Background(), "doc-1", chunkInputs(10))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Succeeded)
	assert.Equal(t, 7, stats.Failed)
	assert.Len(t, vectors.points, 3, "vector store holds exactly the succeeded chunks")
	for _, reason := range stats.FailureReasons {
		assert.Equal(t, embedding.ReasonQuotaExhausted, reason)
	}
}

func TestIngestCompensatesFailedRelationalWrite(t *testing.T) {
	chunks := chunkInputs(3)
	vectors := newFakeVectors()
	store := newFakeChunkStore()
	store.failText = chunks[1].Text
	p := NewPipeline(&fakeEmbedder{result: allOK(3)}, vectors, store)

	stats, err := p.Ingest(context.Background(), "doc-1", chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)

	failedID := chunkID("doc-1", helper.ContentHash(chunks[1].Text))
	assert.Contains(t, vectors.deleted, failedID, "orphaned vector must be deleted")
	_, ok := vectors.points[failedID]
	assert.False(t, ok)
	assert.Equal(t, 2, store.rowCount())
	assert.Contains(t, stats.FailureReasons[failedID], "relational write failed")
}

func TestIngestFatalEmbeddingErrorBubbles(t *testing.T) {
	p := NewPipeline(&fakeEmbedder{err: models.ErrDimensionMismatch}, newFakeVectors(), newFakeChunkStore())

	_, err := p.Ingest(context.Background(), "doc-1", chunkInputs(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDimensionMismatch))
}

// countingProvider wraps the real embedding service to observe provider calls
// across repeated ingestion runs.
type countingProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func TestIngestIdempotentReRun(t *testing.T) {
	provider := &countingProvider{}
	service := embedding.NewService(provider, embedding.NewCache(), &config.Embedding{
		BatchSize:         10,
		MaxRetries:        3,
		BackoffBase:       0.001,
		Workers:           1,
		RequestsPerSecond: 10000,
		Burst:             10000,
	}, 4)
	vectors := newFakeVectors()
	store := newFakeChunkStore()
	p := NewPipeline(service, vectors, store)
	chunks := chunkInputs(4)

	first, err := p.Ingest(context.Background(), "doc-1", chunks)
	require.NoError(t, err)
	require.Equal(t, 4, first.Succeeded)
	callsAfterFirst := provider.calls
	rowsAfterFirst := store.rowCount()

	second, err := p.Ingest(context.Background(), "doc-1", chunks)
	require.NoError(t, err)
	assert.Equal(t, first.Succeeded, second.Succeeded, "re-run succeeds via cache hits")
	assert.Equal(t, callsAfterFirst, provider.calls, "unchanged content never re-embeds")
	assert.Equal(t, rowsAfterFirst, store.rowCount(), "no duplicate rows on re-ingestion")
	assert.Len(t, vectors.points, 4, "chunks are still present in both stores")
}
