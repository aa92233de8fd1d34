package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rag-engine/internal/config"
	"rag-engine/internal/db"
	"rag-engine/internal/embedding"
	"rag-engine/internal/helper"
	"rag-engine/internal/ingest"
	"rag-engine/internal/llmservice"
	"rag-engine/internal/models"
	"rag-engine/internal/search"
	"rag-engine/internal/vectordb"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	chunksPath := flag.String("ingest", "", "Path to a pre-chunked JSON file to ingest")
	docID := flag.String("doc", "", "Document id for ingestion (generated when empty)")
	sourceURI := flag.String("source", "", "Source URI the document came from")
	reset := flag.Bool("reset", false, "Drop the vector collection before ingesting")
	query := flag.String("query", "", "Query to search for")
	k := flag.Int("k", 5, "Number of results to return")
	flag.Parse()

	ctx := context.Background()

	switch {
	case *chunksPath != "":
		ingestChunks(ctx, *configPath, *chunksPath, *docID, *sourceURI, *reset)
	case *query != "":
		searchChunks(ctx, *configPath, *query, *k)
	default:
		log.Fatal().Msg("Please provide a chunk file using the -ingest flag or a query using the -query flag")
	}
}

// chunkFile is the pre-chunked input handed over by the parsing stage.
type chunkFile struct {
	Title  string              `json:"title"`
	Chunks []ingest.ChunkInput `json:"chunks"`
}

func ingestChunks(ctx context.Context, configPath, chunksPath, docID, sourceURI string, reset bool) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	data, err := os.ReadFile(chunksPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading chunk file")
	}
	var file chunkFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Fatal().Err(err).Msg("Error parsing chunk file")
	}

	dbClient, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	store := db.NewStore(dbClient, &cfg.Database)
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}

	if !cfg.Vector.InMemory {
		if err := helper.CreateFolder(cfg.Vector.Path); err != nil {
			log.Fatal().Err(err).Msg("Error creating folder")
		}
	}
	index, err := vectordb.NewIndex(&cfg.Vector)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector index")
	}
	if reset {
		if err := index.Reset(cfg.Vector.Collection); err != nil {
			log.Fatal().Err(err).Msg("Error resetting vector collection")
		}
	}

	provider, err := embedding.NewLangChainProvider(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	service := embedding.NewService(provider, embedding.NewCache(), &cfg.Embedding, cfg.Vector.Dimension)

	if docID == "" {
		docID, err = helper.GenerateUUID()
		if err != nil {
			log.Fatal().Err(err).Msg("Error generating document id")
		}
	}

	sourceID, err := helper.GenerateUUID()
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating source id")
	}
	source := &models.Source{
		ID:     sourceID,
		Type:   models.SourceTypeUpload,
		URI:    sourceURI,
		Status: models.SourceStatusIngesting,
	}
	if err := store.RegisterSource(ctx, source); err != nil {
		log.Fatal().Err(err).Msg("Error registering source")
	}
	if err := store.UpsertDocument(ctx, &models.Document{ID: docID, SourceID: sourceID, Title: file.Title}); err != nil {
		log.Fatal().Err(err).Msg("Error creating document")
	}

	pipeline := ingest.NewPipeline(service, index, store)
	stats, err := pipeline.Ingest(ctx, docID, file.Chunks)
	if err != nil {
		if statusErr := store.UpdateSourceStatus(ctx, sourceID, models.SourceStatusFailed); statusErr != nil {
			log.Error().Err(statusErr).Msg("Error updating source status")
		}
		log.Fatal().Err(err).Msg("Error ingesting chunks")
	}

	status := models.SourceStatusReady
	if stats.Failed > 0 {
		status = models.SourceStatusFailed
	}
	if err := store.UpdateSourceStatus(ctx, sourceID, status); err != nil {
		log.Error().Err(err).Msg("Error updating source status")
	}

	rows, err := store.ChunkCount(ctx, docID)
	if err != nil {
		log.Error().Err(err).Msg("Error counting chunk rows")
	}
	log.Info().
		Str("document", docID).
		Int("relational_rows", rows).
		Int("vectors", index.Count()).
		Msg("Ingested document")
	helper.PrettyPrint(stats)
}

func searchChunks(ctx context.Context, configPath, query string, k int) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	dbClient, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	store := db.NewStore(dbClient, &cfg.Database)
	defer store.Close()

	index, err := vectordb.NewIndex(&cfg.Vector)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector index")
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	queryVector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error embedding query")
	}

	scorer, err := llmservice.NewRelevanceScorer(&cfg.RerankLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing relevance scorer")
	}

	base := search.NewBaseStrategy(index, cfg.Search.SimilarityThreshold)
	hybrid := search.NewHybridStrategy(base, store,
		cfg.Search.VectorWeight, cfg.Search.TextWeight,
		cfg.Search.Candidates, time.Duration(cfg.Search.TimeoutSeconds)*time.Second)
	reranker := search.NewReranker(scorer, cfg.Search.MaxRerankWords)
	coordinator := search.NewCoordinator(base, hybrid, reranker, cfg.Search)

	resp, err := coordinator.Search(ctx, search.Request{
		QueryText:   query,
		QueryVector: queryVector,
		K:           k,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching")
	}

	log.Info().Msgf("Mode used: %s", resp.ModeUsed)
	helper.PrettyPrint(resp.Results)
}
