package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/mosaic/internal/checkpoint"
	"github.com/OFFIS-RIT/mosaic/internal/util"
	"github.com/OFFIS-RIT/mosaic/pkg/ai"
	oai "github.com/OFFIS-RIT/mosaic/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/mosaic/pkg/ai/openai"
	"github.com/OFFIS-RIT/mosaic/pkg/chunker"
	"github.com/OFFIS-RIT/mosaic/pkg/extract"
	"github.com/OFFIS-RIT/mosaic/pkg/graphstore"
	"github.com/OFFIS-RIT/mosaic/pkg/logger"
	"github.com/OFFIS-RIT/mosaic/pkg/logger/console"
	"github.com/OFFIS-RIT/mosaic/pkg/pipeline"
)

func main() {
	util.LoadEnv()

	docID := flag.String("doc", "", "document id for chunk ids and the checkpoint directory (default: first file name)")
	resume := flag.Bool("resume", false, "resume from the latest checkpoint for this document")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	files := flag.Args()
	if len(files) == 0 {
		logger.Fatal("Usage: pipeline [-doc id] [-resume] file.txt [file.txt ...]")
	}
	if *docID == "" {
		base := filepath.Base(files[0])
		*docID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	aiClient := newAIClient()

	graphClient, err := graphstore.NewFromEnv()
	if err != nil {
		logger.Fatal("Could not connect to Neo4j", "err", err)
	}
	var graph graphstore.Ops
	if graphClient != nil {
		defer graphClient.Close(context.Background())
		graphClient.EnsureConstraints(ctx)
		graph = graphClient
	} else {
		logger.Warn("NEO4J_URI not set, running extraction without a graph write")
	}

	encoder := util.GetEnvString("CHUNK_ENCODER", chunker.DefaultEncoder)
	maxTokens := int(util.GetEnvNumeric("CHUNK_MAX_TOKENS", 500))

	var chunks []chunker.Chunk
	for i, path := range files {
		text, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal("Could not read input file", "file", path, "err", err)
		}
		id := *docID
		if len(files) > 1 {
			id = fmt.Sprintf("%s-%02d", *docID, i)
		}
		fileChunks, err := chunker.Split(string(text), id, encoder, maxTokens)
		if err != nil {
			logger.Fatal("Could not chunk input file", "file", path, "err", err)
		}
		chunks = append(chunks, fileChunks...)
	}

	checkpointDir := filepath.Join(util.GetEnvString("CHECKPOINT_DIR", ".checkpoints"), *docID)
	store, err := checkpoint.NewStore[*extract.ChunkResult](
		checkpointDir,
		int(util.GetEnvNumeric("CHECKPOINT_INTERVAL", 5)),
	)
	if err != nil {
		logger.Fatal("Could not open checkpoint store", "err", err)
	}

	logger.Info("Starting pipeline", "doc_id", *docID, "files", len(files), "chunks", len(chunks), "resume", *resume)

	report, err := pipeline.Run(ctx, pipeline.Params{
		Client:     aiClient,
		Store:      store,
		Graph:      graph,
		BatchSize:  int(util.GetEnvNumeric("BATCH_SIZE", 4)),
		Timeout:    time.Duration(util.GetEnvNumeric("CHUNK_TIMEOUT_SECONDS", 120)) * time.Second,
		MaxRetries: int(util.GetEnvNumeric("MAX_RETRIES", 3)),
		Resume:     *resume,
	}, chunks)
	if err != nil {
		logger.Fatal("Pipeline failed", "err", err)
	}

	metrics := report.Metrics
	logger.Info(
		"AI Metrics",
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"tokens_per_second", metrics.TokenPerSecond,
	)

	if report.Partial {
		logger.Warn("Run interrupted; re-run with -resume to continue",
			"run_id", report.RunID,
			"processed", report.Processed,
			"chunks", report.Chunks,
		)
		return
	}

	logger.Info("Pipeline completed",
		"run_id", report.RunID,
		"nodes", report.Nodes,
		"relationships", report.Relationships,
		"synthesized_profiles", len(report.Synthesized),
	)
	for nodeType, count := range report.NodesByType {
		logger.Info("Node count", "type", nodeType, "count", count)
	}
	if report.Write != nil {
		logger.Info("Graph write",
			"nodes_upserted", report.Write.NodesUpserted,
			"created", report.Write.Created,
			"already_existed", report.Write.AlreadyExists,
			"skipped_source", report.Write.SkippedSource,
			"skipped_target", report.Write.SkippedTarget,
			"failed", report.Write.Failed,
		)
	}
}

func newAIClient() ai.Client {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			PrimaryModel:  util.GetEnv("AI_PRIMARY_MODEL"),
			AdvancedModel: util.GetEnv("AI_ADVANCED_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_MAX_CONCURRENT_REQUESTS", 1)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client
	default:
		client, err := gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			PrimaryModel:  util.GetEnv("AI_PRIMARY_MODEL"),
			AdvancedModel: util.GetEnv("AI_ADVANCED_MODEL"),

			ChatURL: util.GetEnv("AI_CHAT_URL"),
			ChatKey: util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Could not create OpenAI client", "err", err)
		}
		return client
	}
}
