package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OFFIS-RIT/mosaic/internal/checkpoint"
	"github.com/OFFIS-RIT/mosaic/internal/util"
	"github.com/OFFIS-RIT/mosaic/pkg/ai"
	"github.com/OFFIS-RIT/mosaic/pkg/chunker"
	"github.com/OFFIS-RIT/mosaic/pkg/extract"
	"github.com/OFFIS-RIT/mosaic/pkg/graphstore"
	"github.com/OFFIS-RIT/mosaic/pkg/logger"
	"github.com/OFFIS-RIT/mosaic/pkg/pipeline"
)

// ExtractJobMsg is one extraction job: a document id and the text files
// to process under it.
type ExtractJobMsg struct {
	Message string   `json:"message"`
	DocID   string   `json:"docId"`
	Files   []string `json:"files"`
}

// ProcessExtractMessage runs the full pipeline for one job. The job's
// checkpoint lives under its document id, so a retried message resumes
// from the last completed batch instead of starting over.
func ProcessExtractMessage(
	ctx context.Context,
	aiClient ai.Client,
	graph graphstore.Ops,
	msg string,
) error {
	data := new(ExtractJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to decode extract job: %w", err)
	}
	if data.DocID == "" || len(data.Files) == 0 {
		return fmt.Errorf("extract job needs a document id and at least one file")
	}

	encoder := util.GetEnvString("CHUNK_ENCODER", chunker.DefaultEncoder)
	maxTokens := int(util.GetEnvNumeric("CHUNK_MAX_TOKENS", 500))

	var chunks []chunker.Chunk
	for i, path := range data.Files {
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read input file %s: %w", path, err)
		}
		docID := data.DocID
		if len(data.Files) > 1 {
			docID = fmt.Sprintf("%s-%02d", data.DocID, i)
		}
		fileChunks, err := chunker.Split(string(text), docID, encoder, maxTokens)
		if err != nil {
			return fmt.Errorf("failed to chunk %s: %w", path, err)
		}
		chunks = append(chunks, fileChunks...)
	}

	checkpointDir := filepath.Join(
		util.GetEnvString("CHECKPOINT_DIR", ".checkpoints"),
		data.DocID,
	)
	store, err := checkpoint.NewStore[*extract.ChunkResult](
		checkpointDir,
		int(util.GetEnvNumeric("CHECKPOINT_INTERVAL", 5)),
	)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	logger.Info("[Queue] Processing extract job", "doc_id", data.DocID, "files", len(data.Files), "chunks", len(chunks))

	report, err := pipeline.Run(ctx, pipeline.Params{
		Client:     aiClient,
		Store:      store,
		Graph:      graph,
		BatchSize:  int(util.GetEnvNumeric("BATCH_SIZE", 4)),
		Timeout:    time.Duration(util.GetEnvNumeric("CHUNK_TIMEOUT_SECONDS", 120)) * time.Second,
		MaxRetries: int(util.GetEnvNumeric("MAX_RETRIES", 3)),
		Resume:     true,
	}, chunks)
	if err != nil {
		return err
	}
	if report.Partial {
		// requeue; the checkpoint makes the retry pick up where this
		// attempt stopped
		return fmt.Errorf("extraction interrupted after %d of %d chunks", report.Processed, report.Chunks)
	}

	logger.Info("[Queue] Extract job completed",
		"doc_id", data.DocID,
		"run_id", report.RunID,
		"nodes", report.Nodes,
		"relationships", report.Relationships,
	)
	return nil
}
