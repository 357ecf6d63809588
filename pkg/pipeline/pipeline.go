// Package pipeline wires extraction, aggregation, and graph writing
// into one run. The command entry points build the collaborators and
// hand them in; the pipeline owns only the sequencing.
package pipeline

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/mosaic/internal/checkpoint"
	"github.com/OFFIS-RIT/mosaic/pkg/aggregate"
	"github.com/OFFIS-RIT/mosaic/pkg/ai"
	"github.com/OFFIS-RIT/mosaic/pkg/chunker"
	"github.com/OFFIS-RIT/mosaic/pkg/extract"
	"github.com/OFFIS-RIT/mosaic/pkg/graphstore"
	"github.com/OFFIS-RIT/mosaic/pkg/logger"
)

// Params carries the collaborators and settings for one run.
type Params struct {
	Client     ai.Client
	Store      *checkpoint.Store[*extract.ChunkResult]
	Graph      graphstore.Ops // nil skips the graph write
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	Resume     bool
}

// Report summarizes one pipeline run.
type Report struct {
	RunID         string            `json:"runId"`
	Chunks        int               `json:"chunks"`
	Processed     int               `json:"processed"`
	Partial       bool              `json:"partial"`
	Nodes         int               `json:"nodes"`
	NodesByType   map[string]int    `json:"nodesByType"`
	Relationships int               `json:"relationships"`
	Synthesized   []string          `json:"synthesized,omitempty"`
	Write         *graphstore.Stats `json:"write,omitempty"`
	Metrics       ai.ModelMetrics   `json:"metrics"`
}

// Run extracts all chunks, folds the results into one canonical set,
// and writes the finalized graph. A cancelled context flushes completed
// work to the checkpoint and returns a partial report without touching
// the graph.
func Run(ctx context.Context, params Params, chunks []chunker.Chunk) (*Report, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("pipeline: ai client required")
	}

	runID, err := gonanoid.New(8)
	if err != nil {
		return nil, fmt.Errorf("pipeline: run id: %w", err)
	}
	report := &Report{RunID: runID, Chunks: len(chunks)}

	params.Client.ResetMetrics()

	var prior []*extract.ChunkResult
	if params.Resume && params.Store != nil {
		prior, err = params.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("pipeline: load checkpoint: %w", err)
		}
		if len(prior) > 0 {
			logger.Info("resuming from checkpoint", "run_id", runID, "completed_chunks", len(prior))
		}
	}

	dispatcher := extract.NewDispatcher(extract.NewDispatcherParams{
		Client:     params.Client,
		Timeout:    params.Timeout,
		MaxRetries: params.MaxRetries,
	})
	runner := extract.NewRunner(extract.NewRunnerParams{
		Dispatcher: dispatcher,
		Store:      params.Store,
		BatchSize:  params.BatchSize,
	})

	logger.Info("extraction started", "run_id", runID, "chunks", len(chunks))
	results, partial, err := runner.Run(ctx, chunks, prior)
	if err != nil {
		return report, fmt.Errorf("pipeline: extraction: %w", err)
	}
	report.Processed = len(results)
	report.Partial = partial
	report.Metrics = params.Client.GetMetrics()

	if partial {
		logger.Warn("run interrupted, results flushed for resume",
			"run_id", runID, "processed", len(results), "pending", len(chunks)-len(results))
		return report, nil
	}

	agg := aggregate.New()
	for _, res := range results {
		agg.Accumulate(res)
	}
	snap := agg.Finalize(ctx, params.Client)
	report.Metrics = params.Client.GetMetrics()

	report.Nodes = len(snap.Nodes)
	report.NodesByType = make(map[string]int)
	for _, rec := range snap.Nodes {
		if t, ok := rec.Type(); ok {
			report.NodesByType[string(t)]++
		}
	}
	report.Relationships = len(snap.Relationships) + len(snap.Structural)
	report.Synthesized = snap.Synthesized
	logger.Info("aggregation completed",
		"run_id", runID, "nodes", report.Nodes,
		"relationships", report.Relationships,
		"synthesized", len(snap.Synthesized))

	if params.Graph == nil {
		logger.Info("no graph backend configured, skipping write", "run_id", runID)
		return report, nil
	}

	stats, err := graphstore.NewWriter(params.Graph).WriteAll(ctx, snap)
	report.Write = stats
	if err != nil {
		return report, fmt.Errorf("pipeline: graph write: %w", err)
	}
	return report, nil
}
