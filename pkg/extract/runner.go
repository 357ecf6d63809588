package extract

import (
	"context"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/mosaic/internal/checkpoint"
	"github.com/OFFIS-RIT/mosaic/pkg/chunker"
	"github.com/OFFIS-RIT/mosaic/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Runner drives chunk extraction in fixed-size sequential batches. Batch
// members run in parallel bounded by the batch size; after every batch
// the full result set is checkpointed, so a later run can resume from
// the last completed batch.
type Runner struct {
	dispatcher *Dispatcher
	store      *checkpoint.Store[*ChunkResult]
	batchSize  int
}

// NewRunnerParams configures a Runner. Store may be nil to disable
// checkpointing (tests).
type NewRunnerParams struct {
	Dispatcher *Dispatcher
	Store      *checkpoint.Store[*ChunkResult]
	BatchSize  int
}

// NewRunner creates a Runner. BatchSize defaults to 4.
func NewRunner(params NewRunnerParams) *Runner {
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 4
	}
	return &Runner{
		dispatcher: params.Dispatcher,
		store:      params.Store,
		batchSize:  batchSize,
	}
}

// Run processes all chunks not already covered by prior results (from a
// resumed checkpoint) and returns the combined result set. The second
// return value reports partial completion: true when cancellation stopped
// the run before all chunks were processed. Completed results are always
// flushed to the checkpoint before returning.
func (r *Runner) Run(
	ctx context.Context,
	chunks []chunker.Chunk,
	prior []*ChunkResult,
) ([]*ChunkResult, bool, error) {
	done := make(map[string]bool, len(prior))
	results := make([]*ChunkResult, 0, len(prior)+len(chunks))
	for _, res := range prior {
		if res == nil || done[res.ChunkID] {
			continue
		}
		done[res.ChunkID] = true
		results = append(results, res)
	}

	pending := make([]chunker.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if !done[c.ID] {
			pending = append(pending, c)
		}
	}
	if len(prior) > 0 {
		logger.Info("resuming extraction", "done", len(results), "pending", len(pending))
	}
	total := len(results) + len(pending)

	for start := 0; start < len(pending); start += r.batchSize {
		if ctx.Err() != nil {
			return results, true, r.flush(results)
		}

		end := start + r.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		mergeMu := sync.Mutex{}
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(r.batchSize)
		for _, chunk := range batch {
			c := chunk
			g.Go(func() error {
				if gCtx.Err() != nil {
					return nil
				}
				res := r.processSafe(gCtx, c)
				if gCtx.Err() != nil {
					// cancelled mid-call; the result is unreliable and the
					// chunk must stay pending for the resumed run
					return nil
				}
				mergeMu.Lock()
				results = append(results, res)
				mergeMu.Unlock()
				return nil
			})
		}
		// batch goroutines never return errors
		_ = g.Wait()

		if err := r.flush(results); err != nil {
			return results, false, err
		}
		logger.Debug("batch completed", "processed", len(results), "remaining", len(pending)-end)

		if ctx.Err() != nil {
			// cancellation inside a batch drops that batch's results, so
			// the batch index alone cannot tell whether the run finished
			return results, len(results) < total, nil
		}
	}

	return results, len(results) < total, nil
}

// processSafe isolates a panicking chunk: it is replaced with the
// all-empty result so one bad chunk never aborts the batch.
func (r *Runner) processSafe(ctx context.Context, chunk chunker.Chunk) (res *ChunkResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("chunk processing panicked", "chunk", chunk.ID, "panic", rec)
			res = EmptyChunkResult(chunk.ID)
			res.Notes = append(res.Notes, fmt.Sprintf("chunk processing panicked: %v", rec))
		}
	}()
	return r.dispatcher.ProcessChunk(ctx, chunk)
}

func (r *Runner) flush(results []*ChunkResult) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Save(results); err != nil {
		return fmt.Errorf("failed to checkpoint batch results: %w", err)
	}
	return nil
}
