package organizer

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"filer/internal/logging"
	"filer/internal/services"
)

// Progress is reported after every batch item.
type Progress struct {
	Current     int
	Total       int
	Percent     float64
	CurrentFile string
}

// BatchItem is the per-item result of a batch.
type BatchItem struct {
	Index    int
	Label    string
	Move     *MoveOutcome
	Rollback *RollbackOutcome
	Err      error
}

// Skipped reports whether the item completed without moving anything.
func (i BatchItem) Skipped() bool {
	return i.Err == nil && i.Move != nil && i.Move.Status == MoveStatusSkipped
}

// BatchOptions configures BatchMove and BatchRollback.
type BatchOptions struct {
	StopOnError bool
	OnProgress  func(Progress)
	OnItem      func(BatchItem)
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	BatchID   string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Stopped   bool
	Items     []BatchItem
}

// BatchMove executes requests sequentially. Individual failures are recorded
// per item; the returned error is non-nil only when ctx ends the batch early.
func (o *Organizer) BatchMove(ctx context.Context, requests []MoveRequest, opts BatchOptions) (BatchResult, error) {
	return o.runBatch(ctx, len(requests), opts, func(ctx context.Context, i int) BatchItem {
		item := BatchItem{Label: requests[i].SourcePath}
		outcome, err := o.MoveFile(ctx, requests[i])
		if err == nil || outcome.Status == MoveStatusMoved {
			item.Move = &outcome
		}
		item.Err = err
		return item
	})
}

// BatchRollback mirrors BatchMove for record ids.
func (o *Organizer) BatchRollback(ctx context.Context, recordIDs []int64, opts BatchOptions) (BatchResult, error) {
	return o.runBatch(ctx, len(recordIDs), opts, func(ctx context.Context, i int) BatchItem {
		item := BatchItem{Label: strconv.FormatInt(recordIDs[i], 10)}
		outcome, err := o.RollbackMove(ctx, recordIDs[i])
		if err == nil {
			item.Rollback = &outcome
		}
		item.Err = err
		return item
	})
}

func (o *Organizer) runBatch(ctx context.Context, total int, opts BatchOptions, run func(context.Context, int) BatchItem) (BatchResult, error) {
	result := BatchResult{BatchID: uuid.NewString(), Total: total}
	ctx = services.WithBatchID(ctx, result.BatchID)
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("batch started", logging.Int("total", total))

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			result.Stopped = true
			logger.Info("batch cancelled", logging.Int("completed", i), logging.Int("total", total))
			return result, services.Wrap(services.ErrTimeout, "organizer", "batch", "Batch cancelled", err)
		}
		item := run(ctx, i)
		item.Index = i
		switch {
		case item.Err != nil:
			result.Failed++
		case item.Skipped():
			result.Skipped++
		default:
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
		if opts.OnItem != nil {
			opts.OnItem(item)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Current:     i + 1,
				Total:       total,
				Percent:     float64(i+1) * 100 / float64(total),
				CurrentFile: item.Label,
			})
		}
		if item.Err != nil && opts.StopOnError {
			result.Stopped = true
			break
		}
	}

	logger.Info("batch finished",
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Bool("stopped", result.Stopped),
	)
	return result, nil
}
