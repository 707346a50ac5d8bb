// internal/agent/batch.go
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// BatchResult is the outcome of a batch run. Results is a prefix of the
// requested task list when the batch stopped early.
type BatchResult struct {
	BatchID      string
	CheckpointID string
	Results      []*TaskResult
	// HaltedAt is the index of the task that stopped the batch, -1 when all
	// tasks ran.
	HaltedAt int
}

// ExecuteBatch runs tasks in order as one logical unit: a single leading
// checkpoint shared by every task, and one continued provider session. From
// the second task onward ContinueSession is forced on; per-task checkpoints
// are never created inside a batch. The batch stops at the first failed task
// unless ContinueOnFailure is set.
func (e *Executor) ExecuteBatch(ctx context.Context, tasks []string, opts Options) (*BatchResult, error) {
	br := &BatchResult{
		BatchID:  uuid.NewString(),
		HaltedAt: -1,
	}

	if opts.Checkpoint {
		cp, err := e.store.Create(fmt.Sprintf("Batch start (%d tasks)", len(tasks)))
		if err != nil {
			if opts.CheckpointRequired {
				return nil, fmt.Errorf("required batch checkpoint: %w", err)
			}
			e.logger.Warn("batch checkpoint failed, running without safety net", "error", err)
		} else {
			br.CheckpointID = cp.ID
		}
	}

	for i, task := range tasks {
		e.logger.Info("batch task", "index", i+1, "total", len(tasks), "batch", br.BatchID)

		taskOpts := opts
		taskOpts.Checkpoint = false
		if i > 0 {
			taskOpts.ContinueSession = true
		}

		res, err := e.run(ctx, task, taskOpts, br.CheckpointID, br.BatchID)
		if err != nil {
			return br, err
		}
		br.Results = append(br.Results, res)

		if res.Interrupted {
			br.HaltedAt = i
			break
		}
		if !res.Success && !opts.ContinueOnFailure {
			e.logger.Info("stopping batch on task failure", "index", i, "batch", br.BatchID)
			br.HaltedAt = i
			break
		}
	}

	return br, nil
}
