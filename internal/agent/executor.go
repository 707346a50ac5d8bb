// internal/agent/executor.go
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agentctl/internal/checkpoint"
	"agentctl/internal/config"
	"agentctl/internal/provider"
	"agentctl/internal/watcher"
)

// Options controls one task execution.
type Options struct {
	// Checkpoint creates a checkpoint before the provider runs.
	Checkpoint bool
	// CheckpointRequired makes a failed pre-task checkpoint fatal: the task
	// does not run without its safety net.
	CheckpointRequired bool
	// CheckpointAfter creates a second checkpoint once the task succeeds.
	CheckpointAfter bool
	// AutoAccept is passed through to the provider verbatim.
	AutoAccept bool
	// ContinueSession is passed through to the provider verbatim.
	ContinueSession bool
	// AutoRestoreOnFailure restores the pre-task checkpoint when the
	// provider reports failure.
	AutoRestoreOnFailure bool
	// ContinueOnFailure keeps a batch running past failed tasks.
	ContinueOnFailure bool
	// PromptTemplate names a template under .agentctl/prompts.
	PromptTemplate string
}

// TaskResult is the complete outcome of one task execution. Every terminal
// state is distinguishable from this value alone, without consulting the
// session log.
type TaskResult struct {
	Task string
	provider.Result

	// CheckpointID is the preceding checkpoint, empty if none was created.
	CheckpointID string
	// CheckpointErr reports a non-fatal pre-task checkpoint failure.
	CheckpointErr error
	// PostCheckpointID is the post-task checkpoint, empty if none.
	PostCheckpointID string
	// PostCheckpointErr reports a best-effort post-task checkpoint failure;
	// it never flips the task's own success.
	PostCheckpointErr error
	// RestoreAttempted reports that auto-restore ran after a failure.
	RestoreAttempted bool
	// RestoreErr reports an auto-restore failure, alongside (never instead
	// of) the original task failure.
	RestoreErr error
	// Interrupted reports that the provider call was cancelled; the result
	// is unknown and recorded as a failure.
	Interrupted bool
	// FilesTouched lists project-relative paths modified during the run,
	// best effort.
	FilesTouched []string
}

// Executor runs tasks against the configured provider with checkpoint
// safety rails around each call.
type Executor struct {
	layout   *config.Layout
	cfg      *Config
	store    *checkpoint.Store
	provider provider.Provider
	log      *SessionLog
	pctx     ProjectContext
	logger   *slog.Logger
}

// New wires an executor from explicit parts.
func New(layout *config.Layout, cfg *Config, store *checkpoint.Store, p provider.Provider, log *SessionLog, pctx ProjectContext, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		layout:   layout,
		cfg:      cfg,
		store:    store,
		provider: p,
		log:      log,
		pctx:     pctx,
		logger:   logger,
	}
}

// Open builds a ready-to-use executor for a project directory: layout,
// configuration, project context, checkpoint store, session log and the
// configured provider. An unconstructible provider surfaces immediately as
// provider.ErrUnavailable.
func Open(projectDir string, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	layout, err := config.Resolve(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project layout: %w", err)
	}

	cfg, err := LoadConfig(layout.AgentConfigPath)
	if err != nil {
		return nil, err
	}

	p, err := provider.New(cfg.Provider, cfg.ProviderSettings(cfg.Provider))
	if err != nil {
		return nil, err
	}

	return New(
		layout,
		cfg,
		checkpoint.NewStore(layout, logger),
		p,
		NewSessionLog(layout),
		LoadProjectContext(layout, logger),
		logger,
	), nil
}

// DefaultOptions derives task options from the project configuration.
func (e *Executor) DefaultOptions() Options {
	return Options{
		Checkpoint:           e.cfg.CheckpointBeforeTasks,
		CheckpointRequired:   e.cfg.CheckpointRequired,
		AutoRestoreOnFailure: e.cfg.AutoRestoreOnFailure,
	}
}

// Store exposes the checkpoint store for direct checkpoint commands.
func (e *Executor) Store() *checkpoint.Store {
	return e.store
}

// Log exposes the session log for the log command.
func (e *Executor) Log() *SessionLog {
	return e.log
}

// Config exposes the loaded agent configuration.
func (e *Executor) Config() *Config {
	return e.cfg
}

// ExecuteTask runs a single task: checkpoint before (optional), provider
// run, auto-restore on failure (optional), checkpoint after (optional), and
// exactly one session log entry regardless of outcome. A failed task is data
// in the result; the returned error is reserved for execution not starting
// at all (required checkpoint failed).
func (e *Executor) ExecuteTask(ctx context.Context, task string, opts Options) (*TaskResult, error) {
	return e.run(ctx, task, opts, "", "")
}

func (e *Executor) run(ctx context.Context, task string, opts Options, presetCheckpointID, batchID string) (*TaskResult, error) {
	res := &TaskResult{Task: task}

	cpID := presetCheckpointID
	if cpID == "" && opts.Checkpoint {
		cp, err := e.store.Create("Before: " + truncate(task, 50))
		if err != nil {
			if opts.CheckpointRequired {
				return nil, fmt.Errorf("required pre-task checkpoint: %w", err)
			}
			e.logger.Warn("pre-task checkpoint failed, running without safety net", "error", err)
			res.CheckpointErr = err
		} else {
			cpID = cp.ID
		}
	}
	res.CheckpointID = cpID

	tracker, err := watcher.NewTracker(e.layout.ProjectDir, e.logger)
	if err != nil {
		e.logger.Warn("change tracking unavailable for this run", "error", err)
		tracker = nil
	} else {
		tracker.Start()
	}

	prompt := BuildPrompt(e.layout, opts.PromptTemplate, task, e.pctx)
	pc := provider.Context{
		ProjectDir:      e.layout.ProjectDir,
		ProjectContext:  e.pctx.Context,
		Task:            task,
		Timestamp:       time.Now(),
		CheckpointID:    cpID,
		AutoAccept:      opts.AutoAccept,
		ContinueSession: opts.ContinueSession,
	}

	e.logger.Info("executing agent task", "task", truncate(task, 80),
		"provider", e.provider.ID(), "auto_accept", opts.AutoAccept, "checkpoint", cpID)

	res.Result = provider.Run(ctx, e.provider, prompt, pc)

	if tracker != nil {
		res.FilesTouched = tracker.Stop()
	}

	if ctx.Err() != nil {
		// The provider may or may not have done work before the interrupt;
		// record the execution as failed rather than dropping it, and leave
		// any preceding checkpoint in place for a manual restore.
		res.Interrupted = true
		res.Success = false
		if res.Error == "" {
			res.Error = "interrupted: " + ctx.Err().Error()
		}
	}

	if !res.Success && !res.Interrupted && opts.AutoRestoreOnFailure && cpID != "" {
		e.logger.Info("auto-restoring checkpoint after task failure", "checkpoint", cpID)
		res.RestoreAttempted = true
		if err := e.store.Restore(cpID); err != nil {
			e.logger.Error("auto-restore failed", "checkpoint", cpID, "error", err)
			res.RestoreErr = err
		}
	}

	if res.Success && opts.CheckpointAfter {
		cp, err := e.store.Create("After: " + truncate(task, 50))
		if err != nil {
			e.logger.Warn("post-task checkpoint failed", "error", err)
			res.PostCheckpointErr = err
		} else {
			res.PostCheckpointID = cp.ID
		}
	}

	entry := LogEntry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now(),
		Task:         task,
		Provider:     res.Provider,
		Success:      res.Success,
		CheckpointID: cpID,
		BatchID:      batchID,
		OutputLength: len(res.Output),
		FilesTouched: res.FilesTouched,
	}
	switch {
	case res.Interrupted:
		entry.ErrorKind = ErrorKindInterrupted
	case !res.Success:
		entry.ErrorKind = ErrorKindProvider
	}
	if err := e.log.Append(entry, res.Output); err != nil {
		e.logger.Error("could not append session log entry", "error", err)
	}

	return res, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
