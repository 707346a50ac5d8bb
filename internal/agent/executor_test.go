// internal/agent/executor_test.go
package agent

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"agentctl/internal/checkpoint"
	"agentctl/internal/config"
	"agentctl/internal/provider"
)

// fakeProvider records every call and delegates the outcome to run.
type fakeProvider struct {
	mu    sync.Mutex
	calls []provider.Context
	run   func(pc provider.Context) provider.Result
}

func (f *fakeProvider) ID() string { return "fake" }

func (f *fakeProvider) Run(ctx context.Context, prompt string, pc provider.Context) provider.Result {
	f.mu.Lock()
	f.calls = append(f.calls, pc)
	f.mu.Unlock()

	res := f.run(pc)
	res.Provider = "fake"
	return res
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func succeed(pc provider.Context) provider.Result {
	return provider.Result{Success: true, Output: "done"}
}

func newTestExecutor(t *testing.T, p provider.Provider) (*Executor, *config.Layout) {
	t.Helper()

	layout, err := config.Resolve(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ex := New(
		layout,
		DefaultConfig(),
		checkpoint.NewStore(layout, logger),
		p,
		NewSessionLog(layout),
		ProjectContext{},
		logger,
	)
	return ex, layout
}

func TestExecuteTaskSuccess(t *testing.T) {
	fake := &fakeProvider{run: succeed}
	ex, _ := newTestExecutor(t, fake)

	res, err := ex.ExecuteTask(context.Background(), "add a feature", Options{Checkpoint: true})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if !res.Success {
		t.Errorf("expected success, got error %q", res.Error)
	}
	if res.CheckpointID == "" {
		t.Errorf("expected a preceding checkpoint")
	}
	if res.RestoreAttempted {
		t.Errorf("restore should not run on success")
	}

	entries, err := ex.Log().Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 session entry, got %d", len(entries))
	}
	if !entries[0].Success || entries[0].CheckpointID != res.CheckpointID {
		t.Errorf("session entry does not match result: %+v", entries[0])
	}
}

func TestAutoRestoreOnFailure(t *testing.T) {
	var ex *Executor
	var layout *config.Layout

	target := func() string { return filepath.Join(layout.ProjectDir, "main.go") }

	fake := &fakeProvider{run: func(pc provider.Context) provider.Result {
		// Damage the project, then report failure.
		os.WriteFile(target(), []byte("package main // broken\n"), 0644)
		return provider.Result{Success: false, Error: "task went wrong"}
	}}
	ex, layout = newTestExecutor(t, fake)

	if err := os.WriteFile(target(), []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := ex.ExecuteTask(context.Background(), "break things", Options{
		Checkpoint:           true,
		AutoRestoreOnFailure: true,
	})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if !res.RestoreAttempted {
		t.Fatal("expected auto-restore to run")
	}
	if res.RestoreErr != nil {
		t.Fatalf("auto-restore failed: %v", res.RestoreErr)
	}

	data, err := os.ReadFile(target())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "package main\n" {
		t.Errorf("project not restored after failed task: %q", data)
	}

	entries, err := ex.Log().Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Success || entries[0].ErrorKind != ErrorKindProvider {
		t.Errorf("unexpected session entry: %+v", entries)
	}
}

func TestInterruptedTaskIsLoggedNotRestored(t *testing.T) {
	fake := &fakeProvider{run: succeed}
	ex, _ := newTestExecutor(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ex.ExecuteTask(ctx, "interrupted task", Options{
		Checkpoint:           true,
		AutoRestoreOnFailure: true,
	})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if !res.Interrupted || res.Success {
		t.Fatalf("expected interrupted failure, got %+v", res)
	}
	if res.RestoreAttempted {
		t.Error("interrupted task must not be auto-restored")
	}
	if res.CheckpointID == "" {
		t.Error("checkpoint should remain available for a manual restore")
	}

	entries, err := ex.Log().Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ErrorKind != ErrorKindInterrupted {
		t.Errorf("unexpected session entries: %+v", entries)
	}
}

func TestOneLogEntryPerExecution(t *testing.T) {
	outcomes := []bool{true, false, true}
	i := 0
	fake := &fakeProvider{run: func(pc provider.Context) provider.Result {
		ok := outcomes[i]
		i++
		return provider.Result{Success: ok, Output: "out"}
	}}
	ex, _ := newTestExecutor(t, fake)

	for _, task := range []string{"one", "two", "three"} {
		if _, err := ex.ExecuteTask(context.Background(), task, Options{}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := ex.Log().Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(outcomes) {
		t.Fatalf("expected %d entries, got %d", len(outcomes), len(entries))
	}
	for i, entry := range entries {
		if entry.Success != outcomes[i] {
			t.Errorf("entry %d success = %v, want %v", i, entry.Success, outcomes[i])
		}
	}
}

func TestRequiredCheckpointFailureBlocksTask(t *testing.T) {
	fake := &fakeProvider{run: succeed}
	ex, layout := newTestExecutor(t, fake)

	// Replace the checkpoints directory with a file so no checkpoint can be
	// created or locked.
	if err := os.RemoveAll(layout.CheckpointsDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.CheckpointsDir, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ex.ExecuteTask(context.Background(), "needs safety net", Options{
		Checkpoint:         true,
		CheckpointRequired: true,
	})
	if err == nil {
		t.Fatal("expected error when required checkpoint cannot be created")
	}
	if fake.callCount() != 0 {
		t.Errorf("provider must not run without its required checkpoint")
	}

	entries, err := ex.Log().Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("a task that never ran must not be logged, got %d entries", len(entries))
	}
}

func TestOptionalCheckpointFailureRunsTask(t *testing.T) {
	fake := &fakeProvider{run: succeed}
	ex, layout := newTestExecutor(t, fake)

	if err := os.RemoveAll(layout.CheckpointsDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.CheckpointsDir, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := ex.ExecuteTask(context.Background(), "best effort", Options{Checkpoint: true})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if res.CheckpointErr == nil {
		t.Error("expected CheckpointErr to be reported")
	}
	if res.CheckpointID != "" {
		t.Errorf("unexpected checkpoint id %q", res.CheckpointID)
	}
	if !res.Success {
		t.Errorf("task should still run and succeed: %q", res.Error)
	}
}

func TestCheckpointAfterOnSuccess(t *testing.T) {
	fake := &fakeProvider{run: succeed}
	ex, _ := newTestExecutor(t, fake)

	res, err := ex.ExecuteTask(context.Background(), "safe change", Options{
		Checkpoint:      true,
		CheckpointAfter: true,
	})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if res.PostCheckpointID == "" {
		t.Fatal("expected a post-task checkpoint")
	}
	if res.PostCheckpointID == res.CheckpointID {
		t.Error("post-task checkpoint must be independent of the pre-task one")
	}
	if res.PostCheckpointErr != nil {
		t.Errorf("unexpected post-task checkpoint error: %v", res.PostCheckpointErr)
	}

	checkpoints, err := ex.Store().List()
	if err != nil {
		t.Fatal(err)
	}
	if len(checkpoints) != 2 {
		t.Errorf("expected 2 listable checkpoints, got %d", len(checkpoints))
	}
}

func TestCheckpointAfterSkippedOnFailure(t *testing.T) {
	fake := &fakeProvider{run: func(pc provider.Context) provider.Result {
		return provider.Result{Success: false, Error: "nope"}
	}}
	ex, _ := newTestExecutor(t, fake)

	res, err := ex.ExecuteTask(context.Background(), "doomed", Options{CheckpointAfter: true})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.PostCheckpointID != "" || res.PostCheckpointErr != nil {
		t.Errorf("post-task checkpoint must only follow success: %+v", res)
	}
}

func TestPostCheckpointFailureKeepsTaskSuccess(t *testing.T) {
	var layout *config.Layout

	fake := &fakeProvider{run: func(pc provider.Context) provider.Result {
		// Break the checkpoint store between the run and the post-task
		// checkpoint.
		os.RemoveAll(layout.CheckpointsDir)
		os.WriteFile(layout.CheckpointsDir, []byte("x"), 0644)
		return provider.Result{Success: true, Output: "done"}
	}}
	var ex *Executor
	ex, layout = newTestExecutor(t, fake)

	res, err := ex.ExecuteTask(context.Background(), "fragile", Options{CheckpointAfter: true})
	if err != nil {
		t.Fatalf("ExecuteTask failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("post-task checkpoint failure must not flip success: %q", res.Error)
	}
	if res.PostCheckpointErr == nil {
		t.Error("expected PostCheckpointErr to be reported")
	}
	if res.PostCheckpointID != "" {
		t.Errorf("unexpected post-task checkpoint id %q", res.PostCheckpointID)
	}

	entries, err := ex.Log().Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].Success {
		t.Errorf("execution not logged as a success: %+v", entries)
	}
}

func TestBatchHaltsOnFailure(t *testing.T) {
	fake := &fakeProvider{run: func(pc provider.Context) provider.Result {
		if pc.Task == "two" {
			return provider.Result{Success: false, Error: "nope"}
		}
		return provider.Result{Success: true, Output: "ok"}
	}}
	ex, _ := newTestExecutor(t, fake)

	br, err := ex.ExecuteBatch(context.Background(), []string{"one", "two", "three"}, Options{
		Checkpoint: true,
	})
	if err != nil {
		t.Fatalf("ExecuteBatch failed: %v", err)
	}

	if len(br.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(br.Results))
	}
	if br.HaltedAt != 1 {
		t.Errorf("HaltedAt = %d, want 1", br.HaltedAt)
	}
	if fake.callCount() != 2 {
		t.Errorf("third task ran after the halt: %d provider calls", fake.callCount())
	}
	if br.CheckpointID == "" {
		t.Fatal("expected a leading batch checkpoint")
	}
	for i, res := range br.Results {
		if res.CheckpointID != br.CheckpointID {
			t.Errorf("task %d checkpoint %q, want shared %q", i, res.CheckpointID, br.CheckpointID)
		}
	}

	// The leading checkpoint is the only one created.
	checkpoints, err := ex.Store().List()
	if err != nil {
		t.Fatal(err)
	}
	if len(checkpoints) != 1 {
		t.Errorf("expected exactly 1 checkpoint for the batch, got %d", len(checkpoints))
	}

	// Session continuity: first task starts fresh, later tasks continue.
	if fake.calls[0].ContinueSession {
		t.Error("first batch task should not continue a session")
	}
	if !fake.calls[1].ContinueSession {
		t.Error("second batch task should continue the session")
	}

	entries, err := ex.Log().Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 session entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.BatchID != br.BatchID {
			t.Errorf("entry batch id %q, want %q", entry.BatchID, br.BatchID)
		}
	}
}

func TestBatchContinueOnFailure(t *testing.T) {
	fake := &fakeProvider{run: func(pc provider.Context) provider.Result {
		if pc.Task == "two" {
			return provider.Result{Success: false, Error: "nope"}
		}
		return provider.Result{Success: true}
	}}
	ex, _ := newTestExecutor(t, fake)

	br, err := ex.ExecuteBatch(context.Background(), []string{"one", "two", "three"}, Options{
		ContinueOnFailure: true,
	})
	if err != nil {
		t.Fatalf("ExecuteBatch failed: %v", err)
	}

	if len(br.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(br.Results))
	}
	if br.HaltedAt != -1 {
		t.Errorf("HaltedAt = %d, want -1", br.HaltedAt)
	}
	if br.Results[0].Success != true || br.Results[1].Success != false || br.Results[2].Success != true {
		t.Errorf("unexpected outcomes: %v %v %v",
			br.Results[0].Success, br.Results[1].Success, br.Results[2].Success)
	}
}

func TestDefaultOptionsFollowConfig(t *testing.T) {
	fake := &fakeProvider{run: succeed}
	ex, _ := newTestExecutor(t, fake)

	opts := ex.DefaultOptions()
	cfg := ex.Config()
	if opts.Checkpoint != cfg.CheckpointBeforeTasks {
		t.Errorf("Checkpoint = %v, want %v", opts.Checkpoint, cfg.CheckpointBeforeTasks)
	}
	if opts.AutoRestoreOnFailure != cfg.AutoRestoreOnFailure {
		t.Errorf("AutoRestoreOnFailure = %v, want %v", opts.AutoRestoreOnFailure, cfg.AutoRestoreOnFailure)
	}
}
