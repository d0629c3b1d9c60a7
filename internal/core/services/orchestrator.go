// Package services contains the pipeline core: the orchestrator driving
// poll cycles and the per-file processor.
package services

import (
	"context"
	"time"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/domain"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/core/ports/driven"
	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// CycleResult summarises one poll cycle.
type CycleResult struct {
	// Changed is how many change events the watcher reported.
	Changed int
	// Stored is how many files were fully replaced or deleted.
	Stored int
	// Failed is how many files errored and will be retried next cycle.
	Failed int
}

// Orchestrator owns the poll loop: it loads state once at startup, runs
// cycles against a single watcher and persists the watermark after each
// cycle.
type Orchestrator struct {
	watcher   driven.Watcher
	processor *Processor
	states    driven.StateStore
	interval  time.Duration
	retry     retryPolicy

	state *domain.PipelineState
}

// NewOrchestrator wires a watcher, processor and state store together.
func NewOrchestrator(w driven.Watcher, p *Processor, states driven.StateStore, interval time.Duration) *Orchestrator {
	return &Orchestrator{
		watcher:   w,
		processor: p,
		states:    states,
		interval:  interval,
		retry:     defaultRetry,
	}
}

// Run executes poll cycles until the context is cancelled. The current
// cycle always finishes before Run returns, so shutdown never leaves a
// file half-advanced.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		if _, err := o.RunCycle(ctx); err != nil {
			logger.Error("poll cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("shutting down %s pipeline", o.watcher.Type())
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single poll cycle and returns its result.
func (o *Orchestrator) RunOnce(ctx context.Context) (CycleResult, error) {
	if err := o.start(ctx); err != nil {
		return CycleResult{}, err
	}
	return o.RunCycle(ctx)
}

// start validates the watcher and loads persisted state. Loading is done
// once; afterwards the orchestrator owns the in-memory state.
func (o *Orchestrator) start(ctx context.Context) error {
	if o.state != nil {
		return nil
	}
	if err := o.watcher.Validate(ctx); err != nil {
		return err
	}

	state, err := o.states.Load(ctx, o.watcher.PipelineID())
	if err != nil {
		logger.Warn("load state: %v; starting from scratch", err)
		state = domain.NewPipelineState(o.watcher.PipelineID(), o.watcher.Type())
	}
	state.PipelineType = o.watcher.Type()
	o.state = state

	if state.LastCheckTime.IsZero() {
		logger.Info("%s pipeline %s starting with no previous watermark", o.watcher.Type(), o.watcher.PipelineID())
	} else {
		logger.Info("%s pipeline %s resuming from %s", o.watcher.Type(), o.watcher.PipelineID(), state.LastCheckTime.Format(time.RFC3339))
	}
	return nil
}

// RunCycle runs one poll cycle: list changes since the watermark,
// process each file in isolation, then advance the watermark and persist
// state. Files that fail keep their old known entry so the next cycle
// retries them.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleResult, error) {
	if ka, ok := o.watcher.(driven.KnownFilesAware); ok {
		ka.SetKnownFiles(o.state.KnownFiles)
	}

	cycleStart := time.Now().UTC()
	var events []domain.ChangeEvent
	err := o.retry.do(ctx, "list changes", func() error {
		var lerr error
		events, lerr = o.watcher.ListChanges(ctx, o.state.LastCheckTime)
		return lerr
	})
	if err != nil {
		return CycleResult{}, err
	}

	result := CycleResult{Changed: len(events)}
	if len(events) > 0 {
		logger.Info("%d changed files", len(events))
	}

	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		stored, err := o.processor.Process(ctx, o.watcher, ev)
		if err != nil {
			result.Failed++
			logger.Error("process %s: %v", ev.FileID, err)
			continue
		}
		if !stored {
			continue
		}
		result.Stored++
		if ev.Trashed {
			delete(o.state.KnownFiles, ev.FileID)
		} else {
			o.state.KnownFiles[ev.FileID] = ev.ModifiedAt.UTC().Format(time.RFC3339)
		}
	}

	if err := o.watcher.EndCycle(ctx); err != nil {
		logger.Warn("end cycle: %v", err)
	}

	o.state.LastCheckTime = cycleStart
	o.state.LastRun = time.Now().UTC()
	if err := o.states.Save(ctx, o.state); err != nil {
		// Losing the watermark only costs a redundant re-scan.
		logger.Warn("save state: %v", err)
	}
	return result, nil
}
