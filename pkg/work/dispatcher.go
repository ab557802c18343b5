package work

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/preflight/pkg/findings"
	"github.com/fulmenhq/preflight/pkg/logger"
)

// ExecutionResult represents the result of processing a work item
type ExecutionResult struct {
	WorkItemID string             `json:"work_item_id"`
	Path       string             `json:"path"`
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Findings   []findings.Finding `json:"findings,omitempty"`
}

// ExecutionSummary provides a summary of the execution
type ExecutionSummary struct {
	TotalItems    int               `json:"total_items"`
	Successful    int               `json:"successful"`
	Failed        int               `json:"failed"`
	TotalDuration time.Duration     `json:"total_duration"`
	WorkerStats   WorkerStats       `json:"worker_stats"`
	Results       []ExecutionResult `json:"results"`
}

// WorkerStats provides statistics about worker performance
type WorkerStats struct {
	TotalWorkers    int `json:"total_workers"`
	PeakUtilization int `json:"peak_utilization"`
}

// WorkItemProcessor defines the interface for processing work items
type WorkItemProcessor interface {
	ProcessWorkItem(ctx context.Context, item *WorkItem) ExecutionResult
}

// ProcessorFunc adapts a function to WorkItemProcessor.
type ProcessorFunc func(ctx context.Context, item *WorkItem) ExecutionResult

func (f ProcessorFunc) ProcessWorkItem(ctx context.Context, item *WorkItem) ExecutionResult {
	return f(ctx, item)
}

// DispatcherConfig configures the dispatcher
type DispatcherConfig struct {
	MaxWorkers int
	// ProgressCallback is called from the collecting goroutine, one result at a time.
	ProgressCallback func(result ExecutionResult)
}

// Dispatcher runs work items on a fixed pool of workers
type Dispatcher struct {
	config    DispatcherConfig
	processor WorkItemProcessor
}

// NewDispatcher creates a new work dispatcher
func NewDispatcher(config DispatcherConfig, processor WorkItemProcessor) *Dispatcher {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	return &Dispatcher{config: config, processor: processor}
}

// Workers returns the configured pool size.
func (d *Dispatcher) Workers() int {
	return d.config.MaxWorkers
}

// ExecuteManifest processes every work item. Results come back in completion
// order. Items not started before ctx is cancelled are dropped.
func (d *Dispatcher) ExecuteManifest(ctx context.Context, manifest *WorkManifest) *ExecutionSummary {
	items := manifest.WorkItems
	startTime := time.Now()

	workers := d.config.MaxWorkers
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}

	workChan := make(chan *WorkItem)
	resultChan := make(chan ExecutionResult, workers)

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go d.worker(ctx, workChan, resultChan, &wg, &active, &peak)
	}

	go func() {
		defer close(workChan)
		for i := range items {
			select {
			case workChan <- &items[i]:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	summary := &ExecutionSummary{
		Results: make([]ExecutionResult, 0, len(items)),
	}
	for result := range resultChan {
		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
		if d.config.ProgressCallback != nil {
			d.config.ProgressCallback(result)
		}
	}

	summary.TotalItems = len(summary.Results)
	summary.TotalDuration = time.Since(startTime)
	summary.WorkerStats = WorkerStats{
		TotalWorkers:    d.config.MaxWorkers,
		PeakUtilization: int(peak.Load()),
	}

	logger.Debug("File scan complete",
		logger.Int("successful", summary.Successful),
		logger.Int("failed", summary.Failed),
		logger.Duration("elapsed", summary.TotalDuration))
	return summary
}

// worker processes work items from the work channel
func (d *Dispatcher) worker(ctx context.Context, workChan <-chan *WorkItem, resultChan chan<- ExecutionResult, wg *sync.WaitGroup, active, peak *atomic.Int64) {
	defer wg.Done()

	for item := range workChan {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		start := time.Now()
		result := d.processor.ProcessWorkItem(ctx, item)
		result.Duration = time.Since(start)
		if result.WorkItemID == "" {
			result.WorkItemID = item.ID
		}
		if result.Path == "" {
			result.Path = item.Path
		}
		active.Add(-1)

		// resultChan is drained until every worker exits, so this never blocks forever
		resultChan <- result
	}
}
