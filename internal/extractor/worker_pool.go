package extractor

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// WorkerPool extracts candidates from many files in parallel with a fixed
// number of workers sharing one Extractor.
type WorkerPool struct {
	ctx            context.Context
	extractor      *Extractor
	tasks          chan ExtractionTask
	results        chan ExtractionTaskResult
	progressChan   chan ProgressUpdate
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	numWorkers     int
	totalTasks     int
	completedTasks int
	mu             sync.RWMutex
}

// ExtractionTask is one file to scan.
type ExtractionTask struct {
	ID   string
	Path string
}

// ExtractionTaskResult carries the candidates found in one file.
type ExtractionTaskResult struct {
	Error      error
	Candidates []CandidateURL
	Task       ExtractionTask
	Elapsed    time.Duration
}

// ProgressUpdate provides progress information.
type ProgressUpdate struct {
	TaskID      string
	Path        string
	Status      TaskStatus
	Message     string
	Completed   int
	Total       int
	Found       int
	ElapsedTime time.Duration
}

// TaskStatus represents the status of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// NewWorkerPool creates a worker pool bound to ctx. Cancelling ctx stops
// workers after their current file.
func NewWorkerPool(ctx context.Context, extractor *Extractor, numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 4
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		extractor:    extractor,
		numWorkers:   numWorkers,
		tasks:        make(chan ExtractionTask, numWorkers*2),
		results:      make(chan ExtractionTaskResult, numWorkers*2),
		progressChan: make(chan ProgressUpdate, 100),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return
		case task, ok := <-wp.tasks:
			if !ok {
				return
			}

			wp.processTask(workerID, task)
		}
	}
}

func (wp *WorkerPool) processTask(workerID int, task ExtractionTask) {
	start := time.Now()

	wp.sendProgress(ProgressUpdate{
		TaskID:  task.ID,
		Path:    task.Path,
		Status:  TaskStatusProcessing,
		Message: fmt.Sprintf("Worker %d started processing", workerID),
	})

	candidates, err := wp.extractor.ExtractFile(wp.ctx, task.Path)
	elapsed := time.Since(start)

	wp.mu.Lock()
	wp.completedTasks++
	completed := wp.completedTasks
	total := wp.totalTasks
	wp.mu.Unlock()

	status := TaskStatusCompleted
	message := fmt.Sprintf("Worker %d found %d URLs in %v", workerID, len(candidates), elapsed)

	if err != nil {
		status = TaskStatusFailed
		message = fmt.Sprintf("Worker %d failed: %v", workerID, err)
	}

	wp.sendProgress(ProgressUpdate{
		TaskID:      task.ID,
		Path:        task.Path,
		Status:      status,
		Completed:   completed,
		Total:       total,
		Found:       len(candidates),
		ElapsedTime: elapsed,
		Message:     message,
	})

	select {
	case wp.results <- ExtractionTaskResult{
		Task:       task,
		Candidates: candidates,
		Error:      err,
		Elapsed:    elapsed,
	}:
	case <-wp.ctx.Done():
	}
}

// sendProgress drops the update when nobody keeps up with the channel.
func (wp *WorkerPool) sendProgress(update ProgressUpdate) {
	select {
	case wp.progressChan <- update:
	default:
	}
}

// SubmitTask queues a file. It blocks while the queue is full.
func (wp *WorkerPool) SubmitTask(task ExtractionTask) {
	wp.mu.Lock()
	wp.totalTasks++
	wp.mu.Unlock()

	wp.sendProgress(ProgressUpdate{
		TaskID:  task.ID,
		Path:    task.Path,
		Status:  TaskStatusPending,
		Message: "Task queued for processing",
	})

	select {
	case wp.tasks <- task:
	case <-wp.ctx.Done():
	}
}

// SubmitBatch queues one task per path.
func (wp *WorkerPool) SubmitBatch(paths []string) {
	for i, path := range paths {
		wp.SubmitTask(ExtractionTask{
			ID:   fmt.Sprintf("file-%d", i+1),
			Path: path,
		})
	}
}

// Results returns the results channel for reading results.
func (wp *WorkerPool) Results() <-chan ExtractionTaskResult {
	return wp.results
}

// Progress returns the progress channel for reading progress updates.
func (wp *WorkerPool) Progress() <-chan ProgressUpdate {
	return wp.progressChan
}

// Wait closes the queue, waits for the workers and closes the output
// channels.
func (wp *WorkerPool) Wait() {
	close(wp.tasks)
	wp.wg.Wait()
	close(wp.results)
	close(wp.progressChan)
	wp.cancel()
}

// ExtractAll runs paths through a pool and returns one result per path, in
// input order. A path never reached because ctx was cancelled has a zero
// result whose Task.ID is empty.
func ExtractAll(ctx context.Context, extractor *Extractor, numWorkers int, paths []string, onProgress func(ProgressUpdate)) []ExtractionTaskResult {
	pool := NewWorkerPool(ctx, extractor, numWorkers)
	pool.Start()

	index := make(map[string]int, len(paths))
	for i := range paths {
		index[fmt.Sprintf("file-%d", i+1)] = i
	}

	var progressDone sync.WaitGroup

	progressDone.Add(1)

	go func() {
		defer progressDone.Done()

		for update := range pool.Progress() {
			if onProgress != nil {
				onProgress(update)
			}
		}
	}()

	go func() {
		pool.SubmitBatch(paths)
		pool.Wait()
	}()

	results := make([]ExtractionTaskResult, len(paths))
	for result := range pool.Results() {
		results[index[result.Task.ID]] = result
	}

	progressDone.Wait()

	return results
}

// ProgressTracker tracks and reports progress for a batch of tasks.
type ProgressTracker struct {
	startTime    time.Time
	lastUpdate   time.Time
	taskStatuses map[string]TaskStatus
	found        int
	updateCount  int
	mu           sync.RWMutex
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		startTime:    time.Now(),
		lastUpdate:   time.Now(),
		taskStatuses: make(map[string]TaskStatus),
	}
}

// Update records a progress update.
func (pt *ProgressTracker) Update(update ProgressUpdate) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.taskStatuses[update.TaskID] = update.Status
	pt.found += update.Found
	pt.lastUpdate = time.Now()
	pt.updateCount++
}

// GetSummary returns a summary of the current progress.
func (pt *ProgressTracker) GetSummary() ProgressSummary {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	summary := ProgressSummary{
		StartTime:    pt.startTime,
		LastUpdate:   pt.lastUpdate,
		ElapsedTime:  time.Since(pt.startTime),
		UpdateCount:  pt.updateCount,
		URLsFound:    pt.found,
		StatusCounts: make(map[TaskStatus]int),
	}

	for _, status := range pt.taskStatuses {
		summary.StatusCounts[status]++
	}

	summary.TotalTasks = len(pt.taskStatuses)

	return summary
}

// ProgressSummary provides a summary of progress tracking.
type ProgressSummary struct {
	StartTime    time.Time          `json:"start_time"`
	LastUpdate   time.Time          `json:"last_update"`
	StatusCounts map[TaskStatus]int `json:"status_counts"`
	ElapsedTime  time.Duration      `json:"elapsed_time"`
	UpdateCount  int                `json:"update_count"`
	TotalTasks   int                `json:"total_tasks"`
	URLsFound    int                `json:"urls_found"`
}

// PrintProgress writes a one-line progress report to w, overwriting the
// previous one.
func (pt *ProgressTracker) PrintProgress(w io.Writer) {
	summary := pt.GetSummary()

	completed := summary.StatusCounts[TaskStatusCompleted]
	failed := summary.StatusCounts[TaskStatusFailed]
	processing := summary.StatusCounts[TaskStatusProcessing]

	fmt.Fprintf(w, "\r📄 Files: %d/%d scanned", completed+failed, summary.TotalTasks)

	if failed > 0 {
		fmt.Fprintf(w, " (%d failed)", failed)
	}

	if processing > 0 {
		fmt.Fprintf(w, " (%d processing)", processing)
	}

	fmt.Fprintf(w, " | 🔗 %d URLs", summary.URLsFound)
	fmt.Fprintf(w, " [%v elapsed", summary.ElapsedTime.Round(time.Second))

	if done := completed + failed; done > 0 && done < summary.TotalTasks {
		fmt.Fprintf(w, ", ~%v left", pt.EstimateCompletion().Round(time.Second))
	}

	fmt.Fprint(w, "]")
}

// EstimateCompletion estimates when all tasks will be completed.
func (pt *ProgressTracker) EstimateCompletion() time.Duration {
	summary := pt.GetSummary()

	done := summary.StatusCounts[TaskStatusCompleted] + summary.StatusCounts[TaskStatusFailed]
	if done == 0 || summary.TotalTasks == 0 {
		return 0
	}

	avgTimePerTask := summary.ElapsedTime / time.Duration(done)
	remaining := summary.TotalTasks - done

	return avgTimePerTask * time.Duration(remaining)
}
