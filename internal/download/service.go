package download

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ytget/thumbkit/internal/logging"
	"github.com/ytget/thumbkit/internal/model"
	"github.com/ytget/thumbkit/internal/options"
)

// Scheduling limits and defaults
const (
	DefaultMaxParallel = 4
	MaxParallelLimit   = 16
	DefaultRetryDelay  = 2 * time.Second
	TaskIDPrefix       = "fetch-"
)

var (
	// ErrTaskNotFound is returned for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateTask is returned when an unfinished task already exists for a URL.
	ErrDuplicateTask = errors.New("task already exists for URL")
)

type entry struct {
	task     *model.FetchTask
	resolved options.Resolved
	cancel   context.CancelFunc
}

// Service handles fetch scheduling
type Service struct {
	name       string
	fetcher    Fetcher
	env        options.Environment
	logger     *zap.Logger
	retryDelay time.Duration

	tasks       map[string]*entry
	tasksMutex  sync.RWMutex
	maxParallel int
	activeCount int
	seq         uint64
	onComplete  func(Result) // callback for finished tasks
}

// NewService creates a new fetch service. When env has no downloader
// provider the service becomes its own default downloader.
func NewService(name string, fetcher Fetcher, maxParallel int, env options.Environment, logger *zap.Logger) *Service {
	s := &Service{
		name:        name,
		fetcher:     fetcher,
		env:         env,
		logger:      logging.OrNop(logger).With(zap.String("downloader", name)),
		retryDelay:  DefaultRetryDelay,
		tasks:       make(map[string]*entry),
		maxParallel: clampParallel(maxParallel),
	}
	if s.env.Downloaders == nil {
		s.env.Downloaders = s
	}
	return s
}

// Name implements options.Downloader.
func (s *Service) Name() string {
	return s.name
}

// DefaultDownloader implements options.DownloaderProvider.
func (s *Service) DefaultDownloader() options.Downloader {
	return s
}

// SetCompletionCallback sets the callback invoked for every finished task.
// It runs on the task's resolved callback queue.
func (s *Service) SetCompletionCallback(callback func(Result)) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	s.onComplete = callback
}

// Submit resolves list and queues a fetch for url. When the list selects a
// different Service as downloader the task is handed to it.
func (s *Service) Submit(url string, list options.List) (*model.FetchTask, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("url is empty")
	}

	resolved := options.Resolve(s.env, list)
	switch d := resolved.Downloader.(type) {
	case *Service:
		if d != s {
			s.logger.Debug("handing task to downloader", zap.String("url", url), zap.String("target", d.name))
			return d.submitResolved(url, resolved)
		}
	case nil:
	default:
		s.logger.Warn("unsupported downloader, running locally", zap.String("url", url), zap.String("target", d.Name()))
	}
	return s.submitResolved(url, resolved)
}

// submitResolved queues url with options already resolved by the submitting
// service, so a handoff never resolves again.
func (s *Service) submitResolved(url string, resolved options.Resolved) (*model.FetchTask, error) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	for _, e := range s.tasks {
		if e.task.URL == url && !e.task.Status.IsFinished() {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, url)
		}
	}

	s.seq++
	task := &model.FetchTask{
		ID:               generateTaskID(),
		URL:              url,
		Status:           model.TaskStatusPending,
		Priority:         resolved.DownloadPriority,
		ScaleFactor:      resolved.ScaleFactor,
		DownloaderName:   s.name,
		ForceRefresh:     resolved.ForceRefresh,
		CacheMemoryOnly:  resolved.CacheMemoryOnly,
		BackgroundDecode: resolved.BackgroundDecode,
		Seq:              s.seq,
		CreatedAt:        time.Now(),
	}
	if resolved.TargetCache != nil {
		task.CacheName = resolved.TargetCache.Name()
	}
	s.tasks[task.ID] = &entry{task: task, resolved: resolved}

	s.logger.Debug("task submitted",
		zap.String("task", task.ID),
		zap.String("url", url),
		zap.Float64("priority", task.Priority),
		zap.String("cache", task.CacheName),
	)

	s.scheduleLocked()

	snapshot := *task
	return &snapshot, nil
}

// GetTask returns a snapshot of a task by ID
func (s *Service) GetTask(id string) (*model.FetchTask, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	e, exists := s.tasks[id]
	if !exists {
		return nil, false
	}
	snapshot := *e.task
	return &snapshot, true
}

// GetAllTasks returns snapshots of all tasks in submit order
func (s *Service) GetAllTasks() []*model.FetchTask {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()

	tasks := make([]*model.FetchTask, 0, len(s.tasks))
	for _, e := range s.tasks {
		snapshot := *e.task
		tasks = append(tasks, &snapshot)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Seq < tasks[j].Seq })
	return tasks
}

// CancelTask cancels a pending or running task
func (s *Service) CancelTask(id string) error {
	s.tasksMutex.Lock()

	e, exists := s.tasks[id]
	if !exists {
		s.tasksMutex.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	switch e.task.Status {
	case model.TaskStatusPending:
		e.task.Status = model.TaskStatusCancelled
		e.task.FinishedAt = time.Now()
		snapshot := *e.task
		callback := s.onComplete
		s.tasksMutex.Unlock()

		s.logger.Debug("pending task cancelled", zap.String("task", id))
		s.deliver(e, callback, Result{Task: &snapshot, Transition: options.NoTransition, Err: context.Canceled})
		return nil

	case model.TaskStatusRunning:
		// The fetch goroutine observes the cancelled context and finishes the task.
		e.task.Status = model.TaskStatusCancelling
		e.cancel()
		s.tasksMutex.Unlock()
		return nil
	}

	status := e.task.Status
	s.tasksMutex.Unlock()
	return fmt.Errorf("task is not cancellable: %s", status)
}

// RemoveTask forgets a finished task
func (s *Service) RemoveTask(id string) error {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	e, exists := s.tasks[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if !e.task.Status.IsFinished() {
		return fmt.Errorf("task is still %s: %s", e.task.Status, id)
	}
	delete(s.tasks, id)
	return nil
}

// SetMaxParallel sets the maximum number of concurrent fetches
func (s *Service) SetMaxParallel(max int) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	s.maxParallel = clampParallel(max)
	s.scheduleLocked()
}

// scheduleLocked starts pending tasks, highest priority first, while there is
// capacity. Callers hold tasksMutex.
func (s *Service) scheduleLocked() {
	for s.activeCount < s.maxParallel {
		next := s.nextPendingLocked()
		if next == nil {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		next.cancel = cancel
		next.task.Status = model.TaskStatusRunning
		next.task.StartedAt = time.Now()
		s.activeCount++
		go s.run(ctx, next)
	}
}

func (s *Service) nextPendingLocked() *entry {
	var best *entry
	for _, e := range s.tasks {
		if e.task.Status != model.TaskStatusPending {
			continue
		}
		if best == nil ||
			e.task.Priority > best.task.Priority ||
			(e.task.Priority == best.task.Priority && e.task.Seq < best.task.Seq) {
			best = e
		}
	}
	return best
}

// run serves a task from the target cache or the fetcher
func (s *Service) run(ctx context.Context, e *entry) {
	defer e.cancel()

	r := e.resolved
	key := e.task.CacheKey()
	store, hasStore := r.TargetCache.(Store)

	if ctx.Err() != nil {
		s.finish(e, nil, false, ctx.Err())
		return
	}

	if hasStore && !r.ForceRefresh {
		if data, ok := store.Retrieve(key, r.CacheMemoryOnly); ok {
			s.finish(e, data, true, nil)
			return
		}
	}

	data, err := s.fetchWithRetry(ctx, e)
	if err == nil && hasStore {
		if storeErr := store.Store(key, data, r.CacheMemoryOnly); storeErr != nil {
			s.logger.Warn("failed to store image", zap.String("task", e.task.ID), zap.Error(storeErr))
		}
	}
	s.finish(e, data, false, err)
}

// fetchWithRetry calls the fetcher, retrying once when RetryFailed is set
func (s *Service) fetchWithRetry(ctx context.Context, e *entry) ([]byte, error) {
	maxRetries := 0
	if e.resolved.Options.Has(options.RetryFailed) {
		maxRetries = 1
	}

	req := Request{
		URL:              e.task.URL,
		Priority:         e.resolved.DownloadPriority,
		ScaleFactor:      e.resolved.ScaleFactor,
		BackgroundDecode: e.resolved.BackgroundDecode,
		Options:          e.resolved.Options,
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			s.logger.Info("retrying fetch", zap.String("task", e.task.ID), zap.Int("attempt", attempt+1))
		}

		data, err := s.fetcher.Fetch(ctx, req)
		if err == nil {
			return data, nil
		}

		lastErr = err
		s.logger.Warn("fetch attempt failed", zap.String("task", e.task.ID), zap.Int("attempt", attempt+1), zap.Error(err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// finish records the outcome, frees the slot and delivers the result
func (s *Service) finish(e *entry, data []byte, fromCache bool, err error) {
	s.tasksMutex.Lock()
	task := e.task
	if task.Status == model.TaskStatusCancelling && err == nil {
		// The cancel won even though the work finished.
		err = context.Canceled
		data = nil
	}
	switch {
	case err != nil && (errors.Is(err, context.Canceled) || task.Status == model.TaskStatusCancelling):
		task.Status = model.TaskStatusCancelled
	case err != nil:
		task.Status = model.TaskStatusError
		task.LastError = err.Error()
	default:
		task.Status = model.TaskStatusCompleted
		task.FromCache = fromCache
		task.Size = len(data)
	}
	task.FinishedAt = time.Now()
	s.activeCount--
	snapshot := *task
	callback := s.onComplete
	s.scheduleLocked()
	s.tasksMutex.Unlock()

	s.logger.Debug("task finished",
		zap.String("task", snapshot.ID),
		zap.String("status", snapshot.Status.String()),
		zap.Bool("from_cache", fromCache),
		zap.Duration("elapsed", snapshot.Elapsed()),
	)

	result := Result{Task: &snapshot, Transition: options.NoTransition, Err: err}
	if err == nil {
		result.Data = data
		if !fromCache {
			result.Transition = e.resolved.Transition
		}
	}
	s.deliver(e, callback, result)
}

// deliver runs callback on the task's resolved callback queue
func (s *Service) deliver(e *entry, callback func(Result), result Result) {
	if callback == nil {
		return
	}
	e.resolved.CallbackQueue.Execute(func() {
		callback(result)
	})
}

func clampParallel(count int) int {
	if count < 1 {
		return 1
	}
	if count > MaxParallelLimit {
		return MaxParallelLimit
	}
	return count
}

// generateTaskID generates a unique task ID using UUID v7 for time ordering
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
