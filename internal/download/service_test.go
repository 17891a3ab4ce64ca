package download

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/thumbkit/internal/cache"
	"github.com/ytget/thumbkit/internal/model"
	"github.com/ytget/thumbkit/internal/options"
)

const waitTimeout = 2 * time.Second

type fakeFetcher struct {
	mu       sync.Mutex
	calls    []Request
	failures int
	gate     chan struct{}
	started  chan string
	data     []byte
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{data: []byte("png"), started: make(chan string, 16)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	gate := f.gate
	f.mu.Unlock()

	f.started <- req.URL
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("connection reset")
	}
	return f.data, nil
}

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, len(f.calls))
	for i, c := range f.calls {
		urls[i] = c.URL
	}
	return urls
}

type storeWrite struct {
	key        string
	memoryOnly bool
}

type fakeStore struct {
	mu      sync.Mutex
	name    string
	entries map[string][]byte
	writes  []storeWrite
	lookups []storeWrite
}

func newFakeStore(name string) *fakeStore {
	return &fakeStore{name: name, entries: make(map[string][]byte)}
}

func (s *fakeStore) Name() string { return s.name }

func (s *fakeStore) Retrieve(key string, memoryOnly bool) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups = append(s.lookups, storeWrite{key, memoryOnly})
	data, ok := s.entries[key]
	return data, ok
}

func (s *fakeStore) Store(key string, data []byte, memoryOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, storeWrite{key, memoryOnly})
	s.entries[key] = data
	return nil
}

type countingExecutor struct {
	mu    sync.Mutex
	calls int
}

func (e *countingExecutor) Execute(fn func()) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	fn()
}

func (e *countingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type staticCaches struct{ cache options.Cache }

func (c staticCaches) DefaultCache() options.Cache { return c.cache }

func collect(s *Service) chan Result {
	results := make(chan Result, 16)
	s.SetCompletionCallback(func(r Result) { results <- r })
	return results
}

func waitResult(t *testing.T, results chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for result")
		return Result{}
	}
}

func waitStarted(t *testing.T, f *fakeFetcher, url string) {
	t.Helper()
	select {
	case got := <-f.started:
		require.Equal(t, url, got)
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s to start", url)
	}
}

func TestNewService(t *testing.T) {
	tests := []struct {
		requested int
		expected  int
	}{
		{0, 1},
		{-3, 1},
		{4, 4},
		{99, MaxParallelLimit},
	}

	for _, test := range tests {
		s := NewService("main", newFakeFetcher(), test.requested, options.Environment{}, nil)
		assert.Equal(t, test.expected, s.maxParallel, "requested %d", test.requested)
		assert.Empty(t, s.tasks)
		assert.Equal(t, "main", s.Name())
	}
}

func TestSubmit_DeliversRemoteResultWithTransition(t *testing.T) {
	f := newFakeFetcher()
	s := NewService("main", f, 2, options.Environment{}, nil)
	results := collect(s)

	task, err := s.Submit("https://img.example.com/a.png", options.NewList(
		options.WithTransition(options.Fade(300*time.Millisecond)),
		options.DownloadPriority(0.8),
		options.ScaleFactor(2),
		options.BackgroundDecode(),
	))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(task.ID, TaskIDPrefix))
	assert.Equal(t, "main", task.DownloaderName)

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, model.TaskStatusCompleted, r.Task.Status)
	assert.Equal(t, []byte("png"), r.Data)
	assert.Equal(t, options.Fade(300*time.Millisecond), r.Transition)
	assert.False(t, r.Task.FromCache)
	assert.Equal(t, 3, r.Task.Size)

	require.Len(t, f.calls, 1)
	assert.Equal(t, Request{
		URL:              "https://img.example.com/a.png",
		Priority:         0.8,
		ScaleFactor:      2,
		BackgroundDecode: true,
	}, f.calls[0])
}

func TestSubmit_RejectsEmptyAndDuplicateURL(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	defer close(f.gate)
	s := NewService("main", f, 1, options.Environment{}, nil)

	_, err := s.Submit("  ", options.NewList())
	assert.Error(t, err)

	_, err = s.Submit("https://img.example.com/a.png", options.NewList())
	require.NoError(t, err)

	_, err = s.Submit("https://img.example.com/a.png", options.NewList())
	assert.ErrorIs(t, err, ErrDuplicateTask)
}

func TestSubmit_ServesFromTargetCache(t *testing.T) {
	f := newFakeFetcher()
	store := newFakeStore("avatars")
	store.entries["https://img.example.com/a.png@2x"] = []byte("cached")
	s := NewService("main", f, 2, options.Environment{}, nil)
	results := collect(s)

	_, err := s.Submit("https://img.example.com/a.png", options.NewList(
		options.TargetCache(store),
		options.ScaleFactor(2),
		options.WithTransition(options.Fade(time.Second)),
	))
	require.NoError(t, err)

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.True(t, r.Task.FromCache)
	assert.Equal(t, "avatars", r.Task.CacheName)
	assert.Equal(t, []byte("cached"), r.Data)
	assert.Equal(t, options.NoTransition, r.Transition, "cache hits never animate")
	assert.Empty(t, f.urls())
}

func TestSubmit_DefaultCacheFromEnvironment(t *testing.T) {
	f := newFakeFetcher()
	store := newFakeStore("shared")
	s := NewService("main", f, 2, options.Environment{Caches: staticCaches{store}}, nil)
	results := collect(s)

	// A nil cache payload falls back to the environment default.
	_, err := s.Submit("https://img.example.com/b.png", options.NewList(options.TargetCache(nil)))
	require.NoError(t, err)

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, "shared", r.Task.CacheName)
	assert.Equal(t, []storeWrite{{"https://img.example.com/b.png", false}}, store.writes)
}

func TestSubmit_ForceRefreshSkipsLookupAndMemoryOnlyIsForwarded(t *testing.T) {
	f := newFakeFetcher()
	store := newFakeStore("avatars")
	store.entries["https://img.example.com/a.png"] = []byte("stale")
	s := NewService("main", f, 2, options.Environment{}, nil)
	results := collect(s)

	_, err := s.Submit("https://img.example.com/a.png", options.NewList(
		options.CacheMemoryOnly(),
		options.TargetCache(store),
		options.ForceRefresh(),
	))
	require.NoError(t, err)

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.False(t, r.Task.FromCache)
	assert.True(t, r.Task.ForceRefresh)
	assert.Equal(t, []byte("png"), r.Data)
	assert.Empty(t, store.lookups)
	assert.Equal(t, []storeWrite{{"https://img.example.com/a.png", true}}, store.writes)
}

func TestSubmit_StartsPendingTasksByPriority(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	s := NewService("main", f, 1, options.Environment{}, nil)
	results := collect(s)

	_, err := s.Submit("first", options.NewList())
	require.NoError(t, err)
	waitStarted(t, f, "first")

	for _, sub := range []struct {
		url      string
		priority float64
	}{
		{"low", 0.1},
		{"default", 0},
		{"high", 0.9},
		{"default-2", 0},
	} {
		_, err := s.Submit(sub.url, options.NewList(options.DownloadPriority(sub.priority)))
		require.NoError(t, err)
	}

	close(f.gate)
	for i := 0; i < 5; i++ {
		waitResult(t, results)
	}

	assert.Equal(t, []string{"first", "high", "default", "default-2", "low"}, f.urls())
}

func TestCancelTask_Pending(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	defer close(f.gate)
	s := NewService("main", f, 1, options.Environment{}, nil)
	results := collect(s)

	_, err := s.Submit("busy", options.NewList())
	require.NoError(t, err)
	waitStarted(t, f, "busy")

	queued, err := s.Submit("queued", options.NewList())
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, queued.Status)

	require.NoError(t, s.CancelTask(queued.ID))

	r := waitResult(t, results)
	assert.Equal(t, queued.ID, r.Task.ID)
	assert.Equal(t, model.TaskStatusCancelled, r.Task.Status)
	assert.ErrorIs(t, r.Err, context.Canceled)

	err = s.CancelTask(queued.ID)
	assert.Error(t, err, "finished tasks cannot be cancelled")
}

func TestCancelTask_Running(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	s := NewService("main", f, 1, options.Environment{}, nil)
	results := collect(s)

	task, err := s.Submit("slow", options.NewList())
	require.NoError(t, err)
	waitStarted(t, f, "slow")

	require.NoError(t, s.CancelTask(task.ID))

	r := waitResult(t, results)
	assert.Equal(t, model.TaskStatusCancelled, r.Task.Status)
	assert.ErrorIs(t, r.Err, context.Canceled)
	assert.Nil(t, r.Data)
}

func TestCancelTask_RunningFetchThatIgnoresContext(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := FetcherFunc(func(context.Context, Request) ([]byte, error) {
		close(started)
		<-release
		return []byte("late"), nil
	})
	store := newFakeStore("avatars")
	s := NewService("main", f, 1, options.Environment{}, nil)
	results := collect(s)

	task, err := s.Submit("stubborn", options.NewList(options.TargetCache(store)))
	require.NoError(t, err)
	<-started

	require.NoError(t, s.CancelTask(task.ID))
	close(release)

	r := waitResult(t, results)
	assert.Equal(t, model.TaskStatusCancelled, r.Task.Status)
	assert.ErrorIs(t, r.Err, context.Canceled)
	assert.Nil(t, r.Data)
	assert.Equal(t, options.NoTransition, r.Transition)

	got, ok := s.GetTask(task.ID)
	require.True(t, ok)
	assert.Equal(t, model.TaskStatusCancelled, got.Status)
	assert.Zero(t, got.Size)
}

func TestCancelTask_NotFound(t *testing.T) {
	s := NewService("main", newFakeFetcher(), 1, options.Environment{}, nil)
	assert.ErrorIs(t, s.CancelTask("missing"), ErrTaskNotFound)
}

func TestRetryFailed(t *testing.T) {
	tests := []struct {
		name          string
		list          options.List
		expectedCalls int
		expectErr     bool
	}{
		{"without retry", options.NewList(), 1, true},
		{"with retry", options.NewList(options.WithOptions(options.RetryFailed)), 2, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFakeFetcher()
			f.failures = 1
			s := NewService("main", f, 1, options.Environment{}, nil)
			s.retryDelay = time.Millisecond
			results := collect(s)

			_, err := s.Submit("https://img.example.com/flaky.png", test.list)
			require.NoError(t, err)

			r := waitResult(t, results)
			assert.Len(t, f.urls(), test.expectedCalls)
			if test.expectErr {
				assert.Error(t, r.Err)
				assert.Equal(t, model.TaskStatusError, r.Task.Status)
				assert.Equal(t, "connection reset", r.Task.LastError)
			} else {
				assert.NoError(t, r.Err)
				assert.Equal(t, model.TaskStatusCompleted, r.Task.Status)
			}
		})
	}
}

func TestSubmit_CallbackRunsOnResolvedQueue(t *testing.T) {
	f := newFakeFetcher()
	mainExec := &countingExecutor{}
	custom := &countingExecutor{}
	env := options.Environment{Contexts: mainContext{mainExec}}
	s := NewService("main", f, 2, env, nil)
	results := collect(s)

	_, err := s.Submit("a", options.NewList())
	require.NoError(t, err)
	waitResult(t, results)

	_, err = s.Submit("b", options.NewList(options.CallbackQueue(custom)))
	require.NoError(t, err)
	waitResult(t, results)

	assert.Equal(t, 1, mainExec.count())
	assert.Equal(t, 1, custom.count())
}

type mainContext struct{ executor options.Executor }

func (m mainContext) MainContext() options.Executor { return m.executor }

func TestSubmit_HandsOffToSelectedDownloader(t *testing.T) {
	primaryFetcher := newFakeFetcher()
	secondaryFetcher := newFakeFetcher()
	primary := NewService("primary", primaryFetcher, 1, options.Environment{}, nil)
	secondary := NewService("secondary", secondaryFetcher, 1, options.Environment{}, nil)
	results := collect(secondary)

	task, err := primary.Submit("https://img.example.com/c.png", options.NewList(options.WithDownloader(secondary)))
	require.NoError(t, err)
	assert.Equal(t, "secondary", task.DownloaderName)

	waitResult(t, results)
	assert.Empty(t, primaryFetcher.urls())
	assert.Equal(t, []string{"https://img.example.com/c.png"}, secondaryFetcher.urls())

	_, exists := primary.GetTask(task.ID)
	assert.False(t, exists)
	_, exists = secondary.GetTask(task.ID)
	assert.True(t, exists)
}

type staticDownloaders struct{ downloader options.Downloader }

func (d *staticDownloaders) DefaultDownloader() options.Downloader { return d.downloader }

func TestSubmit_HandoffResolvesOnce(t *testing.T) {
	leftFetcher := newFakeFetcher()
	rightFetcher := newFakeFetcher()
	toRight := &staticDownloaders{}
	toLeft := &staticDownloaders{}
	left := NewService("left", leftFetcher, 1, options.Environment{Downloaders: toRight}, nil)
	right := NewService("right", rightFetcher, 1, options.Environment{Downloaders: toLeft}, nil)
	toRight.downloader = right
	toLeft.downloader = left
	results := collect(right)

	// Each service's default points at the other one.
	task, err := left.Submit("https://img.example.com/loop.png", options.NewList())
	require.NoError(t, err)
	assert.Equal(t, "right", task.DownloaderName)

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Empty(t, leftFetcher.urls())
	assert.Equal(t, []string{"https://img.example.com/loop.png"}, rightFetcher.urls())
}

func TestGetAllTasksAndRemove(t *testing.T) {
	f := newFakeFetcher()
	s := NewService("main", f, 1, options.Environment{}, nil)
	results := collect(s)

	first, err := s.Submit("one", options.NewList())
	require.NoError(t, err)
	second, err := s.Submit("two", options.NewList())
	require.NoError(t, err)
	waitResult(t, results)
	waitResult(t, results)

	tasks := s.GetAllTasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)

	require.NoError(t, s.RemoveTask(first.ID))
	assert.Len(t, s.GetAllTasks(), 1)
	assert.ErrorIs(t, s.RemoveTask(first.ID), ErrTaskNotFound)
}

func TestSetMaxParallel_StartsWaitingTasks(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	defer close(f.gate)
	s := NewService("main", f, 1, options.Environment{}, nil)

	_, err := s.Submit("a", options.NewList())
	require.NoError(t, err)
	waitStarted(t, f, "a")
	_, err = s.Submit("b", options.NewList())
	require.NoError(t, err)

	s.SetMaxParallel(2)
	waitStarted(t, f, "b")
}

func TestGenerateTaskID(t *testing.T) {
	id1 := generateTaskID()
	id2 := generateTaskID()

	assert.NotEqual(t, id1, id2)
	assert.True(t, strings.HasPrefix(id1, TaskIDPrefix))
	assert.Len(t, id1, len(TaskIDPrefix)+36)
}

func TestFetcherFunc(t *testing.T) {
	var seen Request
	f := FetcherFunc(func(_ context.Context, req Request) ([]byte, error) {
		seen = req
		return []byte("ok"), nil
	})

	data, err := f.Fetch(context.Background(), Request{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, "u", seen.URL)
}

var _ Store = (*cache.Handle)(nil)

func TestSubmit_WritesThroughRegistryHandles(t *testing.T) {
	caches := cache.NewRegistry("shared")
	caches.SetDiskRoot(t.TempDir())
	f := newFakeFetcher()
	s := NewService("main", f, 1, options.Environment{Caches: caches}, nil)
	results := collect(s)

	_, err := s.Submit("https://img.example.com/c.png", options.NewList())
	require.NoError(t, err)
	require.NoError(t, waitResult(t, results).Err)

	// Drop the memory tier; the second request must come from disk.
	caches.Default().ClearMemory()
	require.NoError(t, s.RemoveTask(s.GetAllTasks()[0].ID))

	_, err = s.Submit("https://img.example.com/c.png", options.NewList())
	require.NoError(t, err)
	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.True(t, r.Task.FromCache)
	assert.Equal(t, []byte("png"), r.Data)
	assert.Len(t, f.urls(), 1)
}
