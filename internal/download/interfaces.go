package download

import (
	"context"

	"github.com/ytget/thumbkit/internal/model"
	"github.com/ytget/thumbkit/internal/options"
)

// Scheduler defines the interface for the fetch service.
type Scheduler interface {
	Name() string
	SetCompletionCallback(func(Result))
	Submit(url string, list options.List) (*model.FetchTask, error)
	GetTask(id string) (*model.FetchTask, bool)
	GetAllTasks() []*model.FetchTask
	CancelTask(id string) error
	RemoveTask(id string) error

	// SetMaxParallel sets the maximum number of concurrent fetches
	SetMaxParallel(max int)
}

// Fetcher performs the network transfer. Implementations must return
// ctx.Err() promptly once ctx is cancelled.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req Request) ([]byte, error)

// Fetch calls f(ctx, req)
func (f FetcherFunc) Fetch(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// Store is implemented by cache handles that can hold image data. Handles that
// do not implement it are passed through untouched.
type Store interface {
	Retrieve(key string, memoryOnly bool) ([]byte, bool)
	Store(key string, data []byte, memoryOnly bool) error
}

// Request is what a Fetcher receives for one task.
type Request struct {
	URL              string
	Priority         float64
	ScaleFactor      float64
	BackgroundDecode bool
	Options          options.OptionSet
}

// Result is delivered to the completion callback.
type Result struct {
	Task       *model.FetchTask
	Data       []byte
	Transition options.Transition // NoTransition unless fetched from the network
	Err        error
}
