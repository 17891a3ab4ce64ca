package platform

import (
	"fyne.io/fyne/v2"

	"github.com/ytget/thumbkit/internal/options"
)

// MainThread runs callbacks on the Fyne main goroutine. It requires a
// current Fyne app.
type MainThread struct{}

// Execute queues fn on the main goroutine without waiting for it
func (MainThread) Execute(fn func()) {
	fyne.Do(fn)
}

// MainContexts is the options.ContextProvider backed by MainThread.
type MainContexts struct{}

// MainContext returns the main-thread executor
func (MainContexts) MainContext() options.Executor {
	return MainThread{}
}
