package options

import "fmt"

// DefaultPriority is the priority used when none is set. It matches the
// platform's default task priority.
const DefaultPriority = 0.5

// DefaultScale is used when no DisplayScaler is configured.
const DefaultScale = 1.0

// CacheProvider supplies the default cache.
type CacheProvider interface {
	DefaultCache() Cache
}

// DownloaderProvider supplies the default downloader.
type DownloaderProvider interface {
	DefaultDownloader() Downloader
}

// ContextProvider supplies the main execution context.
type ContextProvider interface {
	MainContext() Executor
}

// DisplayScaler reports the native scale of the current display.
type DisplayScaler interface {
	NativeScale() float64
}

// Environment holds the collaborators defaults are read from. Any field may
// be nil: the cache and downloader then resolve to nil, the callback queue to
// Inline and the scale factor to DefaultScale.
type Environment struct {
	Caches      CacheProvider
	Downloaders DownloaderProvider
	Contexts    ContextProvider
	Display     DisplayScaler
}

// Inline runs callbacks synchronously on the calling goroutine.
var Inline Executor = inlineExecutor{}

type inlineExecutor struct{}

func (inlineExecutor) Execute(fn func()) { fn() }

// Resolver answers per-axis questions about a List.
type Resolver struct {
	list List
	env  Environment
}

// NewResolver binds a list to the environment supplying its defaults.
func NewResolver(env Environment, list List) Resolver {
	return Resolver{list: list, env: env}
}

// List returns the list being resolved
func (r Resolver) List() List {
	return r.list
}

// match returns the first item of kind k when it carries a payload.
func (r Resolver) match(k Kind) (Item, bool) {
	item, ok := r.list.FirstMatch(Probe(k))
	if !ok || !item.present() {
		return Item{}, false
	}
	return item, true
}

// Options returns the nested option set, empty when unset.
func (r Resolver) Options() OptionSet {
	if item, ok := r.match(KindOptions); ok {
		return item.options
	}
	return 0
}

// TargetCache returns the cache to use, falling back to the default cache.
func (r Resolver) TargetCache() Cache {
	if item, ok := r.match(KindTargetCache); ok {
		return item.cache
	}
	if r.env.Caches == nil {
		return nil
	}
	return r.env.Caches.DefaultCache()
}

// Downloader returns the downloader to use, falling back to the default.
func (r Resolver) Downloader() Downloader {
	if item, ok := r.match(KindDownloader); ok {
		return item.downloader
	}
	if r.env.Downloaders == nil {
		return nil
	}
	return r.env.Downloaders.DefaultDownloader()
}

// Transition returns the transition, NoTransition when unset.
func (r Resolver) Transition() Transition {
	if item, ok := r.match(KindTransition); ok {
		return item.transition
	}
	return NoTransition
}

// DownloadPriority returns the priority hint. A zero priority is
// indistinguishable from an unset one and yields DefaultPriority.
func (r Resolver) DownloadPriority() float64 {
	if item, ok := r.match(KindDownloadPriority); ok {
		return item.number
	}
	return DefaultPriority
}

// CallbackQueue returns where completion callbacks run, falling back to the
// main context.
func (r Resolver) CallbackQueue() Executor {
	if item, ok := r.match(KindCallbackQueue); ok {
		return item.executor
	}
	if r.env.Contexts == nil {
		return Inline
	}
	if main := r.env.Contexts.MainContext(); main != nil {
		return main
	}
	return Inline
}

// ScaleFactor returns the image scale. A zero scale yields the display scale.
func (r Resolver) ScaleFactor() float64 {
	if item, ok := r.match(KindScaleFactor); ok {
		return item.number
	}
	if r.env.Display == nil {
		return DefaultScale
	}
	return r.env.Display.NativeScale()
}

// ForceRefresh reports whether any ForceRefresh item is present.
func (r Resolver) ForceRefresh() bool {
	return r.list.Contains(KindForceRefresh)
}

// CacheMemoryOnly reports whether any CacheMemoryOnly item is present.
func (r Resolver) CacheMemoryOnly() bool {
	return r.list.Contains(KindCacheMemoryOnly)
}

// BackgroundDecode reports whether any BackgroundDecode item is present.
func (r Resolver) BackgroundDecode() bool {
	return r.list.Contains(KindBackgroundDecode)
}

// Resolved is every axis of a list, resolved at one point in time.
type Resolved struct {
	Options          OptionSet
	TargetCache      Cache
	Downloader       Downloader
	Transition       Transition
	DownloadPriority float64
	ForceRefresh     bool
	CacheMemoryOnly  bool
	BackgroundDecode bool
	CallbackQueue    Executor
	ScaleFactor      float64
}

// Resolve evaluates all axes.
func (r Resolver) Resolve() Resolved {
	return Resolved{
		Options:          r.Options(),
		TargetCache:      r.TargetCache(),
		Downloader:       r.Downloader(),
		Transition:       r.Transition(),
		DownloadPriority: r.DownloadPriority(),
		ForceRefresh:     r.ForceRefresh(),
		CacheMemoryOnly:  r.CacheMemoryOnly(),
		BackgroundDecode: r.BackgroundDecode(),
		CallbackQueue:    r.CallbackQueue(),
		ScaleFactor:      r.ScaleFactor(),
	}
}

// Resolve is shorthand for NewResolver(env, list).Resolve().
func Resolve(env Environment, list List) Resolved {
	return NewResolver(env, list).Resolve()
}

// String renders one "axis: value" line per axis.
func (r Resolved) String() string {
	queue := "nil"
	if r.CallbackQueue != nil {
		queue = fmt.Sprintf("%T", r.CallbackQueue)
	}
	return fmt.Sprintf(
		"options: %s\ncache: %s\ndownloader: %s\ntransition: %s\npriority: %g\n"+
			"forceRefresh: %t\ncacheMemoryOnly: %t\nbackgroundDecode: %t\ncallbackQueue: %s\nscale: %g\n",
		r.Options, handleName(r.TargetCache), handleName(r.Downloader), r.Transition, r.DownloadPriority,
		r.ForceRefresh, r.CacheMemoryOnly, r.BackgroundDecode, queue, r.ScaleFactor,
	)
}
