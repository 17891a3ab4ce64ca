package options

import "fmt"

// Kind is the discriminant of an Item.
type Kind uint8

const (
	KindOptions Kind = iota
	KindTargetCache
	KindDownloader
	KindTransition
	KindDownloadPriority
	KindForceRefresh
	KindCacheMemoryOnly
	KindBackgroundDecode
	KindCallbackQueue
	KindScaleFactor
)

// Kinds lists every recognized kind in declaration order.
var Kinds = []Kind{
	KindOptions,
	KindTargetCache,
	KindDownloader,
	KindTransition,
	KindDownloadPriority,
	KindForceRefresh,
	KindCacheMemoryOnly,
	KindBackgroundDecode,
	KindCallbackQueue,
	KindScaleFactor,
}

var kindNames = [...]string{
	KindOptions:          "Options",
	KindTargetCache:      "TargetCache",
	KindDownloader:       "Downloader",
	KindTransition:       "Transition",
	KindDownloadPriority: "DownloadPriority",
	KindForceRefresh:     "ForceRefresh",
	KindCacheMemoryOnly:  "CacheMemoryOnly",
	KindBackgroundDecode: "BackgroundDecode",
	KindCallbackQueue:    "CallbackDispatchQueue",
	KindScaleFactor:      "ScaleFactor",
}

// String returns the name of the kind
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsFlag reports whether the kind carries no payload.
func (k Kind) IsFlag() bool {
	return k == KindForceRefresh || k == KindCacheMemoryOnly || k == KindBackgroundDecode
}

// Cache is an opaque handle to an image cache.
type Cache interface {
	Name() string
}

// Downloader is an opaque handle to an image downloader.
type Downloader interface {
	Name() string
}

// Executor is the execution context completion callbacks run on.
type Executor interface {
	Execute(fn func())
}

// Item is one tagged entry of a List. Only the payload field matching kind
// is meaningful.
type Item struct {
	kind       Kind
	options    OptionSet
	cache      Cache
	downloader Downloader
	transition Transition
	number     float64
	executor   Executor
}

// Kind returns the discriminant of the item
func (i Item) Kind() Kind {
	return i.kind
}

// SameKind reports whether a and b are variants of the same kind. Payloads are
// never compared.
func SameKind(a, b Item) bool {
	return a.kind == b.kind
}

// Probe returns the zero-payload item of kind k.
func Probe(k Kind) Item {
	return Item{kind: k}
}

// WithOptions carries a nested option set.
func WithOptions(set OptionSet) Item {
	return Item{kind: KindOptions, options: set}
}

// TargetCache selects the cache to query and store into. A nil cache means
// the default cache.
func TargetCache(c Cache) Item {
	return Item{kind: KindTargetCache, cache: c}
}

// WithDownloader selects the downloader. A nil downloader means the default.
func WithDownloader(d Downloader) Item {
	return Item{kind: KindDownloader, downloader: d}
}

// WithTransition selects the animation shown after a remote fetch.
func WithTransition(t Transition) Item {
	return Item{kind: KindTransition, transition: t}
}

// DownloadPriority sets the relative priority hint. Values are not validated.
func DownloadPriority(p float64) Item {
	return Item{kind: KindDownloadPriority, number: p}
}

// ForceRefresh bypasses the cache lookup.
func ForceRefresh() Item {
	return Item{kind: KindForceRefresh}
}

// CacheMemoryOnly skips the disk cache.
func CacheMemoryOnly() Item {
	return Item{kind: KindCacheMemoryOnly}
}

// BackgroundDecode decodes off the callback context.
func BackgroundDecode() Item {
	return Item{kind: KindBackgroundDecode}
}

// CallbackQueue selects where completion callbacks run. A nil executor means
// the main context.
func CallbackQueue(e Executor) Item {
	return Item{kind: KindCallbackQueue, executor: e}
}

// ScaleFactor sets the image scale to apply.
func ScaleFactor(s float64) Item {
	return Item{kind: KindScaleFactor, number: s}
}

// present reports whether the item carries a payload that differs from the
// zero probe of its kind.
func (i Item) present() bool {
	switch i.kind {
	case KindOptions:
		return i.options != 0
	case KindTargetCache:
		return i.cache != nil
	case KindDownloader:
		return i.downloader != nil
	case KindTransition:
		// A "none" kind is absent whatever its duration.
		return i.transition.Kind != TransitionNone
	case KindDownloadPriority, KindScaleFactor:
		return i.number != 0
	case KindCallbackQueue:
		return i.executor != nil
	}
	return false
}

// String renders the item for logs and the CLI.
func (i Item) String() string {
	switch i.kind {
	case KindOptions:
		return fmt.Sprintf("%s(%s)", i.kind, i.options)
	case KindTargetCache:
		return fmt.Sprintf("%s(%s)", i.kind, handleName(i.cache))
	case KindDownloader:
		return fmt.Sprintf("%s(%s)", i.kind, handleName(i.downloader))
	case KindTransition:
		return fmt.Sprintf("%s(%s)", i.kind, i.transition)
	case KindDownloadPriority, KindScaleFactor:
		return fmt.Sprintf("%s(%g)", i.kind, i.number)
	case KindCallbackQueue:
		if i.executor == nil {
			return fmt.Sprintf("%s(nil)", i.kind)
		}
		return fmt.Sprintf("%s(%T)", i.kind, i.executor)
	}
	return i.kind.String()
}

func handleName(h interface{ Name() string }) string {
	if h == nil {
		return "nil"
	}
	return h.Name()
}
