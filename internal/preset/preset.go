// Package preset loads named option lists from YAML.
//
// A preset is a sequence of single-key mappings, kept in file order so that
// first-match-wins resolution sees the entries exactly as written:
//
//	presets:
//	  avatar:
//	    - cache: avatars
//	    - priority: 0.8
//	    - transition: {kind: fade, duration: 250ms}
//	    - forceRefresh: true
package preset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ytget/thumbkit/internal/cache"
	"github.com/ytget/thumbkit/internal/options"
)

// DefaultTransitionDuration applies when a transition names no duration.
const DefaultTransitionDuration = 250 * time.Millisecond

// Entry keys
const (
	KeyOptions          = "options"
	KeyCache            = "cache"
	KeyDownloader       = "downloader"
	KeyTransition       = "transition"
	KeyPriority         = "priority"
	KeyForceRefresh     = "forceRefresh"
	KeyCacheMemoryOnly  = "cacheMemoryOnly"
	KeyBackgroundDecode = "backgroundDecode"
	KeyCallbackQueue    = "callbackQueue"
	KeyScale            = "scale"
)

// Callback queue names
const (
	QueueMain   = "main"
	QueueInline = "inline"
)

// ErrUnknownPreset is returned by Build for names missing from the file.
var ErrUnknownPreset = errors.New("unknown preset")

var knownKeys = map[string]bool{
	KeyOptions:          true,
	KeyCache:            true,
	KeyDownloader:       true,
	KeyTransition:       true,
	KeyPriority:         true,
	KeyForceRefresh:     true,
	KeyCacheMemoryOnly:  true,
	KeyBackgroundDecode: true,
	KeyCallbackQueue:    true,
	KeyScale:            true,
}

type entry struct {
	key   string
	value *yaml.Node
}

// File is a parsed preset document.
type File struct {
	presets map[string][]entry
}

// Deps supplies the named collaborators presets may refer to.
type Deps struct {
	Caches      *cache.Registry
	Downloaders map[string]options.Downloader
	Contexts    options.ContextProvider
}

type document struct {
	Presets map[string][]yaml.Node `yaml:"presets"`
}

// Load parses a preset document and checks the shape of every entry.
func Load(r io.Reader) (*File, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{presets: map[string][]entry{}}, nil
		}
		return nil, fmt.Errorf("decode presets: %w", err)
	}

	f := &File{presets: make(map[string][]entry, len(doc.Presets))}
	for name, nodes := range doc.Presets {
		entries := make([]entry, 0, len(nodes))
		for i := range nodes {
			e, err := parseEntry(&nodes[i])
			if err != nil {
				return nil, fmt.Errorf("preset %s entry %d: %w", name, i, err)
			}
			entries = append(entries, e)
		}
		f.presets[name] = entries
	}
	return f, nil
}

// LoadFile reads presets from path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open presets: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

func parseEntry(node *yaml.Node) (entry, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return entry{}, fmt.Errorf("line %d: expected a single-key mapping", node.Line)
	}
	key := node.Content[0].Value
	if !knownKeys[key] {
		return entry{}, fmt.Errorf("line %d: unknown key %q", node.Line, key)
	}
	return entry{key: key, value: node.Content[1]}, nil
}

// Names returns the preset names sorted alphabetically
func (f *File) Names() []string {
	names := make([]string, 0, len(f.presets))
	for name := range f.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build converts the named preset into an options list.
func (f *File) Build(name string, deps Deps) (options.List, error) {
	entries, ok := f.presets[name]
	if !ok {
		return options.List{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}

	items := make([]options.Item, 0, len(entries))
	for i, e := range entries {
		item, keep, err := e.build(deps)
		if err != nil {
			return options.List{}, fmt.Errorf("preset %s entry %d (%s): %w", name, i, e.key, err)
		}
		if keep {
			items = append(items, item)
		}
	}
	return options.NewList(items...), nil
}

// build returns the item for e; keep is false for flags set to false.
func (e entry) build(deps Deps) (item options.Item, keep bool, err error) {
	null := e.value.Tag == "!!null"

	switch e.key {
	case KeyOptions:
		var names []string
		if err := e.value.Decode(&names); err != nil {
			return item, false, err
		}
		var set options.OptionSet
		for _, n := range names {
			bit, err := options.ParseOption(n)
			if err != nil {
				return item, false, err
			}
			set = set.With(bit)
		}
		return options.WithOptions(set), true, nil

	case KeyCache:
		if null {
			return options.TargetCache(nil), true, nil
		}
		if deps.Caches == nil {
			return item, false, errors.New("no cache registry configured")
		}
		h, err := deps.Caches.Register(e.value.Value)
		if err != nil {
			return item, false, err
		}
		return options.TargetCache(h), true, nil

	case KeyDownloader:
		if null {
			return options.WithDownloader(nil), true, nil
		}
		d, ok := deps.Downloaders[e.value.Value]
		if !ok {
			return item, false, fmt.Errorf("unknown downloader %q", e.value.Value)
		}
		return options.WithDownloader(d), true, nil

	case KeyTransition:
		t, err := decodeTransition(e.value)
		if err != nil {
			return item, false, err
		}
		return options.WithTransition(t), true, nil

	case KeyPriority, KeyScale:
		var v float64
		if err := e.value.Decode(&v); err != nil {
			return item, false, err
		}
		if e.key == KeyPriority {
			return options.DownloadPriority(v), true, nil
		}
		return options.ScaleFactor(v), true, nil

	case KeyForceRefresh, KeyCacheMemoryOnly, KeyBackgroundDecode:
		var on bool
		if err := e.value.Decode(&on); err != nil {
			return item, false, err
		}
		switch e.key {
		case KeyForceRefresh:
			item = options.ForceRefresh()
		case KeyCacheMemoryOnly:
			item = options.CacheMemoryOnly()
		default:
			item = options.BackgroundDecode()
		}
		return item, on, nil

	case KeyCallbackQueue:
		if null {
			return options.CallbackQueue(nil), true, nil
		}
		switch strings.ToLower(e.value.Value) {
		case QueueMain:
			if deps.Contexts == nil {
				return options.CallbackQueue(nil), true, nil
			}
			return options.CallbackQueue(deps.Contexts.MainContext()), true, nil
		case QueueInline:
			return options.CallbackQueue(options.Inline), true, nil
		}
		return item, false, fmt.Errorf("unknown callback queue %q", e.value.Value)
	}

	return item, false, fmt.Errorf("unknown key %q", e.key)
}

type transitionDoc struct {
	Kind     string `yaml:"kind"`
	Duration string `yaml:"duration"`
}

func decodeTransition(node *yaml.Node) (options.Transition, error) {
	var doc transitionDoc
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return options.NoTransition, nil
		}
		doc.Kind = node.Value
	case yaml.MappingNode:
		if err := node.Decode(&doc); err != nil {
			return options.NoTransition, err
		}
	default:
		return options.NoTransition, fmt.Errorf("line %d: expected a name or mapping", node.Line)
	}

	kind, err := options.ParseTransitionKind(doc.Kind)
	if err != nil {
		return options.NoTransition, err
	}
	if kind == options.TransitionNone {
		return options.NoTransition, nil
	}

	duration := DefaultTransitionDuration
	if doc.Duration != "" {
		duration, err = time.ParseDuration(doc.Duration)
		if err != nil {
			return options.NoTransition, fmt.Errorf("transition duration: %w", err)
		}
	}
	return options.Transition{Kind: kind, Duration: duration}, nil
}
