// Package cache provides named image cache handles and the registry that
// hands out the process default. Every handle keeps an in-memory tier and,
// once the registry has a disk root, a directory of files keyed by the
// SHA-256 of the cache key.
package cache

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ytget/thumbkit/internal/options"
)

// DefaultName is the name of the default cache when none is configured.
const DefaultName = "default"

var (
	// ErrNotFound is returned by Lookup for unregistered names.
	ErrNotFound = errors.New("cache not found")
	// ErrInvalidName is returned by Register for names that cannot be a
	// single directory under the disk root.
	ErrInvalidName = errors.New("invalid cache name")
)

// Handle identifies one cache.
type Handle struct {
	id   uuid.UUID
	name string

	mu  sync.RWMutex
	mem map[string][]byte
	dir string
}

// New creates a handle with a fresh time-ordered id.
func New(name string) *Handle {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Handle{id: id, name: name, mem: make(map[string][]byte)}
}

// Name returns the cache name
func (h *Handle) Name() string {
	return h.name
}

// ID returns the unique id of the handle
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// String returns "name (id)"
func (h *Handle) String() string {
	return fmt.Sprintf("%s (%s)", h.name, h.id)
}

// Registry maps names to handles. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	handles     map[string]*Handle
	defaultName string
	root        string
}

// NewRegistry creates a registry whose default cache is called defaultName.
// The default handle is registered eagerly.
func NewRegistry(defaultName string) *Registry {
	defaultName = strings.TrimSpace(defaultName)
	if ValidateName(defaultName) != nil {
		defaultName = DefaultName
	}
	r := &Registry{
		handles:     make(map[string]*Handle),
		defaultName: defaultName,
	}
	r.handles[defaultName] = New(defaultName)
	return r
}

// Default returns the default cache handle
func (r *Registry) Default() *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[r.defaultName]
}

// DefaultCache implements options.CacheProvider.
func (r *Registry) DefaultCache() options.Cache {
	return r.Default()
}

// Register returns the handle called name, creating it on first use.
func (r *Registry) Register(name string) (*Handle, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, exists := r.handles[name]; exists {
		return h, nil
	}
	h := New(name)
	if r.root != "" {
		h.setDir(diskDir(r.root, name))
	}
	r.handles[name] = h
	return h, nil
}

// ValidateName rejects names that are empty, "." or "..", or that contain a
// path separator.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// diskDir returns the directory of name under root. Names are validated on
// registration; escaping covers characters some filesystems refuse.
func diskDir(root, name string) string {
	return filepath.Join(root, url.PathEscape(name))
}

// SetDiskRoot gives every handle, present and future, a disk tier under
// root/<name>. An empty root turns the disk tier off.
func (r *Registry) SetDiskRoot(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.root = root
	for name, h := range r.handles {
		if root == "" {
			h.setDir("")
			continue
		}
		h.setDir(diskDir(root, name))
	}
}

// Lookup returns the handle called name.
func (r *Registry) Lookup(name string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handles[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return h, nil
}

// Names returns the registered names sorted alphabetically
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
