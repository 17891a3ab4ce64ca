package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ytget/thumbkit/internal/platform"
)

// EntryExtension is appended to the file name of every disk entry.
const EntryExtension = ".img"

// Retrieve returns the data stored under key. The memory tier is consulted
// first; the disk tier only when memoryOnly is false. Disk hits are promoted
// to memory.
func (h *Handle) Retrieve(key string, memoryOnly bool) ([]byte, bool) {
	h.mu.RLock()
	data, ok := h.mem[key]
	dir := h.dir
	h.mu.RUnlock()

	if ok {
		return data, true
	}
	if memoryOnly || dir == "" {
		return nil, false
	}

	data, err := os.ReadFile(entryPath(dir, key))
	if err != nil {
		return nil, false
	}

	h.mu.Lock()
	h.mem[key] = data
	h.mu.Unlock()
	return data, true
}

// Store saves data under key in memory and, unless memoryOnly is set, on disk.
func (h *Handle) Store(key string, data []byte, memoryOnly bool) error {
	if key == "" {
		return errors.New("cache key is empty")
	}

	h.mu.Lock()
	h.mem[key] = data
	dir := h.dir
	h.mu.Unlock()

	if memoryOnly || dir == "" {
		return nil
	}
	if err := platform.WriteFileAtomic(entryPath(dir, key), data); err != nil {
		return fmt.Errorf("cache %s: %w", h.name, err)
	}
	return nil
}

// Remove drops key from both tiers.
func (h *Handle) Remove(key string) error {
	h.mu.Lock()
	delete(h.mem, key)
	dir := h.dir
	h.mu.Unlock()

	if dir == "" {
		return nil
	}
	if err := os.Remove(entryPath(dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache %s: %w", h.name, err)
	}
	return nil
}

// ClearMemory empties the memory tier only
func (h *Handle) ClearMemory() {
	h.mu.Lock()
	h.mem = make(map[string][]byte)
	h.mu.Unlock()
}

// MemoryLen returns the number of entries held in memory
func (h *Handle) MemoryLen() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.mem)
}

// Dir returns the disk directory, empty when the disk tier is off
func (h *Handle) Dir() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dir
}

func (h *Handle) setDir(dir string) {
	h.mu.Lock()
	h.dir = dir
	h.mu.Unlock()
}

func entryPath(dir, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(dir, hex.EncodeToString(sum[:])+EntryExtension)
}
