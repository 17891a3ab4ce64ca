package config

import (
	"strings"

	"fyne.io/fyne/v2"
)

// Settings keys for Fyne preferences
const (
	KeyMaxParallel      = "max_parallel_downloads"
	KeyDefaultCacheName = "default_cache_name"
	KeyScaleOverride    = "scale_override"
	KeyPresetFile       = "preset_file"
	KeyDefaultPreset    = "default_preset"
)

// Default values
const (
	DefaultMaxParallel   = 4
	DefaultCacheName     = "default"
	DefaultScaleOverride = 0.0
	DefaultPresetFile    = ""
	DefaultPresetName    = "default"
	MinParallel          = 1
	MaxParallel          = 16
	MaxScaleOverride     = 8.0
)

// Settings manages loader configuration
type Settings struct {
	app fyne.App
}

// NewSettings creates a new settings manager
func NewSettings(app fyne.App) *Settings {
	return &Settings{app: app}
}

// GetMaxParallelDownloads returns the maximum number of concurrent fetches
func (s *Settings) GetMaxParallelDownloads() int {
	value := s.app.Preferences().Int(KeyMaxParallel)
	if value <= 0 {
		s.SetMaxParallelDownloads(DefaultMaxParallel)
		return DefaultMaxParallel
	}
	return value
}

// SetMaxParallelDownloads sets the maximum number of concurrent fetches
func (s *Settings) SetMaxParallelDownloads(count int) {
	if count < MinParallel {
		count = MinParallel
	}
	if count > MaxParallel {
		count = MaxParallel
	}
	s.app.Preferences().SetInt(KeyMaxParallel, count)
}

// GetDefaultCacheName returns the name of the process default cache
func (s *Settings) GetDefaultCacheName() string {
	name := s.app.Preferences().String(KeyDefaultCacheName)
	if name == "" {
		s.SetDefaultCacheName(DefaultCacheName)
		return DefaultCacheName
	}
	return name
}

// SetDefaultCacheName sets the name of the process default cache
func (s *Settings) SetDefaultCacheName(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultCacheName
	}
	s.app.Preferences().SetString(KeyDefaultCacheName, name)
}

// GetScaleOverride returns the forced display scale, 0 when the display
// reports its own
func (s *Settings) GetScaleOverride() float64 {
	return s.app.Preferences().FloatWithFallback(KeyScaleOverride, DefaultScaleOverride)
}

// SetScaleOverride forces the display scale. Values <= 0 clear the override.
func (s *Settings) SetScaleOverride(scale float64) {
	if scale < 0 {
		scale = 0
	}
	if scale > MaxScaleOverride {
		scale = MaxScaleOverride
	}
	s.app.Preferences().SetFloat(KeyScaleOverride, scale)
}

// GetPresetFile returns the path of the preset file, empty when unset
func (s *Settings) GetPresetFile() string {
	return s.app.Preferences().StringWithFallback(KeyPresetFile, DefaultPresetFile)
}

// SetPresetFile sets the path of the preset file
func (s *Settings) SetPresetFile(path string) {
	s.app.Preferences().SetString(KeyPresetFile, strings.TrimSpace(path))
}

// GetDefaultPreset returns the preset used when none is requested
func (s *Settings) GetDefaultPreset() string {
	name := s.app.Preferences().String(KeyDefaultPreset)
	if name == "" {
		return DefaultPresetName
	}
	return name
}

// SetDefaultPreset sets the preset used when none is requested
func (s *Settings) SetDefaultPreset(name string) {
	s.app.Preferences().SetString(KeyDefaultPreset, strings.TrimSpace(name))
}
