package platform

import (
	"fyne.io/fyne/v2"

	"github.com/ytget/thumbkit/internal/options"
)

// ScaleOverrider reports a user-forced scale; values <= 0 mean no override.
type ScaleOverrider interface {
	GetScaleOverride() float64
}

// Display reports the native scale of the app's display.
type Display struct {
	app      fyne.App
	override ScaleOverrider
}

// NewDisplay creates a display scaler. override may be nil.
func NewDisplay(app fyne.App, override ScaleOverrider) *Display {
	return &Display{app: app, override: override}
}

// NativeScale returns, in order of preference: the configured override, the
// scale of the first open window, the app scale setting, or 1.
func (d *Display) NativeScale() float64 {
	if d.override != nil {
		if scale := d.override.GetScaleOverride(); scale > 0 {
			return scale
		}
	}
	if d.app == nil {
		return options.DefaultScale
	}
	if windows := d.app.Driver().AllWindows(); len(windows) > 0 {
		if scale := windows[0].Canvas().Scale(); scale > 0 {
			return float64(scale)
		}
	}
	if scale := d.app.Settings().Scale(); scale > 0 {
		return float64(scale)
	}
	return options.DefaultScale
}
