// Package platform adapts the Fyne runtime and the host OS to the loader's
// default collaborators: the main-thread callback queue, the display scale and
// the on-disk cache location.
package platform
