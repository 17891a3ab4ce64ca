// Package options resolves an ordered list of tagged loader options into one
// effective value per axis: target cache, downloader, transition, download
// priority, callback queue, scale factor, nested option set and the boolean
// flags. The earliest item of a kind wins; an absent kind, or a kind carrying
// an empty payload, resolves to the axis default supplied by an Environment.
//
// The package is pure: resolution never mutates a List and never writes to
// the collaborators it reads defaults from.
package options
