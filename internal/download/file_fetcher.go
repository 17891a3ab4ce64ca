package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// ErrUnsupportedScheme is returned by FileFetcher for non-local URLs.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// FileFetcher reads images from the local filesystem. It accepts file://
// URLs and absolute paths; remote schemes are refused.
type FileFetcher struct{}

// Fetch reads the file named by req.URL
func (FileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := localPath(req.URL)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return data, nil
}

func localPath(raw string) (string, error) {
	if filepath.IsAbs(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("file url has no path: %s", raw)
	}
	return filepath.FromSlash(u.Path), nil
}
