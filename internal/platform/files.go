package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Operating system constants
const (
	OSDarwin  = "darwin"
	OSWindows = "windows"
	OSLinux   = "linux"
	OSAndroid = "android"
)

// File permissions
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// AndroidCacheRoot is used on Android, where os.UserCacheDir is not reliable.
const AndroidCacheRoot = "/data/local/tmp"

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// IsAndroid reports whether the process runs on Android
func IsAndroid() bool {
	// Fyne Android apps run as libdist.so
	return runtime.GOOS == OSAndroid ||
		os.Getenv("ANDROID_DATA") != "" ||
		os.Getenv("ANDROID_ROOT") != "" ||
		filepath.Base(os.Args[0]) == "libdist.so"
}

// GetCacheRoot returns the per-user directory that disk caches of appName
// live under
func GetCacheRoot(appName string) (string, error) {
	if appName == "" {
		return "", fmt.Errorf("app name is empty")
	}

	if IsAndroid() {
		return filepath.Join(AndroidCacheRoot, appName), nil
	}

	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := CreateDirectoryIfNotExists(dir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, DefaultFilePermissions); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}
