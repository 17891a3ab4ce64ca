// thumbkit resolves a named option preset against the current environment
// and prints the effective value of every axis: target cache, downloader,
// transition, priority, flags, callback queue and scale factor.
//
// With --fetch the resolved options drive real fetches of local files
// through the download service, and each result reports whether it came
// from the cache.
//
// Presets come from a YAML file (see internal/preset). The file, the default
// preset, the default cache name and a display scale override are remembered
// as Fyne preferences when --save is given.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ytget/thumbkit/internal/cache"
	"github.com/ytget/thumbkit/internal/config"
	"github.com/ytget/thumbkit/internal/download"
	"github.com/ytget/thumbkit/internal/logging"
	"github.com/ytget/thumbkit/internal/model"
	"github.com/ytget/thumbkit/internal/options"
	"github.com/ytget/thumbkit/internal/platform"
	"github.com/ytget/thumbkit/internal/preset"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppID   = "com.ytget.thumbkit"
	AppName = "thumbkit"

	DefaultDownloaderName = "default"
	DefaultFetchTimeout   = 30 * time.Second

	fetchPollInterval = 10 * time.Millisecond
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("%s v%s\n", AppName, version)
		return
	}

	if err := run(os.Args[1:], os.Stdout, app.NewWithID(AppID)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type scaleOverride float64

func (s scaleOverride) GetScaleOverride() float64 { return float64(s) }

func run(args []string, out io.Writer, fyneApp fyne.App) error {
	flagSet := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	flagSet.SetOutput(out)
	presetFile := flagSet.String("presets", "", "path to the preset YAML file (default: saved preference)")
	presetName := flagSet.StringP("preset", "p", "", "preset to resolve (default: saved preference)")
	cacheName := flagSet.String("cache-name", "", "name of the default cache (default: saved preference)")
	cacheDir := flagSet.String("cache-dir", "", "root of the disk cache tier (default: user cache directory)")
	noDisk := flagSet.Bool("no-disk", false, "keep caches in memory only")
	scale := flagSet.Float64("scale", 0, "force the display scale; 0 keeps the saved override")
	logLevel := flagSet.String("log-level", logging.DefaultLevel, "log level: debug, info, warn, error")
	save := flagSet.Bool("save", false, "remember --presets, --preset, --cache-name and --scale")
	listOnly := flagSet.BoolP("list", "l", false, "list preset names and exit")
	fetchURLs := flagSet.StringArray("fetch", nil, "fetch a local file (path or file:// URL) with the resolved options; repeatable")
	timeout := flagSet.Duration("timeout", DefaultFetchTimeout, "how long to wait for --fetch results")
	help := flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *help {
		fmt.Fprintf(out, "Usage: %s [flags]\n\n%s", AppName, flagSet.FlagUsages())
		return nil
	}

	logger, err := logging.New(logging.Config{Level: *logLevel})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	settings := config.NewSettings(fyneApp)
	if *save {
		saveFlags(settings, *presetFile, *presetName, *cacheName, *scale)
		logger.Info("preferences saved")
	}

	file := firstNonEmpty(*presetFile, settings.GetPresetFile())
	if file == "" {
		return errors.New("no preset file: pass --presets or save one with --save")
	}
	presets, err := preset.LoadFile(file)
	if err != nil {
		return err
	}

	if *listOnly {
		for _, name := range presets.Names() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	caches := cache.NewRegistry(firstNonEmpty(*cacheName, settings.GetDefaultCacheName()))
	if !*noDisk {
		root := *cacheDir
		if root == "" {
			if root, err = platform.GetCacheRoot(AppName); err != nil {
				logger.Warn("disk cache disabled", zap.Error(err))
			}
		}
		caches.SetDiskRoot(root)
		logger.Debug("disk cache", zap.String("root", root))
	}

	var override platform.ScaleOverrider = settings
	if *scale > 0 {
		override = scaleOverride(*scale)
	}

	env := options.Environment{
		Caches:   caches,
		Contexts: platform.MainContexts{},
		Display:  platform.NewDisplay(fyneApp, override),
	}
	downloader := download.NewService(DefaultDownloaderName, download.FileFetcher{},
		settings.GetMaxParallelDownloads(), env, logger)
	env.Downloaders = downloader

	name := firstNonEmpty(*presetName, settings.GetDefaultPreset())
	list, err := presets.Build(name, preset.Deps{
		Caches:      caches,
		Downloaders: map[string]options.Downloader{DefaultDownloaderName: downloader},
		Contexts:    env.Contexts,
	})
	if err != nil {
		return err
	}

	logger.Debug("resolving preset",
		zap.String("preset", name),
		zap.String("file", file),
		zap.Int("items", list.Len()),
	)

	fmt.Fprintf(out, "preset: %s\nitems: %s\n", name, list)
	fmt.Fprint(out, options.Resolve(env, list))

	if len(*fetchURLs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return fetchAll(ctx, out, downloader, list, *fetchURLs)
}

// fetchAll submits every url and prints one line per finished task. Results
// are collected by polling so no callback has to reach the Fyne main thread,
// which is not running in the CLI.
func fetchAll(ctx context.Context, out io.Writer, scheduler download.Scheduler, list options.List, urls []string) error {
	ids := make([]string, 0, len(urls))
	failed := 0
	for _, u := range urls {
		task, err := scheduler.Submit(u, list)
		if err != nil {
			fmt.Fprintf(out, "fetch %s: %v\n", u, err)
			failed++
			continue
		}
		ids = append(ids, task.ID)
	}

	ticker := time.NewTicker(fetchPollInterval)
	defer ticker.Stop()

	for _, id := range ids {
		task, err := waitFinished(ctx, ticker, scheduler, id)
		if err != nil {
			_ = scheduler.CancelTask(id)
			return err
		}

		switch task.Status {
		case model.TaskStatusCompleted:
			source := "remote"
			if task.FromCache {
				source = "cache"
			}
			fmt.Fprintf(out, "fetch %s: %s from %s (%s, %d bytes)\n", task.URL, task.Status, source, task.CacheKey(), task.Size)
		default:
			fmt.Fprintf(out, "fetch %s: %s %s\n", task.URL, task.Status, task.LastError)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d fetches failed", failed, len(urls))
	}
	return nil
}

func waitFinished(ctx context.Context, ticker *time.Ticker, scheduler download.Scheduler, id string) (*model.FetchTask, error) {
	for {
		task, ok := scheduler.GetTask(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", download.ErrTaskNotFound, id)
		}
		if task.Status.IsFinished() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", task.URL, ctx.Err())
		case <-ticker.C:
		}
	}
}

func saveFlags(settings *config.Settings, presetFile, presetName, cacheName string, scale float64) {
	if presetFile != "" {
		settings.SetPresetFile(presetFile)
	}
	if presetName != "" {
		settings.SetDefaultPreset(presetName)
	}
	if cacheName != "" {
		settings.SetDefaultCacheName(cacheName)
	}
	if scale > 0 {
		settings.SetScaleOverride(scale)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
