package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the user config when the file changes on disk. Files that
// fail to parse or validate are logged and skipped; the last good config
// stays in effect.
type Watcher struct {
	path     string
	log      *zap.Logger
	onChange func(Config)
	debounce time.Duration
	fw       *fsnotify.Watcher
}

func NewWatcher(path string, log *zap.Logger, onChange func(Config)) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	// Watch the directory: SaveAtomic and most editors replace the file by
	// rename, which drops a watch placed on the file itself.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     abs,
		log:      log,
		onChange: onChange,
		debounce: 250 * time.Millisecond,
		fw:       fw,
	}, nil
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fw.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", zap.Error(err))
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload skipped", zap.String("path", w.path), zap.Error(err))
		return
	}
	OverlayEnv(&cfg, os.Getenv)
	cfg, vr := NormalizeAndValidate(cfg)
	if !vr.OK() {
		w.log.Warn("config reload rejected", zap.String("path", w.path), zap.Strings("errors", vr.Errors))
		return
	}
	w.log.Info("config reloaded", zap.String("path", w.path), zap.Strings("warnings", vr.Warnings))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
