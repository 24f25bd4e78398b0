package dataset

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"marginperceptron/logging"
)

// Watcher reports dataset files that were written or replaced. Events for
// one file inside the debounce window are coalesced into a single callback.
type Watcher struct {
	fs       *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	onChange func(path string)
	logger   *logging.Logger
}

// NewWatcher watches the parent directories of paths so that files replaced
// by rename are still seen.
func NewWatcher(paths []string, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fsw,
		files:    make(map[string]bool, len(paths)),
		debounce: debounce,
		onChange: onChange,
		logger:   logging.GetLogger(logging.MODULE_DATASET),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run delivers change callbacks until ctx is done or the watcher is closed.
// Callbacks run on the calling goroutine, one at a time.
func (w *Watcher) Run(ctx context.Context) error {
	fire := make(chan string, len(w.files))
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if !w.files[name] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			w.schedule(ctx, name, timers, fire)

		case name := <-fire:
			delete(timers, name)
			w.logger.Infow("dataset changed", "path", name)
			w.onChange(name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("watch error", "error", err)
		}
	}
}

// schedule arms or extends the debounce timer of name. A timer that has
// already fired has its callback pending on fire, which covers this event.
func (w *Watcher) schedule(ctx context.Context, name string, timers map[string]*time.Timer, fire chan<- string) {
	if t, ok := timers[name]; ok {
		if t.Stop() {
			t.Reset(w.debounce)
		}
		return
	}
	timers[name] = time.AfterFunc(w.debounce, func() {
		select {
		case fire <- name:
		case <-ctx.Done():
		}
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
