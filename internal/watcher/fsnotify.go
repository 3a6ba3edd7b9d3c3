package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"filer/internal/logging"
)

// FSNotifySource watches real directories with fsnotify. Recursive watches
// add every existing subdirectory up front and new ones as they appear.
type FSNotifySource struct {
	Logger *slog.Logger
}

// Watch starts an fsnotify watcher on root.
func (s FSNotifySource) Watch(root string, recursive bool) (Subscription, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	sub := &fsSubscription{
		watcher:   w,
		recursive: recursive,
		events:    make(chan string, 128),
		errs:      make(chan error, 8),
		done:      make(chan struct{}),
		logger:    logging.NewComponentLogger(s.Logger, "fsnotify"),
	}
	if err := sub.add(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	go sub.run()
	return sub, nil
}

type fsSubscription struct {
	watcher   *fsnotify.Watcher
	recursive bool
	events    chan string
	errs      chan error
	done      chan struct{}
	once      sync.Once
	logger    *slog.Logger
}

func (s *fsSubscription) Events() <-chan string { return s.events }

func (s *fsSubscription) Errors() <-chan error { return s.errs }

func (s *fsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
	})
	return err
}

func (s *fsSubscription) add(root string) error {
	if err := s.watcher.Add(root); err != nil {
		return fmt.Errorf("watch %q: %w", root, err)
	}
	if !s.recursive {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root || !d.IsDir() {
			return nil
		}
		if watchErr := s.watcher.Add(path); watchErr != nil {
			logging.WarnWithContext(s.logger, "subdirectory not watched", "watch_subdir_failed",
				logging.Path(path),
				logging.Error(watchErr),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches or exclude the subtree"),
				logging.String(logging.FieldImpact, "files in this subdirectory are not detected"),
			)
		}
		return nil
	})
}

func (s *fsSubscription) run() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				s.report(fmt.Errorf("fsnotify event stream closed"))
				return
			}
			s.handle(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.report(err)
		}
	}
}

func (s *fsSubscription) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if event.Has(fsnotify.Create) && s.recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := s.add(event.Name); err != nil {
				s.report(err)
				return
			}
			s.emitExisting(event.Name)
			return
		}
	}
	select {
	case s.events <- event.Name:
	case <-s.done:
	}
}

// emitExisting reports files already inside a directory that was moved or
// copied into the tree; their creation produced no event of their own.
func (s *fsSubscription) emitExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		select {
		case s.events <- path:
			return nil
		case <-s.done:
			return filepath.SkipAll
		}
	})
}

func (s *fsSubscription) report(err error) {
	select {
	case s.errs <- err:
	case <-s.done:
	}
}
