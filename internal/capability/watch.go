package capability

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/weft-ai/weft/pkg/types"
)

// LoadFunc reloads agent profiles from a config path.
type LoadFunc func(path string) (map[string]types.AgentConfig, error)

// Watcher hot-reloads capability profiles when the config file changes.
type Watcher struct {
	source  *Source
	path    string
	load    LoadFunc
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher watches the given config file. The containing directory is
// watched rather than the file itself so editors that replace the file on
// save are still observed.
func NewWatcher(source *Source, path string, load LoadFunc) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}

	watcher := &Watcher{
		source:  source,
		path:    path,
		load:    load,
		watcher: w,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			profiles, err := w.load(w.path)
			if err != nil {
				w.source.log.Warn().Err(err).Str("path", w.path).Msg("capability reload failed")
				continue
			}
			w.source.Update(profiles)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.source.log.Warn().Err(err).Msg("capability watcher error")
		}
	}
}

// Close stops watching. Snapshots already handed out remain valid.
func (w *Watcher) Close() error {
	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	return err
}
