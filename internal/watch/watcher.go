// Package watch follows the socket directory and reports editor instances
// appearing and disappearing for a working directory.
package watch

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/sidekick-ai/sidekick/internal/discovery"
	"github.com/sidekick-ai/sidekick/internal/event"
)

// Watcher monitors a socket directory for instance sockets scoped to one
// working directory and publishes instance events on the bus.
type Watcher struct {
	watcher   *fsnotify.Watcher
	socketDir string
	hash      string
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	mu        sync.Mutex
}

// NewWatcher creates a watcher for instances of workDir under socketDir.
func NewWatcher(socketDir, workDir string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(socketDir); err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		watcher:   w,
		socketDir: socketDir,
		hash:      discovery.DirHash(workDir),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start begins watching. Safe to call once.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
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
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Debug().Err(err).Msg("socket watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if !strings.HasPrefix(name, w.hash+"-") || !strings.HasSuffix(name, ".sock") {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		// Re-scan for the full parse rather than trusting the raw name.
		if inst, ok := w.lookup(ev.Name); ok {
			log.Debug().Str("socket", inst.Socket).Msg("instance appeared")
			event.Publish(event.InstanceAppeared, inst)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		log.Debug().Str("socket", ev.Name).Msg("instance removed")
		event.Publish(event.InstanceRemoved, discovery.Instance{Socket: ev.Name})
	}
}

// lookup finds the parsed instance for a socket path that just appeared.
func (w *Watcher) lookup(socket string) (discovery.Instance, bool) {
	for _, inst := range discovery.DiscoverByHash(w.socketDir, w.hash) {
		if inst.Socket == socket {
			return inst, true
		}
	}
	return discovery.Instance{}, false
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		w.watcher.Close()
		return
	}
	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
	w.started = false
}
