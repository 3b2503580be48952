// Package signals provides file-based runtime control for a running
// hive. Dropping control files into the .hive/signals directory stops
// the orchestrator or pauses and resumes individual agents, so
// operators can intervene without attaching to the process.
package signals

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Action is an agent-directed control request parsed from a signal
// file name.
type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionRetire Action = "retire"
)

// Watcher monitors the signals directory. A global "stop" file halts
// the hive; "pause-<agent>", "resume-<agent>" and "retire-<agent>"
// files are dispatched to the OnAgentSignal callback.
type Watcher struct {
	dir     string
	onAgent func(agentID string, action Action)

	mu         sync.RWMutex
	stopSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates a watcher rooted at baseDir/.hive/signals. onAgent
// receives per-agent control requests from the watch goroutine; it may
// be nil. If the filesystem watcher cannot be started the Watcher
// still works through the Stat fallback in ShouldStop.
func New(baseDir string, onAgent func(agentID string, action Action)) (*Watcher, error) {
	dir := filepath.Join(baseDir, ".hive", "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:     dir,
		onAgent: onAgent,
		done:    make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return w, nil
	}
	w.watcher = fsw

	go w.watch()
	return w, nil
}

// Dir returns the signals directory path.
func (w *Watcher) Dir() string {
	return w.dir
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 && event.Op&fsnotify.Write == 0 {
				continue
			}
			w.handle(filepath.Base(event.Name))
		case <-w.watcher.Errors:
			// Keep watching; ShouldStop's Stat fallback covers misses.
		}
	}
}

func (w *Watcher) handle(name string) {
	if name == "stop" {
		w.mu.Lock()
		w.stopSignal = true
		w.mu.Unlock()
		return
	}

	for _, action := range []Action{ActionPause, ActionResume, ActionRetire} {
		prefix := string(action) + "-"
		if agentID := strings.TrimPrefix(name, prefix); agentID != name && agentID != "" {
			if w.onAgent != nil {
				w.onAgent(agentID, action)
			}
			// Consume the file so the same request does not refire.
			os.Remove(filepath.Join(w.dir, name))
			return
		}
	}
}

// ShouldStop reports whether a stop has been requested. It also checks
// the stop file directly in case the watcher missed the event.
func (w *Watcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(w.dir, "stop")); err == nil {
		w.mu.Lock()
		w.stopSignal = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopSignal
}

// RequestStop creates the stop signal file.
func (w *Watcher) RequestStop() error {
	return w.write("stop")
}

// RequestAgent creates a per-agent signal file.
func (w *Watcher) RequestAgent(agentID string, action Action) error {
	return w.write(string(action) + "-" + agentID)
}

func (w *Watcher) write(name string) error {
	path := filepath.Join(w.dir, name)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes all signal files and resets the stop state.
func (w *Watcher) Clear() {
	w.mu.Lock()
	w.stopSignal = false
	w.mu.Unlock()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		os.Remove(filepath.Join(w.dir, e.Name()))
	}
}

// Close shuts down the watch goroutine.
func (w *Watcher) Close() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
}
