package prompt

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Watcher polls a [Store]'s template directory and reloads the store when
// the contents of its template files change.
type Watcher struct {
	store    *Store
	interval time.Duration

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// only touched by the polling goroutine after construction
	lastStamp dirStamp
	lastHash  [sha256.Size]byte
}

// dirStamp is a cheap fingerprint used to skip hashing unchanged
// directories.
type dirStamp struct {
	files  int
	newest time.Time
	size   int64
}

// NewWatcher starts polling store's directory every interval. A
// non-positive interval defaults to 5 seconds.
func NewWatcher(store *Store, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	w := &Watcher{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
	w.lastStamp, w.lastHash, _ = w.fingerprint(true)

	w.wg.Add(1)
	go w.poll()
	return w
}

// Stop stops polling and waits for the polling goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *Watcher) poll() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	stamp, _, err := w.fingerprint(false)
	if err != nil {
		slog.Warn("prompt watcher: cannot stat template dir", "dir", w.store.Dir(), "err", err)
		return
	}
	if stamp == w.lastStamp {
		return
	}

	stamp, hash, err := w.fingerprint(true)
	if err != nil {
		slog.Warn("prompt watcher: cannot read template dir", "dir", w.store.Dir(), "err", err)
		return
	}
	w.lastStamp = stamp
	if hash == w.lastHash {
		return
	}
	w.lastHash = hash

	if _, err := w.store.Reload(); err != nil {
		slog.Warn("prompt watcher: reload failed, keeping previous templates", "err", err)
		return
	}
	slog.Info("prompt watcher: templates reloaded", "dir", w.store.Dir())
}

// fingerprint stats the template files in the directory and, when withHash
// is set, hashes their names and contents in name order.
func (w *Watcher) fingerprint(withHash bool) (dirStamp, [sha256.Size]byte, error) {
	var (
		stamp dirStamp
		sum   [sha256.Size]byte
	)
	entries, err := os.ReadDir(w.store.Dir())
	if err != nil {
		return stamp, sum, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return stamp, sum, err
		}
		stamp.files++
		stamp.size += info.Size()
		if info.ModTime().After(stamp.newest) {
			stamp.newest = info.ModTime()
		}
		names = append(names, e.Name())
	}
	if !withHash {
		return stamp, sum, nil
	}

	sort.Strings(names)
	h := sha256.New()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(w.store.Dir(), name))
		if err != nil {
			return stamp, sum, err
		}
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}
	copy(sum[:], h.Sum(nil))
	return stamp, sum, nil
}
