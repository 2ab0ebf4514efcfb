package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// Every watcher must have stopped its polling goroutine by the end of the
// package's tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStore_ReloadSwapsSnapshot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "movement.yaml", "prompt_template: \"v1 {user_command}\"\n")

	var (
		mu    sync.Mutex
		kinds []WarningKind
	)
	s, err := NewStore(dir, WithWarningHook(func(w LoadWarning) {
		mu.Lock()
		kinds = append(kinds, w.Kind)
		mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	old := s.Current()

	writeFile(t, dir, "movement.yaml", "prompt_template: \"v2 {user_command}\"\n")
	if _, err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if tpl, _ := old.Lookup(command.Movement); !strings.HasPrefix(tpl.Body, "v1") {
		t.Errorf("old snapshot changed: %q", tpl.Body)
	}
	if tpl, _ := s.Current().Lookup(command.Movement); !strings.HasPrefix(tpl.Body, "v2") {
		t.Errorf("current snapshot = %q, want v2", tpl.Body)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 || kinds[0] != WarnBuiltinBase {
		t.Errorf("warning hook kinds = %v, want two builtin-base warnings", kinds)
	}
}

func TestStore_ReloadKeepsSetWhenDirVanishes(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "prompts")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "base.yaml", baseYAML)

	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	before := s.Current()
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reload(); err == nil {
		t.Fatal("Reload: expected error")
	}
	if s.Current() != before {
		t.Error("Reload replaced the set after a failed load")
	}
}

func TestStaticStore(t *testing.T) {
	t.Parallel()
	set := NewSet()
	s := NewStaticStore(set)
	if _, err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if s.Current() != set {
		t.Error("static store swapped its set")
	}
	if _, ok := set.Lookup(command.Base); !ok {
		t.Error("NewSet did not add the built-in base template")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "movement.yaml", "prompt_template: \"v1 {user_command}\"\n")

	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	w := NewWatcher(s, 20*time.Millisecond)
	defer w.Stop()

	writeFile(t, dir, "movement.yaml", "prompt_template: \"version two {user_command}\"\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if tpl, ok := s.Current().Lookup(command.Movement); ok && strings.HasPrefix(tpl.Body, "version two") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not reload the changed template")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	w := NewWatcher(s, time.Hour)
	w.Stop()
	w.Stop()
}
