package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/glyphcmd/internal/prompt"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New("glyphcmd")

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decode(t, rec)
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Service != "glyphcmd" {
		t.Errorf("service = %q, want %q", body.Service, "glyphcmd")
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New("")
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(msg string) func(context.Context) error {
		return func(context.Context) error { return errors.New(msg) }
	}

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "templates", Check: ok},
				{Name: "inference", Check: ok},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"templates": "ok", "inference": "ok"},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "templates", Check: ok},
				{Name: "sessions", Check: fail("connection refused")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"templates": "ok", "sessions": "fail: connection refused"},
		},
		{
			name: "all fail",
			checkers: []Checker{
				{Name: "templates", Check: fail("no template set loaded")},
				{Name: "inference", Check: fail("all inference backends unavailable")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{
				"templates": "fail: no template set loaded",
				"inference": "fail: all inference backends unavailable",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := New("glyphcmd", tc.checkers...)
			req := httptest.NewRequest("GET", "/readyz", nil)
			rec := httptest.NewRecorder()
			h.Readyz(rec, req)

			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			body := decode(t, rec)
			if body.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tc.wantStatus)
			}
			for name, want := range tc.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %q = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New("glyphcmd",
		Checker{Name: "test", Check: func(_ context.Context) error { return nil }},
	)

	mux := http.NewServeMux()
	h.Register(mux)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New("glyphcmd",
		Checker{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestTemplatesCheck(t *testing.T) {
	t.Run("static store", func(t *testing.T) {
		store := prompt.NewStaticStore(prompt.NewSet())
		if err := Templates(store).Check(context.Background()); err != nil {
			t.Errorf("Check: %v", err)
		}
	})

	t.Run("directory without handlers", func(t *testing.T) {
		store, err := prompt.NewStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		if err := Templates(store).Check(context.Background()); err == nil {
			t.Error("expected failure for a directory with no handler templates")
		}
	})

	t.Run("directory with a handler", func(t *testing.T) {
		dir := t.TempDir()
		body := "category: movement\nprompt_template: |\n  Command: \"{user_command}\"\n"
		if err := os.WriteFile(filepath.Join(dir, "movement.yaml"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		store, err := prompt.NewStore(dir)
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		if err := Templates(store).Check(context.Background()); err != nil {
			t.Errorf("Check: %v", err)
		}
	})
}

func TestInferenceCheck(t *testing.T) {
	if err := Inference(func() bool { return true }).Check(context.Background()); err != nil {
		t.Errorf("available: %v", err)
	}
	if err := Inference(func() bool { return false }).Check(context.Background()); err == nil {
		t.Error("unavailable: expected error")
	}
}
