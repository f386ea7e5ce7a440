package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"booknest/pkg/domain"
)

var envKeys = []string{
	"BOOKNEST_API_URL", "BOOKNEST_MEDIA_URL", "BOOKNEST_LOG_LEVEL",
	"BOOKNEST_STORAGE_DRIVER", "BOOKNEST_STORAGE_DIR", "BOOKNEST_STORAGE_KEY",
	"REDIS_ADDR", "REDIS_PASSWORD", "BOOKNEST_LOGIN_RATE_LIMIT_PER_MINUTE",
	"BOOKNEST_REQUEST_TIMEOUT", "BOOKNEST_PAGE_SIZE", "BOOKNEST_LANGUAGE",
}

type fakeServer struct {
	mu       sync.Mutex
	queries  []string
	logouts  int
	deleted  []string
	lastAuth string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lastAuth = r.Header.Get("Authorization")
	f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/api")
	switch {
	case path == "/auth/login/":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(domain.AuthResponse{
			Success: true,
			Token:   "tok-1",
			User:    &domain.User{ID: 1, Username: "alice", Email: body["email"]},
		})
	case path == "/auth/logout/":
		f.mu.Lock()
		f.logouts++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case path == "/books/search/":
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.RawQuery)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(domain.BookPage{
			Books: []domain.Book{{ID: 7, Title: "Dune", Author: "Frank Herbert", Year: 1965, Rating: 4.6}},
			Total: 1,
		})
	case strings.HasPrefix(path, "/user/charts/") && r.Method == http.MethodDelete:
		f.mu.Lock()
		f.deleted = append(f.deleted, path)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func setup(t *testing.T) (*fakeServer, string) {
	t.Helper()
	for _, k := range envKeys {
		if _, ok := os.LookupEnv(k); ok {
			t.Setenv(k, "")
		}
	}
	fake := &fakeServer{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := "apiURL: " + srv.URL + "/api\n" +
		"storageDriver: file\n" +
		"storageDir: " + filepath.Join(dir, "state") + "\n" +
		"language: en\n" +
		"logLevel: error\n"
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return fake, path
}

func runCLI(t *testing.T, cfgPath, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", cfgPath}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestLoginPersistsAcrossRuns(t *testing.T) {
	fake, cfg := setup(t)

	code, out, errOut := runCLI(t, cfg, "", "login", "-email", "alice@example.com", "-password", "secret")
	if code != 0 {
		t.Fatalf("login exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "logged in as alice") {
		t.Fatalf("unexpected login output %q", out)
	}

	code, out, _ = runCLI(t, cfg, "", "whoami")
	if code != 0 || !strings.Contains(out, "alice <alice@example.com>") {
		t.Fatalf("whoami exit %d output %q", code, out)
	}

	code, out, _ = runCLI(t, cfg, "", "logout")
	if code != 0 || !strings.Contains(out, "logged out") {
		t.Fatalf("logout exit %d output %q", code, out)
	}
	fake.mu.Lock()
	logouts := fake.logouts
	fake.mu.Unlock()
	if logouts != 1 {
		t.Fatalf("expected one remote logout, got %d", logouts)
	}

	_, out, _ = runCLI(t, cfg, "", "whoami")
	if !strings.Contains(out, "not logged in") {
		t.Fatalf("expected logged out state, got %q", out)
	}
}

func TestLoginFailureReportsServerMessage(t *testing.T) {
	_, cfg := setup(t)

	code, _, errOut := runCLI(t, cfg, "wrong\n", "login", "-email", "alice@example.com")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errOut, "invalid credentials") {
		t.Fatalf("expected server message, got %q", errOut)
	}
}

func TestSearchSendsFiltersAndPrintsBooks(t *testing.T) {
	fake, cfg := setup(t)

	code, out, errOut := runCLI(t, cfg, "", "search", "-genre", "Fantasy, Sci-Fi", "-year-from", "1960", "dune")
	if code != 0 {
		t.Fatalf("search exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Books found: 1") || !strings.Contains(out, "Dune") {
		t.Fatalf("unexpected output %q", out)
	}
	if len(fake.queries) != 1 {
		t.Fatalf("expected one search request, got %d", len(fake.queries))
	}
	q := fake.queries[0]
	for _, want := range []string{"query=dune", "genres=Fantasy%2CSci-Fi", "year_from=1960", "page=1"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query %q missing %q", q, want)
		}
	}
}

func TestChartDeleteAsksForConfirmation(t *testing.T) {
	fake, cfg := setup(t)

	code, out, _ := runCLI(t, cfg, "n\n", "chart-delete", "5")
	if code != 0 {
		t.Fatalf("declined delete exit %d", code)
	}
	if strings.Contains(out, "deleted") || len(fake.deleted) != 0 {
		t.Fatalf("chart deleted without confirmation: %q", out)
	}

	code, out, _ = runCLI(t, cfg, "", "chart-delete", "-yes", "5")
	if code != 0 || !strings.Contains(out, "chart 5 deleted") {
		t.Fatalf("delete exit %d output %q", code, out)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "/user/charts/5/" {
		t.Fatalf("unexpected deletes %v", fake.deleted)
	}
}

func TestUsageErrors(t *testing.T) {
	_, cfg := setup(t)

	if code, _, _ := runCLI(t, cfg, ""); code != 2 {
		t.Fatalf("expected exit 2 without a command, got %d", code)
	}
	if code, _, errOut := runCLI(t, cfg, "", "frobnicate"); code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("unknown command: exit %d stderr %q", code, errOut)
	}
	code, _, errOut := runCLI(t, cfg, "", "book", "abc")
	if code != 2 || !strings.Contains(errOut, "usage: booknest book <id>") {
		t.Fatalf("bad id: exit %d stderr %q", code, errOut)
	}
}
