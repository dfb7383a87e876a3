package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string, attempts int) *Client {
	t.Helper()
	client := NewClient(Config{
		BaseURL:     baseURL,
		Dir:         t.TempDir(),
		MaxAttempts: attempts,
		Timeout:     5 * time.Second,
	}, nil)
	client.backoff = func(int) time.Duration { return time.Millisecond }
	return client
}

func TestFetchAllDownloadsFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content of " + r.URL.Path))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1)
	results, err := client.FetchAll(context.Background(), []string{"mdrfoithru2023.zip", "foitext.zip"})
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	for _, result := range results {
		if result.Err != nil {
			t.Fatalf("%s failed: %v", result.Name, result.Err)
		}
		content, err := os.ReadFile(result.Path)
		if err != nil {
			t.Fatalf("read %s: %v", result.Path, err)
		}
		if string(content) != "content of /"+result.Name {
			t.Fatalf("content = %q", content)
		}
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	results, err := client.FetchAll(context.Background(), []string{"patient.zip"})
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("result: %v", results[0].Err)
	}
	if results[0].Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", results[0].Attempts)
	}
}

func TestFetchMarksFileFailedAfterExhaustingAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)
	results, err := client.FetchAll(context.Background(), []string{"mdrfoi.zip"})
	if err != nil {
		t.Fatalf("fetch all must not fail the run: %v", err)
	}
	if results[0].Err == nil {
		t.Fatal("expected a download failure")
	}
	if results[0].Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", results[0].Attempts)
	}
}

func TestDirSourceListsAndOpensPlainFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foitext.txt"), []byte("1|2|3"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	source := NewDirSource(dir)
	names, err := source.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 1 || names[0] != "foitext.txt" {
		t.Fatalf("names = %v", names)
	}

	reader, err := source.Open(context.Background(), "foitext.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()
	content := make([]byte, 5)
	if _, err := reader.Read(content); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "1|2|3" {
		t.Fatalf("content = %q", content)
	}
}
