package render

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirCache(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "alpha.jpg"), []byte("jpegbytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := NewDirCache(dir, 0)

	got, err := c.Render(context.Background(), Request{BrandID: "alpha"})
	if err != nil {
		t.Fatalf("Render(alpha): %v", err)
	}
	if want := base64.StdEncoding.EncodeToString([]byte("jpegbytes")); got != want {
		t.Fatalf("Render(alpha) = %q, want %q", got, want)
	}

	if _, err := c.Render(context.Background(), Request{BrandID: "beta"}); !errors.Is(err, ErrNoArtifact) {
		t.Fatalf("Render(beta) = %v, want ErrNoArtifact", err)
	}
	if _, err := c.Render(context.Background(), Request{BrandID: "../etc"}); err == nil || errors.Is(err, ErrNoArtifact) {
		t.Fatalf("path traversal must be rejected, got %v", err)
	}
}

func TestDirCacheSizeLimit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "big.png"), make([]byte, 64), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDirCache(dir, 10).Render(context.Background(), Request{BrandID: "big"}); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestHTTPRenderer(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req httpRenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Brand {
		case "ok":
			if r.Header.Get("Authorization") != "Bearer tkn" || req.Title != "Hello" || len(req.Content) != 2 {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(httpRenderResponse{ImageData: "aW1n"})
		case "empty":
			_ = json.NewEncoder(w).Encode(httpRenderResponse{})
		case "missing":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, "tkn", 5*time.Second)
	ctx := context.Background()

	got, err := r.Render(ctx, Request{BrandID: "ok", Title: "Hello", Content: []string{"a", "b"}})
	if err != nil || got != "aW1n" {
		t.Fatalf("Render(ok) = %q, %v", got, err)
	}
	for _, id := range []string{"empty", "missing"} {
		if _, err := r.Render(ctx, Request{BrandID: id}); !errors.Is(err, ErrNoArtifact) {
			t.Fatalf("Render(%s) = %v, want ErrNoArtifact", id, err)
		}
	}
	if _, err := r.Render(ctx, Request{BrandID: "other"}); err == nil || errors.Is(err, ErrNoArtifact) {
		t.Fatalf("Render(other) = %v, want plain error", err)
	}
}
