package debugsrv

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logx "brandops/pkg/logx"
)

func TestHandlerAuthAndStatus(t *testing.T) {
	t.Parallel()
	s := New(Config{}, func() any { return map[string]int{"brands": 3} }, logx.Nop())
	srv := httptest.NewServer(s.Handler("secret"))
	defer srv.Close()

	tests := []struct {
		name   string
		path   string
		header string
		code   int
		body   string
	}{
		{"no token", "/healthz", "", http.StatusUnauthorized, "unauthorized"},
		{"wrong token", "/healthz?token=nope", "", http.StatusUnauthorized, "unauthorized"},
		{"query token", "/healthz?token=secret", "", http.StatusOK, "ok"},
		{"bearer", "/status", "Bearer secret", http.StatusOK, `"brands": 3`},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+tt.path, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tt.code || !strings.Contains(string(b), tt.body) {
			t.Fatalf("%s: got %d %q, want %d containing %q", tt.name, resp.StatusCode, b, tt.code, tt.body)
		}
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	for addr, want := range map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:6060":     true,
		":6060":          false,
		"0.0.0.0:6060":   false,
		"10.0.0.5:80":    false,
		"nonsense":       false,
	} {
		if got := IsLoopbackAddr(addr); got != want {
			t.Fatalf("IsLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestStartServesAndStops(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, nil, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Start(ctx)

	var addr string
	for addr == "" {
		if ctx.Err() != nil {
			t.Fatalf("server never bound")
		}
		time.Sleep(10 * time.Millisecond)
		addr = s.Addr()
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	s.Stop(ctx)
	if s.Addr() != "" {
		t.Fatalf("Addr after Stop = %q", s.Addr())
	}
}
