package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cbycsb/internal/ycsb"
)

func TestServerEndpoints(t *testing.T) {
	registry := NewRegistry()
	registry.RecordOperation("insert", time.Millisecond, ycsb.StatusOK, nil)

	ready := new(atomic.Bool)
	srv := httptest.NewServer(newMux(registry, ready))
	defer srv.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		return resp.StatusCode, string(body)
	}

	if code, _ := get("/health"); code != http.StatusOK {
		t.Errorf("/health = %d, want 200", code)
	}

	if code, _ := get("/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("/ready before SetReady = %d, want 503", code)
	}
	ready.Store(true)
	if code, body := get("/ready"); code != http.StatusOK || !strings.Contains(body, `"ready"`) {
		t.Errorf("/ready after SetReady = %d %q", code, body)
	}

	code, body := get("/metrics")
	if code != http.StatusOK {
		t.Fatalf("/metrics = %d, want 200", code)
	}
	if !strings.Contains(body, "ycsb_db_operation_total") {
		t.Errorf("/metrics does not expose ycsb_db_operation_total")
	}
}

func TestServerStopsOnceWhenContextCancelled(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	srv := NewServer(ServerConfig{Port: 0, Timeout: time.Second}, NewRegistry(), zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after the context was cancelled")
	}

	if n := logs.FilterMessage("stopping metrics server").Len(); n != 1 {
		t.Errorf("server stopped %d times, want 1", n)
	}
}
