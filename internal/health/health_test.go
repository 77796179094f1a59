package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"voiceloop/client/internal/config"
)

func TestCheckBackendHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"healthy","timestamp":"2026-08-28T00:00:00Z"}`))
	}))
	defer srv.Close()

	cfg := config.Config{}
	cfg.Agent.BaseURL = srv.URL

	res := checkBackend(context.Background(), cfg)
	if !res.OK {
		t.Fatalf("expected healthy backend, got %+v", res)
	}
}

func TestCheckBackendDegraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer srv.Close()

	cfg := config.Config{}
	cfg.Agent.BaseURL = srv.URL

	res := checkBackend(context.Background(), cfg)
	if res.OK {
		t.Fatalf("degraded backend must not pass")
	}
	if res.Error == "" {
		t.Fatalf("expected error detail")
	}
}

func TestCheckBackendUnreachable(t *testing.T) {
	cfg := config.Config{}
	cfg.Agent.BaseURL = "http://127.0.0.1:1"

	res := checkBackend(context.Background(), cfg)
	if res.OK {
		t.Fatalf("unreachable backend must not pass")
	}
}

func TestCheckCommandMissing(t *testing.T) {
	res := checkCommand("capture", "definitely-not-a-real-binary -q")
	if res.OK {
		t.Fatalf("missing binary must not pass")
	}
}
