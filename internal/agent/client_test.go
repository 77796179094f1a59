package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voiceloop/client/internal/types"
)

func newTestClient(srv *httptest.Server) *HTTPClient {
	return NewClient(srv.URL, 5*time.Second, 10*time.Second)
}

func TestSubmitTurnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent/chat/s1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","transcription":"hi","llm_response":"hello","audio_url":"/a1.wav","message_count":2}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	res, err := c.SubmitTurn(context.Background(), make([]byte, 2048), types.ModeChat, "s1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Transcription != "hi" || res.Response != "hello" || res.MessageCount != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Partial {
		t.Fatalf("success must not be partial")
	}
}

func TestSubmitTurnPartialSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"partial_success","transcription":"hi","llm_response":"hello","message":"audio generation failed"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv).SubmitTurn(context.Background(), make([]byte, 2048), types.ModeEcho, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Partial || res.Advisory != "audio generation failed" {
		t.Fatalf("expected partial advisory, got %+v", res)
	}
}

func TestSubmitTurnFallbackCarriesAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fallback","llm_response":"I'm having trouble right now.","audio_url":"/err.mp3","fallback_text":"I'm having trouble right now."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SubmitTurn(context.Background(), make([]byte, 2048), types.ModeLLM, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.AudioURL != "/err.mp3" {
		t.Fatalf("expected fallback audio url, got %+v", apiErr)
	}
}

func TestSubmitTurnRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":{"error":"Rate limit exceeded","fallback":"Too many requests. Please wait a moment and try again."}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SubmitTurn(context.Background(), make([]byte, 2048), types.ModeChat, "s1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", apiErr.StatusCode)
	}
	msg := UserMessage(err)
	if msg != "Too many requests right now. Please wait a moment and try again." {
		t.Fatalf("unexpected rate-limit wording: %q", msg)
	}
}

func TestSubmitTurnStringDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"Transcription failed"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SubmitTurn(context.Background(), make([]byte, 2048), types.ModeEcho, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Detail != "Transcription failed" {
		t.Fatalf("expected string detail, got %+v", apiErr)
	}
}

func TestSubmitTurnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, 50*time.Millisecond)
	_, err := c.SubmitTurn(context.Background(), make([]byte, 2048), types.ModeEcho, "")
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestGenerateErrorAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-error-audio" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","audio_url":"https://cdn.example/e.mp3"}`))
	}))
	defer srv.Close()

	url, err := newTestClient(srv).GenerateErrorAudio(context.Background(), "oops")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if url != "https://cdn.example/e.mp3" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestGenerateErrorAudioUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"unavailable","audio_url":null}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).GenerateErrorAudio(context.Background(), "oops"); err == nil {
		t.Fatalf("expected error for unavailable status")
	}
}

func TestListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sessions":[{"session_id":"s1","created_at":"2026-08-01T10:00:00.123456","updated_at":"2026-08-01T10:05:00.123456","message_count":4}]}`))
	}))
	defer srv.Close()

	sessions, err := newTestClient(srv).ListSessions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" || sessions[0].MessageCount != 4 {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
	if sessions[0].CreatedAt.IsZero() {
		t.Fatalf("created_at not parsed")
	}
}

func TestFetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent/history/s2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"session_id":"s2","messages":[{"role":"user","content":"hi","timestamp":"2026-08-01T10:00:00"},{"role":"assistant","content":"hello","timestamp":"2026-08-01T10:00:05"}],"message_count":2}`))
	}))
	defer srv.Close()

	turns, err := newTestClient(srv).FetchHistory(context.Background(), "s2")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(turns) != 2 || turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestClearHistoryBestEffort(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	if err := newTestClient(srv).ClearHistory(context.Background(), "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if method != http.MethodDelete {
		t.Fatalf("expected DELETE, got %s", method)
	}
}
