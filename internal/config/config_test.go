package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear relevant envs
	os.Unsetenv("AGENT_BASE_URL")
	os.Unsetenv("AGENT_REQUEST_TIMEOUT_S")
	os.Unsetenv("AUDIO_MIN_PAYLOAD_BYTES")
	os.Unsetenv("CHAT_AUTO_CONTINUE_DELAY_MS")

	c := Load()

	if c.Agent.BaseURL != "http://localhost:8000" {
		t.Fatalf("expected default base url, got %q", c.Agent.BaseURL)
	}
	if c.Agent.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s request timeout, got %v", c.Agent.RequestTimeout)
	}
	if c.Agent.ChatTimeout != 90*time.Second {
		t.Fatalf("expected 90s chat timeout, got %v", c.Agent.ChatTimeout)
	}
	if c.Audio.MinPayloadBytes != 1024 {
		t.Fatalf("expected default min payload 1024, got %d", c.Audio.MinPayloadBytes)
	}
	if c.Chat.AutoContinueDelay != time.Second {
		t.Fatalf("expected 1s auto-continue delay, got %v", c.Chat.AutoContinueDelay)
	}
}

func TestLoadTrimsBaseURL(t *testing.T) {
	os.Setenv("AGENT_BASE_URL", "http://example.com:8000/")
	defer os.Unsetenv("AGENT_BASE_URL")

	c := Load()
	if c.Agent.BaseURL != "http://example.com:8000" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.Agent.BaseURL)
	}
}
