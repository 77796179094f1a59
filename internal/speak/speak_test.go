package speak

import (
	"context"
	"errors"
	"testing"
)

type fakeSpeaker struct {
	name   string
	err    error
	called int
}

func (f *fakeSpeaker) Name() string { return f.name }
func (f *fakeSpeaker) Speak(ctx context.Context, message string) error {
	f.called++
	return f.err
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &fakeSpeaker{name: "remote"}
	second := &fakeSpeaker{name: "local"}
	NewChain(first, second).Speak(context.Background(), "oops")

	if first.called != 1 {
		t.Fatalf("first provider called %d times", first.called)
	}
	if second.called != 0 {
		t.Fatalf("second provider should not run after success")
	}
}

func TestChainFallsThroughOnFailure(t *testing.T) {
	first := &fakeSpeaker{name: "remote", err: errors.New("unreachable")}
	second := &fakeSpeaker{name: "local"}
	NewChain(first, second).Speak(context.Background(), "oops")

	if first.called != 1 || second.called != 1 {
		t.Fatalf("expected both providers tried, got %d/%d", first.called, second.called)
	}
}

func TestChainSwallowsTotalFailure(t *testing.T) {
	first := &fakeSpeaker{name: "remote", err: errors.New("down")}
	second := &fakeSpeaker{name: "local", err: errors.New("no binary")}
	// Must not panic or escalate.
	NewChain(first, second).Speak(context.Background(), "oops")

	if first.called != 1 || second.called != 1 {
		t.Fatalf("expected both providers tried, got %d/%d", first.called, second.called)
	}
}

type fakeAudioClient struct {
	url string
	err error
}

func (f *fakeAudioClient) GenerateErrorAudio(ctx context.Context, message string) (string, error) {
	return f.url, f.err
}

type fakePlayer struct {
	played []string
	err    error
}

func (f *fakePlayer) Play(ctx context.Context, audioURL string) error {
	f.played = append(f.played, audioURL)
	return f.err
}

func TestRemoteSpeaksGeneratedAudio(t *testing.T) {
	pl := &fakePlayer{}
	r := NewRemote(&fakeAudioClient{url: "/e.mp3"}, pl)
	if err := r.Speak(context.Background(), "oops"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if len(pl.played) != 1 || pl.played[0] != "/e.mp3" {
		t.Fatalf("unexpected playback: %+v", pl.played)
	}
}

func TestRemotePropagatesGenerationFailure(t *testing.T) {
	r := NewRemote(&fakeAudioClient{err: errors.New("503")}, &fakePlayer{})
	if err := r.Speak(context.Background(), "oops"); err == nil {
		t.Fatalf("expected error when generation fails")
	}
}

func TestRemotePropagatesPlaybackFailure(t *testing.T) {
	r := NewRemote(&fakeAudioClient{url: "/e.mp3"}, &fakePlayer{err: errors.New("no player")})
	if err := r.Speak(context.Background(), "oops"); err == nil {
		t.Fatalf("expected error when playback fails")
	}
}
