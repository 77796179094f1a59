package recorder

import (
	"context"
	"errors"
	"testing"
)

// fakeCapture delivers scripted chunks and tracks release.
type fakeCapture struct {
	ch      chan []byte
	stopped bool
}

func (f *fakeCapture) Chunks() <-chan []byte { return f.ch }
func (f *fakeCapture) Stop() error {
	f.stopped = true
	close(f.ch)
	return nil
}

type fakeDevice struct {
	chunks  [][]byte
	openErr error
	last    *fakeCapture
}

func (f *fakeDevice) Open(ctx context.Context) (Capture, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	c := &fakeCapture{ch: make(chan []byte, len(f.chunks)+1)}
	for _, b := range f.chunks {
		c.ch <- b
	}
	f.last = c
	return c, nil
}

func TestStartStopProducesPayload(t *testing.T) {
	dev := &fakeDevice{chunks: [][]byte{make([]byte, 600), make([]byte, 600)}}
	c := New(dev, 1024)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	payload, err := c.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(payload) != 1200 {
		t.Fatalf("expected 1200-byte payload, got %d", len(payload))
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle after stop, got %v", c.State())
	}
	if !dev.last.stopped {
		t.Fatalf("device not released")
	}
}

func TestTooShortPayloadRejected(t *testing.T) {
	dev := &fakeDevice{chunks: [][]byte{make([]byte, 100)}}
	c := New(dev, 1024)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := c.Stop()
	var tooShort *TooShortError
	if !errors.As(err, &tooShort) {
		t.Fatalf("expected TooShortError, got %v", err)
	}
	if tooShort.Size != 100 || tooShort.Min != 1024 {
		t.Fatalf("unexpected sizes: %+v", tooShort)
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle after rejection, got %v", c.State())
	}
	if !dev.last.stopped {
		t.Fatalf("device must be released even when payload is rejected")
	}
}

func TestDeviceDenialReturnsToIdle(t *testing.T) {
	dev := &fakeDevice{openErr: &DeviceError{Reason: "permission denied"}}
	c := New(dev, 1024)

	err := c.Start(context.Background())
	var de *DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle after denial, got %v", c.State())
	}
	// A fresh attempt must be possible.
	dev.openErr = nil
	dev.chunks = [][]byte{make([]byte, 2048)}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart after denial: %v", err)
	}
	if _, err := c.Stop(); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}

func TestStateGuards(t *testing.T) {
	dev := &fakeDevice{chunks: [][]byte{make([]byte, 2048)}}
	c := New(dev, 1024)

	if _, err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording from idle, got %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("expected ErrNotIdle while recording, got %v", err)
	}
	if _, err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("expected idle at end, got %v", c.State())
	}
}
