package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// State of the recording controller.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting-device"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	}
	return "unknown"
}

var (
	ErrNotIdle      = errors.New("recorder: start requires idle state")
	ErrNotRecording = errors.New("recorder: stop requires recording state")
)

// DeviceError reports a capture-device failure: permission denied, no device,
// unsupported format or a recorder-internal fault.
type DeviceError struct {
	Reason string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture device: %s: %v", e.Reason, e.Err)
	}
	return "capture device: " + e.Reason
}

func (e *DeviceError) Unwrap() error { return e.Err }

// TooShortError rejects a finalized payload below the minimum byte size.
type TooShortError struct {
	Size int
	Min  int
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("recording too short: %d bytes (min %d)", e.Size, e.Min)
}

// Controller owns the microphone-capture lifecycle: acquire device,
// accumulate chunks, finalize into a single payload. One payload or one
// error per Start/Stop cycle; the controller always returns to idle so a
// new attempt can be made.
type Controller struct {
	dev      Device
	minBytes int

	mu      sync.Mutex
	state   State
	capture Capture
	chunks  [][]byte
	drained chan struct{}
}

func New(dev Device, minBytes int) *Controller {
	return &Controller{dev: dev, minBytes: minBytes, state: StateIdle}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires the capture device and begins accumulating chunks.
// Valid only from idle. On device failure the controller returns to idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	c.state = StateRequesting
	c.mu.Unlock()

	capture, err := c.dev.Open(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		metricDeviceErrors.Inc()
		var de *DeviceError
		if errors.As(err, &de) {
			return err
		}
		return &DeviceError{Reason: "open failed", Err: err}
	}

	c.mu.Lock()
	c.state = StateRecording
	c.capture = capture
	c.chunks = nil
	c.drained = make(chan struct{})
	c.mu.Unlock()
	metricStarts.Inc()

	go c.accumulate(capture)
	return nil
}

// accumulate appends arriving chunks in order until the device closes its
// stream, then signals that the buffer is fully drained.
func (c *Controller) accumulate(capture Capture) {
	for chunk := range capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		c.mu.Lock()
		c.chunks = append(c.chunks, chunk)
		c.mu.Unlock()
	}
	c.mu.Lock()
	drained := c.drained
	c.mu.Unlock()
	close(drained)
}

// Stop finalizes the in-progress capture into a single payload. Valid only
// from recording. The device is released on every exit path, including
// failure; a payload below the minimum size yields a TooShortError.
func (c *Controller) Stop() ([]byte, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return nil, ErrNotRecording
	}
	c.state = StateFinalizing
	capture := c.capture
	drained := c.drained
	c.mu.Unlock()

	stopErr := capture.Stop()
	<-drained

	c.mu.Lock()
	var buf bytes.Buffer
	for _, chunk := range c.chunks {
		buf.Write(chunk)
	}
	c.chunks = nil
	c.capture = nil
	c.state = StateIdle
	c.mu.Unlock()

	if stopErr != nil {
		log.Printf("[recorder] device stop: %v", stopErr)
		metricDeviceErrors.Inc()
		return nil, &DeviceError{Reason: "stop failed", Err: stopErr}
	}

	payload := buf.Bytes()
	if len(payload) < c.minBytes {
		metricTooShort.Inc()
		return nil, &TooShortError{Size: len(payload), Min: c.minBytes}
	}
	metricPayloadBytes.Observe(float64(len(payload)))
	return payload, nil
}
