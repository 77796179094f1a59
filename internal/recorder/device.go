package recorder

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Capture is an open capture-device stream. Chunks are delivered in arrival
// order and the channel closes once the device has flushed after Stop.
type Capture interface {
	Chunks() <-chan []byte
	Stop() error
}

// Device grants access to a capture device. Open may suspend while the
// platform asks the user for permission.
type Device interface {
	Open(ctx context.Context) (Capture, error)
}

// ExecDevice captures audio by running an external recorder command
// (arecord, sox, rec ...) and reading its stdout.
type ExecDevice struct {
	cmdLine string
}

func NewExecDevice(cmdLine string) *ExecDevice {
	return &ExecDevice{cmdLine: cmdLine}
}

func (d *ExecDevice) Open(ctx context.Context) (Capture, error) {
	if strings.TrimSpace(d.cmdLine) == "" {
		return nil, &DeviceError{Reason: "capture command not configured"}
	}
	parts := strings.Fields(d.cmdLine)
	name, args := parts[0], parts[1:]

	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &DeviceError{Reason: "pipe failed", Err: err}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &DeviceError{Reason: "no capture device", Err: err}
	}
	log.Printf("[recorder] capture started: %s (pid=%d)", name, cmd.Process.Pid)

	ec := &execCapture{
		cmd:    cmd,
		cancel: cancel,
		chunks: make(chan []byte, 16),
	}
	go ec.pump(stdout)
	return ec, nil
}

type execCapture struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	chunks chan []byte
}

func (c *execCapture) Chunks() <-chan []byte { return c.chunks }

func (c *execCapture) pump(r io.Reader) {
	defer close(c.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

// Stop signals the recorder process to finalize, forcing a kill after a
// short grace period.
func (c *execCapture) Stop() error {
	_ = c.cmd.Process.Signal(os.Interrupt)
	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()
	select {
	case err := <-done:
		c.cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			// Recorders commonly exit non-zero on interrupt; the stream
			// already flushed, so that is not a capture failure.
			log.Printf("[recorder] capture exited: %v", err)
		}
		return nil
	case <-time.After(3 * time.Second):
		c.cancel()
		_ = c.cmd.Process.Kill()
		<-done
		return nil
	}
}
