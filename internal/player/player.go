// Package player fetches synthesized audio and plays it through an
// external player command.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strings"
)

// Player renders an audio reference. Play blocks until playback completes,
// which is the playback-end signal the auto-continue loop waits for.
type Player interface {
	Play(ctx context.Context, audioURL string) error
}

// ExecPlayer streams fetched audio into a player command's stdin.
type ExecPlayer struct {
	http    *http.Client
	base    string
	cmdLine string
}

func NewExecPlayer(base, cmdLine string) *ExecPlayer {
	return &ExecPlayer{
		http:    &http.Client{},
		base:    base,
		cmdLine: cmdLine,
	}
}

// Resolve turns a possibly-relative audio_url into an absolute one.
func (p *ExecPlayer) Resolve(audioURL string) string {
	if strings.HasPrefix(audioURL, "http://") || strings.HasPrefix(audioURL, "https://") {
		return audioURL
	}
	return p.base + "/" + strings.TrimPrefix(audioURL, "/")
}

func (p *ExecPlayer) Play(ctx context.Context, audioURL string) error {
	if audioURL == "" {
		return errors.New("player: empty audio url")
	}
	if strings.TrimSpace(p.cmdLine) == "" {
		return errors.New("player: player command not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Resolve(audioURL), nil)
	if err != nil {
		return err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("player: fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("player: fetch audio: %s: %s", resp.Status, string(b))
	}

	parts := strings.Fields(p.cmdLine)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = resp.Body
	log.Printf("[player] playing %s via %s", audioURL, parts[0])
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("player: %s: %w", parts[0], err)
	}
	return nil
}
