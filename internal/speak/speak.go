// Package speak renders messages as audio through an ordered chain of
// providers, tried in sequence until one succeeds.
package speak

import (
	"context"
	"log"
	"os/exec"
	"strings"
)

// Speaker is one way of rendering a message as audio.
type Speaker interface {
	Name() string
	Speak(ctx context.Context, message string) error
}

// Chain tries each provider in order. Every tier is best-effort: failure of
// all of them is logged, never escalated.
type Chain struct {
	speakers []Speaker
}

func NewChain(speakers ...Speaker) *Chain {
	return &Chain{speakers: speakers}
}

func (c *Chain) Speak(ctx context.Context, message string) {
	for _, sp := range c.speakers {
		if err := sp.Speak(ctx, message); err != nil {
			log.Printf("[speak] %s failed: %v", sp.Name(), err)
			continue
		}
		return
	}
	log.Printf("[speak] all providers failed for message: %q", message)
}

// ErrorAudioClient is the slice of the backend client the remote speaker
// needs.
type ErrorAudioClient interface {
	GenerateErrorAudio(ctx context.Context, message string) (string, error)
}

// AudioPlayer plays a fetched audio reference to completion.
type AudioPlayer interface {
	Play(ctx context.Context, audioURL string) error
}

// Remote asks the backend to synthesize the message and plays the result.
type Remote struct {
	client ErrorAudioClient
	player AudioPlayer
}

func NewRemote(client ErrorAudioClient, player AudioPlayer) *Remote {
	return &Remote{client: client, player: player}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Speak(ctx context.Context, message string) error {
	audioURL, err := r.client.GenerateErrorAudio(ctx, message)
	if err != nil {
		return err
	}
	return r.player.Play(ctx, audioURL)
}

// Local shells out to the platform's speech-synthesis command
// (espeak, say ...).
type Local struct {
	cmdLine string
}

func NewLocal(cmdLine string) *Local {
	return &Local{cmdLine: cmdLine}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Speak(ctx context.Context, message string) error {
	parts := strings.Fields(l.cmdLine)
	if len(parts) == 0 {
		return exec.ErrNotFound
	}
	cmd := exec.CommandContext(ctx, parts[0], append(parts[1:], message)...)
	return cmd.Run()
}
