// Package session binds finalized recordings to the active conversation:
// it performs the remote exchange, maintains history, and drives follow-on
// playback and the hands-free auto-continue loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"voiceloop/client/internal/agent"
	"voiceloop/client/internal/history"
	"voiceloop/client/internal/loop"
	"voiceloop/client/internal/recorder"
	"voiceloop/client/internal/types"
)

var ErrSubmissionInFlight = errors.New("session: a submission is already in flight")

// Recorder is the slice of the recording controller this package drives.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
	State() recorder.State
}

// HistoryStore persists conversation turns and client preferences.
type HistoryStore interface {
	AppendExchange(sessionID string, user, assistant types.Turn) error
	List(sessionID string) ([]types.Turn, error)
	Clear(sessionID string) error
	Replace(sessionID string, turns []types.Turn) error
	SetPref(key, value string) error
	Pref(key, def string) string
}

// Player plays an audio reference to completion.
type Player interface {
	Play(ctx context.Context, audioURL string) error
}

// ErrorSpeaker renders an error message as audio, best-effort.
type ErrorSpeaker interface {
	Speak(ctx context.Context, message string)
}

// Options tune the auto-continue loop.
type Options struct {
	AutoContinueDelay time.Duration
	MaxAutoTurns      int
}

// Controller owns session identity, the local display history and the
// request/response cycle against the voice-agent backend. It is the sole
// writer of the history store.
type Controller struct {
	agent   agent.Client
	store   HistoryStore
	rec     Recorder
	player  Player
	speaker ErrorSpeaker
	policy  *loop.Policy
	delay   time.Duration

	mu        sync.Mutex
	sessionID string
	mode      types.Mode
	display   []types.Turn
	inFlight  bool
	readout   bool
	lastCount int
}

func New(client agent.Client, store HistoryStore, rec Recorder, player Player, speaker ErrorSpeaker, opts Options) *Controller {
	c := &Controller{
		agent:   client,
		store:   store,
		rec:     rec,
		player:  player,
		speaker: speaker,
		policy:  loop.New(opts.MaxAutoTurns),
		delay:   opts.AutoContinueDelay,
		mode:    types.ModeEcho,
	}
	c.readout = store.Pref(history.PrefErrorReadout, "false") == "true"
	if id := store.Pref(history.PrefActiveSession, ""); id != "" {
		if err := c.UseSession(id); err != nil {
			log.Printf("[session] restore %s: %v", id, err)
		}
	}
	if c.sessionID == "" {
		c.NewSession()
	}
	return c
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) Mode() types.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches the routing target. Switching counts as a manual action
// and resets the auto-continue turn counter.
func (c *Controller) SetMode(m types.Mode) error {
	if !m.Valid() {
		return fmt.Errorf("session: unknown mode %q", m)
	}
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
	c.policy.OnManualAction()
	return nil
}

func (c *Controller) ErrorReadout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readout
}

func (c *Controller) SetErrorReadout(enabled bool) {
	c.mu.Lock()
	c.readout = enabled
	c.mu.Unlock()
	if err := c.store.SetPref(history.PrefErrorReadout, strconv.FormatBool(enabled)); err != nil {
		log.Printf("[session] persist readout pref: %v", err)
	}
}

// NewSession generates a fresh session identifier and switches to it.
// The previous session's history is kept.
func (c *Controller) NewSession() string {
	id := fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	c.mu.Lock()
	c.sessionID = id
	c.display = nil
	c.lastCount = 0
	c.mu.Unlock()
	c.policy.OnManualAction()
	if err := c.store.SetPref(history.PrefActiveSession, id); err != nil {
		log.Printf("[session] persist active session: %v", err)
	}
	log.Printf("[session] new session %s", id)
	return id
}

// UseSession adopts an externally supplied session id (a shared link) and
// loads its stored history into the display.
func (c *Controller) UseSession(id string) error {
	turns, err := c.store.List(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sessionID = id
	c.display = turns
	c.lastCount = len(turns)
	c.mu.Unlock()
	c.policy.OnManualAction()
	if err := c.store.SetPref(history.PrefActiveSession, id); err != nil {
		log.Printf("[session] persist active session: %v", err)
	}
	return nil
}

// Display returns a copy of the local ordered turn sequence.
func (c *Controller) Display() []types.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Turn, len(c.display))
	copy(out, c.display)
	return out
}

// MessageCount returns the last running count reported by the backend, or
// the local display length when none was reported.
func (c *Controller) MessageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastCount > 0 {
		return c.lastCount
	}
	return len(c.display)
}

// StartRecording arms the recorder as a manual user action.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.policy.OnManualAction()
	return c.rec.Start(ctx)
}

// StopAndSubmit finalizes the in-progress recording and submits it.
func (c *Controller) StopAndSubmit(ctx context.Context) (*types.TurnResult, error) {
	payload, err := c.rec.Stop()
	if err != nil {
		return nil, err
	}
	return c.SubmitTurn(ctx, payload)
}

// SubmitTurn sends a finalized payload to the mode-specific endpoint. On
// success (or partial success with data) it appends the user and assistant
// turns together; on failure it leaves history untouched and surfaces the
// classified error, playing backend fallback audio when one was provided.
// At most one submission may be in flight.
func (c *Controller) SubmitTurn(ctx context.Context, payload []byte) (*types.TurnResult, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	c.inFlight = true
	sid := c.sessionID
	mode := c.mode
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	res, err := c.agent.SubmitTurn(ctx, payload, mode, sid)
	if err != nil {
		c.handleFailure(ctx, err)
		return nil, err
	}

	if res.Transcription != "" || res.Response != "" {
		now := time.Now().UTC()
		user := types.Turn{Role: types.RoleUser, Content: res.Transcription, Timestamp: now}
		assistant := types.Turn{Role: types.RoleAssistant, Content: res.Response, Timestamp: now}
		if err := c.store.AppendExchange(sid, user, assistant); err != nil {
			log.Printf("[session] persist exchange: %v", err)
		}
		c.mu.Lock()
		c.display = append(c.display, user, assistant)
		if res.MessageCount > 0 {
			c.lastCount = res.MessageCount
		} else {
			c.lastCount = len(c.display)
		}
		c.mu.Unlock()
	}
	if res.Partial {
		log.Printf("[session] partial success: %s", res.Advisory)
	}
	return res, nil
}

// handleFailure surfaces a failed exchange: backend fallback audio takes the
// place of a text-only error; otherwise the classified message is read aloud
// when the readout preference is enabled.
func (c *Controller) handleFailure(ctx context.Context, err error) {
	metricFailures.Inc()
	var apiErr *agent.APIError
	if errors.As(err, &apiErr) && apiErr.AudioURL != "" {
		if perr := c.player.Play(ctx, apiErr.AudioURL); perr != nil {
			log.Printf("[session] fallback audio playback: %v", perr)
		}
		return
	}
	if c.ErrorReadout() && c.speaker != nil {
		c.speaker.Speak(ctx, agent.UserMessage(err))
	}
}

// PlayResult plays the assistant audio for a successful turn, blocking
// until playback completes.
func (c *Controller) PlayResult(ctx context.Context, res *types.TurnResult) error {
	if res == nil || res.AudioURL == "" {
		return nil
	}
	return c.player.Play(ctx, res.AudioURL)
}

// ClearHistory erases the current session's history. The remote delete is
// best-effort; the local display always ends up empty.
func (c *Controller) ClearHistory(ctx context.Context) error {
	c.mu.Lock()
	sid := c.sessionID
	c.display = nil
	c.lastCount = 0
	c.mu.Unlock()

	if err := c.store.Clear(sid); err != nil {
		log.Printf("[session] clear local history: %v", err)
	}
	if err := c.agent.ClearHistory(ctx, sid); err != nil {
		log.Printf("[session] clear remote history: %v", err)
		return err
	}
	return nil
}

// ListSessions fetches session summaries from the backend; read-only.
func (c *Controller) ListSessions(ctx context.Context) ([]types.SessionSummary, error) {
	return c.agent.ListSessions(ctx)
}

// SyncHistory adopts the backend's copy of the current session's history,
// replacing the local store and display.
func (c *Controller) SyncHistory(ctx context.Context) error {
	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()

	turns, err := c.agent.FetchHistory(ctx, sid)
	if err != nil {
		return err
	}
	if err := c.store.Replace(sid, turns); err != nil {
		return err
	}
	c.mu.Lock()
	c.display = turns
	c.lastCount = len(turns)
	c.mu.Unlock()
	return nil
}

// AutoContinue waits the fixed re-arm delay after playback ends, then asks
// the policy whether to start recording again. Cancelling ctx (mode switch,
// shutdown) stops the loop deterministically.
func (c *Controller) AutoContinue(ctx context.Context) (loop.Decision, error) {
	select {
	case <-ctx.Done():
		return loop.Decision{Reason: "cancelled"}, ctx.Err()
	case <-time.After(c.delay):
	}

	c.mu.Lock()
	mode := c.mode
	inFlight := c.inFlight
	c.mu.Unlock()
	recording := c.rec.State() != recorder.StateIdle

	d := c.policy.OnPlaybackEnd(mode, recording, inFlight)
	if !d.ShouldArm {
		return d, nil
	}
	if err := c.rec.Start(ctx); err != nil {
		return d, err
	}
	metricAutoRearms.Inc()
	return d, nil
}
