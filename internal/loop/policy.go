package loop

import (
	"sync"

	"voiceloop/client/internal/types"
)

// Decision represents the action the auto-continue policy wants to take
// once assistant audio finishes playing.
type Decision struct {
	ShouldArm bool
	Reason    string // e.g., "mode", "in_flight", "turn_cap"
}

// Policy decides whether the hands-free loop re-arms recording after
// playback. The loop is capped so short assistant replies cannot keep it
// running indefinitely; a manual action resets the cap.
type Policy struct {
	maxTurns int

	mu    sync.Mutex
	turns int
}

func New(maxTurns int) *Policy { return &Policy{maxTurns: maxTurns} }

// OnPlaybackEnd is called when assistant audio for a turn stops playing.
func (p *Policy) OnPlaybackEnd(mode types.Mode, recording, inFlight bool) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mode != types.ModeChat {
		return Decision{Reason: "mode"}
	}
	if recording {
		return Decision{Reason: "recording_active"}
	}
	if inFlight {
		return Decision{Reason: "in_flight"}
	}
	if p.maxTurns > 0 && p.turns >= p.maxTurns {
		return Decision{Reason: "turn_cap"}
	}
	p.turns++
	return Decision{ShouldArm: true}
}

// OnManualAction resets the consecutive-turn counter; a user gesture makes
// this a fresh hands-free run.
func (p *Policy) OnManualAction() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = 0
}

// Turns reports how many consecutive automatic re-arms have happened.
func (p *Policy) Turns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turns
}
