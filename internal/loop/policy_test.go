package loop

import (
	"testing"

	"voiceloop/client/internal/types"
)

func TestChatModeArms(t *testing.T) {
	p := New(5)
	d := p.OnPlaybackEnd(types.ModeChat, false, false)
	if !d.ShouldArm {
		t.Fatalf("expected re-arm in chat mode, got %+v", d)
	}
}

func TestNonChatModeNeverArms(t *testing.T) {
	p := New(5)
	for _, m := range []types.Mode{types.ModeEcho, types.ModeLLM} {
		if d := p.OnPlaybackEnd(m, false, false); d.ShouldArm {
			t.Fatalf("mode %s must not arm", m)
		}
	}
}

func TestRecordingInFlightBlocksArm(t *testing.T) {
	p := New(5)
	if d := p.OnPlaybackEnd(types.ModeChat, true, false); d.ShouldArm || d.Reason != "recording_active" {
		t.Fatalf("expected recording_active block, got %+v", d)
	}
	if d := p.OnPlaybackEnd(types.ModeChat, false, true); d.ShouldArm || d.Reason != "in_flight" {
		t.Fatalf("expected in_flight block, got %+v", d)
	}
}

func TestTurnCapStopsLoop(t *testing.T) {
	p := New(2)
	for i := 0; i < 2; i++ {
		if d := p.OnPlaybackEnd(types.ModeChat, false, false); !d.ShouldArm {
			t.Fatalf("turn %d should arm", i)
		}
	}
	if d := p.OnPlaybackEnd(types.ModeChat, false, false); d.ShouldArm || d.Reason != "turn_cap" {
		t.Fatalf("expected turn_cap, got %+v", d)
	}
	p.OnManualAction()
	if d := p.OnPlaybackEnd(types.ModeChat, false, false); !d.ShouldArm {
		t.Fatalf("manual action should reset the cap")
	}
}

func TestZeroCapMeansUnlimited(t *testing.T) {
	p := New(0)
	for i := 0; i < 100; i++ {
		if d := p.OnPlaybackEnd(types.ModeChat, false, false); !d.ShouldArm {
			t.Fatalf("unlimited policy blocked at %d", i)
		}
	}
}
