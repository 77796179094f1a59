package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Agent struct {
		BaseURL        string
		RequestTimeout time.Duration
		ChatTimeout    time.Duration
		VoiceID        string
		ErrorVoiceID   string
	}
	Audio struct {
		CaptureCmd      string
		PlayerCmd       string
		MinPayloadBytes int
	}
	Chat struct {
		AutoContinueDelay time.Duration
		MaxAutoTurns      int
	}
	Speak struct {
		LocalCmd       string
		ReadoutDefault bool
	}
	Store struct {
		Path string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("agent.base_url", "http://localhost:8000")
	v.SetDefault("agent.request_timeout_s", 30)
	v.SetDefault("agent.chat_timeout_s", 90)
	v.SetDefault("agent.voice_id", "en-US-natalie")
	v.SetDefault("agent.error_voice_id", "en-US-ken")

	v.SetDefault("audio.capture_cmd", "arecord -q -f S16_LE -r 16000 -c 1 -t wav -")
	v.SetDefault("audio.player_cmd", "aplay -q")
	v.SetDefault("audio.min_payload_bytes", 1024)

	v.SetDefault("chat.auto_continue_delay_ms", 1000)
	v.SetDefault("chat.max_auto_turns", 25)

	v.SetDefault("speak.local_cmd", "espeak")
	v.SetDefault("speak.readout_default", false)

	v.SetDefault("store.path", "voiceloop.db")

	// Map envs
	v.BindEnv("agent.base_url", "AGENT_BASE_URL")
	v.BindEnv("agent.request_timeout_s", "AGENT_REQUEST_TIMEOUT_S")
	v.BindEnv("agent.chat_timeout_s", "AGENT_CHAT_TIMEOUT_S")
	v.BindEnv("agent.voice_id", "AGENT_VOICE_ID")
	v.BindEnv("agent.error_voice_id", "AGENT_ERROR_VOICE_ID")

	v.BindEnv("audio.capture_cmd", "AUDIO_CAPTURE_CMD")
	v.BindEnv("audio.player_cmd", "AUDIO_PLAYER_CMD")
	v.BindEnv("audio.min_payload_bytes", "AUDIO_MIN_PAYLOAD_BYTES")

	v.BindEnv("chat.auto_continue_delay_ms", "CHAT_AUTO_CONTINUE_DELAY_MS")
	v.BindEnv("chat.max_auto_turns", "CHAT_MAX_AUTO_TURNS")

	v.BindEnv("speak.local_cmd", "SPEAK_LOCAL_CMD")
	v.BindEnv("speak.readout_default", "SPEAK_READOUT_DEFAULT")

	v.BindEnv("store.path", "STORE_PATH")

	var c Config
	c.Agent.BaseURL = strings.TrimRight(v.GetString("agent.base_url"), "/")
	c.Agent.RequestTimeout = time.Duration(v.GetInt("agent.request_timeout_s")) * time.Second
	c.Agent.ChatTimeout = time.Duration(v.GetInt("agent.chat_timeout_s")) * time.Second
	c.Agent.VoiceID = v.GetString("agent.voice_id")
	c.Agent.ErrorVoiceID = v.GetString("agent.error_voice_id")

	c.Audio.CaptureCmd = v.GetString("audio.capture_cmd")
	c.Audio.PlayerCmd = v.GetString("audio.player_cmd")
	c.Audio.MinPayloadBytes = v.GetInt("audio.min_payload_bytes")

	c.Chat.AutoContinueDelay = time.Duration(v.GetInt("chat.auto_continue_delay_ms")) * time.Millisecond
	c.Chat.MaxAutoTurns = v.GetInt("chat.max_auto_turns")

	c.Speak.LocalCmd = v.GetString("speak.local_cmd")
	c.Speak.ReadoutDefault = v.GetBool("speak.readout_default")

	c.Store.Path = v.GetString("store.path")

	log.Printf("config loaded: base_url=%s store=%s", c.Agent.BaseURL, c.Store.Path)
	return c
}
