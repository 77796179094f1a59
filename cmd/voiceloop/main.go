package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"voiceloop/client/internal/agent"
	"voiceloop/client/internal/config"
	"voiceloop/client/internal/health"
	"voiceloop/client/internal/history"
	"voiceloop/client/internal/player"
	"voiceloop/client/internal/recorder"
	"voiceloop/client/internal/session"
	"voiceloop/client/internal/speak"
	"voiceloop/client/internal/types"
)

var (
	sessionFlag string
	readoutFlag bool
)

// app holds the wired collaborators shared by all subcommands.
type app struct {
	cfg    config.Config
	client *agent.HTTPClient
	player *player.ExecPlayer
	ctl    *session.Controller
	close  func()
}

func buildApp(cmd *cobra.Command) (*app, error) {
	cfg := config.Load()

	client := agent.NewClient(cfg.Agent.BaseURL, cfg.Agent.RequestTimeout, cfg.Agent.ChatTimeout)
	pl := player.NewExecPlayer(cfg.Agent.BaseURL, cfg.Audio.PlayerCmd)
	rec := recorder.New(recorder.NewExecDevice(cfg.Audio.CaptureCmd), cfg.Audio.MinPayloadBytes)
	chain := speak.NewChain(speak.NewRemote(client, pl), speak.NewLocal(cfg.Speak.LocalCmd))

	st, err := history.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	ctl := session.New(client, st, rec, pl, chain, session.Options{
		AutoContinueDelay: cfg.Chat.AutoContinueDelay,
		MaxAutoTurns:      cfg.Chat.MaxAutoTurns,
	})
	if cmd.Root().PersistentFlags().Changed("readout") {
		ctl.SetErrorReadout(readoutFlag)
	}
	if sessionFlag != "" {
		if err := ctl.UseSession(sessionFlag); err != nil {
			st.Close()
			return nil, fmt.Errorf("use session %s: %w", sessionFlag, err)
		}
	}

	return &app{
		cfg:    cfg,
		client: client,
		player: pl,
		ctl:    ctl,
		close:  func() { st.Close() },
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// readLine blocks until the user presses Enter. io.EOF ends the loop.
func readLine(r *bufio.Reader) error {
	_, err := r.ReadString('\n')
	return err
}

func printTurns(w io.Writer, turns []types.Turn) {
	for _, t := range turns {
		fmt.Fprintf(w, "[%s] %s\n", t.Role, t.Content)
	}
}

// runTurn records one utterance, submits it and plays the reply.
func runTurn(ctx context.Context, a *app, in *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "recording... press Enter to stop")
	if err := readLine(in); err != nil {
		return err
	}
	res, err := a.ctl.StopAndSubmit(ctx)
	if err != nil {
		var short *recorder.TooShortError
		if errors.As(err, &short) {
			fmt.Fprintln(out, "recording too short, try again")
			return nil
		}
		fmt.Fprintln(out, agent.UserMessage(err))
		return nil
	}
	if res.Transcription != "" {
		fmt.Fprintf(out, "[you] %s\n", res.Transcription)
	}
	if res.Response != "" {
		fmt.Fprintf(out, "[agent] %s\n", res.Response)
	}
	if res.Partial {
		fmt.Fprintf(out, "(note: %s)\n", res.Advisory)
	}
	if err := a.ctl.PlayResult(ctx, res); err != nil {
		log.Printf("[cli] playback: %v", err)
	}
	return nil
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Hands-free conversation with the voice agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			a.ctl.SetMode(types.ModeChat)

			ctx, cancel := signalContext()
			defer cancel()

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s\n", a.ctl.SessionID())

			armed := false
			for ctx.Err() == nil {
				if !armed {
					fmt.Fprintln(out, "press Enter to speak (Ctrl-D to quit)")
					if err := readLine(in); err != nil {
						break
					}
					if err := a.ctl.StartRecording(ctx); err != nil {
						fmt.Fprintln(out, agent.UserMessage(err))
						continue
					}
				}
				armed = false
				if err := runTurn(ctx, a, in, out); err != nil {
					break
				}
				d, err := a.ctl.AutoContinue(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						break
					}
					fmt.Fprintln(out, agent.UserMessage(err))
					continue
				}
				armed = d.ShouldArm
			}
			fmt.Fprintln(out, "bye")
			return nil
		},
	}
}

// newOneShotCmd covers the echo and ask flows, which record a single
// utterance and stop.
func newOneShotCmd(use, short string, mode types.Mode) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			a.ctl.SetMode(mode)

			ctx, cancel := signalContext()
			defer cancel()

			if err := a.ctl.StartRecording(ctx); err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			if err := runTurn(ctx, a, in, cmd.OutOrStdout()); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		},
	}
}

func newSayCmd() *cobra.Command {
	var voiceID string
	c := &cobra.Command{
		Use:   "say <text>",
		Short: "Synthesize text and play it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			voice := voiceID
			if voice == "" {
				voice = a.cfg.Agent.VoiceID
			}
			audioURL, err := a.client.GenerateAudio(ctx, strings.Join(args, " "), voice)
			if err != nil {
				return errors.New(agent.UserMessage(err))
			}
			return a.player.Play(ctx, audioURL)
		},
	}
	c.Flags().StringVar(&voiceID, "voice", "", "voice id override")
	return c
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions known to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			summaries, err := a.ctl.ListSessions(ctx)
			if err != nil {
				return errors.New(agent.UserMessage(err))
			}
			out := cmd.OutOrStdout()
			for _, s := range summaries {
				marker := " "
				if s.ID == a.ctl.SessionID() {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %d messages  updated %s\n",
					marker, s.ID, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var sync bool
	c := &cobra.Command{
		Use:   "history",
		Short: "Show the current session's conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			if sync {
				if err := a.ctl.SyncHistory(ctx); err != nil {
					return errors.New(agent.UserMessage(err))
				}
			}
			printTurns(cmd.OutOrStdout(), a.ctl.Display())
			return nil
		},
	}
	c.Flags().BoolVar(&sync, "sync", false, "replace local history with the backend's copy")
	return c
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Erase the current session's history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := signalContext()
			defer cancel()

			if err := a.ctl.ClearHistory(ctx); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "local history cleared; backend delete failed:", agent.UserMessage(err))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		},
	}
}

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a fresh session (previous history is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			fmt.Fprintln(cmd.OutOrStdout(), a.ctl.NewSession())
			return nil
		},
	}
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <session-id>",
		Short: "Switch to an existing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.ctl.UseSession(args[0]); err != nil {
				return err
			}
			printTurns(cmd.OutOrStdout(), a.ctl.Display())
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend and local audio commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx, cancel := signalContext()
			defer cancel()

			status := health.CheckAll(ctx, cfg)
			fmt.Fprint(cmd.OutOrStdout(), status.String())
			if !status.OK {
				return errors.New("one or more health checks failed")
			}
			return nil
		},
	}
}

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "voiceloop",
		Short:         "Voice conversation client for the voice-agent backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newChatCmd().RunE(cmd, args)
		},
	}
	root.PersistentFlags().StringVar(&sessionFlag, "session", "", "session id to use (default: last active)")
	root.PersistentFlags().BoolVar(&readoutFlag, "readout", false, "read errors aloud")

	root.AddCommand(
		newChatCmd(),
		newOneShotCmd("echo", "Record once and hear it transcribed back", types.ModeEcho),
		newOneShotCmd("ask", "Record a single question for the language model", types.ModeLLM),
		newSayCmd(),
		newSessionsCmd(),
		newHistoryCmd(),
		newClearCmd(),
		newNewCmd(),
		newUseCmd(),
		newHealthCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
