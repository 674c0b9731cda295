package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"watchsync/internal/client/playback"
	"watchsync/internal/client/roomapi"
	"watchsync/internal/client/session"
	"watchsync/internal/core/domain"
	"watchsync/pkg/validation"
)

var joinCmd = &cobra.Command{
	Use:   "join <code>",
	Short: "Join a room; stdin lines are chat input",
	Long: `Join a room with a headless player. Every line read from stdin is sent as
chat, so playback commands ("play", "seek 90", "speed 1.5") and video links work
as they do in the browser. Lines starting with a slash are local:

  /load <url>   load a video without posting it to chat
  /state        print the local playback state
  /members      print the member list
  /quit         leave the room`,
	Args: cobra.ExactArgs(1),
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().String("name", "", "display name shown to the room")
	_ = joinCmd.MarkFlagRequired("name")
}

func parseCode(arg string) (domain.RoomCode, error) {
	code := domain.NormalizeRoomCode(arg)
	if err := validation.ValidateRoomCode(string(code)); err != nil {
		return "", err
	}
	return code, nil
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	name, _ := cmd.Flags().GetString("name")
	code, err := parseCode(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := roomapi.NewClient(cfg.Client.APIURL)
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	transport := session.SelectTransport(probeCtx, api, cfg.Client.RelayURL, cfg.Relay.WriteTimeout, log)
	cancel()

	out := cmd.OutOrStdout()
	opts := session.Options{
		Backoff:   cfg.Client.ReconnectBackoff,
		SendQueue: cfg.Client.SendQueue,
		OnStatus: func(s session.Status) {
			fmt.Fprintf(out, "* %s\n", s)
		},
	}
	if transport.Name() == "relay" {
		opts.Checker = api
	}
	controller := session.NewController(transport, opts, log)
	defer controller.Close()

	player := playback.NewMemoryPlayer()
	engine := playback.NewEngine(player, controller, playback.Hooks{
		OnLine:       func(l playback.Line) { printLine(out, l) },
		OnNotice:     func(n string) { fmt.Fprintf(out, "! %s\n", n) },
		OnFullscreen: func(on bool) { fmt.Fprintf(out, "* fullscreen %v\n", on) },
	}, log)
	controller.SetHandler(engine.HandleEnvelope)

	engine.SetIdentity(code, name)
	if err := controller.Connect(ctx, string(code), name); err != nil {
		return err
	}

	go engine.RunPoller(ctx, cfg.Client.PollInterval)

	lines := make(chan string)
	go readLines(cmd.InOrStdin(), lines)

	for {
		select {
		case <-ctx.Done():
			controller.Leave()
			return nil
		case line, ok := <-lines:
			if !ok {
				controller.Leave()
				return nil
			}
			if quit := handleInput(out, engine, line); quit {
				controller.Leave()
				return nil
			}
		}
	}
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func handleInput(out io.Writer, engine *playback.Engine, line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		engine.SendText(line)
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/leave":
		return true
	case "/load":
		if len(fields) < 2 {
			fmt.Fprintln(out, "! usage: /load <url>")
			return false
		}
		engine.LoadVideo(fields[1])
	case "/state":
		s := engine.State()
		fmt.Fprintf(out, "* video=%s playing=%v position=%.1fs rate=%g volume=%g quality=%s\n",
			s.VideoID, s.IsPlaying, s.CurrentTime, s.PlaybackRate, s.Volume, playback.QualityLabel(s.Quality))
	case "/members":
		fmt.Fprintf(out, "* members: %s\n", strings.Join(engine.Members(), ", "))
	default:
		fmt.Fprintf(out, "! unknown command %s\n", fields[0])
	}
	return false
}

func printLine(out io.Writer, l playback.Line) {
	ts := ""
	if l.Timestamp > 0 {
		ts = time.UnixMilli(l.Timestamp).Format("15:04:05") + " "
	}
	switch l.Kind {
	case playback.LineChat:
		fmt.Fprintf(out, "%s<%s> %s\n", ts, l.DisplayName, l.Text)
	case playback.LineCommand:
		fmt.Fprintf(out, "%s<%s> /%s\n", ts, l.DisplayName, l.Text)
	default:
		fmt.Fprintf(out, "%s-- %s\n", ts, l.Text)
	}
}
