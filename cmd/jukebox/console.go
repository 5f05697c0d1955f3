package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/domain/command"
	"github.com/edumarques81/stellar-jukebox/internal/domain/queue"
	"github.com/edumarques81/stellar-jukebox/internal/domain/view"
)

// consoleCommands is what the console can do.
type consoleCommands interface {
	EnableAudio()
	Suggest(ctx context.Context, query string) (queue.Track, error)
	Vote(ctx context.Context, songID int64, vote queue.VoteType) error
	Favorite(ctx context.Context, songID int64) error
	Skip(ctx context.Context) error
	Playlists(ctx context.Context) ([]queue.Playlist, error)
	CreatePlaylist(ctx context.Context, name string) (queue.Playlist, error)
	Recommendations(ctx context.Context) ([]queue.Track, error)
	TogglePlay() error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(vol int) (int, error)
	SetMute(mute bool) error
	ToggleMute() (bool, error)
	SetShuffle(on bool)
	ToggleShuffle() bool
	SetRepeat(on bool) error
	ToggleRepeat() (bool, error)
}

type consoleViews interface {
	View() view.View
}

var errQuit = errors.New("quit")

// consoleCmd is one parsed console line.
type consoleCmd struct {
	verb string
	id   int64
	num  float64
	on   *bool // nil toggles
	text string
}

var consoleHelp = []struct{ usage, desc string }{
	{"status", "show now playing, progress and controls"},
	{"queue", "list the queue"},
	{"play | pause | toggle", "transport"},
	{"next", "skip to the next song"},
	{"seek <seconds>", "seek within the current song"},
	{"vol <0-100>", "set volume"},
	{"mute [on|off]", "mute, unmute or toggle"},
	{"shuffle [on|off]", "set or toggle shuffle"},
	{"repeat [on|off]", "set or toggle repeat"},
	{"suggest <query>", "add a song to the queue"},
	{"up <song> | down <song>", "vote on a queued song"},
	{"fav <song>", "toggle favorite"},
	{"playlists", "list playlists"},
	{"newplaylist <name>", "create a playlist"},
	{"recs", "show recommendations"},
	{"enable", "enable audio"},
	{"quit", "stop the jukebox"},
}

var consoleAliases = map[string]string{
	"s":      "status",
	"q":      "queue",
	"p":      "toggle",
	"n":      "next",
	"skip":   "next",
	"volume": "vol",
	"exit":   "quit",
	"?":      "help",
}

// parseCommand parses a console line. An empty line yields an empty verb.
func parseCommand(line string) (consoleCmd, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return consoleCmd{}, nil
	}

	verb := strings.ToLower(fields[0])
	if alias, ok := consoleAliases[verb]; ok {
		verb = alias
	}
	args := fields[1:]
	cmd := consoleCmd{verb: verb, text: strings.Join(args, " ")}

	switch verb {
	case "help", "status", "queue", "play", "pause", "toggle", "next",
		"playlists", "recs", "enable", "quit":
		return cmd, nil

	case "seek":
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: seek <seconds>")
		}
		secs, err := parseSeconds(args[0])
		if err != nil {
			return cmd, err
		}
		cmd.num = secs

	case "vol":
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: vol <0-100>")
		}
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return cmd, fmt.Errorf("invalid volume %q", args[0])
		}
		cmd.num = float64(v)

	case "mute", "shuffle", "repeat":
		if len(args) > 1 {
			return cmd, fmt.Errorf("usage: %s [on|off]", verb)
		}
		if len(args) == 1 {
			on, err := parseSwitch(args[0])
			if err != nil {
				return cmd, err
			}
			cmd.on = &on
		}

	case "up", "down", "fav":
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: %s <song>", verb)
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
		if err != nil {
			return cmd, fmt.Errorf("invalid song id %q", args[0])
		}
		cmd.id = id

	case "suggest", "newplaylist":
		if cmd.text == "" {
			return cmd, fmt.Errorf("usage: %s <text>", verb)
		}

	default:
		return cmd, fmt.Errorf("unknown command %q, try help", fields[0])
	}

	return cmd, nil
}

// parseSeconds accepts "90", "90.5" or "1:30".
func parseSeconds(s string) (float64, error) {
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.Atoi(sec)
		if err1 != nil || err2 != nil || secs >= 60 {
			return 0, fmt.Errorf("invalid position %q", s)
		}
		return float64(mins*60 + secs), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return f, nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "1", "true":
		return true, nil
	case "off", "no", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// execute runs cmd and writes any output to w.
func execute(ctx context.Context, cmd consoleCmd, cmds consoleCommands, views consoleViews, w io.Writer) error {
	switch cmd.verb {
	case "":
		return nil
	case "help":
		for _, h := range consoleHelp {
			fmt.Fprintf(w, "  %-26s %s\n", h.usage, h.desc)
		}
	case "status":
		writeStatus(w, views.View())
	case "queue":
		writeQueue(w, views.View().Queue)
	case "play":
		return cmds.Play()
	case "pause":
		return cmds.Pause()
	case "toggle":
		return cmds.TogglePlay()
	case "next":
		return cmds.Skip(ctx)
	case "seek":
		return cmds.Seek(cmd.num)
	case "vol":
		vol, err := cmds.SetVolume(int(cmd.num))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "volume %d\n", vol)
	case "mute":
		if cmd.on != nil {
			return cmds.SetMute(*cmd.on)
		}
		muted, err := cmds.ToggleMute()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "muted %s\n", onOff(muted))
	case "shuffle":
		on := cmd.on != nil && *cmd.on
		if cmd.on == nil {
			on = cmds.ToggleShuffle()
		} else {
			cmds.SetShuffle(on)
		}
		fmt.Fprintf(w, "shuffle %s\n", onOff(on))
	case "repeat":
		if cmd.on != nil {
			return cmds.SetRepeat(*cmd.on)
		}
		on, err := cmds.ToggleRepeat()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "repeat %s\n", onOff(on))
	case "suggest":
		track, err := cmds.Suggest(ctx, cmd.text)
		if errors.Is(err, command.ErrSuggestionFailed) {
			fmt.Fprintln(w, command.SuggestionFailedMessage)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "queued %s - %s\n", track.Title, track.Artist)
	case "up":
		return cmds.Vote(ctx, cmd.id, queue.VoteUp)
	case "down":
		return cmds.Vote(ctx, cmd.id, queue.VoteDown)
	case "fav":
		return cmds.Favorite(ctx, cmd.id)
	case "playlists":
		playlists, err := cmds.Playlists(ctx)
		if err != nil {
			return err
		}
		for _, p := range playlists {
			fmt.Fprintf(w, "  #%-4d %s (%d)\n", p.ID, p.Name, p.TrackCount)
		}
	case "newplaylist":
		p, err := cmds.CreatePlaylist(ctx, cmd.text)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "created playlist #%d %s\n", p.ID, p.Name)
	case "recs":
		tracks, err := cmds.Recommendations(ctx)
		if err != nil {
			return err
		}
		for _, t := range tracks {
			fmt.Fprintf(w, "  %s - %s\n", t.Title, t.Artist)
		}
	case "enable":
		cmds.EnableAudio()
	case "quit":
		return errQuit
	}
	return nil
}

func writeStatus(w io.Writer, v view.View) {
	np := v.NowPlaying
	fmt.Fprintf(w, "%s %s - %s %s\n", v.Controls.PlayPauseIcon.Glyph(), np.Title, np.Artist, np.FavoriteIcon.Glyph())
	if !np.Empty {
		fmt.Fprintf(w, "  %s / %s (%.0f%%)\n", v.Progress.Elapsed, v.Progress.Total, v.Progress.Percent)
	}
	fmt.Fprintf(w, "  %s %d  shuffle %s  repeat %s\n",
		v.Controls.VolumeIcon.Glyph(), v.Controls.Volume, onOff(v.Controls.Shuffle), onOff(v.Controls.Repeat))
	fmt.Fprintf(w, "  player %s, %s", v.Player.State, v.Player.Phase)
	if !v.Player.AudioEnabled {
		fmt.Fprint(w, ", audio locked (type enable)")
	}
	fmt.Fprintln(w)
}

func writeQueue(w io.Writer, items []view.QueueItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "  queue is empty")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "  %2d. #%-4d %s - %s %s\n", it.Position, it.SongID, it.Title, it.Artist, it.FavoriteIcon.Glyph())
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func consoleCompleter() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{}
	for _, verb := range []string{
		"help", "status", "queue", "play", "pause", "toggle", "next", "seek",
		"vol", "suggest", "up", "down", "fav", "playlists", "newplaylist",
		"recs", "enable", "quit",
	} {
		items = append(items, readline.PcItem(verb))
	}
	for _, verb := range []string{"mute", "shuffle", "repeat"} {
		items = append(items, readline.PcItem(verb, readline.PcItem("on"), readline.PcItem("off")))
	}
	return readline.NewPrefixCompleter(items...)
}

// runConsole reads commands until quit, EOF or ctx is done. Quitting the
// console stops the jukebox.
func runConsole(ctx context.Context, stop context.CancelFunc, cmds consoleCommands, views consoleViews) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "jukebox> ",
		AutoComplete:    consoleCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		log.Error().Err(err).Msg("Console unavailable")
		return
	}
	defer rl.Close()

	// Keep log lines from tearing the prompt.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: rl.Stderr(), TimeFormat: time.RFC3339})

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	out := rl.Stdout()
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && line != "" {
				continue
			}
			stop()
			return
		}

		cmd, err := parseCommand(line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = execute(cctx, cmd, cmds, views, out)
		cancel()

		switch {
		case errors.Is(err, errQuit):
			stop()
			return
		case err != nil:
			fmt.Fprintln(out, "error:", err)
		}
	}
}
