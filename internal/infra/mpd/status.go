package mpd

import (
	"strconv"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

// Player states as reported by MPD.
const (
	StatePlay  = "play"
	StatePause = "pause"
	StateStop  = "stop"
)

// Status is the subset of MPD's status response the jukebox reads.
type Status struct {
	State    string
	Volume   int // -1 when MPD has no mixer
	Elapsed  time.Duration
	Duration time.Duration // 0 for live streams
	Repeat   bool
	Single   bool

	// AudioOpen is set once an output format is negotiated, i.e. sound is
	// actually flowing rather than the stream still connecting.
	AudioOpen bool
}

// ParseStatus converts a raw status response. Missing or malformed fields
// take their zero value, except Volume which becomes -1.
func ParseStatus(attrs mpd.Attrs) Status {
	st := Status{
		State:     attrs["state"],
		Volume:    -1,
		Elapsed:   seconds(attrs["elapsed"]),
		Duration:  seconds(attrs["duration"]),
		Repeat:    attrs["repeat"] == "1",
		Single:    attrs["single"] == "1",
		AudioOpen: attrs["audio"] != "",
	}
	if st.State == "" {
		st.State = StateStop
	}
	if v, err := strconv.Atoi(attrs["volume"]); err == nil && v >= 0 {
		st.Volume = v
	}
	return st
}

func seconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
