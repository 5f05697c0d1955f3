// Package config loads jukebox settings from flags, the environment and an
// optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/infra/backend"
)

// Defaults
const (
	DefaultPort      = "3002"
	DefaultMPDHost   = "localhost"
	DefaultMPDPort   = 6600
	DefaultStreamURL = "http://localhost:8090/stream/%s"
	DefaultDBPath    = "data/jukebox.db"
)

// Config holds the jukebox configuration.
type Config struct {
	Port           string
	APIURL         string
	Name           string
	MPDHost        string
	MPDPort        int
	MPDPassword    string
	StreamURL      string
	StaticDir      string
	Debug          bool
	Console        bool
	AllowedOrigins []string
	MaxClients     int
	DBPath         string
}

// Load reads envFiles (".env" when none are given) into the environment and
// parses args on top of it. Missing env files are not an error.
func Load(args []string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
		log.Debug().Msg("No .env file found, using environment variables")
	}
	return Parse(args, os.Getenv)
}

// Parse builds a Config from command line args. Environment values, read
// through getenv, provide the flag defaults.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	envBool := func(key string) bool {
		b, _ := strconv.ParseBool(getenv(key))
		return b
	}

	envInt := func(key string, def int) (int, error) {
		v := getenv(key)
		if v == "" {
			return def, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		return n, nil
	}

	mpdPort, err := envInt("MPD_PORT", DefaultMPDPort)
	if err != nil {
		return nil, err
	}
	maxClients, err := envInt("JUKEBOX_MAX_CLIENTS", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	var origins string

	fsFlags := flag.NewFlagSet("jukebox", flag.ContinueOnError)
	fsFlags.SetOutput(io.Discard)
	fsFlags.StringVar(&cfg.Port, "port", env("JUKEBOX_PORT", DefaultPort), "HTTP server port")
	fsFlags.StringVar(&cfg.APIURL, "api-url", env("JUKEBOX_API_URL", backend.DefaultBaseURL), "Queue API base URL")
	fsFlags.StringVar(&cfg.Name, "name", env("JUKEBOX_NAME", ""), "Display name sent with suggestions (default hostname)")
	fsFlags.StringVar(&cfg.MPDHost, "mpd-host", env("MPD_HOST", DefaultMPDHost), "MPD host")
	fsFlags.IntVar(&cfg.MPDPort, "mpd-port", mpdPort, "MPD port")
	fsFlags.StringVar(&cfg.MPDPassword, "mpd-password", env("MPD_PASSWORD", ""), "MPD password")
	fsFlags.StringVar(&cfg.StreamURL, "stream-url", env("JUKEBOX_STREAM_URL", DefaultStreamURL), "Stream URL template, %s is replaced by the video id")
	fsFlags.StringVar(&cfg.StaticDir, "static", env("JUKEBOX_STATIC_DIR", ""), "Directory to serve static files from (optional)")
	fsFlags.BoolVar(&cfg.Debug, "debug", envBool("JUKEBOX_DEBUG"), "Enable debug logging")
	fsFlags.BoolVar(&cfg.Console, "console", envBool("JUKEBOX_CONSOLE"), "Start the interactive console")
	fsFlags.IntVar(&cfg.MaxClients, "max-clients", maxClients, "Maximum concurrent remote Socket.io clients, oldest is evicted (0 = unlimited)")
	fsFlags.StringVar(&cfg.DBPath, "db", env("JUKEBOX_DB", DefaultDBPath), "SQLite file for play history and thumbnails (\"none\" disables)")
	fsFlags.StringVar(&origins, "allowed-origins", env("JUKEBOX_ALLOWED_ORIGINS", ""), "Comma separated browser origins allowed on the HTTP API and WebSocket feed (empty allows all)")

	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}

	cfg.AllowedOrigins = splitList(origins)
	if strings.EqualFold(cfg.DBPath, "none") {
		cfg.DBPath = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if strings.Count(c.StreamURL, "%s") != 1 {
		return fmt.Errorf("stream URL %q must contain exactly one %%s", c.StreamURL)
	}

	if c.MaxClients < 0 {
		return fmt.Errorf("invalid max clients %d", c.MaxClients)
	}

	if c.MPDPort < 1 || c.MPDPort > 65535 {
		return fmt.Errorf("invalid MPD port %d", c.MPDPort)
	}

	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid HTTP port %q", c.Port)
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q", c.APIURL)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
