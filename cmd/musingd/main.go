/*
 * Musing
 *
 * A single-host music player server.
 */

// Command musingd is musing's entry point: it resolves configuration,
// wires every subsystem together, and runs the TCP server until a
// SIGINT/SIGTERM is received. Composition mirrors the teacher's
// server/dudeldu.go main(): parse configuration, print a banner,
// construct each subsystem in dependency order, construct the server,
// run it, and treat a bootstrap error as fatal.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alfazet/musing"
	"github.com/alfazet/musing/catalog"
	"github.com/alfazet/musing/config"
	"github.com/alfazet/musing/dispatch"
	"github.com/alfazet/musing/player"
	"github.com/alfazet/musing/playlistio"
	"github.com/alfazet/musing/queue"
	"github.com/alfazet/musing/server"
	"github.com/alfazet/musing/state"
)

// print/fatal are held behind package vars, the same test-seam idiom the
// teacher uses for its own fatal/print globals in server/dudeldu.go.
var (
	print = func(a ...any) { fmt.Fprintln(os.Stderr, a...) }
	fatal = func(a ...any) { fmt.Fprintln(os.Stderr, a...); os.Exit(1) }
)

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if os.Getenv("MUSING_LOG_FORMAT") == "json" {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Resolve(cmd)
	if err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	log := newLogger(debug)

	print(fmt.Sprintf("musing %v", musing.ProductVersion))
	print(fmt.Sprintf("Music directory: %v", cfg.MusicDir))
	print(fmt.Sprintf("Playlist directory: %v", cfg.PlaylistDir))
	print(fmt.Sprintf("Audio device: %v", cfg.AudioDevice))
	print(fmt.Sprintf("Listening on port: %v", cfg.Port))

	c := catalog.New(cfg.MusicDir, log)
	if err := c.Scan(); err != nil {
		return fmt.Errorf("initial catalog scan: %w", err)
	}

	q := queue.New()
	p := player.New(q, []string{cfg.AudioDevice}, log)
	defer p.Close()

	if err := os.MkdirAll(cfg.PlaylistDir, 0o755); err != nil {
		return fmt.Errorf("creating playlist directory: %w", err)
	}
	playlists := playlistio.New(cfg.PlaylistDir, cfg.MusicDir)

	broadcaster := state.New(c, q, p, playlists)
	router := dispatch.New(c, q, p, broadcaster, playlists, log)

	srv := server.New(router, log)
	laddr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)

	defer print("Shutting down")
	return srv.Run(laddr)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "musingd",
		Short: "musing is a single-host music player server",
		RunE:  run,
	}
	config.BindFlags(cmd)
	cmd.Flags().Bool("debug", false, "enable debug-level logging")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatal(err)
	}
}
