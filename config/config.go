/*
 * Musing
 *
 * A single-host music player server.
 */

// Package config resolves musing's startup configuration from, in
// increasing order of precedence, built-in defaults, a TOML config
// file, and explicit CLI flags. The TOML fallback retry mirrors the
// teacher's FilePlaylistFactory: a strict parse first, then one retry
// with C-style comments stripped before giving up.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"devt.de/krotik/common/stringutil"
)

// Known configuration keys and their built-in defaults.
const (
	DefaultPort        = 2137
	DefaultPlaylistDir = "./playlists"
	DefaultAudioDevice = "default"
)

// Config is musing's fully resolved startup configuration.
type Config struct {
	Port        int
	MusicDir    string
	PlaylistDir string
	AudioDevice string
}

// Defaults is the built-in configuration applied before any TOML file
// or CLI flag is consulted. MusicDir has no default: it must come from
// the config file or --music-dir.
var Defaults = Config{
	Port:        DefaultPort,
	PlaylistDir: DefaultPlaylistDir,
	AudioDevice: DefaultAudioDevice,
}

// fileConfig mirrors Config but with pointer fields, so a TOML file can
// leave a key entirely unset (distinct from zero-valued).
type fileConfig struct {
	Port        *int    `toml:"port"`
	MusicDir    *string `toml:"music_dir"`
	PlaylistDir *string `toml:"playlist_dir"`
	AudioDevice *string `toml:"audio_device"`
}

// LoadFile parses the TOML config file at path. A strict parse is tried
// first; if it fails, the raw bytes are stripped of C-style comments and
// retried once, the same fallback the teacher's playlist factory uses
// for its JSON definition file.
func LoadFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if _, err := toml.Decode(string(raw), &fc); err != nil {
		stripped := stringutil.StripCStyleComments(raw)
		if _, err2 := toml.Decode(string(stripped), &fc); err2 != nil {
			return fileConfig{}, fmt.Errorf("parsing config file: %w", err)
		}
	}
	return fc, nil
}

// Merge overlays fc onto Defaults, then applies any CLI flag the user
// explicitly set on cmd, per the precedence in SPEC_FULL.md §2: CLI
// overrides TOML overrides defaults.
func Merge(fc fileConfig, cmd *cobra.Command) (Config, error) {
	cfg := Defaults

	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.MusicDir != nil {
		cfg.MusicDir = *fc.MusicDir
	}
	if fc.PlaylistDir != nil {
		cfg.PlaylistDir = *fc.PlaylistDir
	}
	if fc.AudioDevice != nil {
		cfg.AudioDevice = *fc.AudioDevice
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("music-dir") {
		cfg.MusicDir, _ = flags.GetString("music-dir")
	}
	if flags.Changed("playlist-dir") {
		cfg.PlaylistDir, _ = flags.GetString("playlist-dir")
	}
	if flags.Changed("audio-device") {
		cfg.AudioDevice, _ = flags.GetString("audio-device")
	}

	if cfg.MusicDir == "" {
		return Config{}, fmt.Errorf("music_dir is required (set via --music-dir or the config file)")
	}
	return cfg, nil
}

// Resolve reads --config (if set), merges it with Defaults and cmd's
// explicit flags, and returns the final Config.
func Resolve(cmd *cobra.Command) (Config, error) {
	var fc fileConfig
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		fc, err = LoadFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	return Merge(fc, cmd)
}

// BindFlags registers musing's CLI surface onto cmd.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int("port", DefaultPort, "TCP port to listen on")
	flags.String("music-dir", "", "root directory of the music library (required)")
	flags.String("playlist-dir", DefaultPlaylistDir, "directory holding .m3u playlists")
	flags.String("audio-device", DefaultAudioDevice, "name of the audio output device to start on")
	flags.String("config", "", "path to a TOML config file")
}
