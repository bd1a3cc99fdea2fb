/*
 * Musing
 *
 * A single-host music player server.
 */

// Package audiocodec is the thin boundary between musing and the external
// audio-decoding/output collaborator described in spec.md §1: given a file
// path it yields a seekable stream of decoded PCM frames plus the
// total duration. It is shared by the catalog (duration probing at scan
// time) and the player (actual playback), so both sides agree on exactly
// which decoder backs which file extension.
package audiocodec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// Stream is a decoded, seekable audio stream together with its format and
// the file handle backing it.
type Stream struct {
	beep.StreamSeekCloser
	Format beep.Format
}

// Open opens path and returns a decoded stream using the decoder selected
// by the file's extension. The caller owns the returned Stream and must
// Close it.
func Open(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext(path) {
	case "mp3", "aac":
		// aac has no dedicated decoder in this stack; mp3.Decode handles
		// the common case of an mp3-compatible elementary stream and
		// fails fast otherwise, which scan() treats as a skip.
		streamer, format, err = mp3.Decode(f)
	case "flac":
		streamer, format, err = flac.Decode(f)
	case "wav", "aif":
		streamer, format, err = wav.Decode(f)
	case "ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported audio extension: %s", path)
	}

	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return &Stream{StreamSeekCloser: streamer, Format: format}, nil
}

// Duration returns the total playable length of the stream.
func (s *Stream) Duration() time.Duration {
	return s.Format.SampleRate.D(s.Len())
}

func ext(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Supported reports whether path's extension has a decoder registered
// above. It mirrors musing.SupportedAudioExtensions but lives here so the
// decode table and the "can we even open this" check never drift apart.
func Supported(path string) bool {
	switch ext(path) {
	case "mp3", "aac", "flac", "wav", "aif", "ogg":
		return true
	}
	return false
}
