/*
 * Musing
 *
 * A single-host music player server.
 */

// Package playlistio implements M3U playlist file I/O: plain text, one
// song path per line, stored under a configured playlist directory and
// expressed relative to the library root, per spec.md §4.7.
package playlistio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alfazet/musing"
)

const extension = ".m3u"

// Store is the file-backed playlist directory, rooted at dir, resolving
// song paths relative to root (the catalog's library root).
type Store struct {
	dir  string
	root string
}

// New creates a Store serving playlist files out of dir.
func New(dir, root string) *Store {
	return &Store{dir: dir, root: root}
}

func (s *Store) path(playlist string) string {
	name := playlist
	if filepath.Ext(name) == "" {
		name += extension
	}
	return filepath.Join(s.dir, filepath.Base(name))
}

// toRelative expresses an absolute song path relative to the library
// root, the form the M3U format stores paths in.
func (s *Store) toRelative(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return rel
}

// toAbsolute resolves a path stored in a playlist file back to an
// absolute path under the library root.
func (s *Store) toAbsolute(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}

// lineEnding reports the line terminator already used by an existing
// playlist file, so Add can preserve it (per spec.md §4.7) instead of
// always writing "\n". Defaults to "\n" for a new or empty file.
func lineEnding(raw []byte) string {
	if idx := strings.IndexByte(string(raw), '\n'); idx > 0 && raw[idx-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// Add appends song (converted relative to root) as one line to playlist,
// creating the file if it does not already exist.
func (s *Store) Add(playlist, song string) error {
	path := s.path(playlist)

	ending := "\n"
	if existing, err := os.ReadFile(path); err == nil {
		ending = lineEnding(existing)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", musing.ErrIO, err)
	}
	defer f.Close()

	line := s.toRelative(song)
	if _, err := f.WriteString(line + ending); err != nil {
		return fmt.Errorf("%w: %v", musing.ErrIO, err)
	}
	return nil
}

// List returns the song paths recorded in playlist, in file order,
// relative to the library root exactly as written - the form spec.md
// §4.7's listsongs contract requires. Use Resolve to turn an entry back
// into an absolute catalog path.
func (s *Store) List(playlist string) ([]string, error) {
	return s.readLines(playlist)
}

// Resolve turns a path recorded in a playlist file back into an absolute
// path under the library root.
func (s *Store) Resolve(path string) string {
	return s.toAbsolute(path)
}

// Remove deletes the pos-th line (zero-indexed) from playlist.
func (s *Store) Remove(playlist string, pos int) error {
	lines, err := s.readLines(playlist)
	if err != nil {
		return err
	}
	if pos < 0 || pos >= len(lines) {
		return fmt.Errorf("%w: position %d", musing.ErrArgOutOfRange, pos)
	}
	lines = append(lines[:pos], lines[pos+1:]...)
	return s.writeLines(playlist, lines)
}

// Save writes songs (absolute paths, converted relative to root) as a new
// playlist file, one per line, overwriting any existing content.
func (s *Store) Save(playlist string, songs []string) error {
	lines := make([]string, len(songs))
	for i, song := range songs {
		lines[i] = s.toRelative(song)
	}
	return s.writeLines(playlist, lines)
}

// Playlists lists the names of playlist files currently in the
// directory, sorted lexicographically - the projection the state
// broadcaster reports under its "playlists" field.
func (s *Store) Playlists() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", musing.ErrIO, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != extension {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) readLines(playlist string) ([]string, error) {
	f, err := os.Open(s.path(playlist))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", musing.ErrInvalidPath, playlist)
		}
		return nil, fmt.Errorf("%w: %v", musing.ErrIO, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", musing.ErrIO, err)
	}
	return lines, nil
}

func (s *Store) writeLines(playlist string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(s.path(playlist), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("%w: %v", musing.ErrIO, err)
	}
	return nil
}
