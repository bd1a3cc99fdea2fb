/*
 * Musing
 *
 * A single-host music player server.
 */

// Package catalog maintains the in-memory, tag-indexed music catalog
// rooted at a configured library directory: scanning, incremental
// refresh, path listing, metadata lookup and filtered/grouped/sorted
// select queries.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/alfazet/musing"
)

// snapshot is an immutable view of the catalog. Catalog swaps in a fresh
// snapshot under writeMu on scan/update; readers load the current
// snapshot pointer without taking any lock, per spec.md §9's "immutable
// snapshot swapped under an exclusive-write lock" design note.
type snapshot struct {
	byPath map[string]*Song
	byDir  map[string][]*Song
}

func newSnapshot() *snapshot {
	return &snapshot{
		byPath: make(map[string]*Song),
		byDir:  make(map[string][]*Song),
	}
}

func (s *snapshot) insert(song *Song) {
	s.byPath[song.Path] = song
	dir := filepath.Dir(song.Path)
	s.byDir[dir] = append(s.byDir[dir], song)
}

// Catalog is the process-wide, read-mostly song index rooted at Root.
type Catalog struct {
	Root string

	writeMu sync.Mutex
	current atomic.Pointer[snapshot]

	log zerolog.Logger
}

// New creates an empty Catalog rooted at root. Call Scan to populate it.
func New(root string, log zerolog.Logger) *Catalog {
	c := &Catalog{Root: root, log: log.With().Str("component", "catalog").Logger()}
	c.current.Store(newSnapshot())
	return c
}

func (c *Catalog) snapshot() *snapshot {
	return c.current.Load()
}

// Scan recursively walks Catalog.Root and indexes every regular file
// whose extension is in musing.SupportedAudioExtensions. Files that fail
// tag extraction are skipped silently. The resulting snapshot replaces
// the current one atomically.
func (c *Catalog) Scan() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next := newSnapshot()

	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !isSupportedExt(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("stat failed during scan")
			return nil
		}

		song, err := readSong(path, info.ModTime())
		if err != nil {
			c.log.Debug().Err(err).Str("path", path).Msg("skipping file")
			return nil
		}

		next.insert(song)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", c.Root, err)
	}

	c.current.Store(next)
	c.log.Info().Int("songs", len(next.byPath)).Msg("scan complete")

	return nil
}

// Update incrementally reconciles the catalog against the filesystem:
// existing records whose file disappeared are dropped, records whose
// file's modification time changed are re-extracted, and files not yet
// indexed are added. The swap to the new snapshot is atomic; concurrent
// readers observe either the pre-update or the post-update catalog, never
// a partial merge.
func (c *Catalog) Update() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	prev := c.snapshot()
	next := newSnapshot()

	for path, song := range prev.byPath {
		info, err := os.Stat(path)
		if err != nil {
			// File no longer exists - drop it.
			continue
		}
		if info.ModTime().Equal(song.ModTime) {
			next.insert(song)
			continue
		}
		refreshed, err := readSong(path, info.ModTime())
		if err != nil {
			c.log.Debug().Err(err).Str("path", path).Msg("re-extract failed during update, dropping")
			continue
		}
		next.insert(refreshed)
	}

	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isSupportedExt(path) {
			return nil
		}
		if _, already := next.byPath[path]; already {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		song, err := readSong(path, info.ModTime())
		if err != nil {
			c.log.Debug().Err(err).Str("path", path).Msg("skipping new file")
			return nil
		}
		next.insert(song)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", c.Root, err)
	}

	c.current.Store(next)
	c.log.Info().Int("songs", len(next.byPath)).Msg("update complete")

	return nil
}

// Ls returns all song paths whose parent directory equals the
// canonicalized dir, sorted lexicographically. dir may be absolute or
// relative to Root.
func (c *Catalog) Ls(dir string) ([]string, error) {
	resolved, err := c.resolveDir(dir)
	if err != nil {
		return nil, err
	}

	snap := c.snapshot()
	songs, ok := snap.byDir[resolved]
	if !ok {
		// An empty, but existing, directory is not an error; only a
		// non-existent or non-directory dir is.
		info, statErr := os.Stat(resolved)
		if statErr != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", musing.ErrInvalidPath, dir)
		}
	}

	paths := make([]string, len(songs))
	for i, s := range songs {
		paths[i] = s.Path
	}
	sort.Strings(paths)

	return paths, nil
}

func (c *Catalog) resolveDir(dir string) (string, error) {
	resolved := dir
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(c.Root, resolved)
	}
	return filepath.Clean(resolved), nil
}

func (c *Catalog) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(c.Root, path))
}

// Metadata returns, for each of paths (resolved against Root if
// relative), a mapping restricted to tags (or the full supported set if
// tags is nil). Paths not in the catalog produce an empty mapping in the
// same positional order as the input.
func (c *Catalog) Metadata(paths []string, tags []string) ([]map[string]string, error) {
	for _, t := range tags {
		if !musing.IsSupportedTag(t) {
			return nil, fmt.Errorf("%w: %s", musing.ErrUnknownTag, t)
		}
	}

	snap := c.snapshot()
	out := make([]map[string]string, len(paths))

	for i, p := range paths {
		resolved := c.resolvePath(p)
		song, ok := snap.byPath[resolved]
		if !ok {
			out[i] = map[string]string{}
			continue
		}

		result := make(map[string]string)
		if len(tags) == 0 {
			for _, t := range musing.SupportedTags {
				if v, ok := song.Tags[t]; ok {
					result[t] = v
				}
			}
		} else {
			for _, t := range tags {
				if v, ok := song.Tags[t]; ok {
					result[t] = v
				}
			}
		}
		out[i] = result
	}

	return out, nil
}

// Lookup returns the indexed song at path (resolved against Root if
// relative), or false if it is not indexed.
func (c *Catalog) Lookup(path string) (*Song, bool) {
	snap := c.snapshot()
	song, ok := snap.byPath[c.resolvePath(path)]
	return song, ok
}

// AllPaths returns every indexed song path, unsorted.
func (c *Catalog) AllPaths() []string {
	snap := c.snapshot()
	paths := make([]string, 0, len(snap.byPath))
	for p := range snap.byPath {
		paths = append(paths, p)
	}
	return paths
}

func isSupportedExt(path string) bool {
	ext := filepath.Ext(path)
	if len(ext) == 0 {
		return false
	}
	_, ok := musing.SupportedAudioExtensions[toLowerNoDot(ext)]
	return ok
}

func toLowerNoDot(ext string) string {
	b := []byte(ext[1:])
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
