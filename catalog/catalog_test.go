package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newTestSong(path string, tags map[string]string) *Song {
	return &Song{
		Path:    path,
		ModTime: time.Now(),
		Tags:    tags,
	}
}

func TestCatalogLs(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	c := New(root, testLogger())
	snap := newSnapshot()
	snap.insert(newTestSong(filepath.Join(root, "a.mp3"), map[string]string{"artist": "X"}))
	snap.insert(newTestSong(filepath.Join(sub, "b.flac"), nil))
	c.current.Store(snap)

	paths, err := c.Ls(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != filepath.Join(root, "a.mp3") {
		t.Fatalf("unexpected ls result: %v", paths)
	}

	if _, err := c.Ls(filepath.Join(root, "nonexistent")); err == nil {
		t.Fatal("expected error for non-existent dir")
	}
}

func TestCatalogMetadata(t *testing.T) {
	root := t.TempDir()
	c := New(root, testLogger())
	snap := newSnapshot()
	path := filepath.Join(root, "a.mp3")
	snap.insert(newTestSong(path, map[string]string{"artist": "X", "album": "Y"}))
	c.current.Store(snap)

	results, err := c.Metadata([]string{"a.mp3", "missing.mp3"}, []string{"artist"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0]["artist"] != "X" {
		t.Fatalf("expected artist X, got %v", results[0])
	}
	if _, ok := results[0]["album"]; ok {
		t.Fatalf("album should not be present when tags=[artist]: %v", results[0])
	}
	if len(results[1]) != 0 {
		t.Fatalf("missing path should produce empty map, got %v", results[1])
	}

	if _, err := c.Metadata([]string{"a.mp3"}, []string{"notatag"}); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestCatalogUpdateRemovesDeletedFiles(t *testing.T) {
	root := t.TempDir()
	c := New(root, testLogger())
	snap := newSnapshot()
	ghost := filepath.Join(root, "ghost.mp3")
	snap.insert(newTestSong(ghost, nil))
	c.current.Store(snap)

	if err := c.Update(); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup(ghost); ok {
		t.Fatal("expected deleted file to be dropped from the catalog")
	}
}
