package state

import (
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/alfazet/musing/catalog"
	"github.com/alfazet/musing/playlistio"
	"github.com/alfazet/musing/player"
	"github.com/alfazet/musing/queue"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newBroadcaster(t *testing.T) (*Broadcaster, *queue.Queue, *player.Player) {
	t.Helper()
	root := t.TempDir()
	playlistDir := t.TempDir()

	c := catalog.New(root, testLogger())
	q := queue.New()
	p := player.New(q, []string{"default"}, testLogger())
	t.Cleanup(p.Close)
	store := playlistio.New(playlistDir, root)

	return New(c, q, p, store), q, p
}

func TestFirstDiffIncludesAllKeys(t *testing.T) {
	b, _, _ := newBroadcaster(t)
	sess := NewSession()

	diff := b.Diff(sess)
	for _, key := range []string{"queue", "current", "cover_art", "playback_state", "playback_mode", "gapless", "volume", "speed", "timer", "playlists", "devices"} {
		if _, ok := diff[key]; !ok {
			t.Fatalf("expected key %q in first diff, got %v", key, diff)
		}
	}
}

func TestSecondDiffWithNoChangesIsEmpty(t *testing.T) {
	b, _, _ := newBroadcaster(t)
	sess := NewSession()

	b.Diff(sess)
	diff := b.Diff(sess)
	if len(diff) != 0 {
		t.Fatalf("expected empty diff when nothing changed, got %v", diff)
	}
}

func TestDiffReportsOnlyChangedKeys(t *testing.T) {
	b, q, _ := newBroadcaster(t)
	sess := NewSession()

	b.Diff(sess)
	q.Add([]string{"/music/a.mp3"}, -1)

	diff := b.Diff(sess)
	if _, ok := diff["queue"]; !ok {
		t.Fatalf("expected queue key in diff after adding an entry, got %v", diff)
	}
	if _, ok := diff["volume"]; ok {
		t.Fatalf("did not expect volume key to change, got %v", diff)
	}
}

func TestIndependentSessionsDiffIndependently(t *testing.T) {
	b, q, _ := newBroadcaster(t)
	sessA := NewSession()
	sessB := NewSession()

	b.Diff(sessA)
	q.Add([]string{"/music/a.mp3"}, -1)

	diffA := b.Diff(sessA)
	diffB := b.Diff(sessB)
	if _, ok := diffA["queue"]; !ok {
		t.Fatalf("expected sessA to observe the queue change, got %v", diffA)
	}
	if len(diffB) == 0 {
		t.Fatal("expected sessB's first diff to include every key")
	}
}
