// dispatch_test.go exercises routing, argument coercion and error
// translation - dispatch's own job per spec.md §4.6. Catalog-membership
// semantics (addqueue/play/load success paths) are already covered by
// catalog's and queue's own package tests; here only the not-in-catalog
// error path is exercised, since wiring a real scanned catalog entry
// would require a real tagged audio file on disk.
package dispatch

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/alfazet/musing/catalog"
	"github.com/alfazet/musing/player"
	"github.com/alfazet/musing/playlistio"
	"github.com/alfazet/musing/queue"
	"github.com/alfazet/musing/state"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func newRouter(t *testing.T) *Router {
	t.Helper()
	root := t.TempDir()
	playlistDir := t.TempDir()

	c := catalog.New(root, testLogger())
	q := queue.New()
	p := player.New(q, []string{"default"}, testLogger())
	t.Cleanup(p.Close)
	store := playlistio.New(playlistDir, root)
	broadcaster := state.New(c, q, p, store)

	return New(c, q, p, broadcaster, store, testLogger())
}

func raw(t *testing.T, fields map[string]any) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		out[k] = b
	}
	return out
}

func TestUnknownKindErrors(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("ghost", nil, state.NewSession())
	if resp["status"] != "err" {
		t.Fatalf("expected err status, got %+v", resp)
	}
}

func TestLsMissingDirArgErrors(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("ls", raw(t, map[string]any{}), state.NewSession())
	if resp["status"] != "err" {
		t.Fatalf("expected malformed-request error, got %+v", resp)
	}
}

func TestLsNonExistentDirErrors(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("ls", raw(t, map[string]any{"dir": "/does/not/exist"}), state.NewSession())
	if resp["status"] != "err" {
		t.Fatalf("expected invalid-path error, got %+v", resp)
	}
}

func TestMetadataUnknownTagErrors(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("metadata", raw(t, map[string]any{
		"paths": []string{"/x.mp3"},
		"tags":  []string{"not-a-tag"},
	}), state.NewSession())
	if resp["status"] != "err" {
		t.Fatalf("expected unknown-tag error, got %+v", resp)
	}
}

func TestSelectMalformedFilterErrors(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("select", raw(t, map[string]any{
		"tags":    []string{},
		"filters": []map[string]any{{"kind": "regex"}},
	}), state.NewSession())
	if resp["status"] != "err" {
		t.Fatalf("expected malformed filter error, got %+v", resp)
	}
}

func TestVolumeClampsAndRoundTrips(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("volume", raw(t, map[string]any{"delta": 1000}), state.NewSession())
	if resp["status"] != "ok" {
		t.Fatalf("expected ok, got %+v", resp)
	}

	sess := state.NewSession()
	diff := r.Handle("state", nil, sess)
	if diff["volume"] != 100 {
		t.Fatalf("expected clamped volume 100 in state, got %+v", diff)
	}
}

func TestAddQueueNotInCatalogErrors(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("addqueue", raw(t, map[string]any{"paths": []string{"/nope.mp3"}}), state.NewSession())
	if resp["status"] != "err" {
		t.Fatalf("expected not-in-catalog error, got %+v", resp)
	}
}

func TestPlayUnknownIDErrors(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("play", raw(t, map[string]any{"id": 999}), state.NewSession())
	if resp["status"] != "err" {
		t.Fatalf("expected argument-out-of-range error, got %+v", resp)
	}
}

func TestModeSwitchAndNextNoop(t *testing.T) {
	r := newRouter(t)
	if resp := r.Handle("moderandom", nil, state.NewSession()); resp["status"] != "ok" {
		t.Fatalf("expected ok, got %+v", resp)
	}
	if resp := r.Handle("next", nil, state.NewSession()); resp["status"] != "ok" {
		t.Fatalf("expected next on an empty queue to be a harmless no-op, got %+v", resp)
	}
}

func TestDisableUnknownDeviceErrors(t *testing.T) {
	r := newRouter(t)
	resp := r.Handle("disable", raw(t, map[string]any{"device": "ghost"}), state.NewSession())
	if resp["status"] != "err" {
		t.Fatalf("expected device-unknown error, got %+v", resp)
	}
}

func TestPlaylistAddListRemoveRoundTrip(t *testing.T) {
	r := newRouter(t)
	sess := state.NewSession()

	if resp := r.Handle("addplaylist", raw(t, map[string]any{"playlist": "mix", "song": "/music/a.mp3"}), sess); resp["status"] != "ok" {
		t.Fatalf("expected ok, got %+v", resp)
	}

	resp := r.Handle("listsongs", raw(t, map[string]any{"playlist": "mix"}), sess)
	if resp["status"] != "ok" {
		t.Fatalf("expected ok, got %+v", resp)
	}
	songs, ok := resp["songs"].([]string)
	if !ok || len(songs) != 1 {
		t.Fatalf("expected one song, got %+v", resp)
	}

	if resp := r.Handle("removeplaylist", raw(t, map[string]any{"playlist": "mix", "pos": 5}), sess); resp["status"] != "err" {
		t.Fatalf("expected argument-out-of-range error, got %+v", resp)
	}
}

func TestLoadRejectsNegativeRangeEndWithoutPanicking(t *testing.T) {
	r := newRouter(t)
	sess := state.NewSession()

	if resp := r.Handle("addplaylist", raw(t, map[string]any{"playlist": "mix", "song": "/music/a.mp3"}), sess); resp["status"] != "ok" {
		t.Fatalf("expected ok, got %+v", resp)
	}

	resp := r.Handle("load", raw(t, map[string]any{"playlist": "mix", "range": []int{0, -1}}), sess)
	if resp["status"] != "err" {
		t.Fatalf("expected argument-out-of-range error, got %+v", resp)
	}
}

func TestStateFirstDiffThenEmpty(t *testing.T) {
	r := newRouter(t)
	sess := state.NewSession()

	first := r.Handle("state", nil, sess)
	if len(first) <= 1 {
		t.Fatalf("expected first state response to carry every key, got %+v", first)
	}

	second := r.Handle("state", nil, sess)
	if len(second) != 1 || second["status"] != "ok" {
		t.Fatalf("expected second state response to carry only status, got %+v", second)
	}
}
