/*
 * Musing
 *
 * A single-host music player server.
 */

// Package state implements the delta-encoded state broadcaster described
// in spec.md §4.5: a canonical Snapshot built from the catalog, queue and
// player, diffed per-client via reflect.DeepEqual field-by-field against
// the last snapshot that client was sent.
package state

import (
	"encoding/base64"
	"reflect"

	"github.com/alfazet/musing/catalog"
	"github.com/alfazet/musing/playlistio"
	"github.com/alfazet/musing/player"
	"github.com/alfazet/musing/queue"
)

// QueueEntry is the wire projection of a queue.Entry.
type QueueEntry struct {
	ID   uint64 `json:"id"`
	Path string `json:"path"`
}

// Timer is the current track's elapsed/total seconds. Absent (nil) while
// Stopped, per spec.md §4.4.
type Timer struct {
	Duration int `json:"duration"`
	Elapsed  int `json:"elapsed"`
}

// Device is the wire projection of a player.Device.
type Device struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Snapshot is the canonical state tuple from spec.md §4.5. Every
// exported field carries a `json` tag naming its wire key; Broadcaster
// diffs two Snapshots field-by-field using those tags.
type Snapshot struct {
	Queue         []QueueEntry `json:"queue"`
	Current       *uint64      `json:"current"`
	CoverArt      string       `json:"cover_art"`
	PlaybackState string       `json:"playback_state"`
	PlaybackMode  string       `json:"playback_mode"`
	Gapless       bool         `json:"gapless"`
	Volume        int          `json:"volume"`
	Speed         int          `json:"speed"`
	Timer         *Timer       `json:"timer"`
	Playlists     []string     `json:"playlists"`
	Devices       []Device     `json:"devices"`
}

// Session is a connection-local record of the last snapshot sent to one
// client, per spec.md §3's "client session" data model. It belongs on
// the per-connection session, not in global state.
type Session struct {
	last    Snapshot
	hasSent bool
}

// NewSession creates a Session with no prior snapshot, so the first Diff
// call against it returns every key.
func NewSession() *Session {
	return &Session{}
}

func modeString(m queue.Mode) string {
	switch m {
	case queue.Random:
		return "random"
	case queue.Single:
		return "single"
	default:
		return "sequential"
	}
}

// Broadcaster builds canonical Snapshots from the live catalog, queue
// and player, and diffs them per-client session.
type Broadcaster struct {
	catalog   *catalog.Catalog
	queue     *queue.Queue
	player    *player.Player
	playlists *playlistio.Store
}

// New creates a Broadcaster over the given subsystems.
func New(c *catalog.Catalog, q *queue.Queue, p *player.Player, playlists *playlistio.Store) *Broadcaster {
	return &Broadcaster{catalog: c, queue: q, player: p, playlists: playlists}
}

// Canonical computes the current canonical state tuple.
func (b *Broadcaster) Canonical() Snapshot {
	entries := b.queue.Entries()
	queueEntries := make([]QueueEntry, len(entries))
	for i, e := range entries {
		queueEntries[i] = QueueEntry{ID: e.ID, Path: e.Path}
	}

	var current *uint64
	var currentPath string
	if idx := b.queue.CurrentIndex(); idx >= 0 && idx < len(entries) {
		id := entries[idx].ID
		current = &id
		currentPath = entries[idx].Path
	}

	snap := b.player.Snapshot()

	coverArt := ""
	if current != nil {
		if song, ok := b.catalog.Lookup(currentPath); ok && len(song.Cover) > 0 {
			coverArt = base64.StdEncoding.EncodeToString(song.Cover)
		}
	}

	var timer *Timer
	if snap.HasEntry {
		timer = &Timer{Duration: snap.Total, Elapsed: snap.Elapsed}
	}

	devices := make([]Device, len(snap.Devices))
	for i, d := range snap.Devices {
		devices[i] = Device{Name: d.Name, Enabled: d.Enabled}
	}

	playlists, err := b.playlists.Playlists()
	if err != nil {
		playlists = []string{}
	}

	return Snapshot{
		Queue:         queueEntries,
		Current:       current,
		CoverArt:      coverArt,
		PlaybackState: snap.State.String(),
		PlaybackMode:  modeString(b.queue.CurrentMode()),
		Gapless:       snap.Gapless,
		Volume:        snap.Volume,
		Speed:         snap.Speed,
		Timer:         timer,
		Playlists:     playlists,
		Devices:       devices,
	}
}

// Diff computes the current canonical state and returns only the keys
// that changed since sess's last observed snapshot (all keys, the first
// time). sess is updated to the new snapshot as a side effect.
func (b *Broadcaster) Diff(sess *Session) map[string]any {
	current := b.Canonical()
	out := map[string]any{}

	v := reflect.ValueOf(current)
	prev := reflect.ValueOf(sess.last)
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")

		if !sess.hasSent || !reflect.DeepEqual(v.Field(i).Interface(), prev.Field(i).Interface()) {
			out[tag] = v.Field(i).Interface()
		}
	}

	sess.last = current
	sess.hasSent = true
	return out
}
