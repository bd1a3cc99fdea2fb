package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alfazet/musing"
	"github.com/alfazet/musing/catalog"
	"github.com/alfazet/musing/queue"
	"github.com/alfazet/musing/state"
)

func handleLs(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	dir, err := arg[string](fields, "dir")
	if err != nil {
		return errResponse(err)
	}
	paths, err := r.catalog.Ls(dir)
	if err != nil {
		return errResponse(err)
	}
	return okResponse(map[string]any{"paths": paths})
}

func handleMetadata(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	paths, err := arg[[]string](fields, "paths")
	if err != nil {
		return errResponse(err)
	}

	var tags []string
	if allTags, present := optionalArg(fields, "all_tags", false); !present || !allTags {
		if t, present := optionalArg[[]string](fields, "tags", nil); present {
			tags = t
		}
	}

	metadata, err := r.catalog.Metadata(paths, tags)
	if err != nil {
		return errResponse(err)
	}
	return okResponse(map[string]any{"metadata": metadata})
}

func handleSelect(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	tags, err := arg[[]string](fields, "tags")
	if err != nil {
		return errResponse(err)
	}

	var filters []catalog.Filter
	if err := optionalUnmarshal(fields, "filters", &filters); err != nil {
		return errResponse(err)
	}
	var groupBy []string
	if err := optionalUnmarshal(fields, "group_by", &groupBy); err != nil {
		return errResponse(err)
	}
	var comparators []catalog.Comparator
	if err := optionalUnmarshal(fields, "comparators", &comparators); err != nil {
		return errResponse(err)
	}

	groups, err := r.catalog.Select(tags, filters, groupBy, comparators)
	if err != nil {
		return errResponse(err)
	}

	values := make([]map[string]any, len(groups))
	for i, g := range groups {
		obj := make(map[string]any, len(g.Keys)+1)
		for k, v := range g.Keys {
			obj[k] = v
		}
		obj["data"] = g.Data
		values[i] = obj
	}
	return okResponse(map[string]any{"values": values})
}

func optionalUnmarshal(fields map[string]json.RawMessage, key string, v any) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: invalid %q", musing.ErrMalformedRequest, key)
	}
	return nil
}

func handleUpdate(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	if err := r.catalog.Update(); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func handleVolume(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	delta, err := arg[int](fields, "delta")
	if err != nil {
		return errResponse(err)
	}
	r.player.Volume(delta)
	return okResponse(nil)
}

func handleSeek(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	seconds, err := arg[int](fields, "seconds")
	if err != nil {
		return errResponse(err)
	}
	r.player.Seek(seconds)
	return okResponse(nil)
}

func handleSpeed(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	delta, err := arg[int](fields, "delta")
	if err != nil {
		return errResponse(err)
	}
	r.player.Speed(delta)
	return okResponse(nil)
}

func handleGapless(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.player.ToggleGapless()
	return okResponse(nil)
}

func handlePause(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.player.Pause()
	return okResponse(nil)
}

func handleResume(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.player.Resume()
	return okResponse(nil)
}

func handleToggle(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.player.Toggle()
	return okResponse(nil)
}

func handleStop(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.player.Stop()
	return okResponse(nil)
}

func handleAddQueue(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	paths, err := arg[[]string](fields, "paths")
	if err != nil {
		return errResponse(err)
	}
	pos, _ := optionalArg(fields, "pos", -1)

	var missing []string
	for _, p := range paths {
		if _, ok := r.catalog.Lookup(p); !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return errResponse(fmt.Errorf("%w: %s", musing.ErrNotInCatalog, strings.Join(missing, ", ")))
	}

	r.queue.Add(paths, pos)
	return okResponse(nil)
}

func handlePlay(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	id, err := arg[uint64](fields, "id")
	if err != nil {
		return errResponse(err)
	}
	entry, ok := r.queue.Play(id)
	if !ok {
		return errResponse(fmt.Errorf("%w: id %d", musing.ErrArgOutOfRange, id))
	}
	if err := r.player.Play(entry); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func handleRemoveQueue(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	ids, err := arg[[]uint64](fields, "ids")
	if err != nil {
		return errResponse(err)
	}
	r.queue.Remove(ids)
	return okResponse(nil)
}

func handleClearQueue(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.queue.Clear()
	r.player.Stop()
	return okResponse(nil)
}

// advance drives the player to follow a queue.Next/Previous result: play
// the new current entry, or stop when none remains.
func advance(r *Router, entry queue.Entry, ok bool) map[string]any {
	if !ok {
		r.player.Stop()
		return okResponse(nil)
	}
	if err := r.player.Play(entry); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func handleNext(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	entry, ok := r.queue.Next()
	return advance(r, entry, ok)
}

func handlePrevious(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	entry, ok := r.queue.Previous()
	return advance(r, entry, ok)
}

func handleModeSingle(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.queue.SetMode(queue.Single)
	return okResponse(nil)
}

func handleModeRandom(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.queue.SetMode(queue.Random)
	return okResponse(nil)
}

func handleModeSequential(r *Router, _ *state.Session, _ map[string]json.RawMessage) map[string]any {
	r.queue.SetMode(queue.Sequential)
	return okResponse(nil)
}

func handleState(r *Router, sess *state.Session, _ map[string]json.RawMessage) map[string]any {
	diff := r.broadcaster.Diff(sess)
	diff["status"] = "ok"
	return diff
}

func handleDisable(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	device, err := arg[string](fields, "device")
	if err != nil {
		return errResponse(err)
	}
	if err := r.player.Disable(device); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func handleEnable(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	device, err := arg[string](fields, "device")
	if err != nil {
		return errResponse(err)
	}
	if err := r.player.Enable(device); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func handleAddPlaylist(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	playlist, err := arg[string](fields, "playlist")
	if err != nil {
		return errResponse(err)
	}
	song, err := arg[string](fields, "song")
	if err != nil {
		return errResponse(err)
	}
	if err := r.playlists.Add(playlist, song); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func handleListSongs(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	playlist, err := arg[string](fields, "playlist")
	if err != nil {
		return errResponse(err)
	}
	songs, err := r.playlists.List(playlist)
	if err != nil {
		return errResponse(err)
	}
	return okResponse(map[string]any{"songs": songs})
}

func handleLoad(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	playlist, err := arg[string](fields, "playlist")
	if err != nil {
		return errResponse(err)
	}
	pos, _ := optionalArg(fields, "pos", -1)

	entries, err := r.playlists.List(playlist)
	if err != nil {
		return errResponse(err)
	}

	if bounds, present := optionalArg[[2]int](fields, "range", [2]int{}); present {
		start, end := bounds[0], bounds[1]
		if start < 0 || end < 0 || start > end || end > len(entries) {
			return errResponse(fmt.Errorf("%w: range [%d, %d)", musing.ErrArgOutOfRange, start, end))
		}
		entries = entries[start:end]
	}

	var found, missing []string
	for _, rel := range entries {
		abs := r.playlists.Resolve(rel)
		if _, ok := r.catalog.Lookup(abs); ok {
			found = append(found, abs)
		} else {
			missing = append(missing, rel)
		}
	}

	if len(found) > 0 {
		r.queue.Add(found, pos)
	}

	if len(missing) > 0 {
		return errResponse(fmt.Errorf("%w: %s", musing.ErrNotInCatalog, strings.Join(missing, ", ")))
	}
	return okResponse(nil)
}

func handleRemovePlaylist(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	playlist, err := arg[string](fields, "playlist")
	if err != nil {
		return errResponse(err)
	}
	pos, err := arg[int](fields, "pos")
	if err != nil {
		return errResponse(err)
	}
	if err := r.playlists.Remove(playlist, pos); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}

func handleSave(r *Router, _ *state.Session, fields map[string]json.RawMessage) map[string]any {
	path, err := arg[string](fields, "path")
	if err != nil {
		return errResponse(err)
	}
	entries := r.queue.Entries()
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	if err := r.playlists.Save(path, paths); err != nil {
		return errResponse(err)
	}
	return okResponse(nil)
}
