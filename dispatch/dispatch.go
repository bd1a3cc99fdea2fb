/*
 * Musing
 *
 * A single-host music player server.
 */

// Package dispatch implements the request/response router described in
// spec.md §4.6: one handler per request kind, argument coercion via
// json.RawMessage into small per-kind values, and translation of
// subsystem errors into the protocol's {"status":"err","reason":...}
// shape at the edge.
package dispatch

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/alfazet/musing"
	"github.com/alfazet/musing/catalog"
	"github.com/alfazet/musing/player"
	"github.com/alfazet/musing/playlistio"
	"github.com/alfazet/musing/queue"
	"github.com/alfazet/musing/state"
)

type handlerFunc func(r *Router, sess *state.Session, fields map[string]json.RawMessage) map[string]any

// Router is the request routing table, built once at server construction
// over the subsystems it dispatches into.
type Router struct {
	catalog     *catalog.Catalog
	queue       *queue.Queue
	player      *player.Player
	broadcaster *state.Broadcaster
	playlists   *playlistio.Store
	log         zerolog.Logger

	handlers map[string]handlerFunc
}

// New builds a Router over the given subsystems, with its full kind ->
// handler table populated.
func New(c *catalog.Catalog, q *queue.Queue, p *player.Player, b *state.Broadcaster, pl *playlistio.Store, log zerolog.Logger) *Router {
	r := &Router{
		catalog:     c,
		queue:       q,
		player:      p,
		broadcaster: b,
		playlists:   pl,
		log:         log.With().Str("component", "dispatch").Logger(),
	}

	r.handlers = map[string]handlerFunc{
		"ls":             handleLs,
		"metadata":       handleMetadata,
		"select":         handleSelect,
		"update":         handleUpdate,
		"volume":         handleVolume,
		"seek":           handleSeek,
		"speed":          handleSpeed,
		"gapless":        handleGapless,
		"pause":          handlePause,
		"resume":         handleResume,
		"toggle":         handleToggle,
		"stop":           handleStop,
		"addqueue":       handleAddQueue,
		"play":           handlePlay,
		"removequeue":    handleRemoveQueue,
		"clearqueue":     handleClearQueue,
		"next":           handleNext,
		"previous":       handlePrevious,
		"modesingle":     handleModeSingle,
		"moderandom":     handleModeRandom,
		"modesequential": handleModeSequential,
		"state":          handleState,
		"disable":        handleDisable,
		"enable":         handleEnable,
		"addplaylist":    handleAddPlaylist,
		"listsongs":      handleListSongs,
		"load":           handleLoad,
		"removeplaylist": handleRemovePlaylist,
		"save":           handleSave,
	}

	return r
}

// Handle routes a decoded request to its handler and returns the
// response envelope (with "status" already set). An unrecognized kind
// produces the unknown-kind error, per spec.md §4.6 step 3.
func (r *Router) Handle(kind string, fields map[string]json.RawMessage, sess *state.Session) map[string]any {
	h, ok := r.handlers[kind]
	if !ok {
		return errResponse(musing.ErrUnknownKind)
	}
	return h(r, sess, fields)
}

func okResponse(extra map[string]any) map[string]any {
	out := map[string]any{"status": "ok"}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func errResponse(err error) map[string]any {
	return map[string]any{"status": "err", "reason": err.Error()}
}
