/*
 * Musing
 *
 * A single-host music player server.
 */

// Package player implements the playback state machine: a tagged variant
// of {Stopped, Playing, Paused} plus the orthogonal scalars (volume,
// speed, gapless, devices) described in spec.md §4.4, driving decode and
// output through github.com/gopxl/beep.
package player

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	"github.com/rs/zerolog"

	"github.com/alfazet/musing/audiocodec"
	"github.com/alfazet/musing/queue"
)

// State is the player's tagged state variant.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Device is one named audio output and whether it is currently enabled.
type Device struct {
	Name    string
	Enabled bool
}

// Speaker-package calls are held behind package vars, the same
// test-seam idiom the teacher uses for its fatal/print/lookupEnv globals
// in server/dudeldu.go, so unit tests can run without a real audio
// device.
var (
	speakerInit  = speaker.Init
	speakerPlay  = speaker.Play
	speakerClear = speaker.Clear
	speakerLock  = speaker.Lock
	speakerUnlock = speaker.Unlock
)

// openDecoder is a package var so tests can substitute a fake decoder
// instead of touching the filesystem/codec stack.
var openDecoder = audiocodec.Open

// Player is the process-wide playback state machine. It owns a
// dedicated goroutine that drives the decoder/output pipeline; command
// methods enqueue work on cmds rather than mutating playback state
// directly, per spec.md §5's "dedicated long-lived task" model. Scalar
// reads (volume, speed, timer, devices) take rmu directly since they
// never need to wait on the playback goroutine.
type Player struct {
	rmu sync.RWMutex

	state          State
	entryID        uint64
	started        time.Time // wall-clock time the current track's playback started, adjusted for seeks
	elapsedAtPause time.Duration
	total          time.Duration

	volume  int
	speed   int
	gapless bool

	devices      []Device
	activeDevice string

	queue *queue.Queue
	log   zerolog.Logger

	cmds chan func()
	stop chan struct{}

	stream          *audiocodec.Stream
	ctrl            *beep.Ctrl
	volumeEffect    *effects.Volume
	speakerSampleRate beep.SampleRate
	speakerReady    bool
}

// New creates a Player bound to q, with deviceNames registered (all of
// them enabled, the first one designated as the active output).
func New(q *queue.Queue, deviceNames []string, log zerolog.Logger) *Player {
	devices := make([]Device, len(deviceNames))
	active := ""
	for i, name := range deviceNames {
		devices[i] = Device{Name: name, Enabled: true}
		if i == 0 {
			active = name
		}
	}

	p := &Player{
		state:        Stopped,
		volume:       100,
		speed:        100,
		devices:      devices,
		activeDevice: active,
		queue:        q,
		log:          log.With().Str("component", "player").Logger(),
		cmds:         make(chan func(), 8),
		stop:         make(chan struct{}),
	}

	go p.run()

	return p
}

// run is the player's dedicated goroutine: it serializes every state
// transition so the decode/output pipeline is only ever touched from one
// place.
func (p *Player) run() {
	for {
		select {
		case fn := <-p.cmds:
			fn()
		case <-p.stop:
			return
		}
	}
}

// Close stops playback and terminates the player's goroutine.
func (p *Player) Close() {
	p.do(func() { p.stopLocked() })
	close(p.stop)
}

// do runs fn on the player goroutine and waits for it to complete.
func (p *Player) do(fn func()) {
	done := make(chan struct{})
	p.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

// Snapshot is the read-only projection of player state used by the state
// broadcaster.
type Snapshot struct {
	State    State
	EntryID  uint64
	HasEntry bool
	Elapsed  int
	Total    int
	Volume   int
	Speed    int
	Gapless  bool
	Devices  []Device
}

// Snapshot returns the current snapshot under the read lock.
func (p *Player) Snapshot() Snapshot {
	p.rmu.RLock()
	defer p.rmu.RUnlock()

	s := Snapshot{
		State:   p.state,
		EntryID: p.entryID,
		Volume:  p.volume,
		Speed:   p.speed,
		Gapless: p.gapless,
		Total:   int(p.total.Seconds()),
	}
	s.HasEntry = p.state != Stopped
	if s.HasEntry {
		s.Elapsed = int(p.elapsedLocked().Seconds())
	}
	s.Devices = append([]Device(nil), p.devices...)
	return s
}

func (p *Player) elapsedLocked() time.Duration {
	if p.state == Stopped {
		return 0
	}
	if p.state == Paused {
		return p.elapsedAtPause
	}
	return time.Since(p.started)
}

