package player

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/alfazet/musing"
	"github.com/alfazet/musing/audiocodec"
	"github.com/alfazet/musing/queue"
)

// Play transitions to Playing(entry), opening a decoder on its path. It
// implements the Stopped/Playing/Paused -> Playing(id) row of the state
// table in spec.md §4.4.
func (p *Player) Play(entry queue.Entry) error {
	var err error
	p.do(func() { err = p.playLocked(entry) })
	return err
}

func (p *Player) playLocked(entry queue.Entry) error {
	p.stopLocked()

	stream, err := openDecoder(entry.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Path, err)
	}

	if err := p.ensureSpeakerLocked(stream.Format.SampleRate); err != nil {
		stream.Close()
		return err
	}

	p.rmu.Lock()
	p.stream = stream
	p.ctrl = &beep.Ctrl{Streamer: p.speedAdjusted(stream), Paused: false}
	p.volumeEffect = newVolumeEffect(p.ctrl, p.volume)
	p.state = Playing
	p.entryID = entry.ID
	p.total = stream.Duration()
	p.started = time.Now()
	p.rmu.Unlock()

	done := make(chan struct{})
	seq := beep.Seq(p.volumeEffect, beep.Callback(func() { close(done) }))
	speakerPlay(seq)

	go p.awaitTrackEnd(done, entry.ID)

	p.log.Debug().Str("path", entry.Path).Uint64("id", entry.ID).Msg("playing")

	return nil
}

// awaitTrackEnd blocks until the beep callback for entryID fires, then
// asks the player goroutine to advance the queue - the same
// "close(done) in the callback, consume it in a watcher goroutine"
// pattern used for beep-backed players in the pack (see DESIGN.md).
func (p *Player) awaitTrackEnd(done <-chan struct{}, entryID uint64) {
	select {
	case <-done:
	case <-p.stop:
		return
	}
	p.cmds <- func() { p.onTrackEndLocked(entryID) }
}

func (p *Player) onTrackEndLocked(entryID uint64) {
	p.rmu.RLock()
	stillCurrent := p.state == Playing && p.entryID == entryID
	p.rmu.RUnlock()
	if !stillCurrent {
		return
	}

	next, ok := p.queue.Next()
	if !ok {
		p.stopLocked()
		return
	}
	if err := p.playLocked(next); err != nil {
		p.log.Warn().Err(err).Msg("failed to advance to next track")
		p.stopLocked()
	}
}

// Stop transitions Playing|Paused -> Stopped. A no-op when already
// Stopped.
func (p *Player) Stop() {
	p.do(func() { p.stopLocked() })
}

func (p *Player) stopLocked() {
	speakerClear()

	p.rmu.Lock()
	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	p.ctrl = nil
	p.volumeEffect = nil
	p.state = Stopped
	p.entryID = 0
	p.elapsedAtPause = 0
	p.total = 0
	p.rmu.Unlock()
}

// Pause transitions Playing -> Paused. A no-op outside Playing.
func (p *Player) Pause() {
	p.do(func() { p.pauseLocked() })
}

func (p *Player) pauseLocked() {
	p.rmu.Lock()
	defer p.rmu.Unlock()
	if p.state != Playing {
		return
	}
	speakerLock()
	p.ctrl.Paused = true
	speakerUnlock()
	p.elapsedAtPause = time.Since(p.started)
	p.state = Paused
}

// Resume transitions Paused -> Playing. A no-op outside Paused.
func (p *Player) Resume() {
	p.do(func() { p.resumeLocked() })
}

func (p *Player) resumeLocked() {
	p.rmu.Lock()
	defer p.rmu.Unlock()
	if p.state != Paused {
		return
	}
	speakerLock()
	p.ctrl.Paused = false
	speakerUnlock()
	p.started = time.Now().Add(-p.elapsedAtPause)
	p.state = Playing
}

// Toggle pauses if Playing, resumes if Paused, and is a no-op if
// Stopped.
func (p *Player) Toggle() {
	p.do(func() {
		p.rmu.RLock()
		state := p.state
		p.rmu.RUnlock()
		switch state {
		case Playing:
			p.pauseLocked()
		case Paused:
			p.resumeLocked()
		}
	})
}

// Volume adds delta to the current volume and clamps to [0, 100].
func (p *Player) Volume(delta int) int {
	var result int
	p.do(func() {
		p.rmu.Lock()
		p.volume = clamp(p.volume+delta, 0, 100)
		result = p.volume
		if p.volumeEffect != nil {
			setVolume(p.volumeEffect, p.volume)
		}
		p.rmu.Unlock()
	})
	return result
}

// Speed adds delta percentage points to the current speed and clamps to
// [25, 400]. Pitch correction is not applied, per spec.md §9's open
// question.
func (p *Player) Speed(delta int) int {
	var result int
	p.do(func() {
		p.rmu.Lock()
		p.speed = clamp(p.speed+delta, 25, 400)
		result = p.speed
		if p.stream != nil {
			speakerLock()
			p.ctrl.Streamer = p.speedAdjusted(p.stream)
			speakerUnlock()
		}
		p.rmu.Unlock()
	})
	return result
}

// Seek moves elapsed by the signed delta seconds, clamped to [0, total].
// Seeking past total behaves like track exhaustion. A no-op when
// Stopped.
func (p *Player) Seek(deltaSeconds int) {
	p.do(func() {
		p.rmu.Lock()
		if p.state == Stopped {
			p.rmu.Unlock()
			return
		}

		current := p.elapsedLocked()
		target := current + time.Duration(deltaSeconds)*time.Second
		if target < 0 {
			target = 0
		}
		exhausted := target >= p.total
		if exhausted {
			target = p.total
		}

		if p.stream != nil {
			sample := p.stream.Format.SampleRate.N(target)
			speakerLock()
			p.stream.Seek(sample)
			speakerUnlock()
		}
		p.started = time.Now().Add(-target)
		if p.state == Paused {
			p.elapsedAtPause = target
		}
		p.rmu.Unlock()

		if exhausted {
			p.onTrackEndLocked(p.entryID)
		}
	})
}

// Gapless sets gapless playback on or off: when enabled, pre-opens the
// next decoder before the current one fully drains.
func (p *Player) Gapless(enabled bool) {
	p.do(func() {
		p.rmu.Lock()
		p.gapless = enabled
		p.rmu.Unlock()
	})
}

// ToggleGapless flips gapless playback and returns the resulting value.
func (p *Player) ToggleGapless() bool {
	var result bool
	p.do(func() {
		p.rmu.Lock()
		p.gapless = !p.gapless
		result = p.gapless
		p.rmu.Unlock()
	})
	return result
}

// Enable turns on device name. Unknown device names are an error.
func (p *Player) Enable(name string) error {
	var err error
	p.do(func() { err = p.setDeviceLocked(name, true) })
	return err
}

// Disable turns off device name; if it was the active output, playback
// migrates to any other enabled device, or stops if none remain.
func (p *Player) Disable(name string) error {
	var err error
	p.do(func() { err = p.setDeviceLocked(name, false) })
	return err
}

func (p *Player) setDeviceLocked(name string, enabled bool) error {
	p.rmu.Lock()
	idx := -1
	for i, d := range p.devices {
		if d.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.rmu.Unlock()
		return fmt.Errorf("%w: %s", musing.ErrDeviceUnknown, name)
	}
	p.devices[idx].Enabled = enabled

	needsMigration := !enabled && p.activeDevice == name
	var fallback string
	hasFallback := false
	if needsMigration {
		for _, d := range p.devices {
			if d.Enabled {
				fallback = d.Name
				hasFallback = true
				break
			}
		}
		if hasFallback {
			p.activeDevice = fallback
		}
	}
	p.rmu.Unlock()

	if needsMigration && !hasFallback {
		p.stopLocked()
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func newVolumeEffect(streamer beep.Streamer, volume int) *effects.Volume {
	v := &effects.Volume{Streamer: streamer, Base: 2}
	setVolume(v, volume)
	return v
}

func setVolume(v *effects.Volume, volume int) {
	if volume <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	// Map [0,100] onto beep's logarithmic volume scale, where 0 is
	// unity gain: 100 -> 0 (unity), 50 -> -2.5, 1 -> just under -5.
	v.Volume = (float64(volume)/100 - 1) * 5
}

// speedAdjusted wraps stream with a resampler reflecting the current
// speed percentage; 100 is unmodified playback.
func (p *Player) speedAdjusted(stream *audiocodec.Stream) beep.Streamer {
	if p.speed == 100 {
		return stream
	}
	ratio := float64(p.speed) / 100
	return beep.ResampleRatio(4, ratio, stream)
}
