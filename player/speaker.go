package player

import (
	"time"

	"github.com/gopxl/beep"
)

// ensureSpeakerLocked initializes the output device for sampleRate the
// first time it is needed, or reinitializes it if a track with a
// different sample rate starts playing. beep's speaker is a process-wide
// singleton, so only one (re-)init is ever in flight at a time; callers
// already run on the player's single goroutine, so no extra locking is
// needed here.
func (p *Player) ensureSpeakerLocked(sampleRate beep.SampleRate) error {
	if p.speakerReady && p.speakerSampleRate == sampleRate {
		return nil
	}

	buf := sampleRate.N(200 * time.Millisecond)
	if err := speakerInit(sampleRate, buf); err != nil {
		return err
	}

	p.speakerSampleRate = sampleRate
	p.speakerReady = true

	return nil
}
