// ABOUTME: Energy-based voice activity detector with dual debounce
// ABOUTME: Emits exactly-once end-of-turn and barge-in events per cycle
package vad

import "time"

// Event is the outcome of processing one captured frame.
type Event int

const (
	// EventNone means no boundary was crossed on this frame.
	EventNone Event = iota

	// EventTurnEnd means confirmed speech was followed by confirmed
	// silence: the user's turn is over.
	EventTurnEnd

	// EventInterrupt means the user spoke over active agent playback
	// long enough to count as a barge-in.
	EventInterrupt
)

// Config holds detector tuning. Zero fields take the default, which
// matches the production thresholds of the voice pipeline.
type Config struct {
	// SpeechThreshold is the RMS level above which a frame is loud,
	// on a [-1,1] normalized scale.
	SpeechThreshold float64

	// SpeechConfirm is how long frames must stay loud before speech is
	// confirmed. Rejects brief impulsive noise.
	SpeechConfirm time.Duration

	// BargeConfirm is how long frames must stay loud, while the agent
	// is playing, before an interrupt fires. Longer than SpeechConfirm
	// so short bursts during playback do not cancel the reply.
	BargeConfirm time.Duration

	// SilenceDuration is how long frames must stay quiet after
	// confirmed speech before the turn ends.
	SilenceDuration time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SpeechThreshold: 0.03,
		SpeechConfirm:   300 * time.Millisecond,
		BargeConfirm:    500 * time.Millisecond,
		SilenceDuration: 2 * time.Second,
	}
}

// State is the detector's mutable per-frame state. Single owner: the
// detector itself; the session controller only sees snapshots.
type State struct {
	IsSpeaking      bool
	SpeechStart     time.Time
	SpeechConfirmed bool
	SilenceStart    time.Time
	SilenceSent     bool
}

// Detector turns a stream of (rms, arrival time) annotations into turn
// boundary events. It is a pure function of the frame stream: the clock
// is injected per call and there are no error states.
type Detector struct {
	config Config
	state  State

	// bargeFired latches the interrupt until the agent stops playing
	// and plays again.
	bargeFired bool
}

// New creates a detector, filling zero config fields with defaults.
func New(config Config) *Detector {
	def := DefaultConfig()
	if config.SpeechThreshold == 0 {
		config.SpeechThreshold = def.SpeechThreshold
	}
	if config.SpeechConfirm == 0 {
		config.SpeechConfirm = def.SpeechConfirm
	}
	if config.BargeConfirm == 0 {
		config.BargeConfirm = def.BargeConfirm
	}
	if config.SilenceDuration == 0 {
		config.SilenceDuration = def.SilenceDuration
	}
	return &Detector{config: config}
}

// Process consumes one frame's RMS and arrival time. aiPlaying is owned
// by the session controller and passed in per frame; the detector never
// flips it. At most one event is returned per frame.
func (d *Detector) Process(rms float64, now time.Time, aiPlaying bool) Event {
	if !aiPlaying {
		// Playback episode over: re-arm the barge-in latch.
		d.bargeFired = false
	}

	if rms > d.config.SpeechThreshold {
		return d.processLoud(now, aiPlaying)
	}
	return d.processQuiet(now, aiPlaying)
}

func (d *Detector) processLoud(now time.Time, aiPlaying bool) Event {
	if d.state.SpeechStart.IsZero() {
		d.state.SpeechStart = now
	}

	if now.Sub(d.state.SpeechStart) > d.config.SpeechConfirm {
		d.state.SpeechConfirmed = true
		d.state.IsSpeaking = true
		d.state.SilenceStart = time.Time{}
		d.state.SilenceSent = false
	}

	if aiPlaying && !d.bargeFired && now.Sub(d.state.SpeechStart) > d.config.BargeConfirm {
		d.bargeFired = true
		// Reset to confirmed mid-speech so the frames that follow the
		// interrupt neither re-run the confirm debounce from zero nor
		// trip silence detection off stale timestamps.
		d.state = State{
			IsSpeaking:      true,
			SpeechConfirmed: true,
			SpeechStart:     now,
		}
		return EventInterrupt
	}

	return EventNone
}

func (d *Detector) processQuiet(now time.Time, aiPlaying bool) Event {
	if !d.state.SpeechStart.IsZero() {
		// First quiet frame after loud.
		d.state.SpeechStart = time.Time{}
		if d.state.SpeechConfirmed {
			d.state.IsSpeaking = false
			d.state.SpeechConfirmed = false
			d.state.SilenceStart = now
		}
	}

	if !d.state.SilenceStart.IsZero() && !d.state.SilenceSent && !aiPlaying &&
		now.Sub(d.state.SilenceStart) > d.config.SilenceDuration {
		d.state.SilenceSent = true
		return EventTurnEnd
	}

	return EventNone
}

// Snapshot returns a copy of the current state for display and debugging.
func (d *Detector) Snapshot() State {
	return d.state
}

// Reset clears all detector state, as on session teardown.
func (d *Detector) Reset() {
	d.state = State{}
	d.bargeFired = false
}
