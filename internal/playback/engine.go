// ABOUTME: Dual-strategy playback engine for inbound agent audio
// ABOUTME: Streaming queue-drain mode and accumulating concat-then-play mode
package playback

import (
	"encoding/base64"
	"time"

	"go.uber.org/zap"
)

// Engine renders the agent's audio segments. Implementations are chosen
// once per process; callers see one contract regardless of mode.
// All methods must be called from the owner's processing loop.
type Engine interface {
	// SegmentStart begins a new turn-segment (tts_start).
	SegmentStart()

	// Frame feeds one wire-encoded audio frame of the current segment.
	Frame(b64 string)

	// SegmentEnd marks the segment complete. final is true for tts_done
	// (reply finished) and false for search_audio_done (more audio will
	// follow after a pause).
	SegmentEnd(final bool)

	// Stop halts playback immediately and discards all buffered data.
	// Safe in any state, in either mode, and when called repeatedly.
	Stop()
}

// Hooks are the engine's upward reports. Finished fires on natural
// playback completion of the reply's final segment; the owner flips
// status back to listening and clears the transcript display.
type Hooks struct {
	Finished func()
}

// Options tunes an engine.
type Options struct {
	// StitchGap is the pause between a search_audio_done close and the
	// fresh sink opened for the rest of the reply.
	StitchGap time.Duration
}

const defaultStitchGap = 500 * time.Millisecond

// Streaming appends frames to a live sink as they arrive: an ordered
// queue drained one unit at a time with at most one append in flight.
type Streaming struct {
	sink  StreamSink
	hooks Hooks
	log   *zap.SugaredLogger

	// post schedules a closure onto the owner's serialized loop; sink
	// completion callbacks and the stitch timer go through it so all
	// state mutation stays on one goroutine.
	post   func(func())
	stitch time.Duration

	// gen invalidates in-flight sink callbacks after Stop or a new
	// segment; a stale callback is ignored.
	gen int

	queue       [][]byte
	busy        bool
	open        bool
	segmentDone bool
	replyDone   bool
	closing     bool
}

// NewStreaming creates the streaming engine.
func NewStreaming(sink StreamSink, hooks Hooks, post func(func()), opts Options, log *zap.SugaredLogger) *Streaming {
	if opts.StitchGap == 0 {
		opts.StitchGap = defaultStitchGap
	}
	return &Streaming{
		sink:   sink,
		hooks:  hooks,
		log:    log,
		post:   post,
		stitch: opts.StitchGap,
	}
}

// SegmentStart opens the sink and resets queue and flags.
func (e *Streaming) SegmentStart() {
	if e.open {
		e.sink.Stop()
	}
	e.gen++
	e.queue = nil
	e.busy = false
	e.segmentDone = false
	e.replyDone = false
	e.closing = false

	if err := e.sink.Open(); err != nil {
		e.log.Warnw("sink open failed, segment will be skipped", "error", err)
		e.open = false
		return
	}
	e.open = true
}

// Frame decodes one wire frame and queues it for append.
func (e *Streaming) Frame(b64 string) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		e.log.Warnw("dropping undecodable audio frame", "error", err)
		return
	}
	if !e.open {
		e.log.Debugw("dropping frame, sink not open", "bytes", len(data))
		return
	}
	e.queue = append(e.queue, data)
	e.tryAppend()
}

// tryAppend hands the queue head to the sink when the sink is idle.
// The append-done callback retries, draining one unit at a time; this
// guarantees ordering and at-most-one-outstanding-append.
func (e *Streaming) tryAppend() {
	if !e.open || e.busy || len(e.queue) == 0 {
		return
	}
	head := e.queue[0]
	e.queue = e.queue[1:]
	e.busy = true

	gen := e.gen
	e.sink.Append(head, func(err error) {
		e.post(func() { e.appendDone(gen, err) })
	})
}

func (e *Streaming) appendDone(gen int, err error) {
	if gen != e.gen {
		return
	}
	e.busy = false
	if err != nil {
		// Skip the unit and keep draining; a bad frame must not stall
		// the rest of the segment.
		e.log.Warnw("sink append failed, unit skipped", "error", err)
	}
	e.tryAppend()
	e.maybeCloseWrite()
}

// SegmentEnd records that no more frames arrive for this segment and
// closes the sink once the queue has drained.
func (e *Streaming) SegmentEnd(final bool) {
	e.segmentDone = true
	e.replyDone = final
	e.maybeCloseWrite()
}

func (e *Streaming) maybeCloseWrite() {
	if !e.open || e.closing || !e.segmentDone || e.busy || len(e.queue) > 0 {
		return
	}
	e.closing = true

	gen := e.gen
	e.sink.CloseWrite(func() {
		e.post(func() { e.sinkDone(gen) })
	})
}

// sinkDone runs on natural playback completion of the closed sink.
func (e *Streaming) sinkDone(gen int) {
	if gen != e.gen {
		return
	}
	e.open = false
	e.closing = false

	if e.replyDone {
		if e.hooks.Finished != nil {
			e.hooks.Finished()
		}
		return
	}

	// search_audio_done: more audio follows. Re-open a fresh sink after
	// a short deliberate gap so the two halves of the reply play as one
	// listening experience.
	time.AfterFunc(e.stitch, func() {
		e.post(func() { e.reopen(gen) })
	})
}

func (e *Streaming) reopen(gen int) {
	if gen != e.gen || e.open {
		// Stopped, or a new segment already started in the meantime.
		return
	}
	e.queue = nil
	e.busy = false
	e.segmentDone = false
	e.closing = false

	if err := e.sink.Open(); err != nil {
		e.log.Warnw("sink reopen failed", "error", err)
		return
	}
	e.open = true
}

// Stop halts playback and discards everything. Idempotent.
func (e *Streaming) Stop() {
	e.gen++
	if e.open {
		e.sink.Stop()
	}
	e.queue = nil
	e.busy = false
	e.open = false
	e.segmentDone = false
	e.replyDone = false
	e.closing = false
}

// Accumulating collects a whole turn-segment and plays it as one unit.
// Trades first-audio latency for platforms without a streamable sink.
type Accumulating struct {
	sink  OneShotSink
	hooks Hooks
	log   *zap.SugaredLogger
	post  func(func())

	gen       int
	segments  [][]byte
	replyDone bool
	playing   bool

	// active is set between SegmentStart and Stop. A SegmentEnd that
	// trails a barge-in Stop must not report the reply as finished.
	active bool
}

// NewAccumulating creates the fallback engine.
func NewAccumulating(sink OneShotSink, hooks Hooks, post func(func()), log *zap.SugaredLogger) *Accumulating {
	return &Accumulating{
		sink:  sink,
		hooks: hooks,
		log:   log,
		post:  post,
	}
}

// SegmentStart resets the collected segment list.
func (e *Accumulating) SegmentStart() {
	if e.playing {
		e.sink.Stop()
		e.playing = false
	}
	e.gen++
	e.segments = nil
	e.replyDone = false
	e.active = true
}

// Frame collects one decoded frame; nothing plays until segment end.
func (e *Accumulating) Frame(b64 string) {
	if !e.active {
		return
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		e.log.Warnw("dropping undecodable audio frame", "error", err)
		return
	}
	e.segments = append(e.segments, data)
}

// SegmentEnd concatenates the collected frames into one playable unit
// and hands it to the sink.
func (e *Accumulating) SegmentEnd(final bool) {
	if !e.active {
		return
	}
	e.replyDone = final

	if len(e.segments) == 0 {
		if final {
			// Reply ended with no audio at all; report completion so
			// the session does not stay in speaking forever.
			if e.hooks.Finished != nil {
				e.hooks.Finished()
			}
		}
		return
	}

	total := 0
	for _, seg := range e.segments {
		total += len(seg)
	}
	blob := make([]byte, 0, total)
	for _, seg := range e.segments {
		blob = append(blob, seg...)
	}
	e.segments = nil
	e.playing = true

	gen := e.gen
	e.sink.Play(blob, func(err error) {
		e.post(func() { e.playDone(gen, err) })
	})
}

func (e *Accumulating) playDone(gen int, err error) {
	if gen != e.gen {
		return
	}
	e.playing = false
	if err != nil {
		e.log.Warnw("one-shot playback failed, segment skipped", "error", err)
	}
	if e.replyDone {
		if e.hooks.Finished != nil {
			e.hooks.Finished()
		}
	}
	// Otherwise stay silent and wait for the next segment.
}

// Stop halts playback and discards collected data. Idempotent.
func (e *Accumulating) Stop() {
	e.gen++
	if e.playing {
		e.sink.Stop()
	}
	e.segments = nil
	e.replyDone = false
	e.playing = false
	e.active = false
}
