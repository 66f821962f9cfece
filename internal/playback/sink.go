// ABOUTME: Playback sinks over oto with MP3 segment decoding
// ABOUTME: Streaming pipe-fed sink, one-shot sink, and no-op fallbacks
package playback

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"
	"go.uber.org/zap"
)

// StreamSink is a playback destination that accepts incremental appends
// while already playing. Appends complete asynchronously; the sink
// reports completion through the per-call callback.
type StreamSink interface {
	Open() error
	Append(data []byte, done func(err error))
	// CloseWrite ends the writable side; done fires on natural playback
	// completion of everything appended.
	CloseWrite(done func())
	Stop()
}

// OneShotSink plays one complete audio unit from start to finish.
type OneShotSink interface {
	Play(data []byte, done func(err error))
	Stop()
}

const sinkPollInterval = 50 * time.Millisecond

// Device wraps the process-wide oto context. oto allows exactly one
// context per process, so the device is opened once at startup and
// shared by whichever sink the selected mode uses.
type Device struct {
	ctx        *oto.Context
	sampleRate int
	channels   int
}

// OpenDevice initializes the audio output device.
func OpenDevice(sampleRate, channels int) (*Device, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}

	select {
	case <-ready:
	case <-time.After(3 * time.Second):
		return nil, errors.New("audio device did not become ready")
	}

	return &Device{ctx: ctx, sampleRate: sampleRate, channels: channels}, nil
}

// Mode selects the playback strategy for the process lifetime.
type Mode int

const (
	ModeStreaming Mode = iota
	ModeAccumulating
)

func (m Mode) String() string {
	if m == ModeStreaming {
		return "streaming"
	}
	return "accumulating"
}

// Detect chooses the mode once at startup. An explicit override wins;
// otherwise streaming is used when the device probe succeeded, and the
// accumulating fallback when it did not.
func Detect(override string, deviceOK bool, log *zap.SugaredLogger) Mode {
	switch override {
	case "stream":
		return ModeStreaming
	case "accumulate":
		return ModeAccumulating
	}
	if !deviceOK {
		log.Infow("streaming sink unavailable, using accumulating playback")
		return ModeAccumulating
	}
	return ModeStreaming
}

// OtoStreamSink feeds a persistent oto player through an io.Pipe and an
// MP3 decoder: appends land in the pipe and play out as they decode.
type OtoStreamSink struct {
	device *Device
	log    *zap.SugaredLogger

	mu     sync.Mutex
	pr     *io.PipeReader
	pw     *io.PipeWriter
	player *oto.Player
}

// NewOtoStreamSink creates the streaming sink for a device.
func NewOtoStreamSink(device *Device, log *zap.SugaredLogger) *OtoStreamSink {
	return &OtoStreamSink{device: device, log: log}
}

// Open creates a fresh pipe and arms the decoder. The MP3 decoder needs
// the first frame header before it can report a format, so the player
// is created on a goroutine once the first append arrives.
func (s *OtoStreamSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	s.pr, s.pw = io.Pipe()

	pr := s.pr
	go func() {
		dec, err := mp3.NewDecoder(pr)
		if err != nil {
			// Pipe closed before a full header, or garbage input.
			s.log.Debugw("mp3 decoder not started", "error", err)
			return
		}
		if dec.SampleRate() != s.device.sampleRate {
			s.log.Warnw("segment sample rate differs from device",
				"segment", dec.SampleRate(), "device", s.device.sampleRate)
		}

		s.mu.Lock()
		if s.pr != pr {
			// Stopped while parsing the header.
			s.mu.Unlock()
			return
		}
		s.player = s.device.ctx.NewPlayer(dec)
		s.player.Play()
		s.mu.Unlock()
	}()

	return nil
}

// Append writes one unit into the pipe. The pipe write blocks until the
// decoder consumes it, so completion doubles as backpressure.
func (s *OtoStreamSink) Append(data []byte, done func(err error)) {
	s.mu.Lock()
	pw := s.pw
	s.mu.Unlock()

	if pw == nil {
		done(errors.New("sink not open"))
		return
	}

	go func() {
		_, err := pw.Write(data)
		done(err)
	}()
}

// CloseWrite ends the stream and watches for the player to drain.
func (s *OtoStreamSink) CloseWrite(done func()) {
	s.mu.Lock()
	pw := s.pw
	pr := s.pr
	s.mu.Unlock()

	if pw != nil {
		pw.Close()
	}

	go func() {
		// Give the decoder goroutine a moment in case no player was
		// ever created (a segment that carried no audio).
		deadline := time.Now().Add(time.Second)
		for {
			s.mu.Lock()
			stale := s.pr != pr
			player := s.player
			s.mu.Unlock()

			if stale {
				return
			}
			if player != nil {
				if !player.IsPlaying() {
					done()
					return
				}
			} else if time.Now().After(deadline) {
				done()
				return
			}
			time.Sleep(sinkPollInterval)
		}
	}()
}

// Stop tears down the player and both pipe ends immediately.
func (s *OtoStreamSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *OtoStreamSink) closeLocked() {
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	if s.pw != nil {
		s.pw.Close()
		s.pw = nil
	}
	if s.pr != nil {
		s.pr.Close()
		s.pr = nil
	}
}

// OtoOneShotSink plays one fully-buffered MP3 unit per call.
type OtoOneShotSink struct {
	device *Device
	log    *zap.SugaredLogger

	mu     sync.Mutex
	player *oto.Player
}

// NewOtoOneShotSink creates the one-shot sink for a device.
func NewOtoOneShotSink(device *Device, log *zap.SugaredLogger) *OtoOneShotSink {
	return &OtoOneShotSink{device: device, log: log}
}

// Play decodes and plays the unit, invoking done when playback finishes
// or fails. A Stop cuts playback short; done still fires.
func (s *OtoOneShotSink) Play(data []byte, done func(err error)) {
	go func() {
		dec, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil {
			done(err)
			return
		}

		s.mu.Lock()
		if s.player != nil {
			s.player.Close()
		}
		player := s.device.ctx.NewPlayer(dec)
		s.player = player
		s.mu.Unlock()

		player.Play()
		for player.IsPlaying() {
			time.Sleep(sinkPollInterval)
		}

		s.mu.Lock()
		if s.player == player {
			s.player.Close()
			s.player = nil
		}
		s.mu.Unlock()
		done(nil)
	}()
}

// Stop halts the in-progress unit, if any.
func (s *OtoOneShotSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
}

// NoopStreamSink and NoopOneShotSink keep the engine state machines
// alive when no audio device is available: appends and plays complete
// immediately so status transitions still happen.
type NoopStreamSink struct{}

func (NoopStreamSink) Open() error                           { return nil }
func (NoopStreamSink) Append(_ []byte, done func(err error)) { done(nil) }
func (NoopStreamSink) CloseWrite(done func())                { done() }
func (NoopStreamSink) Stop()                                 {}

type NoopOneShotSink struct{}

func (NoopOneShotSink) Play(_ []byte, done func(err error)) { done(nil) }
func (NoopOneShotSink) Stop()                               {}
