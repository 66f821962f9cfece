// ABOUTME: Microphone capture via portaudio
// ABOUTME: Emits fixed-size mono float frames with arrival timestamps
package capture

import (
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// Frame is one captured block of mono samples in [-1, 1] with its
// wall-clock arrival time.
type Frame struct {
	Samples []float32
	Time    time.Time
}

// Capturer owns the microphone stream. Frames are delivered on a
// buffered channel with a non-blocking send: if the consumer stalls,
// frames drop rather than back up into the audio callback.
type Capturer struct {
	sampleRate int
	frameSize  int
	log        *zap.SugaredLogger

	mu      sync.Mutex
	stream  *portaudio.Stream
	running bool
	out     chan Frame
}

// New creates a capturer; nothing touches the device until Start.
func New(sampleRate, frameSize int, log *zap.SugaredLogger) *Capturer {
	return &Capturer{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		log:        log,
		out:        make(chan Frame, 8),
	}
}

// Frames returns the capture output channel.
func (c *Capturer) Frames() <-chan Frame {
	return c.out
}

// Start opens the default input device. A permission or device failure
// is returned to the caller, who logs it and runs the session without
// capture; it is not fatal.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return err
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), c.frameSize,
		func(in []float32) {
			frame := Frame{
				Samples: make([]float32, len(in)),
				Time:    time.Now(),
			}
			copy(frame.Samples, in)

			select {
			case c.out <- frame:
			default:
				c.log.Debugw("capture consumer stalled, frame dropped")
			}
		})
	if err != nil {
		portaudio.Terminate()
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return err
	}

	c.stream = stream
	c.running = true
	c.log.Infow("microphone capture started",
		"sample_rate", c.sampleRate, "frame_size", c.frameSize)
	return nil
}

// Stop releases the device. Safe to call without a prior successful
// Start and safe to call twice.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
		c.stream = nil
	}
	portaudio.Terminate()
	c.log.Infow("microphone capture stopped")
}
