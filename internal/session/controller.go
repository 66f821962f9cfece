// ABOUTME: Session controller owning conversation state and the event loop
// ABOUTME: Serializes mic frames, agent messages, and playback callbacks
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/baatein/baatein-go/internal/audio"
	"github.com/baatein/baatein-go/internal/capture"
	"github.com/baatein/baatein-go/internal/playback"
	"github.com/baatein/baatein-go/internal/protocol"
	"github.com/baatein/baatein-go/internal/vad"
)

// Conversation status values, surfaced to the UI.
const (
	StatusIdle      = "idle"
	StatusListening = "listening"
	StatusThinking  = "thinking"
	StatusSpeaking  = "speaking"
)

// Transport is the controller's view of the agent connection.
type Transport interface {
	Inbound() <-chan protocol.Message
	Closed() <-chan struct{}
	SendAudio(data string)
	SendUserStoppedSpeaking()
	SendBargeIn()
	Close()
}

// Mic is the controller's view of the audio capture source.
type Mic interface {
	Frames() <-chan capture.Frame
	Start() error
	Stop()
}

// Notifier receives state changes for display. Calls arrive from the
// controller's loop goroutine and must not block.
type Notifier interface {
	StatusChanged(status string)
	LevelChanged(rms float64)
	TranscriptChanged(text string, final bool)
	ReplyChanged(text string, done bool)
	SearchStarted()
	ConnectionChanged(connected bool)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) StatusChanged(string)          {}
func (NopNotifier) LevelChanged(float64)          {}
func (NopNotifier) TranscriptChanged(string, bool) {}
func (NopNotifier) ReplyChanged(string, bool)     {}
func (NopNotifier) SearchStarted()                {}
func (NopNotifier) ConnectionChanged(bool)        {}

// Config holds session parameters.
type Config struct {
	ServerURL string
	VAD       vad.Config
}

// Deps are the controller's collaborators, injectable for tests.
type Deps struct {
	Dial      func(url string) (Transport, error)
	NewEngine func(post func(func()), hooks playback.Hooks) playback.Engine
	Mic       Mic
	Notify    Notifier
	Log       *zap.SugaredLogger
}

// Controller drives one conversation session. All conversation state is
// owned by a single loop goroutine; mic frames, inbound agent messages,
// playback completions, and UI commands are handled there one at a time,
// so no state needs a lock. Connect and Disconnect are safe from any
// goroutine.
type Controller struct {
	cfg    Config
	deps   Deps
	log    *zap.SugaredLogger
	notify Notifier

	posted chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Loop-owned state. Never touched outside run().
	status    *fsm.FSM
	det       *vad.Detector
	engine    playback.Engine
	ch        Transport
	sessionID string
	aiPlaying bool
	reply     strings.Builder

	// view mirrors display state for the pull accessors; written by
	// the loop alongside each notification, readable from anywhere.
	view struct {
		mu         sync.RWMutex
		status     string
		level      float64
		transcript string
		reply      string
		connected  bool
	}
}

// New creates a controller. Call Start to begin processing.
func New(cfg Config, deps Deps) *Controller {
	if deps.Notify == nil {
		deps.Notify = NopNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Controller{
		cfg:    cfg,
		deps:   deps,
		log:    deps.Log,
		notify: deps.Notify,
		posted: make(chan func(), 16),
		ctx:    ctx,
		cancel: cancel,
	}
	s.view.status = StatusIdle

	s.status = fsm.NewFSM(
		StatusIdle,
		fsm.Events{
			{Name: "connect", Src: []string{StatusIdle}, Dst: StatusListening},
			{Name: "turn_end", Src: []string{StatusListening}, Dst: StatusThinking},
			{Name: "speak", Src: []string{StatusThinking, StatusListening}, Dst: StatusSpeaking},
			{Name: "reply_done", Src: []string{StatusSpeaking}, Dst: StatusListening},
			{Name: "interrupt", Src: []string{StatusSpeaking}, Dst: StatusListening},
			{Name: "disconnect", Src: []string{StatusListening, StatusThinking, StatusSpeaking}, Dst: StatusIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.setStatus(e.Dst)
			},
		},
	)

	return s
}

// Start launches the event loop.
func (s *Controller) Start() {
	s.wg.Add(1)
	go s.run()
}

// Shutdown disconnects and stops the event loop.
func (s *Controller) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// Connect asks the controller to establish a session.
func (s *Controller) Connect() {
	s.post(s.doConnect)
}

// Disconnect asks the controller to tear the session down.
func (s *Controller) Disconnect() {
	s.post(s.doDisconnect)
}

// post schedules fn onto the loop goroutine.
func (s *Controller) post(fn func()) {
	select {
	case s.posted <- fn:
	case <-s.ctx.Done():
	}
}

func (s *Controller) run() {
	defer s.wg.Done()

	for {
		// Nil channels when disconnected; a nil receive blocks forever,
		// which removes those cases from the select.
		var inbound <-chan protocol.Message
		var closed <-chan struct{}
		if s.ch != nil {
			inbound = s.ch.Inbound()
			closed = s.ch.Closed()
		}

		select {
		case <-s.ctx.Done():
			s.doDisconnect()
			return
		case fn := <-s.posted:
			fn()
		case f := <-s.deps.Mic.Frames():
			s.onFrame(f)
		case msg := <-inbound:
			s.onMessage(msg)
		case <-closed:
			s.onChannelClosed()
		}
	}
}

func (s *Controller) doConnect() {
	if s.ch != nil {
		return
	}

	ch, err := s.deps.Dial(s.cfg.ServerURL)
	if err != nil {
		s.log.Errorw("connect failed", "url", s.cfg.ServerURL, "error", err)
		s.setConnected(false)
		return
	}

	s.ch = ch
	s.sessionID = uuid.NewString()
	s.det = vad.New(s.cfg.VAD)
	s.engine = s.deps.NewEngine(s.post, playback.Hooks{Finished: s.onPlaybackFinished})
	s.aiPlaying = false
	s.reply.Reset()

	if err := s.deps.Mic.Start(); err != nil {
		// A session without capture still plays agent audio; the user
		// just cannot be heard.
		s.log.Warnw("microphone unavailable", "error", err)
	}

	s.log.Infow("session connected", "session", s.sessionID, "url", s.cfg.ServerURL)
	s.setConnected(true)
	s.fire("connect", StatusListening)
}

// doDisconnect is safe in any state, including after a partial connect.
func (s *Controller) doDisconnect() {
	s.deps.Mic.Stop()
	if s.engine != nil {
		s.engine.Stop()
		s.engine = nil
	}
	if s.ch != nil {
		s.ch.Close()
		s.ch = nil
		s.log.Infow("session disconnected", "session", s.sessionID)
	}
	s.aiPlaying = false
	s.det = nil

	s.fire("disconnect", StatusIdle)
	s.setConnected(false)
}

func (s *Controller) onChannelClosed() {
	// Channel loss is terminal for the session; the user reconnects
	// explicitly.
	s.log.Warnw("channel closed", "session", s.sessionID)
	s.doDisconnect()
}

func (s *Controller) onFrame(f capture.Frame) {
	rms := audio.RMS(f.Samples)
	s.setLevel(rms)

	if s.ch == nil {
		return
	}

	s.ch.SendAudio(audio.EncodeFrame(f.Samples))

	switch s.det.Process(rms, f.Time, s.aiPlaying) {
	case vad.EventTurnEnd:
		s.log.Debugw("turn end", "session", s.sessionID)
		s.reply.Reset()
		s.ch.SendUserStoppedSpeaking()
		s.fire("turn_end", StatusThinking)
	case vad.EventInterrupt:
		s.bargeIn()
	}
}

// bargeIn kills local playback before the agent hears about it, so the
// speaker goes quiet the moment the interruption is confirmed.
func (s *Controller) bargeIn() {
	s.log.Infow("barge-in", "session", s.sessionID)
	s.engine.Stop()
	s.aiPlaying = false
	s.fire("interrupt", StatusListening)
	s.ch.SendBargeIn()
}

func (s *Controller) onMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeTranscript:
		s.setTranscript(msg.Text, false)

	case protocol.TypeFinalTranscript:
		s.setTranscript(msg.Text, true)

	case protocol.TypeLLMChunk:
		s.reply.WriteString(msg.Text)
		s.setReply(s.reply.String(), false)

	case protocol.TypeLLMDone:
		s.setReply(s.reply.String(), true)

	case protocol.TypeSearchStart:
		s.notify.SearchStarted()

	case protocol.TypeTTSStart:
		s.aiPlaying = true
		s.engine.SegmentStart()
		s.fire("speak", StatusSpeaking)

	case protocol.TypeAudioChunk:
		s.engine.Frame(msg.Audio)

	case protocol.TypeSearchAudioDone:
		s.engine.SegmentEnd(false)

	case protocol.TypeTTSDone:
		s.log.Debugw("reply synthesized", "total_time", msg.TotalTime)
		s.engine.SegmentEnd(true)

	case protocol.TypeStopAudio:
		s.engine.Stop()
		s.aiPlaying = false
		s.fire("reply_done", StatusListening)

	case protocol.TypePing:
		// Keepalive, nothing to do.

	default:
		s.log.Debugw("unhandled message", "type", msg.Type)
	}
}

// onPlaybackFinished runs on the loop via the engine's post. Natural
// completion of a reply clears the transcript display along with the
// status flip; the next utterance starts from a blank line.
func (s *Controller) onPlaybackFinished() {
	s.aiPlaying = false
	s.setTranscript("", false)
	if s.ch != nil {
		s.fire("reply_done", StatusListening)
	}
}

// fire attempts the named status transition; transitions outside the
// table (forced resets) fall back to a direct state set.
func (s *Controller) fire(event, dst string) {
	if s.status.Current() == dst {
		return
	}
	if err := s.status.Event(context.Background(), event); err != nil {
		s.status.SetState(dst)
		s.setStatus(dst)
	}
}

func (s *Controller) setStatus(status string) {
	s.view.mu.Lock()
	s.view.status = status
	s.view.mu.Unlock()
	s.notify.StatusChanged(status)
}

func (s *Controller) setLevel(rms float64) {
	s.view.mu.Lock()
	s.view.level = rms
	s.view.mu.Unlock()
	s.notify.LevelChanged(rms)
}

func (s *Controller) setTranscript(text string, final bool) {
	s.view.mu.Lock()
	s.view.transcript = text
	s.view.mu.Unlock()
	s.notify.TranscriptChanged(text, final)
}

func (s *Controller) setReply(text string, done bool) {
	s.view.mu.Lock()
	s.view.reply = text
	s.view.mu.Unlock()
	s.notify.ReplyChanged(text, done)
}

func (s *Controller) setConnected(up bool) {
	s.view.mu.Lock()
	s.view.connected = up
	s.view.mu.Unlock()
	s.notify.ConnectionChanged(up)
}

// Status returns the current conversation status.
func (s *Controller) Status() string {
	s.view.mu.RLock()
	defer s.view.mu.RUnlock()
	return s.view.status
}

// Level returns the most recent mic frame RMS.
func (s *Controller) Level() float64 {
	s.view.mu.RLock()
	defer s.view.mu.RUnlock()
	return s.view.level
}

// Transcript returns the displayed user utterance text.
func (s *Controller) Transcript() string {
	s.view.mu.RLock()
	defer s.view.mu.RUnlock()
	return s.view.transcript
}

// Reply returns the accumulated agent reply text.
func (s *Controller) Reply() string {
	s.view.mu.RLock()
	defer s.view.mu.RUnlock()
	return s.view.reply
}

// Connected reports whether a session is live.
func (s *Controller) Connected() bool {
	s.view.mu.RLock()
	defer s.view.mu.RUnlock()
	return s.view.connected
}
