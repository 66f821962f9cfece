// ABOUTME: Entry point for the Baatein voice client
// ABOUTME: Wires config, audio devices, session, and the terminal UI
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baatein/baatein-go/internal/capture"
	"github.com/baatein/baatein-go/internal/channel"
	"github.com/baatein/baatein-go/internal/config"
	"github.com/baatein/baatein-go/internal/discovery"
	"github.com/baatein/baatein-go/internal/logging"
	"github.com/baatein/baatein-go/internal/playback"
	"github.com/baatein/baatein-go/internal/session"
	"github.com/baatein/baatein-go/internal/ui"
	"github.com/baatein/baatein-go/internal/version"
)

var (
	serverURL   = flag.String("server", "", "Agent WebSocket URL (overrides config)")
	discover    = flag.Bool("discover", false, "Find an agent via mDNS")
	mode        = flag.String("playback-mode", "", "Playback mode: auto, stream, accumulate")
	logFile     = flag.String("log-file", "", "Log file path (default baatein.log in TUI mode)")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, log to the terminal instead")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// playbackSampleRate is the output device rate; agent audio is MP3 and
// the decoder resamples to whatever the device was opened at.
const (
	playbackSampleRate = 44100
	playbackChannels   = 2
)

// sessionCtl forward-binds the UI's key handlers to the controller,
// which is constructed after the program because the session needs the
// program's notifier.
type sessionCtl struct {
	s *session.Controller
}

func (c *sessionCtl) Connect() {
	if c.s != nil {
		c.s.Connect()
	}
}

func (c *sessionCtl) Disconnect() {
	if c.s != nil {
		c.s.Disconnect()
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags overlay the config file.
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *discover {
		cfg.Server.Discover = true
	}
	if *mode != "" {
		cfg.Playback.Mode = *mode
	}
	if *debug {
		cfg.Log.Debug = true
	}
	if *noTUI {
		cfg.UI.Enabled = false
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if cfg.UI.Enabled && cfg.Log.File == "" {
		// The TUI owns the terminal; logs go to a file.
		cfg.Log.File = "baatein.log"
	}

	logger, err := logging.Build(cfg.Log.Debug, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Infow("starting", "product", version.Product, "version", version.Version)

	if cfg.Server.Discover {
		browser := discovery.NewBrowser(logger)
		browser.Browse()
		agent, err := browser.First(10 * time.Second)
		browser.Stop()
		if err != nil {
			logger.Fatalw("agent discovery failed", "error", err)
		}
		cfg.Server.URL = agent.URL()
	}

	device, err := playback.OpenDevice(playbackSampleRate, playbackChannels)
	deviceOK := err == nil
	if err != nil {
		logger.Warnw("audio output unavailable, agent replies will be silent", "error", err)
	}
	pbMode := playback.Detect(cfg.Playback.Mode, deviceOK, logger)
	logger.Infow("playback configured", "mode", pbMode, "device", deviceOK)

	newEngine := func(post func(func()), hooks playback.Hooks) playback.Engine {
		if pbMode == playback.ModeStreaming {
			var sink playback.StreamSink = playback.NoopStreamSink{}
			if deviceOK {
				sink = playback.NewOtoStreamSink(device, logger)
			}
			opts := playback.Options{StitchGap: cfg.Playback.StitchGap()}
			return playback.NewStreaming(sink, hooks, post, opts, logger)
		}
		var sink playback.OneShotSink = playback.NoopOneShotSink{}
		if deviceOK {
			sink = playback.NewOtoOneShotSink(device, logger)
		}
		return playback.NewAccumulating(sink, hooks, post, logger)
	}

	mic := capture.New(cfg.Audio.SampleRate, cfg.Audio.FrameSize, logger)

	deps := session.Deps{
		Dial: func(url string) (session.Transport, error) {
			return channel.Dial(url, logger)
		},
		NewEngine: newEngine,
		Mic:       mic,
		Log:       logger,
	}
	sessionCfg := session.Config{
		ServerURL: cfg.Server.URL,
		VAD:       cfg.VAD.Detector(),
	}

	if !cfg.UI.Enabled {
		ctrl := session.New(sessionCfg, deps)
		ctrl.Start()
		ctrl.Connect()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Infow("shutting down")
		ctrl.Shutdown()
		return
	}

	binder := &sessionCtl{}
	prog := ui.Run(binder, cfg.Server.URL)

	deps.Notify = ui.NewNotifier(prog)
	ctrl := session.New(sessionCfg, deps)
	binder.s = ctrl
	ctrl.Start()
	ctrl.Connect()

	if _, err := prog.Run(); err != nil {
		logger.Errorw("ui exited with error", "error", err)
	}
	ctrl.Shutdown()
}
