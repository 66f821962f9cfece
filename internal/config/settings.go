// ABOUTME: Configuration loading via viper with env overrides
// ABOUTME: Defaults match the production voice pipeline tuning
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/baatein/baatein-go/internal/vad"
)

type ServerConfig struct {
	URL      string `mapstructure:"url"`
	Discover bool   `mapstructure:"discover"`
}

type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
	FrameSize  int `mapstructure:"frame_size"`
}

type VADConfig struct {
	Threshold       float64 `mapstructure:"speech_threshold"`
	SpeechConfirmMs int     `mapstructure:"speech_confirm_ms"`
	BargeConfirmMs  int     `mapstructure:"barge_confirm_ms"`
	SilenceMs       int     `mapstructure:"silence_ms"`
}

// Detector converts the wire-friendly millisecond fields into the
// detector's config.
func (v VADConfig) Detector() vad.Config {
	return vad.Config{
		SpeechThreshold: v.Threshold,
		SpeechConfirm:   time.Duration(v.SpeechConfirmMs) * time.Millisecond,
		BargeConfirm:    time.Duration(v.BargeConfirmMs) * time.Millisecond,
		SilenceDuration: time.Duration(v.SilenceMs) * time.Millisecond,
	}
}

type PlaybackConfig struct {
	// Mode is auto, stream, or accumulate.
	Mode     string `mapstructure:"mode"`
	StitchMs int    `mapstructure:"stitch_ms"`
}

func (p PlaybackConfig) StitchGap() time.Duration {
	return time.Duration(p.StitchMs) * time.Millisecond
}

type UIConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	File  string `mapstructure:"file"`
}

type Settings struct {
	Server   ServerConfig   `mapstructure:"server"`
	Audio    AudioConfig    `mapstructure:"audio"`
	VAD      VADConfig      `mapstructure:"vad"`
	Playback PlaybackConfig `mapstructure:"playback"`
	UI       UIConfig       `mapstructure:"ui"`
	Log      LogConfig      `mapstructure:"log"`
}

// Load reads baatein.yaml from the working directory or the user config
// dir when present, with BAATEIN_* environment variables overriding and
// built-in defaults underneath.
func Load() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("baatein")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/baatein")

	v.SetEnvPrefix("BAATEIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "ws://localhost:8000/ws")
	v.SetDefault("server.discover", false)

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.frame_size", 4096)

	v.SetDefault("vad.speech_threshold", 0.03)
	v.SetDefault("vad.speech_confirm_ms", 300)
	v.SetDefault("vad.barge_confirm_ms", 500)
	v.SetDefault("vad.silence_ms", 2000)

	v.SetDefault("playback.mode", "auto")
	v.SetDefault("playback.stitch_ms", 500)

	v.SetDefault("ui.enabled", true)

	v.SetDefault("log.debug", false)
	v.SetDefault("log.file", "")
}
