// ABOUTME: Structured logger construction on top of zap
// ABOUTME: Supports file output so logs stay off the terminal UI
package logging

import (
	"go.uber.org/zap"
)

// Build creates the process logger. debug selects the development
// config with debug-level output. When file is non-empty, all output
// goes there instead of stderr; the terminal UI owns the screen, so
// interactive runs must not log to it.
func Build(debug bool, file string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
	}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"

	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
