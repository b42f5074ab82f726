// Package logging builds the zap loggers used throughout calcc. Logs always go
// to stderr or another explicit sink, never to the IR output.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatLogfmt  = "logfmt"

	DefaultLevel  = "warn"
	DefaultFormat = FormatConsole
)

// Config selects the level, record format and sink of a logger.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Format is console, json or logfmt.
	Format string `mapstructure:"format"`
	// Writer is the sink. Defaults to os.Stderr.
	Writer io.Writer `mapstructure:"-"`
}

// New creates a sugared logger named "calcc".
func New(c Config) (*zap.SugaredLogger, error) {
	level := zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(c.Level))); err != nil {
			return nil, errors.Wrapf(err, "invalid log level %q", c.Level)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.NameKey = "name"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(c.Format) {
	case "", FormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case FormatLogfmt:
		encoder = zaplogfmt.NewEncoder(encoderConfig)
	default:
		return nil, errors.Errorf("invalid log format %q", c.Format)
	}

	writer := c.Writer
	if writer == nil {
		writer = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	return zap.New(core, zap.AddCaller()).Named("calcc").Sugar(), nil
}
