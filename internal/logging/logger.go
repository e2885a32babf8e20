package logging

import (
	"fmt"
	"strings"

	"github.com/san-kum/boxsim/internal/engine"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds a logger writing to stderr. level is one of debug, info, warn,
// error; format is json or console.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch format {
	case FormatJSON:
	case FormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      false,
		Encoding:         format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	return config.Build()
}

// Reporter forwards engine diagnostics to a zap logger.
type Reporter struct {
	log *zap.Logger
}

var _ engine.ErrorReporter = (*Reporter)(nil)

func NewReporter(log *zap.Logger) *Reporter {
	return &Reporter{log: log.Named("engine")}
}

func (r *Reporter) ReportError(code engine.ErrorCode, message, file string, line int) {
	fields := []zap.Field{
		zap.Stringer("code", code),
		zap.String("file", file),
		zap.Int("line", line),
	}
	switch code {
	case engine.ErrorDebugInfo:
		r.log.Debug(message, fields...)
	case engine.ErrorDebugWarning:
		r.log.Warn(message, fields...)
	default:
		r.log.Error(message, fields...)
	}
}
