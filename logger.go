package mtlsmiddleware

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// The adapters below turn the slog-style key/value arguments of Logger into
// each library's structured fields. A trailing key without value is logged
// under "!BADKEY", as log/slog does.

// NewZapLogger returns a Logger backed by zap.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{l: l.Sugar()}
}

type zapLogger struct{ l *zap.SugaredLogger }

func (z *zapLogger) Debug(msg string, args ...any) { z.l.Debugw(msg, pairs(args)...) }
func (z *zapLogger) Info(msg string, args ...any)  { z.l.Infow(msg, pairs(args)...) }
func (z *zapLogger) Warn(msg string, args ...any)  { z.l.Warnw(msg, pairs(args)...) }
func (z *zapLogger) Error(msg string, args ...any) { z.l.Errorw(msg, pairs(args)...) }

// NewZerologLogger returns a Logger backed by zerolog.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

type zerologLogger struct{ l zerolog.Logger }

func (z *zerologLogger) Debug(msg string, args ...any) { z.l.Debug().Fields(fields(args)).Msg(msg) }
func (z *zerologLogger) Info(msg string, args ...any)  { z.l.Info().Fields(fields(args)).Msg(msg) }
func (z *zerologLogger) Warn(msg string, args ...any)  { z.l.Warn().Fields(fields(args)).Msg(msg) }
func (z *zerologLogger) Error(msg string, args ...any) { z.l.Error().Fields(fields(args)).Msg(msg) }

// NewLogrusLogger returns a Logger backed by logrus.
func NewLogrusLogger(l logrus.FieldLogger) Logger {
	return &logrusLogger{l: l}
}

type logrusLogger struct{ l logrus.FieldLogger }

func (l *logrusLogger) Debug(msg string, args ...any) { l.l.WithFields(fields(args)).Debug(msg) }
func (l *logrusLogger) Info(msg string, args ...any)  { l.l.WithFields(fields(args)).Info(msg) }
func (l *logrusLogger) Warn(msg string, args ...any)  { l.l.WithFields(fields(args)).Warn(msg) }
func (l *logrusLogger) Error(msg string, args ...any) { l.l.WithFields(fields(args)).Error(msg) }

// pairs normalizes args to string keys followed by values.
func pairs(args []any) []any {
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			out = append(out, "!BADKEY", args[i])
			break
		}
		out = append(out, keyString(args[i]), args[i+1])
	}
	return out
}

func fields(args []any) map[string]any {
	p := pairs(args)
	out := make(map[string]any, len(p)/2)
	for i := 0; i < len(p); i += 2 {
		out[p[i].(string)] = p[i+1]
	}
	return out
}

func keyString(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return fmt.Sprint(key)
}
