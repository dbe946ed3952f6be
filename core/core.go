package core

import "github.com/hupe1980/agentcrew/logging"

// scopedLogger backs the Log* helpers of run and tool contexts. Its fields
// are appended to every record so log lines can be joined back to a run.
type scopedLogger struct {
	logger logging.Logger
	fields []any
}

func newScopedLogger(l logging.Logger, fields ...any) *scopedLogger {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &scopedLogger{logger: l, fields: fields}
}

// Logger returns the unscoped logger (never nil).
func (l *scopedLogger) Logger() logging.Logger { return l.logger }

func (l *scopedLogger) with(args []any) []any {
	if len(l.fields) == 0 {
		return args
	}
	return append(append(make([]any, 0, len(args)+len(l.fields)), args...), l.fields...)
}

func (l *scopedLogger) LogDebug(msg string, args ...any) { l.logger.Debug(msg, l.with(args)...) }

func (l *scopedLogger) LogInfo(msg string, args ...any) { l.logger.Info(msg, l.with(args)...) }

func (l *scopedLogger) LogWarn(msg string, args ...any) { l.logger.Warn(msg, l.with(args)...) }

func (l *scopedLogger) LogError(msg string, args ...any) { l.logger.Error(msg, l.with(args)...) }
