package xbase

import "go.uber.org/zap"

// defaultLogger is used whenever a caller passes a nil *zap.Logger to Open
// or Create; the engines stay silent unless the caller wants visibility.
var defaultLogger = zap.NewNop()

func resolveLogger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}
