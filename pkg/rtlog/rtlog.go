// Package rtlog holds the package-level logger. Its only user in this
// module is the cmd/birch driver (shutdown notice, finalizer panics);
// the library packages do not log. It defaults to a no-op logger so a
// host embedding this module pays nothing until it opts in via
// SetLogger.
package rtlog

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log *zap.Logger = zap.NewNop()
)

// SetLogger replaces the package-level logger. Passing nil restores the
// no-op logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

// Logger returns the current package-level logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Sugar is a shorthand for Logger().Sugar(), used at call sites that
// want printf-style fields without constructing zap.Field values.
func Sugar() *zap.SugaredLogger {
	return Logger().Sugar()
}
