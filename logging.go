package slab

import "go.uber.org/zap"

// log is the package-level structured logger. It is deliberately kept
// off the per-block fast path (sizeclass.go/tcache.go's hot loops
// never touch it) and only used at points worth observing in
// production: one-shot initialization, OS mapping failures, and (at
// debug level) fresh-page creation and global-pool adoption.
var log = newLogger()

func newLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		// zap itself failing to construct its production config is
		// not something this package can recover from usefully;
		// fall back to a no-op logger rather than panic during
		// package init.
		return zap.NewNop()
	}
	return l
}
