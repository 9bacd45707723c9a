package barrelkv

import "go.uber.org/zap"

// defaultSegmentCap is the soft size cap for a segment file, per spec: 1024
// bytes by default, crossed by at most one record.
const defaultSegmentCap = 1024

// options holds the resolved configuration for a Store or Compactor.
// There is no file/env/flag loader here (Non-goal) — options is populated
// purely from functional options passed to Open/NewCompactor, following the
// shape of iamNilotpal/ignite's pkg/options OptionFunc pattern.
type options struct {
	segmentCap  int64
	logger      *zap.SugaredLogger
	useFileLock bool
}

func defaultOptions() *options {
	return &options{
		segmentCap:  defaultSegmentCap,
		logger:      zap.NewNop().Sugar(),
		useFileLock: true,
	}
}

// Option configures a Store opened via Open or a Compactor created via
// NewCompactor.
type Option func(*options)

// WithSegmentCap overrides the default 1024-byte soft segment size cap.
// Values <= 0 are ignored.
func WithSegmentCap(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.segmentCap = n
		}
	}
}

// WithLogger attaches a structured logger for lifecycle events: segment
// open/roll, compaction progress, corruption detection, lock acquisition.
// Hot-path operations (Get/Put/Delete) only log at Debug level. A nil
// logger is ignored and the no-op logger is kept.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFileLock toggles the advisory directory lock taken on Open (default
// true). Disable it only when the caller already guarantees this process
// is the directory's sole writer, e.g. in tests that share a temp dir with
// no other store instance.
func WithFileLock(enabled bool) Option {
	return func(o *options) { o.useFileLock = enabled }
}
