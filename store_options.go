package workshop

import "time"

// DefaultOperationTimeout bounds every backend call made by a Store.
var DefaultOperationTimeout = 10 * time.Second

// StoreOption customizes Store construction.
type StoreOption func(*Store)

// WithStoreLogger overrides the logger.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreActivitySink sets the ActivitySink used to publish store events.
func WithStoreActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.sink = normalizeActivitySink(sink)
	}
}

// WithOperationTimeout bounds each backend call. Zero disables the bound.
func WithOperationTimeout(timeout time.Duration) StoreOption {
	return func(s *Store) {
		if timeout >= 0 {
			s.timeout = timeout
		}
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}
