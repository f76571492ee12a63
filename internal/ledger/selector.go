package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Selector supplies a live ledger connection from a prioritized list. Each
// acquisition probes candidates in order and returns the first that passes a
// health check; when every candidate fails the primary is returned anyway so
// the caller's subsequent, more informative error is the one surfaced.
//
// The last good pick is reused for a short TTL so hot paths don't pay a
// probe per call, but a dead endpoint is never cached past that window.
type Selector struct {
	clients      []Client
	probeTimeout time.Duration
	ttl          time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	last   Client
	lastAt time.Time
}

// NewSelector creates a Selector over the ordered candidates. The first
// client is the primary. probeTimeout bounds each individual health check;
// ttl is how long a successful pick is trusted without re-probing.
func NewSelector(clients []Client, probeTimeout, ttl time.Duration, logger *slog.Logger) *Selector {
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		clients:      clients,
		probeTimeout: probeTimeout,
		ttl:          ttl,
		logger:       logger.With(slog.String("component", "selector")),
	}
}

// Acquire returns a connection to use for the next operation.
func (s *Selector) Acquire(ctx context.Context) Client {
	s.mu.Lock()
	if s.last != nil && s.ttl > 0 && time.Since(s.lastAt) < s.ttl {
		c := s.last
		s.mu.Unlock()
		return c
	}
	s.mu.Unlock()

	for i, c := range s.clients {
		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		err := c.Health(probeCtx)
		cancel()
		if err == nil {
			if i > 0 {
				s.logger.Warn("primary endpoint unhealthy, using fallback",
					slog.String("endpoint", c.Endpoint()),
					slog.Int("rank", i),
				)
			}
			s.mu.Lock()
			s.last, s.lastAt = c, time.Now()
			s.mu.Unlock()
			return c
		}
		s.logger.Debug("endpoint failed liveness probe",
			slog.String("endpoint", c.Endpoint()),
			slog.String("error", err.Error()),
		)
	}

	// All candidates failed: hand back the primary and let the real call
	// produce the error the user sees.
	s.logger.Error("all ledger endpoints failed liveness probes, falling back to primary")
	s.mu.Lock()
	s.last, s.lastAt = nil, time.Time{}
	s.mu.Unlock()
	return s.clients[0]
}
