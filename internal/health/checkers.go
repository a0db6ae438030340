package health

import (
	"context"
	"fmt"

	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/resilience"
	"github.com/Leo328/basic-youtube-voice-cloning-app/internal/voicestore"
)

// StoreChecker reports ready when the voice registry is loaded. The store
// holds its data in memory after Open, so a non-nil handle is sufficient.
func StoreChecker(s *voicestore.Store) Checker {
	return Checker{
		Name: "store",
		Check: func(_ context.Context) error {
			if s == nil {
				return fmt.Errorf("voice store not initialised")
			}
			return nil
		},
	}
}

// BreakerChecker reports ready while the cloning-upstream circuit breaker is
// not open. An open breaker means recent calls failed at the transport
// level, so new jobs would fail fast anyway.
func BreakerChecker(cb *resilience.CircuitBreaker) Checker {
	return Checker{
		Name: "cloning",
		Check: func(_ context.Context) error {
			if cb == nil {
				return fmt.Errorf("circuit breaker not initialised")
			}
			if cb.State() == resilience.StateOpen {
				return fmt.Errorf("cloning upstream circuit is open")
			}
			return nil
		},
	}
}
