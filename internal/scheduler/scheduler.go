package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Operation names a lifecycle transition a timer should trigger.
type Operation string

const (
	StartAuction Operation = "start_auction"
	EndAuction   Operation = "end_auction"
)

// Handler is invoked when a scheduled deadline is reached.
type Handler func(ctx context.Context, op Operation, auctionID string) error

// Scheduler requests that an operation run at-or-after a wall-clock
// deadline. Delivery is at-least-once with no ordering guarantee and no
// cancellation: a superseded callback may still fire, and the handler must
// absorb it as a no-op.
type Scheduler interface {
	ScheduleAfter(delay time.Duration, op Operation, auctionID string)
}

// TimerScheduler runs callbacks on in-process timers. Lost timers (process
// restart) are covered by the reconciliation sweep, not by the scheduler.
type TimerScheduler struct {
	logger      *log.Logger
	retryDelay  time.Duration
	maxAttempts int

	mu      sync.Mutex
	handler Handler
}

// NewTimerScheduler creates a scheduler that retries a failing handler a
// bounded number of times. The handler is bound later via Bind because the
// lifecycle service and the scheduler reference each other.
func NewTimerScheduler(logger *log.Logger, retryDelay time.Duration, maxAttempts int) *TimerScheduler {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TimerScheduler{
		logger:      logger,
		retryDelay:  retryDelay,
		maxAttempts: maxAttempts,
	}
}

// Bind sets the callback target. Must be called before ScheduleAfter.
func (s *TimerScheduler) Bind(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// ScheduleAfter arms a timer for the operation. It never blocks the caller;
// scheduling failures surface only as handler retries and log lines.
func (s *TimerScheduler) ScheduleAfter(delay time.Duration, op Operation, auctionID string) {
	if delay < 0 {
		delay = 0
	}
	s.arm(delay, op, auctionID, 1)
}

func (s *TimerScheduler) arm(delay time.Duration, op Operation, auctionID string, attempt int) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler == nil {
			s.logger.Printf("scheduler: no handler bound, dropping %s for auction %s", op, auctionID)
			return
		}

		if err := handler(context.Background(), op, auctionID); err != nil {
			if attempt >= s.maxAttempts {
				s.logger.Printf("scheduler: %s for auction %s failed after %d attempts, leaving to sweep: %v",
					op, auctionID, attempt, err)
				return
			}
			s.logger.Printf("scheduler: %s for auction %s failed (attempt %d), retrying in %s: %v",
				op, auctionID, attempt, s.retryDelay, err)
			s.arm(s.retryDelay, op, auctionID, attempt+1)
		}
	})
}
