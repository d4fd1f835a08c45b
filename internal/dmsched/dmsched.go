// Package dmsched delivers a single delayed direct message. Scheduling a
// new message replaces any pending one, so at most one delivery is ever
// outstanding.
package dmsched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SendFunc delivers a direct message to a user.
type SendFunc func(userID, message string) error

type pending struct {
	userID  string
	message string
	at      time.Time
}

// Scheduler holds the pending delivery slot and drains it from Run.
type Scheduler struct {
	mu     sync.Mutex
	slot   *pending
	send   SendFunc
	logger *zap.Logger
	tick   time.Duration
	now    func() time.Time
}

func New(send SendFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		send:   send,
		logger: logger,
		tick:   10 * time.Second,
		now:    time.Now,
	}
}

// Schedule queues a message for delivery after delay, replacing any
// pending one. It returns the previous pending user ID, if any.
func (s *Scheduler) Schedule(userID, message string, delay time.Duration) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var replacedUser string
	replaced := false
	if s.slot != nil {
		replacedUser = s.slot.userID
		replaced = true
	}
	s.slot = &pending{userID: userID, message: message, at: s.now().Add(delay)}
	return replacedUser, replaced
}

// Cancel drops the pending delivery. It reports whether one existed and
// the user it was addressed to.
func (s *Scheduler) Cancel() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot == nil {
		return "", false
	}
	userID := s.slot.userID
	s.slot = nil
	return userID, true
}

// Pending returns the user ID and delivery time of the queued message.
func (s *Scheduler) Pending() (string, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot == nil {
		return "", time.Time{}, false
	}
	return s.slot.userID, s.slot.at, true
}

// Run checks the slot on an interval and delivers once due. It blocks
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.deliverDue()
		}
	}
}

func (s *Scheduler) deliverDue() {
	s.mu.Lock()
	if s.slot == nil || s.now().Before(s.slot.at) {
		s.mu.Unlock()
		return
	}
	due := *s.slot
	s.slot = nil
	s.mu.Unlock()

	if err := s.send(due.userID, due.message); err != nil {
		s.logger.Error("failed to deliver scheduled DM",
			zap.String("user_id", due.userID),
			zap.Error(err))
		return
	}
	s.logger.Info("delivered scheduled DM", zap.String("user_id", due.userID))
}
