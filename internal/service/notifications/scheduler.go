package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/domain/models"
)

var notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pantry_notifications_total",
	Help: "Notification deliveries by channel and result",
}, []string{"channel", "result"})

// ErrNoRecipient is returned by a sender that has no address for the user.
var ErrNoRecipient = errors.New("user has no address on this channel")

// Sender delivers a notification over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, user models.User, n models.Notification) error
}

// PreferenceStore persists the user's notification opt-in.
type PreferenceStore interface {
	SetNotificationPreferences(ctx context.Context, userID string, enabled bool, phone string) error
}

// Scheduler fires one-shot notifications after a delay to opted-in users.
type Scheduler struct {
	senders     []Sender
	preferences PreferenceStore
	logger      *zap.Logger
	sendTimeout time.Duration

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	nextID  uint64
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler wires a scheduler over the given channels.
func NewScheduler(preferences PreferenceStore, logger *zap.Logger, senders ...Sender) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		senders:     senders,
		preferences: preferences,
		logger:      logger,
		sendTimeout: 15 * time.Second,
		timers:      make(map[uint64]*time.Timer),
	}
}

// RequestPermission records the user's answer to the notification prompt.
func (s *Scheduler) RequestPermission(ctx context.Context, userID string, req models.NotificationPermission) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.preferences.SetNotificationPreferences(ctx, userID, req.Enabled, req.Phone)
}

// ScheduleOneShot queues a notification for delivery after delay. It returns false
// when the user has not granted permission or the scheduler is stopped.
func (s *Scheduler) ScheduleOneShot(user models.User, n models.Notification, delay time.Duration) bool {
	if !user.NotificationsEnabled {
		s.logger.Debug("notification skipped, permission not granted", zap.String("user_id", user.ID))
		return false
	}
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	id := s.nextID
	s.nextID++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.deliver(user, n)
	})
	return true
}

// Pending returns how many notifications are waiting for their timer.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Drain blocks until every scheduled notification has fired. Used by one-shot
// commands that must not exit before delivery.
func (s *Scheduler) Drain() {
	s.wg.Wait()
}

// Stop cancels pending notifications and waits for in-flight deliveries.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, timer := range s.timers {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) deliver(user models.User, n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	for _, sender := range s.senders {
		err := sender.Send(ctx, user, n)
		switch {
		case errors.Is(err, ErrNoRecipient):
			notificationsSent.WithLabelValues(sender.Channel(), "skipped").Inc()
		case err != nil:
			notificationsSent.WithLabelValues(sender.Channel(), "failed").Inc()
			s.logger.Error("notification delivery failed",
				zap.String("channel", sender.Channel()),
				zap.String("user_id", user.ID),
				zap.Error(err))
		default:
			notificationsSent.WithLabelValues(sender.Channel(), "sent").Inc()
		}
	}
}
