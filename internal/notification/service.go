// Package notification persists dashboard notifications and fans them out
// to in-process subscribers and optional push services.
package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/kestrelcam/kestrel-go/internal/datastore/entities"
	"github.com/kestrelcam/kestrel-go/internal/datastore/repository"
	"github.com/kestrelcam/kestrel-go/internal/logger"
	"github.com/kestrelcam/kestrel-go/internal/retry"
)

// subscriberBuffer bounds each subscriber channel. A subscriber that stops
// draining loses notifications instead of stalling dispatch.
const subscriberBuffer = 16

// Service stores notifications and broadcasts them as they are created.
type Service struct {
	store  repository.NotificationRepository
	pusher *router.ServiceRouter
	policy retry.Policy
	log    logger.Logger

	mu          sync.RWMutex
	subscribers map[uint64]chan entities.Notification
	nextID      uint64
}

// NewService creates the notification service. pushURLs are optional
// shoutrrr service URLs; an empty list disables push delivery.
func NewService(store repository.NotificationRepository, pushURLs []string, log logger.Logger) (*Service, error) {
	s := &Service{
		store:       store,
		policy:      retry.ProviderPolicy(),
		log:         log,
		subscribers: make(map[uint64]chan entities.Notification),
	}
	if len(pushURLs) > 0 {
		pusher, err := shoutrrr.CreateSender(pushURLs...)
		if err != nil {
			return nil, fmt.Errorf("failed to create push sender: %w", err)
		}
		s.pusher = pusher
	}
	return s, nil
}

// CreateAndBroadcast persists the notification, then fans it out. The
// persisted row is the source of truth: fan-out failures are logged but
// never returned, while a store failure is.
func (s *Service) CreateAndBroadcast(ctx context.Context, n *entities.Notification) error {
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	s.broadcast(*n)
	s.push(ctx, n)
	return nil
}

// Subscribe registers a listener for new notifications. The returned cancel
// function removes the subscription and closes the channel.
func (s *Service) Subscribe() (<-chan entities.Notification, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan entities.Notification, subscriberBuffer)
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *Service) broadcast(n entities.Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			s.log.Warn("dropping notification for slow subscriber",
				logger.Uint64("notification_id", uint64(n.ID)))
		}
	}
}

// push forwards the notification to the configured shoutrrr services.
// Push providers are flaky by nature, so delivery is retried briefly and
// failures only logged.
func (s *Service) push(ctx context.Context, n *entities.Notification) {
	if s.pusher == nil {
		return
	}
	message := fmt.Sprintf("%s: %s", n.RuleName, n.Message)
	_, err := retry.Do(ctx, s.policy, func(context.Context) error {
		var params types.Params
		for _, sendErr := range s.pusher.Send(message, &params) {
			if sendErr != nil {
				return sendErr
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("push delivery failed",
			logger.Uint64("notification_id", uint64(n.ID)),
			logger.Error(err))
	}
}

// Unread returns the number of unread notifications.
func (s *Service) Unread(ctx context.Context) (int64, error) {
	return s.store.CountUnread(ctx)
}

// List returns stored notifications matching the filter.
func (s *Service) List(ctx context.Context, filter repository.NotificationFilter) ([]entities.Notification, int64, error) {
	return s.store.ListNotifications(ctx, filter)
}

// MarkRead flags one notification as read or unread.
func (s *Service) MarkRead(ctx context.Context, id uint, read bool) error {
	return s.store.MarkRead(ctx, id, read)
}

// MarkAllRead flags every unread notification as read.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	return s.store.MarkAllRead(ctx)
}
