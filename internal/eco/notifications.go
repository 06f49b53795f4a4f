package eco

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// TickEvent describes one completed tick. It is what notifiers deliver.
type TickEvent struct {
	Tick      int64    `json:"tick"`
	Timestamp int64    `json:"timestamp"`
	Census    Census   `json:"census"`
	Activity  Activity `json:"activity"`
	Grid      Snapshot `json:"grid"`
}

// NewTickEvent builds the event for a completed tick.
func NewTickEvent(tick int64, grid Snapshot, act Activity) TickEvent {
	return TickEvent{
		Tick:      tick,
		Timestamp: time.Now().Unix(),
		Census:    grid.Census(),
		Activity:  act,
		Grid:      grid,
	}
}

// JSON returns the tick event as JSON bytes
func (te TickEvent) JSON() ([]byte, error) {
	return json.Marshal(te)
}

// ErrDeliveryRejected marks a notification failure that retrying cannot
// fix, such as a receiver refusing the event or a closed channel.
var ErrDeliveryRejected = errors.New("delivery rejected")

// Notifier is the interface that all notification channels must implement
type Notifier interface {
	// ID returns a unique identifier for this notifier
	ID() string

	// Type returns the type of notifier (e.g., "webhook", "websocket")
	Type() string

	// Notify delivers a tick event. The context carries the delivery deadline.
	Notify(ctx context.Context, event TickEvent) error

	// Close closes the notifier and releases any resources
	Close() error
}

// NotificationManager fans tick events out to every registered notifier
// from a background worker, so a slow notifier never delays a tick.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	jobs      chan TickEvent
	closed    bool
	wg        sync.WaitGroup
	logger    Logger

	retryBackoff time.Duration
}

// NewNotificationManager creates a notification manager that logs nothing.
func NewNotificationManager() *NotificationManager {
	return NewNotificationManagerWithLogger(nil)
}

// NewNotificationManagerWithLogger creates a notification manager that
// reports delivery failures to logger.
func NewNotificationManagerWithLogger(logger Logger) *NotificationManager {
	mgr := &NotificationManager{
		notifiers:    make(map[string]Notifier),
		jobs:         make(chan TickEvent, 256),
		logger:       loggerOrNoOp(logger),
		retryBackoff: 100 * time.Millisecond,
	}
	mgr.startWorkers(1)
	return mgr
}

// RegisterNotifier registers a notifier with the manager
func (nm *NotificationManager) RegisterNotifier(notifier Notifier) error {
	if notifier == nil {
		return fmt.Errorf("notifier cannot be nil")
	}

	id := notifier.ID()
	if id == "" {
		return fmt.Errorf("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()

	if nm.closed {
		return fmt.Errorf("notification manager is closed")
	}
	if _, exists := nm.notifiers[id]; exists {
		return fmt.Errorf("notifier with ID %s already exists", id)
	}

	nm.notifiers[id] = notifier
	return nil
}

// UnregisterNotifier closes and removes a notifier
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	notifier, exists := nm.notifiers[id]
	delete(nm.notifiers, id)
	nm.mu.Unlock()

	if !exists {
		return fmt.Errorf("notifier with ID %s not found", id)
	}

	if err := notifier.Close(); err != nil {
		return fmt.Errorf("error closing notifier %s: %w", id, err)
	}
	return nil
}

// GetNotifier retrieves a notifier by ID
func (nm *NotificationManager) GetNotifier(id string) (Notifier, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	notifier, exists := nm.notifiers[id]
	return notifier, exists
}

// ListNotifiers returns the registered notifier IDs in sorted order
func (nm *NotificationManager) ListNotifiers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Enqueue hands a tick event to the background worker. It never blocks:
// when the queue is full the event is dropped.
func (nm *NotificationManager) Enqueue(event TickEvent) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	if nm.closed || len(nm.notifiers) == 0 {
		return
	}

	select {
	case nm.jobs <- event:
	default:
		nm.logger.Warnf("notification queue full, dropping tick event: tick=%d", event.Tick)
	}
}

func (nm *NotificationManager) startWorkers(n int) {
	for range n {
		nm.wg.Add(1)
		go nm.worker()
	}
}

func (nm *NotificationManager) worker() {
	defer nm.wg.Done()
	for event := range nm.jobs {
		nm.dispatch(event)
	}
}

// dispatch delivers one event to every notifier registered at that moment.
func (nm *NotificationManager) dispatch(event TickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, id := range nm.ListNotifiers() {
		nm.notifyWithRetry(ctx, id, event)
	}
}

// notifyWithRetry attempts to send a notification with exponential backoff
// retry. Rejections are not retried.
func (nm *NotificationManager) notifyWithRetry(ctx context.Context, notifierID string, event TickEvent) {
	notifier, ok := nm.GetNotifier(notifierID)
	if !ok {
		return
	}

	const maxRetries = 3
	backoff := nm.retryBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := notifier.Notify(ctx, event)
		if err == nil {
			return
		}

		if errors.Is(err, ErrDeliveryRejected) {
			nm.logger.Errorf("notification rejected, not retrying: notifier=%s tick=%d error=%v", notifierID, event.Tick, err)
			return
		}
		nm.logger.Warnf("notification failed: notifier=%s tick=%d attempt=%d error=%v", notifierID, event.Tick, attempt+1, err)

		if attempt == maxRetries {
			nm.logger.Errorf("notification failed after %d attempts: notifier=%s tick=%d", maxRetries+1, notifierID, event.Tick)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Notify delivers an event to every registered notifier synchronously and
// joins the errors of the ones that failed.
func (nm *NotificationManager) Notify(ctx context.Context, event TickEvent) error {
	var errs []error
	for _, id := range nm.ListNotifiers() {
		notifier, exists := nm.GetNotifier(id)
		if !exists {
			continue
		}
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notifier %s failed: %w", id, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// Close drains the queue, stops the worker and closes all notifiers
func (nm *NotificationManager) Close() error {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return nil
	}
	nm.closed = true
	close(nm.jobs)
	nm.mu.Unlock()

	nm.wg.Wait()

	nm.mu.Lock()
	var errs []error
	for id, notifier := range nm.notifiers {
		if err := notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing notifier %s: %w", id, err))
		}
	}
	nm.notifiers = make(map[string]Notifier)
	nm.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing notifiers: %v", errs)
	}
	return nil
}
