// Package broadcast fans reminder events out to in-process listeners.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"target_audit_reminder/internal/domain/notification"
)

const (
	DefaultQueueSize       = 256
	DefaultDeliveryTimeout = 5 * time.Second
)

var (
	ErrHubStopped = errors.New("broadcast hub stopped")
	ErrQueueFull  = errors.New("broadcast queue full")
)

// Listener receives events. A slow or failing listener never affects other
// listeners or the publisher.
type Listener interface {
	Deliver(ctx context.Context, evt notification.Event) error
}

type ListenerFunc func(ctx context.Context, evt notification.Event) error

func (f ListenerFunc) Deliver(ctx context.Context, evt notification.Event) error {
	return f(ctx, evt)
}

type ListenerID int

// Hub queues published events and delivers them to every subscribed
// listener from a background worker.
type Hub struct {
	mu        sync.RWMutex
	listeners map[ListenerID]Listener
	lastID    ListenerID

	queue   chan notification.Event
	timeout time.Duration
	logger  *logrus.Entry

	stopMu  sync.RWMutex
	stopped bool
	done    chan struct{}
}

var _ notification.Publisher = (*Hub)(nil)

func NewHub(queueSize int, deliveryTimeout time.Duration, logger *logrus.Entry) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if deliveryTimeout <= 0 {
		deliveryTimeout = DefaultDeliveryTimeout
	}
	h := &Hub{
		listeners: make(map[ListenerID]Listener),
		queue:     make(chan notification.Event, queueSize),
		timeout:   deliveryTimeout,
		logger:    logger,
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

// Subscribe registers l and returns its id for Unsubscribe.
func (h *Hub) Subscribe(l Listener) ListenerID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastID++
	h.listeners[h.lastID] = l
	return h.lastID
}

func (h *Hub) Unsubscribe(id ListenerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, id)
}

// Publish enqueues evt without waiting for delivery.
func (h *Hub) Publish(ctx context.Context, evt notification.Event) error {
	h.stopMu.RLock()
	defer h.stopMu.RUnlock()
	if h.stopped {
		return ErrHubStopped
	}
	select {
	case h.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Stop rejects new events, drains the queue and waits for the worker to exit.
func (h *Hub) Stop() {
	h.stopMu.Lock()
	if h.stopped {
		h.stopMu.Unlock()
		<-h.done
		return
	}
	h.stopped = true
	close(h.queue)
	h.stopMu.Unlock()
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for evt := range h.queue {
		h.deliver(evt)
	}
}

func (h *Hub) deliver(evt notification.Event) {
	h.mu.RLock()
	targets := make(map[ListenerID]Listener, len(h.listeners))
	for id, l := range h.listeners {
		targets[id] = l
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for id, l := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.deliverOne(l, evt); err != nil {
				h.logger.WithError(err).WithFields(logrus.Fields{
					"listener_id": id,
					"event_type":  evt.Type,
					"event_id":    evt.ID,
				}).Warn("Broadcast delivery failed")
			}
		}()
	}
	wg.Wait()
}

func (h *Hub) deliverOne(l Listener, evt notification.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return l.Deliver(ctx, evt)
}
