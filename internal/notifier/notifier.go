package notifier

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/openmassage/booking-api/internal/model"
	"github.com/openmassage/booking-api/pkg/logger"
	"github.com/openmassage/booking-api/pkg/messaging"
	"github.com/openmassage/booking-api/pkg/metrics"
)

const subscriptionBuffer = 64

// Filter selects which booking events a subscription receives.
type Filter func(*model.BookingEvent) bool

// OnChange is invoked for every matching event, one at a time per
// subscription, in the order events arrived for that booking.
type OnChange func(*model.BookingEvent)

// Subscription is the handle returned by Subscribe. The consumer owns
// its lifecycle and releases it with Unsubscribe; queued notifications
// are discarded on teardown.
type Subscription struct {
	id     uuid.UUID
	filter Filter
	ch     chan *model.BookingEvent
	done   chan struct{}
}

// Notifier fans booking events out from the broker to in-process
// subscribers. It holds no state beyond the active subscription set.
type Notifier struct {
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

func New(broker messaging.Broker, logger *logger.Logger, metrics *metrics.Metrics) *Notifier {
	return &Notifier{
		broker:  broker,
		logger:  logger,
		metrics: metrics,
		subs:    make(map[uuid.UUID]*Subscription),
	}
}

// Start consumes the booking event channels until ctx is cancelled.
// Each broker channel is drained by a single goroutine, so events for
// one booking keep their write order; no ordering is guaranteed across
// distinct bookings.
func (n *Notifier) Start(ctx context.Context) error {
	eventTypes := []string{
		model.EventBookingCreated,
		model.EventBookingAccepted,
		model.EventBookingDeclined,
		model.EventBookingCancelled,
	}

	for _, eventType := range eventTypes {
		msgs, err := n.broker.Subscribe(ctx, eventType)
		if err != nil {
			return err
		}
		go n.consume(msgs)
	}
	return nil
}

func (n *Notifier) consume(msgs <-chan []byte) {
	for raw := range msgs {
		var event model.BookingEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			n.logger.Error(err, "Failed to decode booking event")
			continue
		}
		n.dispatch(&event)
	}
}

func (n *Notifier) dispatch(event *model.BookingEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, sub := range n.subs {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Slow consumer; drop rather than stall the feed.
			if n.metrics != nil {
				n.metrics.NotifierDropped.Inc()
			}
		}
	}
}

// Subscribe registers a callback for matching events and returns the
// handle that releases it. A nil filter matches everything.
func (n *Notifier) Subscribe(filter Filter, onChange OnChange) *Subscription {
	sub := &Subscription{
		id:     uuid.New(),
		filter: filter,
		ch:     make(chan *model.BookingEvent, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	n.mu.Lock()
	n.subs[sub.id] = sub
	n.mu.Unlock()

	if n.metrics != nil {
		n.metrics.NotifierSubscriptions.Inc()
	}

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case event := <-sub.ch:
				select {
				case <-sub.done:
					return
				default:
				}
				onChange(event)
			}
		}
	}()

	return sub
}

// Unsubscribe tears the subscription down. In-flight notifications
// already queued for it are discarded silently.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	n.mu.Lock()
	_, active := n.subs[sub.id]
	delete(n.subs, sub.id)
	n.mu.Unlock()

	if !active {
		return
	}

	close(sub.done)
	if n.metrics != nil {
		n.metrics.NotifierSubscriptions.Dec()
	}
}

// ForService returns a filter matching a single service's bookings.
func ForService(serviceID uuid.UUID) Filter {
	return func(e *model.BookingEvent) bool { return e.ServiceID == serviceID }
}

// ForServices returns a filter matching any of a practitioner's
// services, the shape used by the practitioner dashboard feed.
func ForServices(serviceIDs []uuid.UUID) Filter {
	set := make(map[uuid.UUID]struct{}, len(serviceIDs))
	for _, id := range serviceIDs {
		set[id] = struct{}{}
	}
	return func(e *model.BookingEvent) bool {
		_, ok := set[e.ServiceID]
		return ok
	}
}

// ForClient returns a filter matching a client's own bookings.
func ForClient(clientID uuid.UUID) Filter {
	return func(e *model.BookingEvent) bool { return e.ClientID == clientID }
}
