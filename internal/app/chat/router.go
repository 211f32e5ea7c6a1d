package chat

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"roomchat/internal/pkg/logx"
	"roomchat/internal/pkg/metrics"
)

// LobbyChannel reaches every connected session.
const LobbyChannel = "lobby"

// RoomChannel returns the broadcast channel of a room. The prefix keeps room
// names from colliding with LobbyChannel.
func RoomChannel(room string) string {
	return "room:" + room
}

// Handler receives one event for one subscriber.
type Handler func(Event) error

// topic is one broadcast channel.
type topic struct {
	// order serializes publishes so every subscriber sees the same sequence.
	order sync.Mutex

	mu   sync.RWMutex
	subs map[string]Handler
}

// Router delivers events to the subscribers of a channel. Each subscriber id
// holds at most one subscription per channel.
type Router struct {
	mu     sync.RWMutex
	topics map[string]*topic

	logger zerolog.Logger
}

// NewRouter creates a router with no channels.
func NewRouter() *Router {
	return &Router{
		topics: make(map[string]*topic),
		logger: logx.Component("router"),
	}
}

func (r *Router) topic(channel string, create bool) *topic {
	r.mu.RLock()
	t, ok := r.topics[channel]
	r.mu.RUnlock()
	if ok || !create {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok = r.topics[channel]; !ok {
		t = &topic{subs: make(map[string]Handler)}
		r.topics[channel] = t
	}
	return t
}

// Subscribe registers handler for subscriberID on channel, replacing any
// previous handler of the same subscriber.
func (r *Router) Subscribe(channel, subscriberID string, handler Handler) {
	t := r.topic(channel, true)

	t.mu.Lock()
	t.subs[subscriberID] = handler
	t.mu.Unlock()
}

// Unsubscribe removes subscriberID from channel.
func (r *Router) Unsubscribe(channel, subscriberID string) {
	t := r.topic(channel, false)
	if t == nil {
		return
	}

	t.mu.Lock()
	delete(t.subs, subscriberID)
	t.mu.Unlock()
}

// Subscribers returns the number of subscribers on channel.
func (r *Router) Subscribers(channel string) int {
	t := r.topic(channel, false)
	if t == nil {
		return 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Publish delivers evt to every current subscriber of channel.
func (r *Router) Publish(channel string, evt Event) {
	_ = r.Accept(channel, func() (Event, error) { return evt, nil })
}

// Accept runs produce under the channel's ordering lock and publishes the
// event it returns. Events accepted on one channel are delivered in the order
// produce ran. An error from produce is returned and nothing is published.
func (r *Router) Accept(channel string, produce func() (Event, error)) error {
	t := r.topic(channel, true)

	t.order.Lock()
	defer t.order.Unlock()

	evt, err := produce()
	if err != nil {
		return err
	}

	t.mu.RLock()
	targets := make(map[string]Handler, len(t.subs))
	for id, h := range t.subs {
		targets[id] = h
	}
	t.mu.RUnlock()

	for id, h := range targets {
		r.deliver(channel, id, h, evt)
	}
	return nil
}

// deliver hands evt to one subscriber. Failures are logged and counted only.
func (r *Router) deliver(channel, subscriberID string, h Handler, evt Event) {
	defer func() {
		if p := recover(); p != nil {
			metrics.DeliveryFailures.Inc()
			r.logger.Error().
				Err(fmt.Errorf("panic: %v", p)).
				Str("channel", channel).
				Str("subscriber", subscriberID).
				Msg("Subscriber handler panicked.")
		}
	}()

	if err := h(evt); err != nil {
		metrics.DeliveryFailures.Inc()
		r.logger.Warn().
			Err(err).
			Str("channel", channel).
			Str("subscriber", subscriberID).
			Str("event", string(evt.Type)).
			Msg("Delivery failed.")
	}
}

// Drop removes a channel and all its subscriptions.
func (r *Router) Drop(channel string) {
	r.mu.Lock()
	delete(r.topics, channel)
	r.mu.Unlock()
}
