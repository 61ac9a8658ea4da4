package event

import (
	"github.com/leandro-lugaresi/hub"
)

// Topic names published by the monitor.
const (
	MonitorTick  = "monitor.tick"
	MonitorState = "monitor.state"
	AlertStarted = "alert.started"
	AlertEnded   = "alert.ended"
)

// SubscriberCapacity is the buffer size of each subscription channel.
const SubscriberCapacity = 64

type (
	Hub          = hub.Hub
	Message      = hub.Message
	Data         = hub.Fields
	Subscription = hub.Subscription
)

// NewHub creates an event hub. Each monitor owns its own hub instance.
func NewHub() *Hub {
	return hub.New()
}

// Publisher is the narrow interface the monitor publishes through.
type Publisher interface {
	Publish(name string, data Data)
}

// HubPublisher adapts a *Hub to Publisher.
type HubPublisher struct {
	Hub *Hub
}

// Publish sends a message to all subscribers of name.
func (p HubPublisher) Publish(name string, data Data) {
	if p.Hub == nil {
		return
	}
	p.Hub.Publish(Message{Name: name, Fields: data})
}

// Subscribe returns a non-blocking subscription so a slow reader drops
// messages instead of stalling the monitor.
func Subscribe(h *Hub, topics ...string) Subscription {
	return h.NonBlockingSubscribe(SubscriberCapacity, topics...)
}
