package events

import "context"

type KindStats struct {
	Kind          string `json:"kind" prometheus:"label"`
	Subscriptions int    `json:"subscriptions" prometheus:"name=aasbus_kind_subscriptions,help=Subscriptions per subscribed kind,type=gauge"`
}

type Stats struct {
	Running         bool        `json:"running" prometheus:"name=aasbus_running,help=Whether the dispatch loop is running,type=gauge"`
	Subscriptions   int         `json:"subscriptions" prometheus:"name=aasbus_subscriptions,help=Active subscriptions,type=gauge"`
	Kinds           []KindStats `json:"kinds,omitempty"`
	QueueLength     int         `json:"queue-length" prometheus:"name=aasbus_queue_length,help=Messages waiting for dispatch,type=gauge"`
	QueueCapacity   int         `json:"queue-capacity" prometheus:"name=aasbus_queue_capacity,help=Queue bound (0 is unbounded),type=gauge"`
	Published       uint64      `json:"published" prometheus:"name=aasbus_published_total,help=Messages accepted by Publish,type=counter"`
	Rejected        uint64      `json:"rejected" prometheus:"name=aasbus_rejected_total,help=Messages refused by Publish,type=counter"`
	Dispatched      uint64      `json:"dispatched" prometheus:"name=aasbus_dispatched_total,help=Messages taken off the queue,type=counter"`
	Delivered       uint64      `json:"delivered" prometheus:"name=aasbus_delivered_total,help=Successful handler invocations,type=counter"`
	HandlerFailures uint64      `json:"handler-failures" prometheus:"name=aasbus_handler_failures_total,help=Handler invocations that failed or panicked,type=counter"`
	Discarded       uint64      `json:"discarded" prometheus:"name=aasbus_discarded_total,help=Messages dropped without dispatch,type=counter"`
	Forwarded       uint64      `json:"forwarded,omitempty" prometheus:"name=aasbus_forwarded_total,help=Messages sent to the external broker,type=counter"`
	ForwardFailures uint64      `json:"forward-failures,omitempty" prometheus:"name=aasbus_forward_failures_total,help=Messages the external broker did not accept,type=counter"`
	DebugKinds      []string    `json:"debug-kinds,omitempty"`
}

// Bus distributes messages from producers to subscribers.
//
// Publish may be called from any goroutine. Implementations deliver each
// message to every subscription whose kinds contain the message kind (or one
// of its supertypes) and whose filter accepts the message element.
// Unsubscribe with an unknown id is a no-op.
type Bus interface {
	Start() error
	Stop() error
	Publish(ctx context.Context, msg *Message) error
	Subscribe(info SubscriptionInfo) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID)
	Stats() Stats
}
