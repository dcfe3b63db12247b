package api

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/codec"
)

const (
	streamBuffer = 256
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamSubscription parses the kind and ref query parameters. kind is a
// comma separated list and defaults to every event; ref restricts the
// stream to that element and its children.
func streamSubscription(r *http.Request, handler events.Handler) (events.SubscriptionInfo, error) {
	names := []string{events.KindEvent.String()}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		names = strings.Split(raw, ",")
	}
	kinds, err := events.ParseKinds(names)
	if err != nil {
		return events.SubscriptionInfo{}, err
	}

	var opts []events.SubscriptionOption
	if len(kinds) > 1 {
		opts = append(opts, events.WithKinds(kinds[1:]...))
	}
	if raw := r.URL.Query().Get("ref"); raw != "" {
		ref, err := events.ParseReference(raw)
		if err != nil {
			return events.SubscriptionInfo{}, err
		}
		opts = append(opts, events.WithFilter(events.MatchPrefix(ref)))
	}
	return events.NewSubscription(kinds[0], handler, opts...), nil
}

func (c *Component) handleStream(w http.ResponseWriter, r *http.Request) {
	send := make(chan []byte, streamBuffer)
	var dropped atomic.Uint64

	// Runs on the dispatch goroutine and must never block.
	handler := func(msg *events.Message) error {
		data, err := codec.Encode(msg)
		if err != nil {
			return err
		}
		select {
		case send <- data:
		default:
			dropped.Add(1)
		}
		return nil
	}

	info, err := streamSubscription(r, handler)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, err := c.bus.Subscribe(info)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		return
	}
	c.streams.Add(1)
	log := c.logger.With("subscription_id", string(id), "remote", r.RemoteAddr)
	log.Debug("Event stream opened")

	defer func() {
		c.bus.Unsubscribe(id)
		c.streams.Add(-1)
		log.Debug("Event stream closed", "dropped", dropped.Load())
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
			return
		}
	}
}
