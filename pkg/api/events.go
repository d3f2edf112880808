package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pluqqy/lora-gallery/pkg/models"
)

const eventBuffer = 32

// Subscription delivers server events until its context ends or the
// connection drops; Events is closed then.
type Subscription struct {
	Events <-chan models.MetadataChangedEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// Close ends the subscription. It returns once the reader has stopped, even
// when nobody drains Events.
func (s *Subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Subscribe opens the event stream of the server
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	wsURL := c.endpoint("events", nil)
	wsURL = "ws" + strings.TrimPrefix(wsURL, "http")

	ctx, cancel := context.WithCancel(ctx)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		cancel()
		if resp != nil {
			return nil, fmt.Errorf("failed to subscribe to events: %w", &StatusError{Code: resp.StatusCode})
		}
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	events := make(chan models.MetadataChangedEvent, eventBuffer)
	sub := &Subscription{Events: events, cancel: cancel, done: make(chan struct{})}

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-sub.done:
		}
	}()

	go func() {
		defer close(sub.done)
		defer close(events)
		defer conn.Close()
		for {
			var ev models.MetadataChangedEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Debug("event stream closed", "error", err)
				}
				return
			}
			if ev.Type != models.EventMetadataChanged {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}
