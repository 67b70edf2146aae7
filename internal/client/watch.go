package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"berth/internal/notify"
)

// Watch streams push messages to handle until ctx ends or the server
// closes the stream. A normal close returns nil.
func (c *Client) Watch(ctx context.Context, handle func(notify.Message)) error {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/ws/events"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u.String(), err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		var msg notify.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("event stream closed: %w", err)
			}
			return fmt.Errorf("read event: %w", err)
		}
		handle(msg)
	}
}
