package watcher

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// FeedConfig describes one upstream feed subscription.
type FeedConfig struct {
	Kind   FeedKind `json:"kind" mapstructure:"kind"`
	URL    string   `json:"url" mapstructure:"url"`
	APIKey string   `json:"api_key" mapstructure:"api_key"`
}

// FeedConn is one live subscription. ReadEvent blocks until the next raw
// event payload arrives or the connection fails.
type FeedConn interface {
	ReadEvent() ([]byte, error)
	Close() error
}

// FeedTransport dials feed subscriptions. Injected so tests can drive the
// watcher with scripted events and failures.
type FeedTransport interface {
	Connect(ctx context.Context, feed FeedConfig) (FeedConn, error)
}

// WebsocketTransport subscribes to feeds over websocket.
type WebsocketTransport struct {
	dialer *websocket.Dialer
}

// NewWebsocketTransport creates a transport with the default dialer.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{dialer: websocket.DefaultDialer}
}

func (t *WebsocketTransport) Connect(ctx context.Context, feed FeedConfig) (FeedConn, error) {
	header := http.Header{}
	if feed.APIKey != "" {
		header.Set("Authorization", feed.APIKey)
	}
	conn, resp, err := t.dialer.DialContext(ctx, feed.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("feed %s dial failed with status %d: %w", feed.Kind, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("feed %s dial failed: %w", feed.Kind, err)
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadEvent() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("feed read failed: %w", err)
	}
	return payload, nil
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}
