// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ErrTapClosed is returned by Next after the relay closed the connection
var ErrTapClosed = errors.New("relay connection closed")

// Tap reads frames from a relay
type Tap struct {
	conn *websocket.Conn
}

// Dial connects to a relay websocket URL with optional HTTP Basic auth
func Dial(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*Tap, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &Tap{conn: conn}, nil
}

// Next blocks until the next frame arrives. Non-binary messages are skipped.
func (t *Tap) Next() (Frame, error) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return Frame{}, ErrTapClosed
			}
			return Frame{}, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		return Decode(data)
	}
}

// SetDeadline bounds the next read
func (t *Tap) SetDeadline(d time.Time) error {
	return t.conn.SetReadDeadline(d)
}

// Close sends a close message and releases the connection
func (t *Tap) Close() error {
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}
