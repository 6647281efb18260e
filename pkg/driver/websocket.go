/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

// Websocket dials one socket and pushes every received message keyed by the
// endpoint URL, which metrics on this connection use as their address.
type Websocket struct {
	base
	details models.WebsocketConnDetails

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}
}

func NewWebsocket(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.WebsocketConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.URL == "" {
		return nil, fmt.Errorf("%w: url", ErrDetailsRequired)
	}

	return &Websocket{base: newBase(log), details: d}, nil
}

func (w *Websocket) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return nil
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, w.details.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", w.details.URL, err)
	}

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	w.conn = conn
	w.done = make(chan struct{})

	go w.readLoop(conn, w.done)

	w.emitOpen()

	return nil
}

func (w *Websocket) readLoop(conn *websocket.Conn, done chan struct{}) {
	addrKey := w.details.URL

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}

			w.emitError(fmt.Errorf("%w: %v", ErrReadFailed, err))
			w.emitClose()

			return
		}

		w.emitData(map[string]interface{}{addrKey: message}, true)
	}
}

func (w *Websocket) Close() error {
	w.shutdown(func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		if w.conn != nil {
			close(w.done)
			_ = w.conn.Close()
			w.conn = nil
		}
	})

	return nil
}

// ReadMetrics is a no-op: the socket pushes messages as they arrive.
func (w *Websocket) ReadMetrics(
	_ context.Context, _ []*models.Metric, _ models.PayloadFormat, _ string) error {
	return nil
}

func (w *Websocket) WriteMetrics(
	_ context.Context, metrics []*models.Metric, format models.PayloadFormat, delimiter string) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return ErrNotOpen
	}

	payload, err := w.codec.Encode(metrics, format, delimiter)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return nil
}

// StartSubscription arms nothing: the push pipeline already runs.
func (w *Websocket) StartSubscription(_ context.Context, sub Subscription) error {
	_, err := w.registerSub(sub.DeviceID)
	return err
}
