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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

const asciiDialTimeout = 10 * time.Second

// ASCIITCP speaks newline-delimited ASCII over a TCP stream. Every received
// line is pushed keyed by the remote endpoint, which metrics on this
// connection use as their address.
type ASCIITCP struct {
	base
	details models.ASCIITCPConnDetails

	mu   sync.Mutex
	conn net.Conn
	done chan struct{}
}

func NewASCIITCP(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.ASCIITCPConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.IP == "" || d.Port <= 0 {
		return nil, fmt.Errorf("%w: ip and port", ErrDetailsRequired)
	}

	return &ASCIITCP{base: newBase(log), details: d}, nil
}

func (a *ASCIITCP) endpoint() string {
	return net.JoinHostPort(a.details.IP, strconv.Itoa(a.details.Port))
}

func (a *ASCIITCP) Open(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", a.endpoint(), asciiDialTimeout)
	if err != nil {
		return fmt.Errorf("tcp dial %s: %w", a.endpoint(), err)
	}

	a.conn = conn
	a.done = make(chan struct{})

	go a.readLoop(conn, a.done)

	a.emitOpen()

	return nil
}

func (a *ASCIITCP) readLoop(conn net.Conn, done chan struct{}) {
	addrKey := a.endpoint()
	scanner := bufio.NewScanner(conn)

	for scanner.Scan() {
		a.emitData(map[string]interface{}{addrKey: scanner.Text()}, true)
	}

	select {
	case <-done:
		return
	default:
	}

	if err := scanner.Err(); err != nil {
		a.emitError(fmt.Errorf("%w: %v", ErrReadFailed, err))
	}

	a.emitClose()
}

func (a *ASCIITCP) Close() error {
	a.shutdown(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		if a.conn != nil {
			close(a.done)
			_ = a.conn.Close()
			a.conn = nil
		}
	})

	return nil
}

// ReadMetrics is a no-op: the stream pushes lines as they arrive.
func (a *ASCIITCP) ReadMetrics(
	_ context.Context, _ []*models.Metric, _ models.PayloadFormat, _ string) error {
	return nil
}

func (a *ASCIITCP) WriteMetrics(
	_ context.Context, metrics []*models.Metric, format models.PayloadFormat, delimiter string) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return ErrNotOpen
	}

	payload, err := a.codec.Encode(metrics, format, delimiter)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return nil
}

// StartSubscription arms nothing: the push pipeline already runs.
func (a *ASCIITCP) StartSubscription(_ context.Context, sub Subscription) error {
	_, err := a.registerSub(sub.DeviceID)
	return err
}
