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
	"net"
	"strconv"
	"sync"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

const udpReadBufferSize = 64 * 1024

// UDP listens on a local port and pushes every received datagram as a raw
// payload keyed by the port number, which is what metrics on a UDP connection
// use as their address.
type UDP struct {
	base
	details models.UDPConnDetails

	mu   sync.Mutex
	conn net.PacketConn
	done chan struct{}
}

func NewUDP(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.UDPConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.Port <= 0 {
		return nil, fmt.Errorf("%w: port", ErrDetailsRequired)
	}

	return &UDP{base: newBase(log), details: d}, nil
}

func (u *UDP) Open(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.conn != nil {
		return nil
	}

	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(u.details.Port))
	if err != nil {
		return fmt.Errorf("udp listen on %d: %w", u.details.Port, err)
	}

	u.conn = conn
	u.done = make(chan struct{})

	go u.readLoop(conn, u.done)

	u.emitOpen()

	return nil
}

func (u *UDP) readLoop(conn net.PacketConn, done chan struct{}) {
	addrKey := strconv.Itoa(u.details.Port)
	buf := make([]byte, udpReadBufferSize)

	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-done:
				return
			default:
			}

			u.emitError(fmt.Errorf("%w: %v", ErrReadFailed, err))
			u.emitClose()

			return
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		u.emitData(map[string]interface{}{addrKey: payload}, true)
	}
}

func (u *UDP) Close() error {
	u.shutdown(func() {
		u.mu.Lock()
		defer u.mu.Unlock()

		if u.conn != nil {
			close(u.done)
			_ = u.conn.Close()
			u.conn = nil
		}
	})

	return nil
}

// ReadMetrics is a no-op: UDP is push-only, data arrives as datagrams.
func (u *UDP) ReadMetrics(
	_ context.Context, _ []*models.Metric, _ models.PayloadFormat, _ string) error {
	return nil
}

// WriteMetrics is unsupported: the listener has no peer to address.
func (u *UDP) WriteMetrics(
	_ context.Context, _ []*models.Metric, _ models.PayloadFormat, _ string) error {
	return ErrWriteNotSupported
}

// StartSubscription arms nothing: the push pipeline already runs.
func (u *UDP) StartSubscription(_ context.Context, sub Subscription) error {
	_, err := u.registerSub(sub.DeviceID)
	return err
}
