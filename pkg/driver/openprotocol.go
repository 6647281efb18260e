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

const (
	opHeaderLen     = 20
	opDialTimeout   = 10 * time.Second
	opKeepAliveEach = 8 * time.Second

	midCommStart    = "0001"
	midCommStartAck = "0002"
	midCommStop     = "0003"
	midError        = "0004"
	midKeepAlive    = "9999"
)

// subscribeMIDs maps a data MID a metric listens on to the MID that
// subscribes it on the controller.
var subscribeMIDs = map[string]string{
	"0061": "0060", // last tightening result
	"0065": "0064", // old tightening result
	"0071": "0070", // alarm
	"0081": "0080", // time stamp
}

// OpenProtocol speaks the Atlas Copco Open Protocol framing: a 4-digit ASCII
// length, a 4-digit MID and a fixed header, each message NUL-terminated.
// Inbound messages are pushed keyed by MID, which metrics on this connection
// use as their address.
type OpenProtocol struct {
	base
	details models.OpenProtocolConnDetails

	mu   sync.Mutex
	conn net.Conn
	done chan struct{}
}

func NewOpenProtocol(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.OpenProtocolConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.IP == "" || d.Port <= 0 {
		return nil, fmt.Errorf("%w: ip and port", ErrDetailsRequired)
	}

	return &OpenProtocol{base: newBase(log), details: d}, nil
}

func (o *OpenProtocol) endpoint() string {
	return net.JoinHostPort(o.details.IP, strconv.Itoa(o.details.Port))
}

func (o *OpenProtocol) Open(_ context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", o.endpoint(), opDialTimeout)
	if err != nil {
		return fmt.Errorf("open protocol dial %s: %w", o.endpoint(), err)
	}

	o.conn = conn
	o.done = make(chan struct{})

	go o.readLoop(conn, o.done)
	go o.keepAlive(conn, o.done)

	return o.send(conn, midCommStart, nil)
}

// frame builds one Open Protocol message: length and MID in ASCII, header
// padding, data, NUL terminator.
func frame(mid string, data []byte) []byte {
	length := opHeaderLen + len(data)
	header := fmt.Sprintf("%04d%s001         ", length, mid)

	out := make([]byte, 0, length+1)
	out = append(out, header...)
	out = append(out, data...)
	out = append(out, 0)

	return out
}

func (o *OpenProtocol) send(conn net.Conn, mid string, data []byte) error {
	if _, err := conn.Write(frame(mid, data)); err != nil {
		return fmt.Errorf("%w: MID %s: %w", ErrWriteFailed, mid, err)
	}

	return nil
}

func (o *OpenProtocol) readLoop(conn net.Conn, done chan struct{}) {
	reader := bufio.NewReader(conn)

	for {
		message, err := reader.ReadBytes(0)
		if err != nil {
			select {
			case <-done:
				return
			default:
			}

			o.emitError(fmt.Errorf("%w: %v", ErrReadFailed, err))
			o.emitClose()

			return
		}

		if len(message) < opHeaderLen+1 {
			continue
		}

		mid := string(message[4:8])
		data := string(message[opHeaderLen : len(message)-1])

		switch mid {
		case midCommStartAck:
			o.emitOpen()
		case midError:
			o.emitError(fmt.Errorf("%w: %s", errOpenProtocolNoAck, data))
		case midKeepAlive:
		default:
			o.emitData(map[string]interface{}{mid: data}, true)
		}
	}
}

func (o *OpenProtocol) keepAlive(conn net.Conn, done chan struct{}) {
	ticker := time.NewTicker(opKeepAliveEach)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := o.send(conn, midKeepAlive, nil); err != nil {
				o.emitError(err)
				return
			}
		}
	}
}

func (o *OpenProtocol) Close() error {
	o.shutdown(func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		if o.conn != nil {
			_ = o.send(o.conn, midCommStop, nil)
			close(o.done)
			_ = o.conn.Close()
			o.conn = nil
		}
	})

	return nil
}

// ReadMetrics is a no-op: the controller pushes subscribed MIDs.
func (o *OpenProtocol) ReadMetrics(
	_ context.Context, _ []*models.Metric, _ models.PayloadFormat, _ string) error {
	return nil
}

func (o *OpenProtocol) WriteMetrics(
	_ context.Context, metrics []*models.Metric, format models.PayloadFormat, delimiter string) error {
	o.mu.Lock()
	conn := o.conn
	o.mu.Unlock()

	if conn == nil {
		return ErrNotOpen
	}

	for _, m := range metrics {
		data, err := o.codec.Encode([]*models.Metric{m}, format, delimiter)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, m.Name, err)
		}

		if err := o.send(conn, m.Properties.Address, data); err != nil {
			return err
		}
	}

	return nil
}

// StartSubscription sends the subscribe MID for each data MID the device
// listens on; the controller pushes from here on.
func (o *OpenProtocol) StartSubscription(_ context.Context, sub Subscription) error {
	o.mu.Lock()
	conn := o.conn
	o.mu.Unlock()

	if conn == nil {
		return ErrNotOpen
	}

	if _, err := o.registerSub(sub.DeviceID); err != nil {
		return err
	}

	for _, mid := range getAddresses(sub.Metrics) {
		subscribe, ok := subscribeMIDs[mid]
		if !ok {
			continue
		}

		if err := o.send(conn, subscribe, nil); err != nil {
			return err
		}
	}

	return nil
}
