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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/robinson/gos7"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

const s7DefaultTimeout = 5 * time.Second

// S7 reads and writes Siemens PLC registers over ISO-on-TCP. Addresses use
// the node-7 syntax (DB5,X3.2 and friends); values are decoded natively, so
// data events bypass the codec layer.
type S7 struct {
	base
	details models.S7ConnDetails

	mu      sync.Mutex
	handler *gos7.TCPClientHandler
	client  gos7.Client
}

func NewS7(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.S7ConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.Hostname == "" {
		return nil, fmt.Errorf("%w: hostname", ErrDetailsRequired)
	}

	if d.Port == 0 {
		d.Port = 102
	}

	return &S7{base: newBase(log), details: d}, nil
}

func (s *S7) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	addr := net.JoinHostPort(s.details.Hostname, strconv.Itoa(s.details.Port))
	handler := gos7.NewTCPClientHandler(addr, s.details.Rack, s.details.Slot)

	timeout := s7DefaultTimeout
	if s.details.TimeoutS > 0 {
		timeout = time.Duration(s.details.TimeoutS) * time.Second
	}

	handler.Timeout = timeout

	if err := handler.Connect(); err != nil {
		return fmt.Errorf("s7 connect %s: %w", addr, err)
	}

	s.handler = handler
	s.client = gos7.NewClient(handler)

	s.emitOpen()

	return nil
}

func (s *S7) Close() error {
	s.shutdown(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.handler != nil {
			_ = s.handler.Close()
			s.handler = nil
			s.client = nil
		}
	})

	return nil
}

func (s *S7) ReadMetrics(
	_ context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return ErrNotOpen
	}

	data := make(map[string]interface{})

	for _, m := range metrics {
		if !m.Properties.IsGet() || m.Properties.Address == "" {
			continue
		}

		item, err := parseS7Address(m.Properties.Address)
		if err != nil {
			s.emitError(err)
			continue
		}

		value, err := s.readItem(client, item, m.Type)
		if err != nil {
			s.emitError(fmt.Errorf("%w: %s: %v", ErrReadFailed, m.Properties.Address, err))
			continue
		}

		data[m.Properties.Address] = value
	}

	if len(data) > 0 {
		s.emitData(data, false)
	}

	return nil
}

func (s *S7) readItem(client gos7.Client, item s7Item, t models.DataType) (interface{}, error) {
	buf := make([]byte, item.width)

	var err error

	switch item.area {
	case s7AreaDB:
		err = client.AGReadDB(item.db, item.byteOf, item.width, buf)
	case s7AreaInput:
		err = client.AGReadEB(item.byteOf, item.width, buf)
	case s7AreaOutput:
		err = client.AGReadAB(item.byteOf, item.width, buf)
	case s7AreaMarker:
		err = client.AGReadMB(item.byteOf, item.width, buf)
	}

	if err != nil {
		return nil, err
	}

	return decodeS7(buf, item, t), nil
}

// decodeS7 interprets an S7 register image; S7 wire order is big-endian.
func decodeS7(buf []byte, item s7Item, t models.DataType) interface{} {
	if item.isBit {
		return buf[0]>>item.bitOf&1 == 1
	}

	switch item.width {
	case 1:
		if t == models.TypeInt8 {
			return int8(buf[0])
		}

		return buf[0]
	case 2:
		if t == models.TypeInt16 {
			return int16(binary.BigEndian.Uint16(buf))
		}

		return binary.BigEndian.Uint16(buf)
	default:
		switch t {
		case models.TypeFloat:
			return math.Float32frombits(binary.BigEndian.Uint32(buf))
		case models.TypeInt32:
			return int32(binary.BigEndian.Uint32(buf))
		default:
			return binary.BigEndian.Uint32(buf)
		}
	}
}

func (s *S7) WriteMetrics(
	_ context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return ErrNotOpen
	}

	for _, m := range metrics {
		item, err := parseS7Address(m.Properties.Address)
		if err != nil {
			return err
		}

		if item.area == s7AreaInput {
			// known limitation on process-input registers
			s.logger.Warn().Err(errS7InputWrite).
				Str("address", m.Properties.Address).
				Msg("Writing anyway")
		}

		buf, err := encodeS7(item, m)
		if err != nil {
			return err
		}

		if err := s.writeItem(client, item, buf); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, m.Properties.Address, err)
		}
	}

	return nil
}

func (s *S7) writeItem(client gos7.Client, item s7Item, buf []byte) error {
	switch item.area {
	case s7AreaDB:
		return client.AGWriteDB(item.db, item.byteOf, len(buf), buf)
	case s7AreaInput:
		return client.AGWriteEB(item.byteOf, len(buf), buf)
	case s7AreaOutput:
		return client.AGWriteAB(item.byteOf, len(buf), buf)
	default:
		return client.AGWriteMB(item.byteOf, len(buf), buf)
	}
}

func encodeS7(item s7Item, m *models.Metric) ([]byte, error) {
	buf := make([]byte, item.width)

	if item.isBit {
		// read-modify-write is not needed: S7 bit writes address single bits,
		// but gos7 works on bytes, so the whole byte carries the one bit.
		var v byte
		if b, ok := m.Value.(bool); ok && b {
			v = 1 << item.bitOf
		}

		buf[0] = v

		return buf, nil
	}

	f, ok := toDriverFloat(m.Value)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, m.Value)
	}

	switch item.width {
	case 1:
		buf[0] = byte(int64(f))
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(int64(f)))
	default:
		if m.Type == models.TypeFloat {
			binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
		} else {
			binary.BigEndian.PutUint32(buf, uint32(int64(f)))
		}
	}

	return buf, nil
}

func (s *S7) StartSubscription(ctx context.Context, sub Subscription) error {
	return s.startPoll(sub, func() {
		if err := s.ReadMetrics(ctx, sub.Metrics, sub.Format, sub.Delimiter); err != nil {
			s.emitError(err)
		}
	})
}
