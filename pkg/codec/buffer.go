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

package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/carverauto/edgebridge/pkg/models"
)

// bufOffset is a parsed fixed-buffer path: a byte offset plus an optional bit
// offset ("12" or "12.3").
type bufOffset struct {
	byteOff int
	bitOff  int
	hasBit  bool
}

func parseBufOffset(path string) (bufOffset, error) {
	var off bufOffset

	bytePart, bitPart, hasBit := strings.Cut(path, ".")

	b, err := strconv.Atoi(strings.TrimSpace(bytePart))
	if err != nil || b < 0 {
		return off, fmt.Errorf("%w: %q", ErrBadPath, path)
	}

	off.byteOff = b

	if hasBit {
		bit, err := strconv.Atoi(strings.TrimSpace(bitPart))
		if err != nil || bit < 0 || bit > 7 {
			return off, fmt.Errorf("%w: %q", ErrBadPath, path)
		}

		off.bitOff = bit
		off.hasBit = true
	}

	return off, nil
}

// typeWidth returns the byte width of a fixed-buffer type, or 0 for
// variable-width types (string reads to the end of the buffer).
func typeWidth(t models.DataType) int {
	switch t {
	case models.TypeBoolean, models.TypeInt8, models.TypeUInt8:
		return 1
	case models.TypeInt16, models.TypeUInt16:
		return 2
	case models.TypeInt32, models.TypeUInt32, models.TypeFloat:
		return 4
	case models.TypeInt64, models.TypeUInt64, models.TypeDouble, models.TypeDateTime:
		return 8
	default:
		return 0
	}
}

// swapWords reverses the order of 16-bit words in place-copied output. PDP
// endianness is big-endian applied to the word-swapped buffer.
func swapWords(b []byte) []byte {
	out := make([]byte, len(b))

	n := len(b) / 2
	for i := 0; i < n; i++ {
		j := n - 1 - i
		out[i*2] = b[j*2]
		out[i*2+1] = b[j*2+1]
	}

	if len(b)%2 != 0 {
		out[len(b)-1] = b[len(b)-1]
	}

	return out
}

// parseBuffer reads a typed value at the metric's path offset, honouring the
// metric's endianness.
func parseBuffer(raw interface{}, m *models.Metric) (interface{}, error) {
	buf := asBytes(raw)

	off, err := parseBufOffset(m.Properties.Path)
	if err != nil {
		return nil, err
	}

	if m.Type == models.TypeBoolean {
		if !off.hasBit {
			return nil, ErrBitOffsetRequired
		}

		if off.byteOff >= len(buf) {
			return nil, ErrBufferTooShort
		}

		return buf[off.byteOff]>>off.bitOff&1 == 1, nil
	}

	if m.Type == models.TypeString || m.Type == models.TypeText {
		if off.byteOff > len(buf) {
			return nil, ErrBufferTooShort
		}

		return string(bytes.TrimRight(buf[off.byteOff:], "\x00")), nil
	}

	width := typeWidth(m.Type)
	if width == 0 {
		return nil, fmt.Errorf("%w: %s in fixed buffer", ErrUnsupportedType, m.Type)
	}

	if off.byteOff+width > len(buf) {
		return nil, ErrBufferTooShort
	}

	field := buf[off.byteOff : off.byteOff+width]

	var order binary.ByteOrder = binary.BigEndian

	switch m.Properties.Endianness {
	case models.EndianLittle:
		order = binary.LittleEndian
	case models.EndianPDP:
		field = swapWords(field)
	case models.EndianBig:
	default:
	}

	return decodeFixed(field, m.Type, order)
}

func decodeFixed(field []byte, t models.DataType, order binary.ByteOrder) (interface{}, error) {
	switch t {
	case models.TypeInt8:
		return int8(field[0]), nil
	case models.TypeUInt8:
		return field[0], nil
	case models.TypeInt16:
		return int16(order.Uint16(field)), nil
	case models.TypeUInt16:
		return order.Uint16(field), nil
	case models.TypeInt32:
		return int32(order.Uint32(field)), nil
	case models.TypeUInt32:
		return order.Uint32(field), nil
	case models.TypeInt64:
		return int64(order.Uint64(field)), nil
	case models.TypeUInt64:
		return order.Uint64(field), nil
	case models.TypeDateTime:
		// dateTime travels as uint64 epoch milliseconds
		return order.Uint64(field), nil
	case models.TypeFloat:
		return math.Float32frombits(order.Uint32(field)), nil
	case models.TypeDouble:
		return math.Float64frombits(order.Uint64(field)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

// encodeBuffer lays every metric into one buffer at its path offset. Each
// field is written in its declared byte order, except PDP fields which are
// written big-endian; if any field is PDP one word swap is applied to the
// whole buffer at the end.
func encodeBuffer(metrics []*models.Metric) ([]byte, error) {
	size := 0
	anyPDP := false

	offs := make([]bufOffset, len(metrics))

	for i, m := range metrics {
		off, err := parseBufOffset(m.Properties.Path)
		if err != nil {
			return nil, err
		}

		offs[i] = off

		width := typeWidth(m.Type)
		if width == 0 && m.Type != models.TypeString && m.Type != models.TypeText {
			return nil, fmt.Errorf("%w: %s in fixed buffer", ErrUnsupportedType, m.Type)
		}

		end := off.byteOff + width
		if m.Type == models.TypeString || m.Type == models.TypeText {
			end = off.byteOff + len(asString(m.Value))
		}

		if end > size {
			size = end
		}

		if m.Properties.Endianness == models.EndianPDP {
			anyPDP = true
		}
	}

	buf := make([]byte, size)

	for i, m := range metrics {
		if err := encodeField(buf, offs[i], m); err != nil {
			return nil, err
		}
	}

	if anyPDP {
		buf = swapWords(buf)
	}

	return buf, nil
}

func encodeField(buf []byte, off bufOffset, m *models.Metric) error {
	if m.Type == models.TypeBoolean {
		if !off.hasBit {
			return ErrBitOffsetRequired
		}

		if coerceBool(m.Value) {
			buf[off.byteOff] |= 1 << off.bitOff
		} else {
			buf[off.byteOff] &^= 1 << off.bitOff
		}

		return nil
	}

	if m.Type == models.TypeString || m.Type == models.TypeText {
		copy(buf[off.byteOff:], asString(m.Value))
		return nil
	}

	var order binary.ByteOrder = binary.BigEndian
	if m.Properties.Endianness == models.EndianLittle {
		order = binary.LittleEndian
	}

	field := buf[off.byteOff:]

	switch m.Type {
	case models.TypeFloat, models.TypeDouble:
		f, ok := toFloat(m.Value)
		if !ok {
			return fmt.Errorf("%w: %v", errValueNotCoercible, m.Value)
		}

		if m.Type == models.TypeFloat {
			order.PutUint32(field, math.Float32bits(float32(f)))
		} else {
			order.PutUint64(field, math.Float64bits(f))
		}
	default:
		n, ok := toUint64(m.Value)
		if !ok {
			return fmt.Errorf("%w: %v", errValueNotCoercible, m.Value)
		}

		switch m.Type {
		case models.TypeInt8, models.TypeUInt8:
			field[0] = byte(n)
		case models.TypeInt16, models.TypeUInt16:
			order.PutUint16(field, uint16(n))
		case models.TypeInt32, models.TypeUInt32:
			order.PutUint32(field, uint32(n))
		case models.TypeInt64, models.TypeUInt64, models.TypeDateTime:
			order.PutUint64(field, n)
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedType, m.Type)
		}
	}

	return nil
}
