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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

func bufMetric(t models.DataType, path string, endianness models.Endianness) *models.Metric {
	return &models.Metric{
		Name: "m",
		Type: t,
		Properties: models.Properties{
			Method:     "GET",
			Path:       path,
			Endianness: endianness,
		},
	}
}

func TestParseBufferPDPUInt32(t *testing.T) {
	m := bufMetric(models.TypeUInt32, "0", models.EndianPDP)

	got, err := parseBuffer([]byte{0x01, 0x02, 0x03, 0x04}, m)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x03040102), got)
}

func TestParseBufferEndianness(t *testing.T) {
	tests := []struct {
		name       string
		dataType   models.DataType
		endianness models.Endianness
		path       string
		buf        []byte
		want       interface{}
	}{
		{
			name:       "uint16 big endian",
			dataType:   models.TypeUInt16,
			endianness: models.EndianBig,
			path:       "0",
			buf:        []byte{0x12, 0x34},
			want:       uint16(0x1234),
		},
		{
			name:       "uint16 little endian",
			dataType:   models.TypeUInt16,
			endianness: models.EndianLittle,
			path:       "0",
			buf:        []byte{0x34, 0x12},
			want:       uint16(0x1234),
		},
		{
			name:       "int32 big endian at offset",
			dataType:   models.TypeInt32,
			endianness: models.EndianBig,
			path:       "2",
			buf:        []byte{0, 0, 0xFF, 0xFF, 0xFF, 0xFE},
			want:       int32(-2),
		},
		{
			name:       "float big endian",
			dataType:   models.TypeFloat,
			endianness: models.EndianBig,
			path:       "0",
			buf:        []byte{0x3F, 0x80, 0x00, 0x00},
			want:       float32(1.0),
		},
		{
			name:       "bool bit offset",
			dataType:   models.TypeBoolean,
			endianness: models.EndianBig,
			path:       "1.3",
			buf:        []byte{0x00, 0x08},
			want:       true,
		},
		{
			name:       "string reads to end trimming NULs",
			dataType:   models.TypeString,
			endianness: models.EndianBig,
			path:       "2",
			buf:        []byte{0, 0, 'o', 'k', 0, 0},
			want:       "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := bufMetric(tt.dataType, tt.path, tt.endianness)

			got, err := parseBuffer(tt.buf, m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBufferErrors(t *testing.T) {
	_, err := parseBuffer([]byte{0x01}, bufMetric(models.TypeBoolean, "0", models.EndianBig))
	assert.ErrorIs(t, err, ErrBitOffsetRequired)

	_, err = parseBuffer([]byte{0x01}, bufMetric(models.TypeUInt32, "0", models.EndianBig))
	assert.ErrorIs(t, err, ErrBufferTooShort)

	_, err = parseBuffer([]byte{0x01}, bufMetric(models.TypeUInt8, "x", models.EndianBig))
	assert.ErrorIs(t, err, ErrBadPath)
}

func TestEncodeBufferRoundTrip(t *testing.T) {
	metrics := []*models.Metric{
		bufMetric(models.TypeUInt16, "0", models.EndianBig),
		bufMetric(models.TypeInt32, "2", models.EndianLittle),
		bufMetric(models.TypeDouble, "6", models.EndianBig),
	}
	metrics[0].Value = uint16(0xBEEF)
	metrics[1].Value = int32(-12345)
	metrics[2].Value = 2.5

	buf, err := encodeBuffer(metrics)
	require.NoError(t, err)
	require.Len(t, buf, 14)

	for i, want := range []interface{}{uint16(0xBEEF), int32(-12345), 2.5} {
		got, err := parseBuffer(buf, metrics[i])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEncodeBufferPDPRoundTrip(t *testing.T) {
	m := bufMetric(models.TypeUInt32, "0", models.EndianPDP)
	m.Value = uint32(0x03040102)

	buf, err := encodeBuffer([]*models.Metric{m})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)

	got, err := parseBuffer(buf, m)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x03040102), got)
}

func TestEncodeBufferUInt64AboveFloatPrecision(t *testing.T) {
	m := bufMetric(models.TypeUInt64, "0", models.EndianBig)
	m.Value = uint64(1<<63 + 7)

	buf, err := encodeBuffer([]*models.Metric{m})
	require.NoError(t, err)

	got, err := parseBuffer(buf, m)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63+7), got)
}

func TestParseDelimited(t *testing.T) {
	m := &models.Metric{
		Type:       models.TypeDouble,
		Properties: models.Properties{Method: "GET", Path: "2"},
	}

	got, err := parseDelimited("1;2;3.5", m, ";")
	require.NoError(t, err)
	assert.Equal(t, 3.5, got)

	whole := &models.Metric{Type: models.TypeInt32, Properties: models.Properties{Method: "GET"}}

	got, err = parseDelimited("42", whole, "")
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)

	_, err = parseDelimited("1;2", m, ";")
	assert.ErrorIs(t, err, ErrFieldIndexRange)
}

func TestParseJSON(t *testing.T) {
	payload := `{"machine":{"temp":21.5,"state":"running"},"timestamp":1700000000000}`

	temp := &models.Metric{
		Type:       models.TypeDouble,
		Properties: models.Properties{Method: "GET", Path: "$.machine.temp"},
	}

	got, err := parseJSON(payload, temp)
	require.NoError(t, err)
	assert.InDelta(t, 21.5, got, 1e-9)

	state := &models.Metric{
		Type:       models.TypeString,
		Properties: models.Properties{Method: "GET", Path: "$.machine.state"},
	}

	got, err = parseJSON(payload, state)
	require.NoError(t, err)
	assert.Equal(t, "running", got)

	missing := &models.Metric{
		Type:       models.TypeDouble,
		Properties: models.Properties{Method: "GET", Path: "$.machine.pressure"},
	}

	_, err = parseJSON(payload, missing)
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestJSONTimestamp(t *testing.T) {
	ts, ok := jsonTimestamp(`{"timestamp":1700000000000,"v":1}`)
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000000), ts)

	_, ok = jsonTimestamp(`{"v":1}`)
	assert.False(t, ok)
}

func TestEncodeJSONRoundTrip(t *testing.T) {
	metrics := []*models.Metric{
		{
			Name:       "speed",
			Type:       models.TypeDouble,
			Value:      12.5,
			Properties: models.Properties{Method: "GET", Path: "$.axis.speed"},
		},
		{
			Name:       "mode",
			Type:       models.TypeString,
			Value:      "auto",
			Properties: models.Properties{Method: "GET", Path: "$.mode"},
		},
	}

	out, err := encodeJSON(metrics)
	require.NoError(t, err)

	for i, want := range []interface{}{12.5, "auto"} {
		got, err := parseJSON(string(out), metrics[i])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseXML(t *testing.T) {
	m := &models.Metric{
		Type:       models.TypeInt32,
		Properties: models.Properties{Method: "GET", Path: "//val"},
	}

	got, err := parseXML(`<root><val>42</val></root>`, m)
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		dataType models.DataType
		want     interface{}
	}{
		{"false literal", "false", models.TypeBoolean, false},
		{"no literal", "no", models.TypeBoolean, false},
		{"zero literal", "0", models.TypeBoolean, false},
		{"empty literal", "", models.TypeBoolean, false},
		{"other string is true", "yes", models.TypeBoolean, true},
		{"numeric string to int32", "42", models.TypeInt32, int32(42)},
		{"garbage int parses to null", "abc", models.TypeInt32, nil},
		{"float32 narrowing", "1.5", models.TypeFloat, float32(1.5)},
		{"zero stays valid", 0, models.TypeUInt16, uint16(0)},
		{"rfc3339 datetime", "2023-11-14T22:13:20Z", models.TypeDateTime, uint64(1700000000000)},
		{"numeric datetime", 1700000000000.0, models.TypeDateTime, uint64(1700000000000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, tt.dataType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeUnimplementedFormatsReturnEmpty(t *testing.T) {
	c := New(logger.NewTestLogger())

	for _, format := range []models.PayloadFormat{models.FormatXML, models.FormatSerialisedBuffer} {
		out, err := c.Encode([]*models.Metric{{Name: "m", Value: 1}}, format, "")
		require.NoError(t, err)
		assert.Empty(t, out)
	}
}

func TestParseValueSerialisedBufferUndefined(t *testing.T) {
	c := New(logger.NewTestLogger())

	got, err := c.ParseValue([]byte{1, 2}, &models.Metric{Type: models.TypeBytes},
		models.FormatSerialisedBuffer, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}
