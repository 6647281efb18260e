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

// Package codec decodes southbound payloads into metric values and encodes
// metric values back into southbound payloads. Supported payload formats:
// delimited strings, JSON (with JSONPath selectors), XML (XPath selectors)
// and fixed binary buffers in little, big or PDP byte order.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

// Codec is stateless apart from its logger; one instance is shared by all
// devices on a connection.
type Codec struct {
	logger logger.Logger
}

func New(log logger.Logger) *Codec {
	return &Codec{logger: log}
}

// ParseValue decodes one metric's value out of a raw southbound payload.
func (c *Codec) ParseValue(
	raw interface{}, m *models.Metric, format models.PayloadFormat, delimiter string) (interface{}, error) {
	switch format {
	case models.FormatDelimited:
		return parseDelimited(raw, m, delimiter)
	case models.FormatJSON:
		return parseJSON(raw, m)
	case models.FormatXML:
		return parseXML(raw, m)
	case models.FormatFixedBuffer:
		return parseBuffer(raw, m)
	case models.FormatSerialisedBuffer:
		// reserved format, behaviour undefined
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ParseTimestamp extracts a payload-supplied timestamp in epoch milliseconds.
// Only JSON payloads can carry one ($.timestamp); for every other format the
// caller falls back to the local clock.
func (c *Codec) ParseTimestamp(raw interface{}, format models.PayloadFormat) (int64, bool) {
	if format != models.FormatJSON {
		return 0, false
	}

	return jsonTimestamp(raw)
}

// Encode produces the southbound wire form of the given metrics. XML and
// serialisedBuffer encodes are not implemented and return empty with a
// warning.
func (c *Codec) Encode(
	metrics []*models.Metric, format models.PayloadFormat, delimiter string) ([]byte, error) {
	switch format {
	case models.FormatDelimited:
		return encodeDelimited(metrics, delimiter), nil
	case models.FormatJSON:
		return encodeJSON(metrics)
	case models.FormatFixedBuffer:
		return encodeBuffer(metrics)
	case models.FormatXML, models.FormatSerialisedBuffer:
		c.logger.Warn().
			Str("format", string(format)).
			Msg("Encode not implemented for payload format, returning empty")

		return []byte{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// parseDelimited splits the payload on the delimiter and indexes the fields
// by the metric's integer path. An empty delimiter means the whole payload is
// the value.
func parseDelimited(raw interface{}, m *models.Metric, delimiter string) (interface{}, error) {
	switch raw.(type) {
	case string, []byte:
	default:
		return Coerce(raw, m.Type)
	}

	text := asString(raw)

	if delimiter == "" {
		return Coerce(text, m.Type)
	}

	fields := strings.Split(text, delimiter)

	idx, err := strconv.Atoi(strings.TrimSpace(m.Properties.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadPath, m.Properties.Path)
	}

	if idx < 0 || idx >= len(fields) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFieldIndexRange, idx, len(fields))
	}

	return Coerce(fields[idx], m.Type)
}

// encodeDelimited joins the string coercions of the metric values.
func encodeDelimited(metrics []*models.Metric, delimiter string) []byte {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = asString(m.Value)
	}

	return []byte(strings.Join(parts, delimiter))
}
