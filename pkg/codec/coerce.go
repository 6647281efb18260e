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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/edgebridge/pkg/models"
)

// falseLiterals are the string forms that coerce to boolean false. Everything
// else is true.
var falseLiterals = map[string]struct{}{
	"false": {},
	"no":    {},
	"0":     {},
	"":      {},
}

// Coerce converts a raw decoded value to the native representation of the
// metric's type. A nil result with nil error means the value parsed to null
// (e.g. a non-numeric string for an integer type).
func Coerce(raw interface{}, t models.DataType) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}

	switch t {
	case models.TypeBoolean:
		return coerceBool(raw), nil
	case models.TypeInt8, models.TypeInt16, models.TypeInt32, models.TypeInt64:
		return coerceInt(raw, t)
	case models.TypeUInt8, models.TypeUInt16, models.TypeUInt32, models.TypeUInt64:
		return coerceUint(raw, t)
	case models.TypeFloat:
		f, ok := toFloat(raw)
		if !ok {
			return nil, nil
		}

		return float32(f), nil
	case models.TypeDouble:
		f, ok := toFloat(raw)
		if !ok {
			return nil, nil
		}

		return f, nil
	case models.TypeDateTime:
		return coerceDateTime(raw)
	case models.TypeString, models.TypeText, models.TypeUUID:
		return asString(raw), nil
	case models.TypeBytes, models.TypeFile:
		return asBytes(raw), nil
	case models.TypeDataSet, models.TypeTemplate, models.TypePropertySet, models.TypePropertySetList:
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

func coerceBool(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		_, isFalse := falseLiterals[strings.ToLower(strings.TrimSpace(v))]
		return !isFalse
	default:
		f, ok := toFloat(raw)
		if ok {
			return f != 0
		}

		return true
	}
}

func coerceInt(raw interface{}, t models.DataType) (interface{}, error) {
	f, ok := toFloat(raw)
	if !ok {
		// base-10 parse with NaN -> null
		return nil, nil
	}

	n := int64(f)

	switch t {
	case models.TypeInt8:
		return int8(n), nil
	case models.TypeInt16:
		return int16(n), nil
	case models.TypeInt32:
		return int32(n), nil
	default:
		return n, nil
	}
}

func coerceUint(raw interface{}, t models.DataType) (interface{}, error) {
	f, ok := toFloat(raw)
	if !ok {
		return nil, nil
	}

	n := uint64(f)

	switch t {
	case models.TypeUInt8:
		return uint8(n), nil
	case models.TypeUInt16:
		return uint16(n), nil
	case models.TypeUInt32:
		return uint32(n), nil
	default:
		return n, nil
	}
}

// coerceDateTime accepts epoch milliseconds or an RFC-3339 string.
func coerceDateTime(raw interface{}) (interface{}, error) {
	if s, ok := raw.(string); ok {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errValueNotCoercible, err)
		}

		return uint64(ts.UnixMilli()), nil
	}

	f, ok := toFloat(raw)
	if !ok {
		return nil, nil
	}

	return uint64(f), nil
}

// toFloat converts any scalar to float64, reporting false for unparseable
// strings and non-scalar values.
func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

// toUint64 converts integer-typed values without a float round trip, so
// 64-bit values above 2^53 survive encoding.
func toUint64(raw interface{}) (uint64, bool) {
	switch v := raw.(type) {
	case uint64:
		return v, true
	case int64:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case int:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case int32:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case int16:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case int8:
		return uint64(v), true
	default:
		f, ok := toFloat(raw)
		if !ok {
			return 0, false
		}

		return uint64(int64(f)), true
	}
}

// asString renders raw as a string without quoting byte buffers.
func asString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// asBytes renders raw as a byte buffer.
func asBytes(raw interface{}) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
