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

import "errors"

var (
	ErrUnknownFormat      = errors.New("unknown payload format")
	ErrUnsupportedType    = errors.New("unsupported datatype for this payload format")
	ErrBadPath            = errors.New("invalid path selector")
	ErrPathNotFound       = errors.New("path not found in payload")
	ErrBufferTooShort     = errors.New("buffer too short for offset and type width")
	ErrNotStringPayload   = errors.New("payload is not a string or byte buffer")
	ErrFieldIndexRange    = errors.New("delimited field index out of range")
	ErrBitOffsetRequired  = errors.New("boolean fixed-buffer metric requires a byte.bit offset")
	errValueNotCoercible  = errors.New("value cannot be coerced to metric type")
	errDataSetNeedsSchema = errors.New("dataSet metric has no column schema")
)
