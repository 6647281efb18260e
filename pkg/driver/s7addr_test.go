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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS7Address(t *testing.T) {
	tests := []struct {
		addr string
		want s7Item
	}{
		{"DB5,X3.2", s7Item{area: s7AreaDB, db: 5, byteOf: 3, bitOf: 2, isBit: true, width: 1}},
		{"DB5,REAL12", s7Item{area: s7AreaDB, db: 5, byteOf: 12, width: 4}},
		{"DB10,W0", s7Item{area: s7AreaDB, db: 10, byteOf: 0, width: 2}},
		{"DB1,DINT4", s7Item{area: s7AreaDB, db: 1, byteOf: 4, width: 4}},
		{"IW0", s7Item{area: s7AreaInput, byteOf: 0, width: 2}},
		{"QB2", s7Item{area: s7AreaOutput, byteOf: 2, width: 1}},
		{"MD8", s7Item{area: s7AreaMarker, byteOf: 8, width: 4}},
		{"I0.2", s7Item{area: s7AreaInput, byteOf: 0, bitOf: 2, isBit: true, width: 1}},
		{"q0.1", s7Item{area: s7AreaOutput, byteOf: 0, bitOf: 1, isBit: true, width: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := parseS7Address(tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseS7AddressErrors(t *testing.T) {
	for _, addr := range []string{"", "DB5", "DB5,Z0", "DB5,X3", "I0", "topic/a"} {
		t.Run(addr, func(t *testing.T) {
			_, err := parseS7Address(addr)
			assert.ErrorIs(t, err, ErrBadAddress)
		})
	}
}
