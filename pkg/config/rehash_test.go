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

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/edgebridge/pkg/models"
)

const rehashFixture = `{
  "deviceConnections": [
    {
      "name": "plc-line-1",
      "connType": "S7",
      "pollInt": 2000,
      "payloadFormat": "buffer",
      "s7ConnDetails": {"hostname": "10.0.0.5", "rack": 0, "slot": 1},
      "devices": [
        {
          "deviceId": "press-01",
          "tags": [
            {
              "Name": "Cycle Count",
              "type": "uInt32BE",
              "method": "GET",
              "address": "DB5,DW0",
              "engUnit": "cycles",
              "recordToDB": true
            },
            {
              "Name": "Oil Temp",
              "type": "floatLE",
              "method": "GET",
              "address": "DB5,R4",
              "deadBand": 0.5,
              "recordToDB": false
            }
          ]
        },
        {
          "deviceId": "press-02",
          "pollInt": 250,
          "payloadFormat": "JSON",
          "delimiter": ";",
          "tags": []
        }
      ]
    }
  ]
}`

func TestRehash(t *testing.T) {
	var cfg models.AgentConfig
	require.NoError(t, json.Unmarshal([]byte(rehashFixture), &cfg))
	require.NoError(t, cfg.Validate())

	specs := Rehash(&cfg)
	require.Len(t, specs, 1)

	spec := specs[0]
	assert.Equal(t, "plc-line-1", spec.Name)
	assert.Equal(t, "S7", spec.ConnType)
	assert.Contains(t, spec.Details, "s7ConnDetails")
	require.Len(t, spec.Devices, 2)

	press1 := spec.Devices[0]
	assert.Equal(t, "press-01", press1.DeviceID)
	assert.Equal(t, 2*time.Second, press1.PollInt)
	assert.Equal(t, models.FormatFixedBuffer, press1.PayloadFormat)

	// three Device Control metrics prepended, then the tags
	require.Len(t, press1.Metrics, 5)
	assert.Equal(t, models.MetricPollingInterval, press1.Metrics[0].Name)
	assert.Equal(t, models.MetricReboot, press1.Metrics[1].Name)
	assert.Equal(t, models.MetricRebirth, press1.Metrics[2].Name)
	assert.Equal(t, int64(2000), press1.Metrics[0].Value)

	cycles := press1.Metrics[3]
	assert.Equal(t, "Cycle Count", cycles.Name)
	assert.Equal(t, models.TypeUInt32, cycles.Type)
	assert.Equal(t, models.EndianBig, cycles.Properties.Endianness)
	assert.Equal(t, "DB5,DW0", cycles.Properties.Address)
	assert.False(t, cycles.IsTransient)

	oil := press1.Metrics[4]
	assert.Equal(t, models.TypeFloat, oil.Type)
	assert.Equal(t, models.EndianLittle, oil.Properties.Endianness)
	assert.InDelta(t, 0.5, oil.Properties.Deadband, 1e-9)
	assert.True(t, oil.IsTransient)

	// device-level overrides win over connection-level values
	press2 := spec.Devices[1]
	assert.Equal(t, 250*time.Millisecond, press2.PollInt)
	assert.Equal(t, models.FormatJSON, press2.PayloadFormat)
	assert.Equal(t, ";", press2.Delimiter)
	assert.Len(t, press2.Metrics, 3)
}
