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

package metricstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/edgebridge/pkg/models"
)

func testMetrics() []*models.Metric {
	return []*models.Metric{
		{
			Name:       "temp",
			Type:       models.TypeDouble,
			Properties: models.Properties{Method: "GET", Address: "topic/a", Path: "$.temp"},
		},
		{
			Name:       "state",
			Type:       models.TypeString,
			Properties: models.Properties{Method: "GET", Address: "topic/a", Path: "$.state"},
		},
		{
			Name:       "setpoint",
			Type:       models.TypeDouble,
			Properties: models.Properties{Method: "POST", Address: "topic/sp"},
		},
		{
			Name:       "counter",
			Type:       models.TypeUInt32,
			Properties: models.Properties{Method: "GET", Address: "topic/b"},
		},
	}
}

func TestStoreIndices(t *testing.T) {
	s := New(testMetrics()...)

	assert.Equal(t, 4, s.Len())
	assert.Len(t, s.Array(), 4)

	// non-GET metrics never enter the address indices
	assert.ElementsMatch(t, []string{"topic/a", "topic/b"}, s.Addresses())
	assert.Nil(t, s.GetByAddress("topic/sp"))

	assert.Len(t, s.GetByAddress("topic/a"), 2)
	assert.ElementsMatch(t, []string{"$.temp", "$.state"}, s.PathsForAddr("topic/a"))

	m := s.GetByAddrPath("topic/a", "$.temp")
	require.NotNil(t, m)
	assert.Equal(t, "temp", m.Name)

	assert.Nil(t, s.GetByAddrPath("topic/a", "$.missing"))
	assert.Equal(t, "setpoint", s.GetByName("setpoint").Name)
}

func TestStoreSetValue(t *testing.T) {
	s := New(testMetrics()...)

	updated := s.SetValueByName("temp", 21.5, 1700000000000)
	require.NotNil(t, updated)
	assert.Equal(t, 21.5, updated.Value)
	assert.Equal(t, int64(1700000000000), updated.Timestamp)
	assert.False(t, updated.IsNull)

	// zero timestamp means "now"
	updated = s.SetValueByAddrPath("topic/a", "$.state", "running", 0)
	require.NotNil(t, updated)
	assert.Greater(t, updated.Timestamp, int64(0))

	// nil value marks the metric null
	updated = s.SetValueByName("counter", nil, 1)
	require.NotNil(t, updated)
	assert.True(t, updated.IsNull)

	assert.Nil(t, s.SetValueByName("missing", 1, 0))
}

func TestStoreAliases(t *testing.T) {
	s := New(testMetrics()...)

	s.SetAlias(0, 7)

	m := s.GetByAlias(7)
	require.NotNil(t, m)
	assert.Equal(t, "temp", m.Name)

	// aliases assigned in place by a collaborator need a reindex
	alias := uint64(9)
	s.GetByName("state").Alias = &alias
	assert.Nil(t, s.GetByAlias(9))

	s.ReindexAliases()
	require.NotNil(t, s.GetByAlias(9))
	assert.Equal(t, "state", s.GetByAlias(9).Name)

	updated := s.SetValueByAlias(7, 30.0, 2)
	require.NotNil(t, updated)
	assert.Equal(t, 30.0, updated.Value)
}

func TestStoreAddRebuildsIndices(t *testing.T) {
	s := New(testMetrics()...)

	s.Add([]*models.Metric{{
		Name:       "pressure",
		Type:       models.TypeDouble,
		Properties: models.Properties{Method: "GET", Address: "topic/c"},
	}})

	assert.Equal(t, 5, s.Len())
	assert.ElementsMatch(t, []string{"topic/a", "topic/b", "topic/c"}, s.Addresses())
	require.NotNil(t, s.GetByAddrPath("topic/c", ""))
}
