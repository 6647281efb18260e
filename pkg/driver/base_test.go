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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

func TestEmitDropsOldestOnOverflow(t *testing.T) {
	b := newBase(logger.NewTestLogger())

	for i := 0; i < eventQueueSize+3; i++ {
		b.emitData(map[string]interface{}{"seq": i}, true)
	}

	// the first three events were dropped, the rest arrive in order
	first := <-b.Events()
	require.Equal(t, EventData, first.Kind)
	assert.Equal(t, 3, first.Data["seq"])

	drained := 1
	for len(b.events) > 0 {
		<-b.events
		drained++
	}

	assert.Equal(t, eventQueueSize, drained)
}

func TestShutdownEmitsSingleClose(t *testing.T) {
	b := newBase(logger.NewTestLogger())

	teardowns := 0
	b.shutdown(func() { teardowns++ })
	b.shutdown(func() { teardowns++ })

	assert.Equal(t, 1, teardowns)

	ev := <-b.Events()
	assert.Equal(t, EventClose, ev.Kind)
	assert.Empty(t, b.events)
}

func TestStartPollRunsUntilStopped(t *testing.T) {
	b := newBase(logger.NewTestLogger())

	reads := make(chan struct{}, 16)
	sub := Subscription{DeviceID: "dev-1", Interval: 5 * time.Millisecond}

	require.NoError(t, b.startPoll(sub, func() { reads <- struct{}{} }))
	assert.ErrorIs(t, b.startPoll(sub, func() {}), ErrAlreadySubscribed)

	select {
	case <-reads:
	case <-time.After(time.Second):
		t.Fatal("poll callback never ran")
	}

	require.NoError(t, b.StopSubscription("dev-1"))

	// stopping an unknown device is a no-op
	require.NoError(t, b.StopSubscription("dev-2"))
}

func TestGetAddresses(t *testing.T) {
	metrics := []*models.Metric{
		{Name: "a", Properties: models.Properties{Method: "GET", Address: "addr-1"}},
		{Name: "b", Properties: models.Properties{Method: "GET", Address: "addr-2", Path: "$.x"}},
		{Name: "c", Properties: models.Properties{Method: "GET", Address: "addr-1", Path: "$.y"}},
		{Name: "d", Properties: models.Properties{Method: "POST", Address: "addr-3"}},
		{Name: "e", Properties: models.Properties{Method: "GET"}},
	}

	assert.Equal(t, []string{"addr-1", "addr-2"}, getAddresses(metrics))
}
