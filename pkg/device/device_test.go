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

package device

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/edgebridge/pkg/driver"
	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/metricstore"
	"github.com/carverauto/edgebridge/pkg/models"
	"github.com/carverauto/edgebridge/pkg/sparkplug"
)

const (
	waitFor  = 2 * time.Second
	pollEach = 5 * time.Millisecond
)

type fakeTicker struct {
	ch chan time.Time
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()                  {}

// fakeClock hands out tickers keyed by duration and fires them on demand.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[time.Duration]*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:     time.UnixMilli(1700000000000),
		tickers: make(map[time.Duration]*fakeTicker),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Ticker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers[d] = ticker

	return ticker
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// tick fires the ticker of the given period once, waiting for the device to
// have created it first.
func (c *fakeClock) tick(t *testing.T, d time.Duration) {
	t.Helper()

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()

		_, ok := c.tickers[d]

		return ok
	}, waitFor, pollEach)

	c.mu.Lock()
	ticker := c.tickers[d]
	now := c.now
	c.mu.Unlock()

	ticker.ch <- now
}

type fakeDriver struct {
	mu       sync.Mutex
	events   chan driver.Event
	subs     []driver.Subscription
	stops    []string
	writes   [][]*models.Metric
	reads    int
	writeErr error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{events: make(chan driver.Event, 16)}
}

func (f *fakeDriver) Open(_ context.Context) error { return nil }
func (f *fakeDriver) Close() error                 { return nil }
func (f *fakeDriver) Events() <-chan driver.Event  { return f.events }

func (f *fakeDriver) ReadMetrics(
	_ context.Context, _ []*models.Metric, _ models.PayloadFormat, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++

	return nil
}

func (f *fakeDriver) WriteMetrics(
	_ context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return f.writeErr
	}

	batch := make([]*models.Metric, len(metrics))
	for i, m := range metrics {
		cp := *m
		batch[i] = &cp
	}

	f.writes = append(f.writes, batch)

	return nil
}

func (f *fakeDriver) StartSubscription(_ context.Context, sub driver.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subs = append(f.subs, sub)

	return nil
}

func (f *fakeDriver) StopSubscription(deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops = append(f.stops, deviceID)

	return nil
}

func (f *fakeDriver) subscriptions() []driver.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]driver.Subscription, len(f.subs))
	copy(out, f.subs)

	return out
}

func (f *fakeDriver) writtenBatches() [][]*models.Metric {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]*models.Metric, len(f.writes))
	copy(out, f.writes)

	return out
}

type frame struct {
	kind     string
	deviceID string
	names    []string
	values   []interface{}
}

type fakeNode struct {
	mu     sync.Mutex
	events chan sparkplug.Event
	log    []frame
}

func newFakeNode() *fakeNode {
	return &fakeNode{events: make(chan sparkplug.Event, 16)}
}

func (n *fakeNode) record(kind, deviceID string, metrics []*models.Metric) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fr := frame{kind: kind, deviceID: deviceID}
	for _, m := range metrics {
		fr.names = append(fr.names, m.Name)
		fr.values = append(fr.values, m.Value)
	}

	n.log = append(n.log, fr)
}

func (n *fakeNode) PublishDeviceBirth(deviceID string, metrics []*models.Metric) error {
	for i, m := range metrics {
		alias := uint64(i + 1)
		m.Alias = &alias
	}

	n.record("birth", deviceID, metrics)

	return nil
}

func (n *fakeNode) PublishDeviceData(deviceID string, metrics []*models.Metric) error {
	n.record("data", deviceID, metrics)
	return nil
}

func (n *fakeNode) PublishDeviceDeath(deviceID string) error {
	n.record("death", deviceID, nil)
	return nil
}

func (n *fakeNode) Events() <-chan sparkplug.Event { return n.events }
func (n *fakeNode) Stop() error                    { return nil }

func (n *fakeNode) frames() []frame {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]frame, len(n.log))
	copy(out, n.log)

	return out
}

func (n *fakeNode) kinds() []string {
	out := make([]string, 0)
	for _, fr := range n.frames() {
		out = append(out, fr.kind)
	}

	return out
}

func (n *fakeNode) waitFrames(t *testing.T, count int) []frame {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(n.frames()) >= count
	}, waitFor, pollEach)

	return n.frames()
}

type fakeConf struct {
	mu    sync.Mutex
	calls []int64
}

func (f *fakeConf) SetDevicePollInt(_, _ string, pollIntMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, pollIntMs)

	return nil
}

func (f *fakeConf) recorded() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]int64, len(f.calls))
	copy(out, f.calls)

	return out
}

type harness struct {
	dev   *Device
	drv   *fakeDriver
	node  *fakeNode
	conf  *fakeConf
	clock *fakeClock
}

func newHarness(t *testing.T, extra ...*models.Metric) *harness {
	t.Helper()

	metrics := models.DefaultMetrics(1000)
	metrics = append(metrics, extra...)

	h := &harness{
		drv:   newFakeDriver(),
		node:  newFakeNode(),
		conf:  &fakeConf{},
		clock: newFakeClock(),
	}

	h.dev = New(Config{
		DeviceID: "dev-1",
		ConnName: "conn-1",
		Driver:   h.drv,
		Node:     h.node,
		Store:    metricstore.New(metrics...),
		Format:   models.FormatDelimited,
		PollInt:  time.Second,
		Clock:    h.clock,
		Conf:     h.conf,
		Logger:   logger.NewTestLogger(),
	})

	h.dev.Start()
	t.Cleanup(h.dev.Stop)

	return h
}

func tempMetric() *models.Metric {
	return &models.Metric{
		Name:       "temp",
		Type:       models.TypeDouble,
		Properties: models.Properties{Method: "GET", Address: "a"},
	}
}

// connect marks the driver usable and fires the readiness poll until the
// subscription is armed.
func (h *harness) connect(t *testing.T) {
	t.Helper()

	h.dev.DeviceConnected()

	require.Eventually(t, func() bool {
		h.clock.tick(t, readinessInterval)
		return len(h.drv.subscriptions()) > 0
	}, waitFor, pollEach)
}

func TestDeviceBirthBeforeData(t *testing.T) {
	h := newHarness(t, tempMetric())
	h.connect(t)

	h.dev.HandleData(map[string]interface{}{"a": "21.5"}, true)

	frames := h.node.waitFrames(t, 2)
	require.Equal(t, "birth", frames[0].kind)
	require.Equal(t, "data", frames[1].kind)
	assert.Equal(t, []string{"temp"}, frames[1].names)
	assert.Equal(t, []interface{}{21.5}, frames[1].values)
}

func TestDeviceChangeFilter(t *testing.T) {
	h := newHarness(t, tempMetric())
	h.connect(t)

	h.dev.HandleData(map[string]interface{}{"a": "21.5"}, true)
	h.node.waitFrames(t, 2)

	// same value again: no frame
	h.dev.HandleData(map[string]interface{}{"a": "21.5"}, true)
	// unparseable value: decode yields null, dropped
	h.dev.HandleData(map[string]interface{}{"a": "not-a-number"}, true)
	// new value: one DATA
	h.dev.HandleData(map[string]interface{}{"a": "22.0"}, true)

	frames := h.node.waitFrames(t, 3)
	assert.Equal(t, []string{"birth", "data", "data"}, h.node.kinds())
	assert.Equal(t, []interface{}{22.0}, frames[2].values)
}

func TestDeviceWatchdogDeath(t *testing.T) {
	h := newHarness(t, tempMetric())
	h.connect(t)

	h.dev.HandleData(map[string]interface{}{"a": "21.5"}, true)
	h.node.waitFrames(t, 2)

	// silence past the watchdog deadline
	h.clock.advance(11 * time.Second)
	h.clock.tick(t, watchdogTick)

	frames := h.node.waitFrames(t, 3)
	assert.Equal(t, "death", frames[2].kind)

	// next data triggers a fresh BIRTH before its DATA
	h.dev.HandleData(map[string]interface{}{"a": "25.0"}, true)

	frames = h.node.waitFrames(t, 5)
	assert.Equal(t, []string{"birth", "data", "death", "birth", "data"}, h.node.kinds())
}

func TestDeviceWatchdogQuietWhileFed(t *testing.T) {
	h := newHarness(t, tempMetric())
	h.connect(t)

	value := []string{"1", "2", "3", "4"}
	for _, v := range value {
		h.dev.HandleData(map[string]interface{}{"a": v}, true)
		h.clock.advance(5 * time.Second)
		h.clock.tick(t, watchdogTick)
	}

	frames := h.node.waitFrames(t, len(value)+1)
	for _, fr := range frames {
		assert.NotEqual(t, "death", fr.kind)
	}
}

func TestDeviceRebirthCommand(t *testing.T) {
	h := newHarness(t, tempMetric())
	h.connect(t)

	h.dev.HandleData(map[string]interface{}{"a": "21.5"}, true)
	h.node.waitFrames(t, 2)

	h.dev.HandleCommand([]*models.Metric{{Name: models.MetricRebirth, Value: true}})

	frames := h.node.waitFrames(t, 3)
	assert.Equal(t, "birth", frames[2].kind)
}

func TestDevicePollingIntervalCommand(t *testing.T) {
	h := newHarness(t, tempMetric())
	h.connect(t)

	h.dev.HandleData(map[string]interface{}{"a": "21.5"}, true)
	h.node.waitFrames(t, 2)

	h.dev.HandleCommand([]*models.Metric{{Name: models.MetricPollingInterval, Value: int64(500)}})

	frames := h.node.waitFrames(t, 3)
	assert.Equal(t, "data", frames[2].kind)
	assert.Equal(t, []string{models.MetricPollingInterval}, frames[2].names)
	assert.Equal(t, []interface{}{uint16(500)}, frames[2].values)

	// the old subscription is stopped and the new value persisted
	require.Eventually(t, func() bool {
		return len(h.conf.recorded()) == 1
	}, waitFor, pollEach)
	assert.Equal(t, []int64{500}, h.conf.recorded())

	// readiness poll re-arms the subscription at the new interval
	require.Eventually(t, func() bool {
		h.clock.tick(t, readinessInterval)

		subs := h.drv.subscriptions()

		return len(subs) == 2 && subs[1].Interval == 500*time.Millisecond
	}, waitFor, pollEach)
}

func TestDeviceCommandWrite(t *testing.T) {
	setpoint := &models.Metric{
		Name:       "setpoint",
		Type:       models.TypeInt32,
		Properties: models.Properties{Method: "POST", Address: "sp"},
	}

	h := newHarness(t, tempMetric(), setpoint)
	h.connect(t)

	h.dev.HandleData(map[string]interface{}{"a": "21.5"}, true)
	h.node.waitFrames(t, 2)

	h.dev.HandleCommand([]*models.Metric{
		{Name: "setpoint", Value: int64(77)}, // narrowed to int32
		{Name: "temp", Value: int64(1)},      // GET metric: refused
		{Name: "ghost", Value: int64(2)},     // unknown: skipped
	})

	require.Eventually(t, func() bool {
		return len(h.drv.writtenBatches()) == 1
	}, waitFor, pollEach)

	batches := h.drv.writtenBatches()
	require.Len(t, batches[0], 1)
	assert.Equal(t, "setpoint", batches[0][0].Name)
	assert.Equal(t, int32(77), batches[0][0].Value)

	// the written value is mirrored and reported northbound
	frames := h.node.waitFrames(t, 3)
	assert.Equal(t, "data", frames[2].kind)
	assert.Equal(t, []string{"setpoint"}, frames[2].names)
}

func TestDeviceDisconnectPublishesDeath(t *testing.T) {
	h := newHarness(t, tempMetric())
	h.connect(t)

	h.dev.HandleData(map[string]interface{}{"a": "21.5"}, true)
	h.node.waitFrames(t, 2)

	h.dev.DeviceDisconnected()

	frames := h.node.waitFrames(t, 3)
	assert.Equal(t, "death", frames[2].kind)
}

func TestDeviceAmbiguousPayloadSkipped(t *testing.T) {
	other := &models.Metric{
		Name:       "other",
		Type:       models.TypeDouble,
		Properties: models.Properties{Method: "GET", Address: "b"},
	}

	h := newHarness(t, tempMetric(), other)
	h.connect(t)

	// two addresses, neither metric declares a path: both ambiguous
	h.dev.HandleData(map[string]interface{}{"a": "1", "b": "2"}, true)

	// a single-address event still updates normally
	h.dev.HandleData(map[string]interface{}{"a": "3"}, true)

	frames := h.node.waitFrames(t, 2)
	assert.Equal(t, []string{"birth", "data"}, h.node.kinds())
	assert.Equal(t, []string{"temp"}, frames[1].names)
	assert.Equal(t, []interface{}{3.0}, frames[1].values)
}

func TestDeviceAliasResolutionInCommands(t *testing.T) {
	setpoint := &models.Metric{
		Name:       "setpoint",
		Type:       models.TypeDouble,
		Properties: models.Properties{Method: "POST", Address: "sp"},
	}

	h := newHarness(t, setpoint)
	h.connect(t)

	// BIRTH assigns aliases in place; setpoint is the 4th metric
	h.dev.RequestBirth()
	h.node.waitFrames(t, 1)

	alias := uint64(4)
	h.dev.HandleCommand([]*models.Metric{{Alias: &alias, Value: int64(5)}})

	require.Eventually(t, func() bool {
		return len(h.drv.writtenBatches()) == 1
	}, waitFor, pollEach)

	batch := h.drv.writtenBatches()[0]
	require.Len(t, batch, 1)
	assert.Equal(t, "setpoint", batch[0].Name)
	assert.Equal(t, 5.0, batch[0].Value)
}
