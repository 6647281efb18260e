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

// Package device runs one logical device: its metric store, its watchdog and
// the BIRTH/DATA/DEATH lifecycle. All state transitions happen on a single
// goroutine fed by a channel that fans in driver events, commands and timer
// ticks.
package device

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/carverauto/edgebridge/pkg/codec"
	"github.com/carverauto/edgebridge/pkg/driver"
	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/metricstore"
	"github.com/carverauto/edgebridge/pkg/models"
	"github.com/carverauto/edgebridge/pkg/sparkplug"
)

const (
	// watchdogTimeout is the dead-man's-handle: no inbound data or
	// successful write for this long publishes DEATH.
	watchdogTimeout = 10 * time.Second
	watchdogTick    = time.Second

	// readinessInterval paces the poll that waits for the driver to become
	// usable before the metric subscription starts.
	readinessInterval = 100 * time.Millisecond

	inputQueueSize = 256
	writeTimeout   = 10 * time.Second
)

// ConfigStore persists the polling interval of one device back to the local
// config file.
type ConfigStore interface {
	SetDevicePollInt(connName, deviceID string, pollIntMs int64) error
}

// Config assembles one Device. Driver and Node are shared with sibling
// devices; the translator owns their lifetimes.
type Config struct {
	DeviceID  string
	ConnName  string
	Driver    driver.Driver
	Node      sparkplug.Node
	Store     *metricstore.Store
	Format    models.PayloadFormat
	Delimiter string
	PollInt   time.Duration
	Clock     Clock
	Conf      ConfigStore
	Logger    logger.Logger
}

type inputKind int

const (
	inConnected inputKind = iota
	inDisconnected
	inData
	inCommand
	inBirthRequest
)

type input struct {
	kind      inputKind
	data      map[string]interface{}
	parseVals bool
	payload   []*models.Metric
}

// Device is one logical device actor.
type Device struct {
	id        string
	connName  string
	driver    driver.Driver
	node      sparkplug.Node
	store     *metricstore.Store
	codec     *codec.Codec
	format    models.PayloadFormat
	delimiter string
	pollInt   time.Duration
	conf      ConfigStore
	clock     Clock
	logger    logger.Logger

	inputs   chan input
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// actor-local state, touched only by run()
	isConnected bool
	isAlive     bool
	subscribed  bool
	deadline    time.Time
}

func New(cfg Config) *Device {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}

	return &Device{
		id:        cfg.DeviceID,
		connName:  cfg.ConnName,
		driver:    cfg.Driver,
		node:      cfg.Node,
		store:     cfg.Store,
		codec:     codec.New(cfg.Logger),
		format:    cfg.Format,
		delimiter: cfg.Delimiter,
		pollInt:   cfg.PollInt,
		conf:      cfg.Conf,
		clock:     clock,
		logger:    cfg.Logger,
		inputs:    make(chan input, inputQueueSize),
		done:      make(chan struct{}),
	}
}

func (d *Device) ID() string {
	return d.id
}

// Start launches the actor goroutine.
func (d *Device) Start() {
	d.wg.Add(1)

	go d.run()
}

// Stop cancels the watchdog and the metric subscription and ends the actor.
func (d *Device) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		_ = d.driver.StopSubscription(d.id)
	})

	d.wg.Wait()
}

// DeviceConnected marks the driver usable; the readiness poll starts the
// subscription shortly after.
func (d *Device) DeviceConnected() {
	d.push(input{kind: inConnected})
}

// DeviceDisconnected reports transport loss; an alive device publishes DEATH.
func (d *Device) DeviceDisconnected() {
	d.push(input{kind: inDisconnected})
}

// HandleData hands an inbound {address: raw} mapping to the actor. parseVals
// false means the values are final and bypass the codec layer.
func (d *Device) HandleData(data map[string]interface{}, parseVals bool) {
	d.push(input{kind: inData, data: data, parseVals: parseVals})
}

// HandleCommand hands an inbound DCMD payload to the actor.
func (d *Device) HandleCommand(payload []*models.Metric) {
	d.push(input{kind: inCommand, payload: payload})
}

// RequestBirth asks the actor to re-publish BIRTH.
func (d *Device) RequestBirth() {
	d.push(input{kind: inBirthRequest})
}

// push enqueues one actor input, dropping the oldest queued input when full.
func (d *Device) push(in input) {
	for {
		select {
		case <-d.done:
			return
		case d.inputs <- in:
			return
		default:
		}

		select {
		case <-d.inputs:
			d.logger.Warn().
				Str("device_id", d.id).
				Msg("Device input queue full, dropping oldest event")
		default:
		}
	}
}

func (d *Device) run() {
	defer d.wg.Done()

	watchdog := d.clock.Ticker(watchdogTick)
	defer watchdog.Stop()

	ready := d.clock.Ticker(readinessInterval)
	defer ready.Stop()

	for {
		select {
		case <-d.done:
			return
		case in := <-d.inputs:
			d.dispatch(in)
		case <-ready.Chan():
			if d.isConnected && !d.subscribed {
				d.startSubscription()
			}
		case <-watchdog.Chan():
			if d.isAlive && !d.clock.Now().Before(d.deadline) {
				d.logger.Warn().
					Str("device_id", d.id).
					Msg("Watchdog expired, publishing DEATH")
				d.publishDeath()
			}
		}
	}
}

func (d *Device) dispatch(in input) {
	switch in.kind {
	case inConnected:
		d.logger.Info().Str("device_id", d.id).Msg("Device connection open")

		d.isConnected = true
	case inDisconnected:
		d.logger.Info().Str("device_id", d.id).Msg("Device connection lost")

		if d.isAlive {
			d.publishDeath()
		}

		d.isConnected = false
		d.subscribed = false
	case inData:
		d.handleData(in.data, in.parseVals)
	case inCommand:
		d.handleCommand(in.payload)
	case inBirthRequest:
		d.publishBirth(false)
	}
}

func (d *Device) startSubscription() {
	err := d.driver.StartSubscription(context.Background(), driver.Subscription{
		DeviceID:  d.id,
		Metrics:   d.store.Array(),
		Format:    d.format,
		Delimiter: d.delimiter,
		Interval:  d.pollInt,
	})

	switch {
	case err == nil:
		d.logger.Info().
			Str("device_id", d.id).
			Dur("interval", d.pollInt).
			Msg("Metric subscription started")

		d.subscribed = true
	case err == driver.ErrAlreadySubscribed:
		d.subscribed = true
	default:
		d.logger.Error().Err(err).
			Str("device_id", d.id).
			Msg("Failed to start metric subscription")
	}
}

// handleData decodes an inbound payload into metric updates. Every metric
// registered under an address is considered; updates that do not pass the
// change filter are dropped, the rest go northbound as one DATA frame.
func (d *Device) handleData(data map[string]interface{}, parseVals bool) {
	changed := make([]*models.Metric, 0, len(data))

	for addr, raw := range data {
		for _, path := range d.store.PathsForAddr(addr) {
			m := d.store.GetByAddrPath(addr, path)
			if m == nil || !m.Properties.IsGet() {
				continue
			}

			// A structured payload shared by several addresses is only
			// safe to decode for metrics that say where to look.
			if parseVals && len(data) > 1 && m.Properties.Path == "" {
				d.logger.Debug().
					Str("device_id", d.id).
					Str("metric", m.Name).
					Msg("Ambiguous payload for metric without path, skipping")

				continue
			}

			value := raw

			if parseVals {
				decoded, err := d.codec.ParseValue(raw, m, d.format, d.delimiter)
				if err != nil {
					d.logger.Error().Err(err).
						Str("device_id", d.id).
						Str("metric", m.Name).
						Msg("Decode failed, metric unchanged")

					continue
				}

				value = decoded
			}

			if !valueChanged(m.Value, value) {
				d.logger.Debug().
					Str("device_id", d.id).
					Str("metric", m.Name).
					Msg("Value unchanged or null, update dropped")

				continue
			}

			var ts int64
			if parseVals {
				if t, ok := d.codec.ParseTimestamp(raw, d.format); ok {
					ts = t
				}
			}

			if updated := d.store.SetValueByAddrPath(addr, path, value, ts); updated != nil {
				changed = append(changed, updated)
			}
		}
	}

	if len(changed) > 0 {
		d.publishData(changed)
	}

	d.refreshWatchdog()
}

// publishData sends one DATA frame. A dead device is rebirthed first, with a
// one-shot read so the BIRTH carries fresh values.
func (d *Device) publishData(metrics []*models.Metric) {
	if !d.isAlive && !d.publishBirth(true) {
		return
	}

	if err := d.node.PublishDeviceData(d.id, metrics); err != nil {
		d.logger.Error().Err(err).
			Str("device_id", d.id).
			Msg("Failed to publish DATA")
	}
}

// publishBirth announces the device's full metric schema. The node assigns
// aliases on the metrics it is handed, so the alias index is rebuilt after.
func (d *Device) publishBirth(readRequired bool) bool {
	if readRequired && d.isConnected {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := d.driver.ReadMetrics(ctx, d.store.Array(), d.format, d.delimiter); err != nil {
			d.logger.Warn().Err(err).
				Str("device_id", d.id).
				Msg("Pre-BIRTH read failed")
		}
	}

	if err := d.node.PublishDeviceBirth(d.id, d.store.Array()); err != nil {
		d.logger.Error().Err(err).
			Str("device_id", d.id).
			Msg("Failed to publish BIRTH")

		return false
	}

	d.store.ReindexAliases()
	d.isAlive = true
	d.refreshWatchdog()

	d.logger.Info().Str("device_id", d.id).Msg("BIRTH published")

	return true
}

func (d *Device) publishDeath() {
	if err := d.node.PublishDeviceDeath(d.id); err != nil {
		d.logger.Error().Err(err).
			Str("device_id", d.id).
			Msg("Failed to publish DEATH")
	}

	d.isAlive = false
}

func (d *Device) refreshWatchdog() {
	d.deadline = d.clock.Now().Add(watchdogTimeout)
}

// handleCommand processes one DCMD payload. Writable metrics are collected
// and flushed as one driver write.
func (d *Device) handleCommand(payload []*models.Metric) {
	queue := make([]*models.Metric, 0, len(payload))

	for _, m := range payload {
		name := m.Name
		if name == "" && m.Alias != nil {
			if resolved := d.store.GetByAlias(*m.Alias); resolved != nil {
				name = resolved.Name
			}
		}

		if name == "" {
			d.logger.Warn().
				Str("device_id", d.id).
				Msg("Command metric has no resolvable name, skipping")

			continue
		}

		switch name {
		case models.MetricReboot:
			if isTrue(m.Value) {
				d.logger.Warn().
					Str("device_id", d.id).
					Msg("Device reboot not yet implemented")
			}
		case models.MetricRebirth:
			if isTrue(m.Value) {
				d.publishBirth(false)
			}
		case models.MetricPollingInterval:
			d.applyPollingInterval(m.Value)
		default:
			target := d.store.GetByName(name)
			if target == nil {
				d.logger.Warn().
					Str("device_id", d.id).
					Str("metric", name).
					Msg("Command targets unknown metric, skipping")

				continue
			}

			if target.Properties.IsGet() {
				d.logger.Warn().
					Str("device_id", d.id).
					Str("metric", name).
					Msg("Metric is read only, write refused")

				continue
			}

			write := *target
			write.Value = narrowValue(m.Value, target.Type)
			queue = append(queue, &write)
		}
	}

	if len(queue) > 0 {
		d.writeMetrics(queue)
	}
}

// applyPollingInterval restarts the metric subscription at a new interval and
// persists the value under this device's config entry.
func (d *Device) applyPollingInterval(value interface{}) {
	ms, ok := asNumber(value)
	if !ok {
		d.logger.Error().Err(errIntervalNotNumeric).
			Str("device_id", d.id).
			Msg("Polling interval command rejected")

		return
	}

	interval := time.Duration(int64(ms)) * time.Millisecond

	if err := d.driver.StopSubscription(d.id); err != nil {
		d.logger.Error().Err(err).
			Str("device_id", d.id).
			Msg("Failed to stop metric subscription")
	}

	d.subscribed = false
	d.pollInt = interval

	if updated := d.store.SetValueByName(models.MetricPollingInterval, uint16(int64(ms)), 0); updated != nil {
		d.publishData([]*models.Metric{updated})
	}

	// the readiness poll re-arms the subscription with the new interval

	if d.conf != nil {
		if err := d.conf.SetDevicePollInt(d.connName, d.id, int64(ms)); err != nil {
			d.logger.Error().Err(err).
				Str("device_id", d.id).
				Msg("Failed to persist polling interval")
		}
	}
}

// writeMetrics delegates to the driver, then mirrors the written values into
// the store and reports them northbound.
func (d *Device) writeMetrics(metrics []*models.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.driver.WriteMetrics(ctx, metrics, d.format, d.delimiter); err != nil {
		d.logger.Error().Err(err).
			Str("device_id", d.id).
			Msg("Device write failed")

		return
	}

	mirrored := make([]*models.Metric, 0, len(metrics))

	for _, m := range metrics {
		if updated := d.store.SetValueByName(m.Name, m.Value, 0); updated != nil {
			mirrored = append(mirrored, updated)
		}
	}

	if len(mirrored) > 0 {
		d.publishData(mirrored)
	}

	d.refreshWatchdog()
}

// valueChanged is the change filter: null never passes, zero is a valid
// value, numbers compare loosely across widths, structures compare deeply.
func valueChanged(oldVal, newVal interface{}) bool {
	if newVal == nil {
		return false
	}

	if oldVal == nil {
		return true
	}

	if of, ok := asNumber(oldVal); ok {
		if nf, ok := asNumber(newVal); ok {
			return of != nf
		}
	}

	return !reflect.DeepEqual(oldVal, newVal)
}

func asNumber(raw interface{}) (float64, bool) {
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
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func isTrue(raw interface{}) bool {
	if b, ok := raw.(bool); ok {
		return b
	}

	if f, ok := asNumber(raw); ok {
		return f != 0
	}

	return raw == "true"
}

// narrowValue converts command values, which arrive as 64-bit integers, to
// the metric's native width before the driver write.
func narrowValue(raw interface{}, t models.DataType) interface{} {
	f, ok := asNumber(raw)
	if !ok {
		return raw
	}

	switch t {
	case models.TypeBoolean:
		return f != 0
	case models.TypeInt8:
		return int8(f)
	case models.TypeInt16:
		return int16(f)
	case models.TypeInt32:
		return int32(f)
	case models.TypeInt64:
		if i, ok := raw.(int64); ok {
			return i
		}

		return int64(f)
	case models.TypeUInt8:
		return uint8(f)
	case models.TypeUInt16:
		return uint16(f)
	case models.TypeUInt32:
		return uint32(f)
	case models.TypeUInt64, models.TypeDateTime:
		if u, ok := raw.(uint64); ok {
			return u
		}

		return uint64(f)
	case models.TypeFloat:
		return float32(f)
	case models.TypeDouble:
		return f
	default:
		return raw
	}
}
