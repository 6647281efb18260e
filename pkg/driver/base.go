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
	"context"
	"sync"
	"time"

	"github.com/carverauto/edgebridge/pkg/codec"
	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

// eventQueueSize bounds the driver event queue. On overflow the oldest event
// is dropped and logged.
const eventQueueSize = 256

// base carries the event queue and subscription bookkeeping shared by every
// driver. Drivers embed it and provide the transport.
type base struct {
	logger logger.Logger
	codec  *codec.Codec
	events chan Event

	mu   sync.Mutex
	subs map[string]chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
}

func newBase(log logger.Logger) base {
	return base{
		logger: log,
		codec:  codec.New(log),
		events: make(chan Event, eventQueueSize),
		subs:   make(map[string]chan struct{}),
	}
}

// Events exposes the driver event stream.
func (b *base) Events() <-chan Event {
	return b.events
}

// emit enqueues an event, dropping the oldest queued event when full.
func (b *base) emit(ev Event) {
	for {
		select {
		case b.events <- ev:
			return
		default:
		}

		select {
		case dropped := <-b.events:
			b.logger.Warn().
				Str("kind", dropped.Kind.String()).
				Msg("Driver event queue full, dropping oldest event")
		default:
		}
	}
}

func (b *base) emitOpen() {
	b.emit(Event{Kind: EventOpen})
}

func (b *base) emitError(err error) {
	b.emit(Event{Kind: EventError, Err: err})
}

// emitClose reports a lost transport. Distinct from shutdown: a driver whose
// underlying client reconnects emits Close and later Open again.
func (b *base) emitClose() {
	b.emit(Event{Kind: EventClose})
}

func (b *base) emitData(data map[string]interface{}, parseVals bool) {
	b.emit(Event{Kind: EventData, Data: data, ParseVals: parseVals})
}

// shutdown stops every subscription, runs the driver's transport teardown
// and emits exactly one Close event. Safe to call repeatedly.
func (b *base) shutdown(teardown func()) {
	b.closeOnce.Do(func() {
		b.stopAllSubscriptions()

		if teardown != nil {
			teardown()
		}

		b.emit(Event{Kind: EventClose})
	})
}

// startPoll arms the default timer-driven subscription for one device. The
// read callback runs once per interval until the subscription stops.
func (b *base) startPoll(sub Subscription, read func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[sub.DeviceID]; exists {
		return ErrAlreadySubscribed
	}

	done := make(chan struct{})
	b.subs[sub.DeviceID] = done

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(sub.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				read()
			}
		}
	}()

	return nil
}

// registerSub records a push-based subscription so StopSubscription can
// cancel it; the returned channel closes on stop.
func (b *base) registerSub(deviceID string) (<-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[deviceID]; exists {
		return nil, ErrAlreadySubscribed
	}

	done := make(chan struct{})
	b.subs[deviceID] = done

	return done, nil
}

// StopSubscription cancels the periodic read for one device.
func (b *base) StopSubscription(deviceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	done, ok := b.subs[deviceID]
	if !ok {
		return nil
	}

	close(done)
	delete(b.subs, deviceID)

	return nil
}

func (b *base) stopAllSubscriptions() {
	b.mu.Lock()

	for id, done := range b.subs {
		close(done)
		delete(b.subs, id)
	}

	b.mu.Unlock()
	b.wg.Wait()
}

// getAddresses returns the distinct GET addresses of the metrics, in first
// appearance order.
func getAddresses(metrics []*models.Metric) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(metrics))

	for _, m := range metrics {
		if !m.Properties.IsGet() || m.Properties.Address == "" {
			continue
		}

		if _, dup := seen[m.Properties.Address]; dup {
			continue
		}

		seen[m.Properties.Address] = struct{}{}
		out = append(out, m.Properties.Address)
	}

	return out
}

// toDriverFloat converts scalar metric values for register encoding.
func toDriverFloat(raw interface{}) (float64, bool) {
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
	case bool:
		if v {
			return 1, true
		}

		return 0, true
	default:
		return 0, false
	}
}

// readContext bounds a one-shot read issued from a polling tick.
func readContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	return context.WithTimeout(parent, timeout)
}
