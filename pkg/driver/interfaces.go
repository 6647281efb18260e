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

// Package driver defines the southbound device-connection contract and the
// concrete protocol drivers implementing it. A driver owns one transport,
// shared by every device declared on the connection, and reports everything
// that happens on it through an asynchronous event stream.
package driver

import (
	"context"
	"time"

	"github.com/carverauto/edgebridge/pkg/models"
)

// EventKind tags a driver event.
type EventKind int

const (
	// EventOpen signals the driver transport is usable.
	EventOpen EventKind = iota
	// EventClose signals the driver lost its transport.
	EventClose
	// EventError carries a non-fatal driver error.
	EventError
	// EventData carries a batch of raw values keyed by device address.
	EventData
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	case EventData:
		return "data"
	default:
		return "unknown"
	}
}

// Event is the tagged variant flowing out of a driver.
type Event struct {
	Kind EventKind
	Err  error

	// Data maps device addresses to whatever raw form the driver chose:
	// a JSON string, a byte buffer, or an already-decoded native value.
	Data map[string]interface{}

	// ParseVals is false when Data already holds final values and the codec
	// layer must be bypassed.
	ParseVals bool
}

// Subscription describes a periodic read on behalf of one device.
type Subscription struct {
	DeviceID  string
	Metrics   []*models.Metric
	Format    models.PayloadFormat
	Delimiter string
	Interval  time.Duration
}

// Driver is the polymorphic southbound contract. Open and Close are
// idempotent; Close emits a Close event. Push-capable drivers (MQTT, OPC UA,
// WebSocket) arm their pipeline in StartSubscription instead of polling.
type Driver interface {
	Open(ctx context.Context) error
	Close() error

	// ReadMetrics performs a one-shot read of the metrics' addresses and
	// emits the result as a Data event.
	ReadMetrics(ctx context.Context, metrics []*models.Metric, format models.PayloadFormat, delimiter string) error

	// WriteMetrics attempts to write the metrics' values to the device.
	WriteMetrics(ctx context.Context, metrics []*models.Metric, format models.PayloadFormat, delimiter string) error

	StartSubscription(ctx context.Context, sub Subscription) error
	StopSubscription(deviceID string) error

	Events() <-chan Event
}
