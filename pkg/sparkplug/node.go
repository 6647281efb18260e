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

// Package sparkplug defines the contract between the translator core and the
// Sparkplug B edge node that carries BIRTH/DATA/DEATH frames northbound. The
// node implementation (broker session, alias allocation, primary-host state)
// lives outside this module; the core only publishes through it and reacts to
// the events it raises.
package sparkplug

import (
	"github.com/carverauto/edgebridge/pkg/models"
)

// EventKind discriminates node events.
type EventKind int

const (
	// EventBirthRequest asks one device to re-publish its BIRTH.
	EventBirthRequest EventKind = iota
	// EventBirthRequestAll asks every device to re-publish its BIRTH.
	EventBirthRequestAll
	// EventCommand carries an inbound DCMD payload for one device.
	EventCommand
	// EventStop asks the translator to shut down.
	EventStop
)

func (k EventKind) String() string {
	switch k {
	case EventBirthRequest:
		return "birth-request"
	case EventBirthRequestAll:
		return "birth-request-all"
	case EventCommand:
		return "command"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Event is one node event. DeviceID is empty for EventBirthRequestAll and
// EventStop; Payload is set only for EventCommand.
type Event struct {
	Kind     EventKind
	DeviceID string
	Payload  []*models.Metric
}

// Identity names this edge node on the broker.
type Identity struct {
	UUID      string
	Sparkplug string
}

// Node is the Sparkplug edge node the devices publish through. Publishes are
// serialised internally; callers may invoke them from any goroutine.
type Node interface {
	PublishDeviceBirth(deviceID string, metrics []*models.Metric) error
	PublishDeviceData(deviceID string, metrics []*models.Metric) error
	PublishDeviceDeath(deviceID string) error
	Events() <-chan Event
	Stop() error
}

// NodeFactory builds the node once identity and the raw sparkplug config
// block are known.
type NodeFactory func(identity Identity, sparkplugConfig []byte) (Node, error)
