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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	errNoConnections  = errors.New("config declares no device connections")
	errNoConnType     = errors.New("device connection missing connType")
	errNoDevices      = errors.New("device connection declares no devices")
	errNoDeviceID     = errors.New("device entry missing deviceId")
	errDuplicateDevID = errors.New("duplicate deviceId")
)

// AgentConfig is the external configuration document for one edge agent, as
// delivered by the config service and mirrored in the local config file.
type AgentConfig struct {
	Sparkplug         json.RawMessage    `json:"sparkplug,omitempty"`
	DeviceConnections []DeviceConnection `json:"deviceConnections"`
}

// Validate checks the structural invariants the translator relies on.
func (c *AgentConfig) Validate() error {
	if len(c.DeviceConnections) == 0 {
		return errNoConnections
	}

	seen := make(map[string]struct{})

	for i := range c.DeviceConnections {
		conn := &c.DeviceConnections[i]

		if conn.ConnType == "" {
			return fmt.Errorf("%w (connection %d)", errNoConnType, i)
		}

		if len(conn.Devices) == 0 {
			return fmt.Errorf("%w (connection %q)", errNoDevices, conn.Name)
		}

		for j := range conn.Devices {
			id := conn.Devices[j].DeviceID
			if id == "" {
				return fmt.Errorf("%w (connection %q, device %d)", errNoDeviceID, conn.Name, j)
			}

			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: %s", errDuplicateDevID, id)
			}

			seen[id] = struct{}{}
		}
	}

	return nil
}

// DeviceConnection declares one southbound endpoint and the devices bound to
// it. The protocol-specific details live under a connType-dependent key
// (RESTConnDetails, s7ConnDetails, ...) which is captured verbatim in Details.
type DeviceConnection struct {
	Name          string       `json:"name"`
	ConnType      string       `json:"connType"`
	PollInt       int64        `json:"pollInt"` // milliseconds
	PayloadFormat string       `json:"payloadFormat"`
	Delimiter     string       `json:"delimiter"`
	Devices       []DeviceDecl `json:"devices"`

	// Details maps raw top-level keys to their JSON so the driver registry
	// can pick out its detail block without each shape being known here.
	Details map[string]json.RawMessage `json:"-"`
}

// deviceConnectionAlias avoids UnmarshalJSON recursion.
type deviceConnectionAlias DeviceConnection

func (c *DeviceConnection) UnmarshalJSON(data []byte) error {
	var alias deviceConnectionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = DeviceConnection(alias)
	c.Details = raw

	return nil
}

// DeviceDecl declares one logical device on a connection.
type DeviceDecl struct {
	DeviceID      string `json:"deviceId"`
	PollInt       int64  `json:"pollInt,omitempty"`
	PayloadFormat string `json:"payloadFormat,omitempty"`
	Delimiter     string `json:"delimiter,omitempty"`
	Tags          []Tag  `json:"tags"`
}

// Tag is the external declaration of one metric.
type Tag struct {
	Name       string  `json:"Name"`
	Type       string  `json:"type"`
	Method     string  `json:"method"`
	Address    string  `json:"address"`
	Path       string  `json:"path"`
	EngUnit    string  `json:"engUnit"`
	EngLow     float64 `json:"engLow"`
	EngHigh    float64 `json:"engHigh"`
	DeadBand   float64 `json:"deadBand"`
	Tooltip    string  `json:"tooltip"`
	Docs       string  `json:"docs"`
	RecordToDB bool    `json:"recordToDB"`
}

// ConnectionSpec is the internal, rehashed shape of one connection.
type ConnectionSpec struct {
	Name     string
	ConnType string
	Details  map[string]json.RawMessage
	Devices  []DeviceSpec
}

// DeviceSpec is the internal shape of one device, with the connection-level
// settings already copied down and tags converted to metrics.
type DeviceSpec struct {
	DeviceID      string
	PollInt       time.Duration
	PayloadFormat PayloadFormat
	Delimiter     string
	Metrics       []*Metric
}
