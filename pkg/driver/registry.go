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
	"encoding/json"

	"github.com/carverauto/edgebridge/pkg/logger"
)

// Factory constructs a driver from its raw connection detail block.
type Factory func(details json.RawMessage, log logger.Logger) (Driver, error)

// Entry binds a connection type to its driver factory and the key its detail
// block lives under in the configuration document.
type Entry struct {
	DetailsKey string
	New        Factory
}

var registry = map[string]Entry{
	"REST":         {DetailsKey: "RESTConnDetails", New: NewREST},
	"MTConnect":    {DetailsKey: "MTConnectConnDetails", New: NewMTConnect},
	"S7":           {DetailsKey: "s7ConnDetails", New: NewS7},
	"OPC UA":       {DetailsKey: "OPCUAConnDetails", New: NewOPCUA},
	"MQTT":         {DetailsKey: "MQTTConnDetails", New: NewMQTT},
	"Websocket":    {DetailsKey: "WebsocketConnDetails", New: NewWebsocket},
	"UDP":          {DetailsKey: "UDPConnDetails", New: NewUDP},
	"ASCIITCP":     {DetailsKey: "ASCIITCPConnDetails", New: NewASCIITCP},
	"OpenProtocol": {DetailsKey: "OpenProtocolConnDetails", New: NewOpenProtocol},
	"SNMP":         {DetailsKey: "SNMPConnDetails", New: NewSNMP},
}

// Lookup resolves a connection type to its registry entry.
func Lookup(connType string) (Entry, bool) {
	entry, ok := registry[connType]
	return entry, ok
}
