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

import "strings"

// Names of the mandatory control metrics every device carries.
const (
	MetricPollingInterval = "Device Control/Polling Interval"
	MetricReboot          = "Device Control/Reboot"
	MetricRebirth         = "Device Control/Rebirth"
)

// PropertyValue is a named sub-metric attached to a metric.
type PropertyValue struct {
	Value interface{} `json:"value"`
	Type  DataType    `json:"type"`
}

// Properties is the typed record of recognised metric properties. Anything a
// configuration declares beyond the recognised set lands in Extra.
type Properties struct {
	Method        string     `json:"method,omitempty"`
	Address       string     `json:"address,omitempty"`
	Path          string     `json:"path,omitempty"`
	FriendlyName  string     `json:"friendlyName,omitempty"`
	Tooltip       string     `json:"tooltip,omitempty"`
	Documentation string     `json:"documentation,omitempty"`
	EngUnit       string     `json:"engUnit,omitempty"`
	EngLow        float64    `json:"engLow,omitempty"`
	EngHigh       float64    `json:"engHigh,omitempty"`
	Deadband      float64    `json:"deadband,omitempty"`
	Endianness    Endianness `json:"endianness,omitempty"`

	Extra map[string]PropertyValue `json:"extra,omitempty"`
}

// IsGet reports whether the metric participates in reads.
func (p *Properties) IsGet() bool {
	return strings.HasPrefix(p.Method, "GET")
}

// Metric is the atomic unit of the data model.
type Metric struct {
	Name        string      `json:"name"`
	Alias       *uint64     `json:"alias,omitempty"`
	Type        DataType    `json:"type"`
	Value       interface{} `json:"value"`
	Timestamp   int64       `json:"timestamp"` // milliseconds since epoch
	IsNull      bool        `json:"isNull"`
	IsTransient bool        `json:"isTransient,omitempty"`
	Properties  Properties  `json:"properties"`
}

// DataSet is the decoded representation of a dataSet metric value.
type DataSet struct {
	Columns []string        `json:"columns"`
	Types   []DataType      `json:"types"`
	Rows    [][]interface{} `json:"rows"`
}

// DefaultMetrics returns the three Device Control metrics prepended to every
// device, seeded with the configured polling interval in milliseconds.
func DefaultMetrics(pollIntMs int64) []*Metric {
	return []*Metric{
		{
			Name:        MetricPollingInterval,
			Type:        TypeUInt16,
			Value:       pollIntMs,
			IsTransient: true,
			Properties:  Properties{Method: "", EngUnit: "ms"},
		},
		{
			Name:        MetricReboot,
			Type:        TypeBoolean,
			Value:       false,
			IsTransient: true,
		},
		{
			Name:        MetricRebirth,
			Type:        TypeBoolean,
			Value:       false,
			IsTransient: true,
		},
	}
}
