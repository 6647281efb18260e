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

// Package config normalises the external agent configuration into the
// internal connection/device/metric shape and manages the locally persisted
// copy of the config document.
package config

import (
	"time"

	"github.com/carverauto/edgebridge/pkg/models"
)

const defaultPollInt = 1000 // milliseconds

// Rehash transforms the external configuration document into the internal
// shape: connection-level pollInt, payloadFormat and delimiter are copied
// down into each device unless the device overrides them, and every declared
// tag becomes a metric. The three Device Control metrics are prepended to
// each device's metric list.
func Rehash(cfg *models.AgentConfig) []models.ConnectionSpec {
	specs := make([]models.ConnectionSpec, 0, len(cfg.DeviceConnections))

	for i := range cfg.DeviceConnections {
		conn := &cfg.DeviceConnections[i]

		spec := models.ConnectionSpec{
			Name:     conn.Name,
			ConnType: conn.ConnType,
			Details:  conn.Details,
			Devices:  make([]models.DeviceSpec, 0, len(conn.Devices)),
		}

		for j := range conn.Devices {
			decl := &conn.Devices[j]

			pollInt := conn.PollInt
			if decl.PollInt > 0 {
				pollInt = decl.PollInt
			}

			if pollInt <= 0 {
				pollInt = defaultPollInt
			}

			format := conn.PayloadFormat
			if decl.PayloadFormat != "" {
				format = decl.PayloadFormat
			}

			delimiter := conn.Delimiter
			if decl.Delimiter != "" {
				delimiter = decl.Delimiter
			}

			metrics := models.DefaultMetrics(pollInt)
			for k := range decl.Tags {
				metrics = append(metrics, tagToMetric(&decl.Tags[k]))
			}

			spec.Devices = append(spec.Devices, models.DeviceSpec{
				DeviceID:      decl.DeviceID,
				PollInt:       time.Duration(pollInt) * time.Millisecond,
				PayloadFormat: models.PayloadFormat(format),
				Delimiter:     delimiter,
				Metrics:       metrics,
			})
		}

		specs = append(specs, spec)
	}

	return specs
}

// tagToMetric converts one declared tag. A BE/LE suffix on the declared type
// selects the endianness and is stripped from the type itself; isTransient is
// the negation of recordToDB.
func tagToMetric(tag *models.Tag) *models.Metric {
	dataType, endianness := models.NormalizeType(tag.Type)

	return &models.Metric{
		Name:        tag.Name,
		Type:        dataType,
		IsNull:      true,
		IsTransient: !tag.RecordToDB,
		Properties: models.Properties{
			Method:        tag.Method,
			Address:       tag.Address,
			Path:          tag.Path,
			EngUnit:       tag.EngUnit,
			EngLow:        tag.EngLow,
			EngHigh:       tag.EngHigh,
			Deadband:      tag.DeadBand,
			Tooltip:       tag.Tooltip,
			Documentation: tag.Docs,
			Endianness:    endianness,
		},
	}
}
