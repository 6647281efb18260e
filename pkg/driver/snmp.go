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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

const (
	snmpDefaultPort    = 161
	snmpDefaultTimeout = 5 * time.Second
	snmpMaxOIDsPerGet  = 25
)

// SNMP polls agent OIDs. A metric's address is its OID; values come back
// decoded by the SNMP stack, so data events bypass the codec layer.
type SNMP struct {
	base
	details models.SNMPConnDetails

	mu     sync.Mutex
	client *gosnmp.GoSNMP
}

func NewSNMP(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.SNMPConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.Host == "" {
		return nil, fmt.Errorf("%w: host", ErrDetailsRequired)
	}

	if d.Port == 0 {
		d.Port = snmpDefaultPort
	}

	var version gosnmp.SnmpVersion

	switch d.Version {
	case "1":
		version = gosnmp.Version1
	case "", "2c":
		version = gosnmp.Version2c
	default:
		return nil, fmt.Errorf("%w: %q", errSNMPUnsupportedVer, d.Version)
	}

	timeout := snmpDefaultTimeout
	if d.TimeoutS > 0 {
		timeout = time.Duration(d.TimeoutS) * time.Second
	}

	client := &gosnmp.GoSNMP{
		Target:    d.Host,
		Port:      uint16(d.Port),
		Community: d.Community,
		Version:   version,
		Timeout:   timeout,
		Retries:   1,
	}

	return &SNMP{base: newBase(log), details: d, client: client}, nil
}

func (s *SNMP) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client.Conn != nil {
		return nil
	}

	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("snmp connect %s: %w", s.details.Host, err)
	}

	s.emitOpen()

	return nil
}

func (s *SNMP) Close() error {
	s.shutdown(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.client.Conn != nil {
			_ = s.client.Conn.Close()
		}
	})

	return nil
}

func (s *SNMP) ReadMetrics(
	_ context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	oids := getAddresses(metrics)
	data := make(map[string]interface{})

	for start := 0; start < len(oids); start += snmpMaxOIDsPerGet {
		end := start + snmpMaxOIDsPerGet
		if end > len(oids) {
			end = len(oids)
		}

		s.mu.Lock()
		result, err := s.client.Get(oids[start:end])
		s.mu.Unlock()

		if err != nil {
			s.emitError(fmt.Errorf("%w: %v", ErrReadFailed, err))
			continue
		}

		for _, variable := range result.Variables {
			if variable.Type == gosnmp.NoSuchObject || variable.Type == gosnmp.NoSuchInstance {
				continue
			}

			value := variable.Value
			if variable.Type == gosnmp.OctetString {
				if b, ok := value.([]byte); ok {
					value = string(b)
				}
			}

			data[variable.Name] = value
		}
	}

	if len(data) > 0 {
		s.emitData(data, false)
	}

	return nil
}

func (s *SNMP) WriteMetrics(
	_ context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	pdus := make([]gosnmp.SnmpPDU, 0, len(metrics))

	for _, m := range metrics {
		pdu := gosnmp.SnmpPDU{Name: m.Properties.Address}

		switch m.Type {
		case models.TypeString, models.TypeText:
			pdu.Type = gosnmp.OctetString
			pdu.Value = fmt.Sprintf("%v", m.Value)
		default:
			f, ok := toDriverFloat(m.Value)
			if !ok {
				return fmt.Errorf("%w: %s", ErrWriteFailed, m.Name)
			}

			pdu.Type = gosnmp.Integer
			pdu.Value = int(f)
		}

		pdus = append(pdus, pdu)
	}

	s.mu.Lock()
	_, err := s.client.Set(pdus)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return nil
}

func (s *SNMP) StartSubscription(ctx context.Context, sub Subscription) error {
	return s.startPoll(sub, func() {
		if err := s.ReadMetrics(ctx, sub.Metrics, sub.Format, sub.Delimiter); err != nil {
			s.emitError(err)
		}
	})
}
