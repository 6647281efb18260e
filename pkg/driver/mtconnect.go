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
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

// MTConnect polls an MTConnect agent. A metric's address is the agent
// request ("current", "probe", "sample"); the XML document comes back as the
// raw payload and metrics select into it with XPath.
type MTConnect struct {
	base
	details models.MTConnectConnDetails
	client  *http.Client
}

func NewMTConnect(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.MTConnectConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.AgentURL == "" {
		return nil, fmt.Errorf("%w: agentURL", ErrDetailsRequired)
	}

	timeout := defaultHTTPTimeout
	if d.TimeoutS > 0 {
		timeout = time.Duration(d.TimeoutS) * time.Second
	}

	return &MTConnect{
		base:    newBase(log),
		details: d,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (m *MTConnect) Open(_ context.Context) error {
	m.emitOpen()
	return nil
}

func (m *MTConnect) Close() error {
	m.shutdown(func() { m.client.CloseIdleConnections() })
	return nil
}

func (m *MTConnect) ReadMetrics(
	ctx context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	data := make(map[string]interface{})

	for _, addr := range getAddresses(metrics) {
		url := strings.TrimSuffix(m.details.AgentURL, "/") + "/" + strings.TrimPrefix(addr, "/")

		body, err := m.fetch(ctx, url)
		if err != nil {
			m.emitError(fmt.Errorf("%w: %s: %v", ErrReadFailed, addr, err))
			continue
		}

		data[addr] = body
	}

	if len(data) > 0 {
		m.emitData(data, true)
	}

	return nil
}

func (m *MTConnect) fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := readContext(ctx, m.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// WriteMetrics is unsupported: MTConnect is a read-only protocol.
func (m *MTConnect) WriteMetrics(
	_ context.Context, _ []*models.Metric, _ models.PayloadFormat, _ string) error {
	return ErrWriteNotSupported
}

func (m *MTConnect) StartSubscription(ctx context.Context, sub Subscription) error {
	return m.startPoll(sub, func() {
		if err := m.ReadMetrics(ctx, sub.Metrics, sub.Format, sub.Delimiter); err != nil {
			m.emitError(err)
		}
	})
}
