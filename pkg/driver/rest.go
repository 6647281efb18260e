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
	"bytes"
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

const defaultHTTPTimeout = 10 * time.Second

// REST reads and writes device values over HTTP. A metric's address is the
// request path relative to the configured base URL; the response body is
// handed to the codec layer unparsed.
type REST struct {
	base
	details models.RESTConnDetails
	client  *http.Client
}

func NewREST(details json.RawMessage, log logger.Logger) (Driver, error) {
	var d models.RESTConnDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetailsRequired, err)
	}

	if d.BaseURL == "" {
		return nil, fmt.Errorf("%w: baseURL", ErrDetailsRequired)
	}

	timeout := defaultHTTPTimeout
	if d.TimeoutS > 0 {
		timeout = time.Duration(d.TimeoutS) * time.Second
	}

	return &REST{
		base:    newBase(log),
		details: d,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Open is immediate: HTTP is connectionless, so the driver is usable as soon
// as it exists.
func (r *REST) Open(_ context.Context) error {
	r.emitOpen()
	return nil
}

func (r *REST) Close() error {
	r.shutdown(func() { r.client.CloseIdleConnections() })
	return nil
}

func (r *REST) url(address string) string {
	return strings.TrimSuffix(r.details.BaseURL, "/") + "/" + strings.TrimPrefix(address, "/")
}

func (r *REST) ReadMetrics(
	ctx context.Context, metrics []*models.Metric, _ models.PayloadFormat, _ string) error {
	data := make(map[string]interface{})

	for _, addr := range getAddresses(metrics) {
		body, err := r.get(ctx, addr)
		if err != nil {
			r.emitError(fmt.Errorf("%w: GET %s: %v", ErrReadFailed, addr, err))
			continue
		}

		data[addr] = body
	}

	if len(data) > 0 {
		r.emitData(data, true)
	}

	return nil
}

func (r *REST) get(ctx context.Context, address string) ([]byte, error) {
	ctx, cancel := readContext(ctx, r.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url(address), http.NoBody)
	if err != nil {
		return nil, err
	}

	if r.details.Username != "" {
		req.SetBasicAuth(r.details.Username, r.details.Password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (r *REST) WriteMetrics(
	ctx context.Context, metrics []*models.Metric, format models.PayloadFormat, delimiter string) error {
	byAddr := make(map[string][]*models.Metric)
	for _, m := range metrics {
		byAddr[m.Properties.Address] = append(byAddr[m.Properties.Address], m)
	}

	for addr, group := range byAddr {
		body, err := r.codec.Encode(group, format, delimiter)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, addr, err)
		}

		if err := r.post(ctx, addr, body); err != nil {
			return fmt.Errorf("%w: POST %s: %w", ErrWriteFailed, addr, err)
		}
	}

	return nil
}

func (r *REST) post(ctx context.Context, address string, body []byte) error {
	ctx, cancel := readContext(ctx, r.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url(address), bytes.NewReader(body))
	if err != nil {
		return err
	}

	if r.details.Username != "" {
		req.SetBasicAuth(r.details.Username, r.details.Password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	return nil
}

func (r *REST) StartSubscription(ctx context.Context, sub Subscription) error {
	return r.startPoll(sub, func() {
		if err := r.ReadMetrics(ctx, sub.Metrics, sub.Format, sub.Delimiter); err != nil {
			r.emitError(err)
		}
	})
}
